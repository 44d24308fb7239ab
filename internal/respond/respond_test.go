package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/apperr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{apperr.Validation("bad"), http.StatusBadRequest, CodeValidation},
		{fmt.Errorf("user %w", apperr.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("account %w", apperr.ErrConflict), http.StatusConflict, CodeConflict},
		{apperr.ErrInvalidCredential, http.StatusUnauthorized, CodeInvalidCredential},
		{apperr.Persistence("insert", errors.New("x")), http.StatusInternalServerError, CodePersistence},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, c := range cases {
		status, code, _ := Classify(c.err)
		assert.Equal(t, c.status, status, c.err.Error())
		assert.Equal(t, c.code, code, c.err.Error())
	}
}

func TestErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apperr.Persistence("insert user", errors.New("pq: connection refused")))

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, CodePersistence, env.Code)
	assert.NotContains(t, env.Msg, "pq:")
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"n": 1})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":200,"msg":"success","data":{"n":1}}`, rec.Body.String())
}
