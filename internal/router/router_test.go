package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/auth"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/respond"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/user"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/user/entity"
)

func newTestRouter(t *testing.T, ready func(*http.Request) error) (http.Handler, *session.Service) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	sessions := session.NewService(session.NewMemoryStore(), session.Config{TTL: time.Hour, MinTTL: time.Minute}, logger)
	h := RegisterRoutes(logger, Deps{
		Sessions:   sessions,
		Auth:       auth.NewHandler(nil, logger),
		Users:      user.NewHandler(nil, logger),
		Attributes: attribute.NewHandler(nil, logger),
		Teams:      team.NewHandler(nil, logger),
		Ready:      ready,
	})
	return h, sessions
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) respond.Envelope {
	t.Helper()
	var env respond.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lifeup-api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	h, _ = newTestRouter(t, func(*http.Request) error { return errors.New("db down") })
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lifeup-api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	for _, target := range []string{"/lifeup-api/users/me", "/lifeup-api/teams", "/lifeup-api/teams/1/next_sign"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		assert.Equal(t, respond.CodeUnauthenticated, decode(t, rec).Code)
	}
}

func TestPrivateRouteWithSession(t *testing.T) {
	h, sessions := newTestRouter(t, nil)
	token, err := sessions.Issue(context.Background(), &entity.Profile{ID: 1, Nickname: "ann"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/lifeup-api/teams/not-a-number/next_sign", nil)
	req.Header.Set(session.TokenHeader, token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, respond.CodeValidation, decode(t, rec).Code)
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lifeup-api/users/login/app", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/lifeup-api/health", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lifeup-api/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lifeup_http_requests_total")
}
