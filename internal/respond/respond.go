// Package respond writes the uniform {code,msg,data} envelope.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/apperr"
)

// Envelope codes.
const (
	CodeSuccess           = 200
	CodeValidation        = 40001
	CodeUnauthenticated   = 40101
	CodeInvalidCredential = 40102
	CodeNotFound          = 40401
	CodeConflict          = 40901
	CodeInternal          = 50000
	CodePersistence       = 50001
)

type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes data with the success code.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Code: CodeSuccess, Msg: "success", Data: data})
}

func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, Envelope{Code: CodeValidation, Msg: msg})
}

func Unauthenticated(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, Envelope{Code: CodeUnauthenticated, Msg: "invalid or missing token"})
}

// Error maps err onto a status and envelope code by its apperr kind.
func Error(w http.ResponseWriter, err error) {
	status, code, msg := Classify(err)
	JSON(w, status, Envelope{Code: code, Msg: msg})
}

// Classify returns the http status, envelope code and client message for err.
func Classify(err error) (int, int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated, "invalid or missing token"
	case errors.Is(err, apperr.ErrInvalidCredential):
		return http.StatusUnauthorized, CodeInvalidCredential, "invalid credential"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, CodeConflict, err.Error()
	case errors.Is(err, apperr.ErrPersistence):
		return http.StatusInternalServerError, CodePersistence, "database error"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}
