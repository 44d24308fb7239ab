package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/respond"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
)

// Handler exposes login, registration and logout endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// TokenResponse carries a freshly issued session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// CredentialRequest is the body of app and code logins.
type CredentialRequest struct {
	AuthType       string `json:"auth_type"`
	AuthIdentifier string `json:"auth_identifier"`
	Password       string `json:"password,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		respond.BadRequest(w, "invalid payload")
		return
	}
	h.reply(w, "register", req.AuthType, func() (string, error) {
		return h.svc.Register(r.Context(), req)
	})
}

func (h *Handler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req OAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid oauth payload", "err", err)
		respond.BadRequest(w, "invalid payload")
		return
	}
	h.reply(w, "oauth login", req.AuthType, func() (string, error) {
		return h.svc.OAuthLogin(r.Context(), req)
	})
}

func (h *Handler) AppLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		respond.BadRequest(w, "invalid payload")
		return
	}
	h.reply(w, "app login", req.AuthType, func() (string, error) {
		return h.svc.AppLogin(r.Context(), req.AuthType, req.AuthIdentifier, req.Password)
	})
}

// CodeLogin trusts that the SMS code was verified upstream.
func (h *Handler) CodeLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		respond.BadRequest(w, "invalid payload")
		return
	}
	h.reply(w, "code login", req.AuthType, func() (string, error) {
		return h.svc.CodeLogin(r.Context(), req.AuthType, req.AuthIdentifier)
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), session.TokenFromRequest(r)); err != nil {
		h.logger.Warnw("logout failed", "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, nil)
}

func (h *Handler) reply(w http.ResponseWriter, op, authType string, fn func() (string, error)) {
	token, err := fn()
	if err != nil {
		h.logger.Debugw(op+" failed", "auth_type", authType, "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, TokenResponse{Token: token})
}
