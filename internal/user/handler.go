package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/respond"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
)

// Handler exposes HTTP endpoints for profile operations.
type Handler struct {
	svc    *UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Me returns the current user's detail.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	d, err := h.svc.GetDetail(r.Context(), p.ID)
	if err != nil {
		h.logger.Debugw("get detail failed", "user_id", p.ID, "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, d)
}

// Get returns another user's detail by path id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("userId"), 10, 64)
	if err != nil {
		respond.BadRequest(w, "invalid user id")
		return
	}
	d, err := h.svc.GetDetail(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, d)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid update payload", "err", err)
		respond.BadRequest(w, "invalid payload")
		return
	}
	out, err := h.svc.Update(r.Context(), p.ID, session.TokenFrom(r.Context()), req)
	if err != nil {
		h.logger.Warnw("update user failed", "user_id", p.ID, "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, out)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	if err := h.svc.Delete(r.Context(), p.ID, session.TokenFrom(r.Context())); err != nil {
		h.logger.Warnw("delete user failed", "user_id", p.ID, "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, nil)
}
