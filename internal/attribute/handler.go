package attribute

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/respond"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
)

// Handler contains dependencies for handling attribute endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Mine returns the attributes of the current user.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	a, err := h.svc.Get(r.Context(), p.ID)
	if err != nil {
		h.logger.Warnw("get attributes failed", "user_id", p.ID, "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, a)
}
