package team

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/respond"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
)

// Handler exposes team endpoints. Every route requires a session.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func teamID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("teamId"), 10, 64)
	return id, err == nil
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return page, size
}

// decodeActivity reads an optional activity body. An empty body is allowed.
func decodeActivity(r *http.Request) (ActivityRequest, error) {
	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	var req AddTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid team payload", "err", err)
		respond.BadRequest(w, "invalid payload")
		return
	}
	next, err := h.svc.AddTeam(r.Context(), p.ID, req)
	if err != nil {
		h.logger.Warnw("add team failed", "user_id", p.ID, "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, next)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	out, err := h.svc.Page(r.Context(), page, size)
	if err != nil {
		h.logger.Warnw("list teams failed", "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, out)
}

func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	id, ok := teamID(r)
	if !ok {
		respond.BadRequest(w, "invalid team id")
		return
	}
	d, err := h.svc.GetDetail(r.Context(), id, p.ID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, d)
}

func (h *Handler) NextSign(w http.ResponseWriter, r *http.Request) {
	id, ok := teamID(r)
	if !ok {
		respond.BadRequest(w, "invalid team id")
		return
	}
	ns, err := h.svc.GetNextSign(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, ns)
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	id, ok := teamID(r)
	if !ok {
		respond.BadRequest(w, "invalid team id")
		return
	}
	req, err := decodeActivity(r)
	if err != nil {
		respond.BadRequest(w, "invalid payload")
		return
	}
	if err := h.svc.JoinTeam(r.Context(), id, p.ID, req); err != nil {
		h.logger.Debugw("join team failed", "team_id", id, "user_id", p.ID, "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, nil)
}

func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := teamID(r)
	if !ok {
		respond.BadRequest(w, "invalid team id")
		return
	}
	page, size := pageParams(r)
	out, err := h.svc.PageMembers(r.Context(), id, page, size)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, out)
}

// SignIn posts a check-in record for the current window.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	id, ok := teamID(r)
	if !ok {
		respond.BadRequest(w, "invalid team id")
		return
	}
	req, err := decodeActivity(r)
	if err != nil {
		respond.BadRequest(w, "invalid payload")
		return
	}
	rec, err := h.svc.SignIn(r.Context(), id, p.ID, req)
	if err != nil {
		h.logger.Debugw("sign-in failed", "team_id", id, "user_id", p.ID, "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, map[string]any{
		"member_record_id": strconv.FormatInt(rec.ID, 10),
		"team_record_id":   rec.TeamRecordID,
	})
}

func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	id, ok := teamID(r)
	if !ok {
		respond.BadRequest(w, "invalid team id")
		return
	}
	page, size := pageParams(r)
	out, err := h.svc.PageMemberRecords(r.Context(), id, page, size)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, out)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	id, ok := teamID(r)
	if !ok {
		respond.BadRequest(w, "invalid team id")
		return
	}
	if err := h.svc.Complete(r.Context(), id, p.ID); err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, nil)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := session.ProfileFrom(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	id, ok := teamID(r)
	if !ok {
		respond.BadRequest(w, "invalid team id")
		return
	}
	if err := h.svc.Delete(r.Context(), id, p.ID); err != nil {
		h.logger.Warnw("delete team failed", "team_id", id, "user_id", p.ID, "err", err)
		respond.Error(w, err)
		return
	}
	respond.OK(w, nil)
}
