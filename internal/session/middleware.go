package session

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/respond"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/user/entity"
)

// TokenHeader carries the session token issued at login.
const TokenHeader = "AUTHENTICITY_TOKEN"

type ctxKey int

const (
	profileKey ctxKey = iota
	tokenKey
)

// WithProfile returns ctx carrying the authenticated profile and its token.
func WithProfile(ctx context.Context, token string, p *entity.Profile) context.Context {
	ctx = context.WithValue(ctx, tokenKey, token)
	return context.WithValue(ctx, profileKey, p)
}

// ProfileFrom returns the profile stored by RequireAuth.
func ProfileFrom(ctx context.Context) (*entity.Profile, bool) {
	p, ok := ctx.Value(profileKey).(*entity.Profile)
	return p, ok && p != nil
}

// TokenFrom returns the session token stored by RequireAuth.
func TokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// TokenFromRequest reads the token header, falling back to a bearer
// Authorization header.
func TokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(TokenHeader)); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

// RequireAuth rejects requests whose token does not resolve to a session.
func RequireAuth(svc *Service, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			p, ok, err := svc.Lookup(r.Context(), token)
			if err != nil {
				logger.Warnw("session lookup failed", "err", err)
				respond.Error(w, err)
				return
			}
			if !ok {
				respond.Unauthenticated(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), token, p)))
		})
	}
}
