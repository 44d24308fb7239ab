package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/auth"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/respond"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/user"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs every request at debug level with its matched route.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", r.Pattern,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers on every response.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			// Referrer policy
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")

			// no camera, microphone or geolocation
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// handlers may set a stricter policy before this runs
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}

			// HSTS - instruct browsers to use HTTPS for future requests. Only set if request is over TLS.
			if r.TLS != nil {
				// 30 days by default
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

const prefix = "/lifeup-api"

// Deps carries the handlers mounted by RegisterRoutes.
type Deps struct {
	Sessions   *session.Service
	Auth       *auth.Handler
	Users      *user.Handler
	Attributes *attribute.Handler
	Teams      *team.Handler
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(r *http.Request) error
}

// RegisterRoutes mounts HTTP handlers on the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, d Deps) http.Handler {
	mux := http.NewServeMux()
	authed := session.RequireAuth(d.Sessions, logger)
	private := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authed(h))
	}

	mux.HandleFunc("GET "+prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r); err != nil {
				logger.Warnw("health check failed", "err", err)
				respond.JSON(w, http.StatusServiceUnavailable, respond.Envelope{Code: respond.CodeInternal, Msg: "unavailable"})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET "+prefix+"/metrics", metrics.Handler())

	// auth
	mux.HandleFunc("POST "+prefix+"/users/register", d.Auth.Register)
	mux.HandleFunc("POST "+prefix+"/users/login/oauth", d.Auth.OAuthLogin)
	mux.HandleFunc("POST "+prefix+"/users/login/app", d.Auth.AppLogin)
	mux.HandleFunc("POST "+prefix+"/users/login/code", d.Auth.CodeLogin)
	mux.HandleFunc("POST "+prefix+"/users/logout", d.Auth.Logout)

	// users
	private("GET "+prefix+"/users/me", d.Users.Me)
	private("PUT "+prefix+"/users/me", d.Users.Update)
	private("DELETE "+prefix+"/users/me", d.Users.Delete)
	private("GET "+prefix+"/users/me/attributes", d.Attributes.Mine)
	private("GET "+prefix+"/users/{userId}", d.Users.Get)

	// teams
	private("POST "+prefix+"/teams/new", d.Teams.Add)
	private("GET "+prefix+"/teams", d.Teams.List)
	private("GET "+prefix+"/teams/{teamId}", d.Teams.Detail)
	private("DELETE "+prefix+"/teams/{teamId}", d.Teams.Delete)
	private("GET "+prefix+"/teams/{teamId}/next_sign", d.Teams.NextSign)
	private("POST "+prefix+"/teams/{teamId}/members", d.Teams.Join)
	private("GET "+prefix+"/teams/{teamId}/members", d.Teams.Members)
	private("POST "+prefix+"/teams/{teamId}/records", d.Teams.SignIn)
	private("GET "+prefix+"/teams/{teamId}/records", d.Teams.Records)
	private("POST "+prefix+"/teams/{teamId}/complete", d.Teams.Complete)

	return metrics.Middleware(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}
