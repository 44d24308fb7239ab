package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute"
	attrrepo "github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute/repo"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/auth"
	authrepo "github.com/ovaphlow/pitchfork/service-lifeup/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/router"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team"
	teamrepo "github.com/ovaphlow/pitchfork/service-lifeup/internal/team/repo"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-lifeup/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/cache"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/utilities"
)

func main() {
	// best-effort: without a .env the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-lifeup")

	db, err := database.ConnectX(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureTables(ctx, db); err != nil {
		sugar.Fatalf("ensure tables: %v", err)
	}

	store, closeStore, err := openSessionStore(cache.ConfigFromEnv(), sugar)
	if err != nil {
		sugar.Fatalf("session store: %v", err)
	}
	defer closeStore()

	sessions := session.NewService(store, session.ConfigFromEnv(), sugar)
	teams := team.NewService(db, team.ConfigFromEnv(), sugar)
	users := user.NewUserService(db, sessions, teams, sugar)
	authSvc := auth.NewService(db, sessions, auth.ConfigFromEnv(), sugar)

	handler := router.RegisterRoutes(sugar, router.Deps{
		Sessions:   sessions,
		Auth:       auth.NewHandler(authSvc, sugar),
		Users:      user.NewHandler(users, sugar),
		Attributes: attribute.NewHandler(attribute.NewService(db), sugar),
		Teams:      team.NewHandler(teams, sugar),
		Ready: func(r *http.Request) error {
			return db.PingContext(r.Context())
		},
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

// ensureTables bootstraps the schema. It is idempotent.
func ensureTables(ctx context.Context, db *sqlx.DB) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"user_info", userrepo.NewUserRepo(db).EnsureTable},
		{"user_attribute", attrrepo.NewRepo(db).EnsureTable},
		{"user_auth", authrepo.NewIdentityRepo(db).EnsureTable},
		{"team_task", teamrepo.NewTaskRepo(db).EnsureTable},
		{"team_member", teamrepo.NewMemberRepo(db).EnsureTable},
		{"team_member_record", teamrepo.NewRecordRepo(db).EnsureTable},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func openSessionStore(cfg cache.Config, logger *zap.SugaredLogger) (session.Store, func(), error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-process session store; sessions are lost on restart")
		return session.NewMemoryStore(), func() {}, nil
	}
	client, err := cache.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return session.NewRedisStore(client), func() { _ = client.Close() }, nil
}
