package session

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/utilities"
)

type Config struct {
	TTL    time.Duration
	MinTTL time.Duration
	Prefix string
}

// ConfigFromEnv reads session lifetimes (seconds) from the environment.
func ConfigFromEnv() Config {
	return Config{
		TTL:    secondsFromEnv("SESSION_TTL_SECONDS", 7*24*3600),
		MinTTL: secondsFromEnv("SESSION_MIN_TTL_SECONDS", 24*3600),
		Prefix: "lifeup:",
	}
}

func secondsFromEnv(key string, def int) time.Duration {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	return time.Duration(def) * time.Second
}

// Service binds opaque tokens to cached user profiles.
type Service struct {
	store    Store
	cfg      Config
	logger   *zap.SugaredLogger
	newToken func() string
}

func NewService(store Store, cfg Config, logger *zap.SugaredLogger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, cfg: cfg, logger: logger, newToken: utilities.NewSessionToken}
}

func (s *Service) key(token string) string {
	return s.cfg.Prefix + "token:" + token
}

// Issue stores p under a fresh token and returns the token.
func (s *Service) Issue(ctx context.Context, p *entity.Profile) (string, error) {
	token := s.newToken()
	if err := s.put(ctx, token, p); err != nil {
		return "", err
	}
	return token, nil
}

// Refresh replaces the snapshot bound to token and restarts its TTL.
func (s *Service) Refresh(ctx context.Context, token string, p *entity.Profile) error {
	return s.put(ctx, token, p)
}

func (s *Service) put(ctx context.Context, token string, p *entity.Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.key(token), b, s.cfg.TTL)
}

// Lookup resolves token to its profile. A missing, expired or unreadable
// entry yields (nil, false, nil). When the remaining TTL has dropped below
// MinTTL the entry is renewed to the full TTL; the value is left as is.
func (s *Service) Lookup(ctx context.Context, token string) (*entity.Profile, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	key := s.key(token)
	b, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		s.logger.Debug("session token not found")
		return nil, false, nil
	}
	var p entity.Profile
	if err := json.Unmarshal(b, &p); err != nil {
		s.logger.Warnw("session entry undecodable", "err", err)
		return nil, false, nil
	}

	ttl, err := s.store.TTL(ctx, key)
	if err != nil {
		s.logger.Warnw("session ttl read failed", "err", err)
		return &p, true, nil
	}
	if ttl >= 0 && ttl < s.cfg.MinTTL {
		s.logger.Debugw("renewing session", "remaining", ttl)
		if err := s.store.Expire(ctx, key, s.cfg.TTL); err != nil {
			s.logger.Warnw("session renew failed", "err", err)
		}
	}
	return &p, true, nil
}

// Revoke drops the session bound to token.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.Delete(ctx, s.key(token))
}
