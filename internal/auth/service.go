package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-lifeup/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/utilities"
)

var (
	ErrUserNotFound      = user.ErrUserNotFound
	ErrAccountExists     = fmt.Errorf("account already %w", apperr.ErrConflict)
	ErrInvalidCredential = fmt.Errorf("password %w", apperr.ErrInvalidCredential)
)

// errIdentityNotFound marks an absent (type, identifier) pair, as opposed to
// an identity whose owner is gone.
var errIdentityNotFound = fmt.Errorf("identity: %w", ErrUserNotFound)

const (
	minPasswordLen = 6
	maxPasswordLen = 32
)

type Config struct {
	IDTokenSecret string
	IDTokenIssuer string
	BcryptCost    int
}

// ConfigFromEnv reads auth settings. An empty OAUTH_ID_TOKEN_SECRET turns
// third-party id_token verification off.
func ConfigFromEnv() Config {
	cost, err := strconv.Atoi(os.Getenv("BCRYPT_COST"))
	if err != nil || cost <= 0 {
		cost = 10
	}
	return Config{
		IDTokenSecret: os.Getenv("OAUTH_ID_TOKEN_SECRET"),
		IDTokenIssuer: os.Getenv("OAUTH_ID_TOKEN_ISSUER"),
		BcryptCost:    cost,
	}
}

// Service resolves auth identities to user accounts and issues session tokens.
type Service struct {
	db         *sqlx.DB
	identities *repo.IdentityRepo
	sessions   *session.Service
	hasher     utilities.PasswordHasher
	verifier   *Verifier
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewService(db *sqlx.DB, sessions *session.Service, cfg Config, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Service{
		db:         db,
		identities: repo.NewIdentityRepo(db),
		sessions:   sessions,
		hasher:     utilities.BcryptHasher{Cost: cfg.BcryptCost},
		logger:     logger,
		now:        time.Now,
	}
	if cfg.IDTokenSecret != "" {
		s.verifier = NewVerifier(cfg.IDTokenSecret, cfg.IDTokenIssuer)
	}
	return s
}

// OAuthRequest is a third-party login. IDToken is checked only when a
// verifier is configured; the profile fields seed a first-time account.
type OAuthRequest struct {
	AuthType       string `json:"auth_type"`
	AuthIdentifier string `json:"auth_identifier"`
	IDToken        string `json:"id_token"`
	Nickname       string `json:"nickname"`
	Avatar         string `json:"user_head"`
	Region         string `json:"user_address"`
}

// RegisterRequest creates a new account bound to one identity.
type RegisterRequest struct {
	AuthType       string `json:"auth_type"`
	AuthIdentifier string `json:"auth_identifier"`
	Password       string `json:"password"`
	Nickname       string `json:"nickname"`
	Avatar         string `json:"user_head"`
	Region         string `json:"user_address"`
}

// OAuthLogin finds or creates the account behind a third-party identity and
// issues a fresh session token either way.
func (s *Service) OAuthLogin(ctx context.Context, in OAuthRequest) (token string, err error) {
	defer func() { metrics.ObserveLogin(typeLabel(in.AuthType), "oauth", err) }()

	in.AuthIdentifier = strings.TrimSpace(in.AuthIdentifier)
	if !entity.IsThirdParty(in.AuthType) {
		return "", apperr.Validation("auth_type %q is not a third-party type", in.AuthType)
	}
	if in.AuthIdentifier == "" {
		return "", apperr.Validation("auth_identifier is required")
	}
	if s.verifier != nil {
		if err := s.verifier.Verify(in.IDToken, in.AuthIdentifier); err != nil {
			s.logger.Debugw("id_token rejected", "auth_type", in.AuthType, "err", err)
			return "", fmt.Errorf("id_token %w", apperr.ErrInvalidCredential)
		}
	}

	u, err := s.ownerOf(ctx, in.AuthType, in.AuthIdentifier)
	if errors.Is(err, errIdentityNotFound) {
		u = s.newUser(in.AuthType, in.AuthIdentifier, in.Nickname, in.Avatar, in.Region)
		ident := &entity.Identity{AuthType: in.AuthType, Identifier: in.AuthIdentifier}
		err = s.createAccount(ctx, u, ident)
		if errors.Is(err, ErrAccountExists) {
			// lost a race with a concurrent first login of the same identity
			s.logger.Infow("identity created concurrently, reusing", "auth_type", in.AuthType)
			u, err = s.ownerOf(ctx, in.AuthType, in.AuthIdentifier)
		} else if err == nil {
			s.logger.Infow("account created by oauth login", "user_id", u.ID, "auth_type", in.AuthType)
		}
	}
	if err != nil {
		return "", err
	}
	return s.issue(ctx, u)
}

// AppLogin verifies a password against a credentialed identity.
func (s *Service) AppLogin(ctx context.Context, authType, identifier, password string) (token string, err error) {
	defer func() { metrics.ObserveLogin(typeLabel(authType), "app", err) }()

	identifier = strings.TrimSpace(identifier)
	if !entity.IsCredentialed(authType) {
		return "", apperr.Validation("auth_type %q does not support password login", authType)
	}
	if identifier == "" || password == "" {
		return "", apperr.Validation("auth_identifier and password are required")
	}
	ident, err := s.lookup(ctx, s.identities, authType, identifier)
	if err != nil {
		return "", err
	}
	u, err := user.LoadUser(ctx, s.db, ident.UserID)
	if err != nil {
		return "", err
	}
	if !s.hasher.Verify(ident.AccessToken, password, u.PwdSalt) {
		s.logger.Infow("password mismatch", "user_id", u.ID, "auth_type", authType)
		return "", ErrInvalidCredential
	}
	return s.issue(ctx, u)
}

// CodeLogin logs in with an identity whose one-time code was already checked
// by the SMS gateway.
func (s *Service) CodeLogin(ctx context.Context, authType, identifier string) (token string, err error) {
	defer func() { metrics.ObserveLogin(typeLabel(authType), "code", err) }()

	identifier = strings.TrimSpace(identifier)
	if !entity.SupportsCode(authType) {
		return "", apperr.Validation("auth_type %q does not support code login", authType)
	}
	if identifier == "" {
		return "", apperr.Validation("auth_identifier is required")
	}
	ident, err := s.lookup(ctx, s.identities, authType, identifier)
	if err != nil {
		return "", err
	}
	u, err := user.LoadUser(ctx, s.db, ident.UserID)
	if err != nil {
		return "", err
	}
	return s.issue(ctx, u)
}

// Register creates a new account and its identity in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (token string, err error) {
	defer func() { metrics.ObserveLogin(typeLabel(in.AuthType), "register", err) }()

	in.AuthIdentifier = strings.TrimSpace(in.AuthIdentifier)
	if err := validateRegister(in); err != nil {
		return "", err
	}
	u := s.newUser(in.AuthType, in.AuthIdentifier, in.Nickname, in.Avatar, in.Region)
	ident := &entity.Identity{AuthType: in.AuthType, Identifier: in.AuthIdentifier}
	if entity.IsCredentialed(in.AuthType) {
		hash, err := s.hasher.Hash(in.Password, u.PwdSalt)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		ident.AccessToken = hash
	}
	if err := s.createAccount(ctx, u, ident); err != nil {
		return "", err
	}
	s.logger.Infow("account registered", "user_id", u.ID, "auth_type", in.AuthType)
	return s.issue(ctx, u)
}

// Logout drops the session bound to token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

func validateRegister(in RegisterRequest) error {
	if !entity.Known(in.AuthType) {
		return apperr.Validation("unknown auth_type %q", in.AuthType)
	}
	if in.AuthIdentifier == "" {
		return apperr.Validation("auth_identifier is required")
	}
	if entity.IsCredentialed(in.AuthType) {
		// bcrypt reads at most 72 bytes of salt+password
		if n := len(in.Password); n < minPasswordLen || n > maxPasswordLen {
			return apperr.Validation("password must be %d to %d bytes", minPasswordLen, maxPasswordLen)
		}
	}
	return nil
}

func (s *Service) newUser(authType, identifier, nickname, avatar, region string) *userentity.User {
	now := s.now()
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = defaultNickname(identifier)
	}
	return &userentity.User{
		ID:         utilities.NextID(),
		Nickname:   nickname,
		Avatar:     avatar,
		Region:     region,
		PwdSalt:    utilities.NewSalt(),
		AuthTypes:  []string{authType},
		CreateTime: now,
		UpdateTime: now,
	}
}

func typeLabel(authType string) string {
	if entity.Known(authType) {
		return authType
	}
	return "unknown"
}

func defaultNickname(identifier string) string {
	r := []rune(identifier)
	if len(r) > 4 {
		r = r[len(r)-4:]
	}
	return "lifeup_" + string(r)
}

// createAccount writes u, its attribute record and ident atomically. A taken
// (type, identifier) pair yields ErrAccountExists and leaves no rows behind.
func (s *Service) createAccount(ctx context.Context, u *userentity.User, ident *entity.Identity) error {
	return database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := user.CreateAccount(ctx, tx, u); err != nil {
			return err
		}
		identities := repo.NewIdentityRepo(tx)
		_, err := identities.Get(ctx, ident.AuthType, ident.Identifier)
		if err == nil {
			s.logger.Infow("identity already registered", "auth_type", ident.AuthType)
			return ErrAccountExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return apperr.Persistence("query identity", err)
		}

		ident.ID = utilities.NextID()
		ident.UserID = u.ID
		ident.CreateTime = u.CreateTime
		n, err := identities.Create(ctx, ident)
		if database.IsUniqueViolation(err) {
			return ErrAccountExists
		}
		if err != nil {
			return apperr.Persistence("insert identity", err)
		}
		if n != 1 {
			return apperr.Persistence("insert identity", fmt.Errorf("affected rows = %d", n))
		}
		return nil
	})
}

func (s *Service) lookup(ctx context.Context, r *repo.IdentityRepo, authType, identifier string) (*entity.Identity, error) {
	ident, err := r.Get(ctx, authType, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errIdentityNotFound
		}
		return nil, apperr.Persistence("query identity", err)
	}
	return ident, nil
}

func (s *Service) ownerOf(ctx context.Context, authType, identifier string) (*userentity.User, error) {
	ident, err := s.lookup(ctx, s.identities, authType, identifier)
	if err != nil {
		return nil, err
	}
	return user.LoadUser(ctx, s.db, ident.UserID)
}

func (s *Service) issue(ctx context.Context, u *userentity.User) (string, error) {
	token, err := s.sessions.Issue(ctx, userentity.ProfileOf(u))
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}
	return token, nil
}
