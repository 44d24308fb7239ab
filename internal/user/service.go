package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-lifeup/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
)

var ErrUserNotFound = fmt.Errorf("user %w", apperr.ErrNotFound)

const maxNicknameLen = 32

// TeamCounter counts the teams a user belongs to.
type TeamCounter interface {
	CountUserTeams(ctx context.Context, userID int64) (int, error)
}

// UserService orchestrates profile reads and updates.
type UserService struct {
	repo     *userrepo.UserRepo
	sessions *session.Service
	teams    TeamCounter
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewUserService(db *sqlx.DB, sessions *session.Service, teams TeamCounter, logger *zap.SugaredLogger) *UserService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{repo: userrepo.NewUserRepo(db), sessions: sessions, teams: teams, logger: logger, now: time.Now}
}

// CreateAccount inserts u and its default attribute record on q. Callers run
// it inside the transaction that also writes the account's auth identity.
func CreateAccount(ctx context.Context, q database.Querier, u *entity.User) error {
	n, err := userrepo.NewUserRepo(q).Create(ctx, u)
	if err != nil {
		return apperr.Persistence("insert user", err)
	}
	if n != 1 {
		return apperr.Persistence("insert user", fmt.Errorf("affected rows = %d", n))
	}
	return attribute.Provision(ctx, q, u.ID, u.CreateTime)
}

// LoadUser returns the full live row of id on q, salt included.
func LoadUser(ctx context.Context, q database.Querier, id int64) (*entity.User, error) {
	u, err := userrepo.NewUserRepo(q).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Get returns the public profile of id.
func (s *UserService) Get(ctx context.Context, id int64) (*entity.Profile, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debugw("user not found", "user_id", id)
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return entity.ProfileOf(u), nil
}

// GetDetail returns the profile of id together with its team count.
func (s *UserService) GetDetail(ctx context.Context, id int64) (*entity.Detail, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &entity.Detail{Profile: *p}
	if s.teams != nil {
		n, err := s.teams.CountUserTeams(ctx, id)
		if err != nil {
			return nil, err
		}
		d.TeamAmount = n
	}
	return d, nil
}

// UpdateRequest lists editable profile fields; nil fields are left as is.
type UpdateRequest struct {
	Nickname *string `json:"nickname"`
	Avatar   *string `json:"user_head"`
	Region   *string `json:"user_address"`
}

func (in UpdateRequest) validate() error {
	if in.Nickname != nil {
		n := strings.TrimSpace(*in.Nickname)
		if n == "" {
			return apperr.Validation("nickname must not be empty")
		}
		if utf8.RuneCountInString(n) > maxNicknameLen {
			return apperr.Validation("nickname longer than %d characters", maxNicknameLen)
		}
	}
	return nil
}

// Update applies in to user id and rebinds the caller's session token to
// the new profile.
func (s *UserService) Update(ctx context.Context, id int64, token string, in UpdateRequest) (*entity.Profile, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if in.Nickname != nil {
		u.Nickname = strings.TrimSpace(*in.Nickname)
	}
	if in.Avatar != nil {
		u.Avatar = *in.Avatar
	}
	if in.Region != nil {
		u.Region = *in.Region
	}
	u.UpdateTime = s.now()

	n, err := s.repo.UpdateProfile(ctx, u)
	if err != nil {
		return nil, apperr.Persistence("update user", err)
	}
	if n != 1 {
		s.logger.Warnw("update user affected unexpected rows", "user_id", id, "rows", n)
		return nil, apperr.Persistence("update user", fmt.Errorf("affected rows = %d", n))
	}
	p := entity.ProfileOf(u)
	if s.sessions != nil && token != "" {
		if err := s.sessions.Refresh(ctx, token, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Delete soft-deletes user id and drops the caller's session.
func (s *UserService) Delete(ctx context.Context, id int64, token string) error {
	n, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return apperr.Persistence("delete user", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	if s.sessions != nil {
		return s.sessions.Revoke(ctx, token)
	}
	return nil
}
