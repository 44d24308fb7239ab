package attribute

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute/repo"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/utilities"
)

var ErrAttributeNotFound = fmt.Errorf("attribute %w", apperr.ErrNotFound)

// Service encapsulates reads of user attributes.
type Service struct {
	repo *repo.Repo
}

// NewService constructs a Service over the pool.
func NewService(db *sqlx.DB) *Service {
	return &Service{repo: repo.NewRepo(db)}
}

// Get returns the attribute record of userID.
func (s *Service) Get(ctx context.Context, userID int64) (*entity.Attribute, error) {
	a, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttributeNotFound
		}
		return nil, err
	}
	return a, nil
}

// Provision creates the default attribute record of a new account. It is
// meant to run on the transaction that inserts the account.
func Provision(ctx context.Context, q database.Querier, userID int64, now time.Time) error {
	a := &entity.Attribute{ID: utilities.NextID(), UserID: userID, CreateTime: now, UpdateTime: now}
	if err := repo.NewRepo(q).Create(ctx, a); err != nil {
		return apperr.Persistence("insert attribute", err)
	}
	return nil
}

// Grant adds exp to attr of userID on q.
func Grant(ctx context.Context, q database.Querier, userID int64, attr string, exp int) error {
	if !entity.Valid(attr) {
		return apperr.Validation("unknown reward attribute %q", attr)
	}
	if exp == 0 {
		return nil
	}
	n, err := repo.NewRepo(q).AddExp(ctx, userID, attr, exp)
	if err != nil {
		return apperr.Persistence("grant attribute", err)
	}
	if n != 1 {
		return apperr.Persistence("grant attribute", fmt.Errorf("affected rows = %d", n))
	}
	return nil
}
