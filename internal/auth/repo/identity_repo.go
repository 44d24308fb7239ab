package repo

import (
	"context"
	"time"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
)

type IdentityRepo struct {
	db database.Querier
}

func NewIdentityRepo(db database.Querier) *IdentityRepo {
	return &IdentityRepo{db: db}
}

// EnsureTable creates user_auth with its (auth_type, auth_identifier) unique key.
func (r *IdentityRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_auth (
  auth_id BIGINT PRIMARY KEY,
  user_id BIGINT NOT NULL,
  auth_type TEXT NOT NULL,
  auth_identifier TEXT NOT NULL,
  access_token TEXT NOT NULL DEFAULT '',
  create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT uq_user_auth_type_identifier UNIQUE (auth_type, auth_identifier)
);
CREATE INDEX IF NOT EXISTS idx_user_auth_user_id ON user_auth(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type identityRow struct {
	ID          int64     `db:"auth_id"`
	UserID      int64     `db:"user_id"`
	AuthType    string    `db:"auth_type"`
	Identifier  string    `db:"auth_identifier"`
	AccessToken string    `db:"access_token"`
	CreateTime  time.Time `db:"create_time"`
}

// Get returns the identity for (authType, identifier) or sql.ErrNoRows.
func (r *IdentityRepo) Get(ctx context.Context, authType, identifier string) (*entity.Identity, error) {
	const q = `SELECT auth_id, user_id, auth_type, auth_identifier, access_token, create_time
		FROM user_auth WHERE auth_type=$1 AND auth_identifier=$2`
	var row identityRow
	if err := r.db.GetContext(ctx, &row, q, authType, identifier); err != nil {
		return nil, err
	}
	return &entity.Identity{
		ID:          row.ID,
		UserID:      row.UserID,
		AuthType:    row.AuthType,
		Identifier:  row.Identifier,
		AccessToken: row.AccessToken,
		CreateTime:  row.CreateTime,
	}, nil
}

// Create inserts id and returns affected rows.
func (r *IdentityRepo) Create(ctx context.Context, id *entity.Identity) (int64, error) {
	const q = `INSERT INTO user_auth (auth_id, user_id, auth_type, auth_identifier, access_token, create_time)
		VALUES ($1, $2, $3, $4, $5, $6)`
	res, err := r.db.ExecContext(ctx, q, id.ID, id.UserID, id.AuthType, id.Identifier, id.AccessToken, id.CreateTime)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
