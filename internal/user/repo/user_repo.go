package repo

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
)

// UserRepo provides data access for the user_info table using sqlx.
type UserRepo struct {
	db database.Querier
}

func NewUserRepo(db database.Querier) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the user_info table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_info (
  user_id BIGINT PRIMARY KEY,
  nickname TEXT NOT NULL DEFAULT '',
  user_head TEXT NOT NULL DEFAULT '',
  user_address TEXT NOT NULL DEFAULT '',
  pwd_salt TEXT NOT NULL,
  auth_types TEXT[] NOT NULL DEFAULT '{}',
  create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  update_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  is_del BOOLEAN NOT NULL DEFAULT false
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type userRow struct {
	ID         int64          `db:"user_id"`
	Nickname   string         `db:"nickname"`
	Avatar     string         `db:"user_head"`
	Region     string         `db:"user_address"`
	PwdSalt    string         `db:"pwd_salt"`
	AuthTypes  pq.StringArray `db:"auth_types"`
	CreateTime time.Time      `db:"create_time"`
	UpdateTime time.Time      `db:"update_time"`
	IsDel      bool           `db:"is_del"`
}

func (row userRow) toEntity() *entity.User {
	return &entity.User{
		ID:         row.ID,
		Nickname:   row.Nickname,
		Avatar:     row.Avatar,
		Region:     row.Region,
		PwdSalt:    row.PwdSalt,
		AuthTypes:  []string(row.AuthTypes),
		CreateTime: row.CreateTime,
		UpdateTime: row.UpdateTime,
		IsDel:      row.IsDel,
	}
}

// Create inserts a new user row and returns affected rows.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	const q = `INSERT INTO user_info (user_id, nickname, user_head, user_address, pwd_salt, auth_types, create_time, update_time, is_del)
		  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)`
	res, err := r.db.ExecContext(ctx, q, u.ID, u.Nickname, u.Avatar, u.Region, u.PwdSalt,
		pq.StringArray(u.AuthTypes), u.CreateTime, u.UpdateTime)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByID fetches a live (not deleted) user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	const q = `SELECT user_id, nickname, user_head, user_address, pwd_salt, auth_types, create_time, update_time, is_del
		FROM user_info WHERE user_id=$1 AND is_del=false`
	var row userRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// UpdateProfile writes the editable profile fields and returns affected rows.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *entity.User) (int64, error) {
	const q = `UPDATE user_info SET nickname=$2, user_head=$3, user_address=$4, update_time=$5
		WHERE user_id=$1 AND is_del=false`
	res, err := r.db.ExecContext(ctx, q, u.ID, u.Nickname, u.Avatar, u.Region, u.UpdateTime)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SoftDelete flags the user as deleted and returns affected rows.
func (r *UserRepo) SoftDelete(ctx context.Context, id int64) (int64, error) {
	const q = `UPDATE user_info SET is_del=true, update_time=NOW() WHERE user_id=$1 AND is_del=false`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
