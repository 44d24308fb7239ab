package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
)

// Repo is the repository for user attributes backed by PostgreSQL.
type Repo struct {
	db database.Querier
}

// NewRepo constructs a Repo over a pool or a transaction.
func NewRepo(db database.Querier) *Repo {
	return &Repo{db: db}
}

// EnsureTable creates the user_attribute table if not exists.
func (r *Repo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_attribute (
  attribute_id BIGINT PRIMARY KEY,
  user_id BIGINT NOT NULL UNIQUE,
  strength_exp INT NOT NULL DEFAULT 0,
  learning_exp INT NOT NULL DEFAULT 0,
  charm_exp INT NOT NULL DEFAULT 0,
  endurance_exp INT NOT NULL DEFAULT 0,
  vitality_exp INT NOT NULL DEFAULT 0,
  creative_exp INT NOT NULL DEFAULT 0,
  create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  update_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type attributeRow struct {
	ID           int64     `db:"attribute_id"`
	UserID       int64     `db:"user_id"`
	StrengthExp  int       `db:"strength_exp"`
	LearningExp  int       `db:"learning_exp"`
	CharmExp     int       `db:"charm_exp"`
	EnduranceExp int       `db:"endurance_exp"`
	VitalityExp  int       `db:"vitality_exp"`
	CreativeExp  int       `db:"creative_exp"`
	CreateTime   time.Time `db:"create_time"`
	UpdateTime   time.Time `db:"update_time"`
}

func (row attributeRow) toEntity() *entity.Attribute {
	return &entity.Attribute{
		ID:           row.ID,
		UserID:       row.UserID,
		StrengthExp:  row.StrengthExp,
		LearningExp:  row.LearningExp,
		CharmExp:     row.CharmExp,
		EnduranceExp: row.EnduranceExp,
		VitalityExp:  row.VitalityExp,
		CreativeExp:  row.CreativeExp,
		CreateTime:   row.CreateTime,
		UpdateTime:   row.UpdateTime,
	}
}

// Create inserts a zeroed attribute record for a.UserID.
func (r *Repo) Create(ctx context.Context, a *entity.Attribute) error {
	const q = `INSERT INTO user_attribute (attribute_id, user_id, create_time, update_time) VALUES ($1, $2, $3, $4)`
	res, err := r.db.ExecContext(ctx, q, a.ID, a.UserID, a.CreateTime, a.UpdateTime)
	if err != nil {
		return err
	}
	return database.ExpectOneRow(res)
}

// GetByUserID returns the record of userID or sql.ErrNoRows.
func (r *Repo) GetByUserID(ctx context.Context, userID int64) (*entity.Attribute, error) {
	const q = `SELECT attribute_id, user_id, strength_exp, learning_exp, charm_exp, endurance_exp,
		vitality_exp, creative_exp, create_time, update_time
	  FROM user_attribute WHERE user_id=$1`
	var row attributeRow
	if err := r.db.GetContext(ctx, &row, q, userID); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// AddExp adds exp to one attribute column and returns affected rows.
func (r *Repo) AddExp(ctx context.Context, userID int64, attr string, exp int) (int64, error) {
	col, ok := entity.Column(attr)
	if !ok {
		return 0, fmt.Errorf("unknown attribute %q", attr)
	}
	q := fmt.Sprintf(`UPDATE user_attribute SET %s = %s + $2, update_time=NOW() WHERE user_id=$1`, col, col)
	res, err := r.db.ExecContext(ctx, q, userID, exp)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
