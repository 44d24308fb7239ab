package repo

import (
	"context"
	"time"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
)

// TaskRepo provides data access for team_task.
type TaskRepo struct {
	db database.Querier
}

func NewTaskRepo(db database.Querier) *TaskRepo { return &TaskRepo{db: db} }

// EnsureTable creates the team_task table if not exists.
func (r *TaskRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS team_task (
  team_id BIGINT PRIMARY KEY,
  team_title TEXT NOT NULL,
  team_desc TEXT NOT NULL DEFAULT '',
  reward_attr TEXT NOT NULL,
  reward_exp INT NOT NULL DEFAULT 0,
  team_freq INT NOT NULL DEFAULT 0 CHECK (team_freq BETWEEN 0 AND 65525),
  start_date DATE NOT NULL,
  start_time TIME NULL,
  end_time TIME NULL,
  team_status INT NOT NULL DEFAULT 0,
  complete_time TIMESTAMPTZ NULL,
  user_id BIGINT NOT NULL,
  is_del BOOLEAN NOT NULL DEFAULT false,
  create_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_team_task_user_id ON team_task(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type taskRow struct {
	ID           int64        `db:"team_id"`
	Title        string       `db:"team_title"`
	Desc         string       `db:"team_desc"`
	RewardAttr   string       `db:"reward_attr"`
	RewardExp    int          `db:"reward_exp"`
	Freq         int          `db:"team_freq"`
	StartDate    time.Time    `db:"start_date"`
	StartTime    entity.Clock `db:"start_time"`
	EndTime      entity.Clock `db:"end_time"`
	Status       int          `db:"team_status"`
	CompleteTime *time.Time   `db:"complete_time"`
	UserID       int64        `db:"user_id"`
	IsDel        bool         `db:"is_del"`
	CreateTime   time.Time    `db:"create_time"`
}

func (row taskRow) toEntity() *entity.Task {
	return &entity.Task{
		ID:           row.ID,
		Title:        row.Title,
		Desc:         row.Desc,
		RewardAttr:   row.RewardAttr,
		RewardExp:    row.RewardExp,
		Freq:         row.Freq,
		StartDate:    row.StartDate,
		StartTime:    row.StartTime,
		EndTime:      row.EndTime,
		Status:       row.Status,
		CompleteTime: row.CompleteTime,
		UserID:       row.UserID,
		IsDel:        row.IsDel,
		CreateTime:   row.CreateTime,
	}
}

const taskColumns = `team_id, team_title, team_desc, reward_attr, reward_exp, team_freq, start_date,
	start_time, end_time, team_status, complete_time, user_id, is_del, create_time`

// Create inserts t and returns affected rows.
func (r *TaskRepo) Create(ctx context.Context, t *entity.Task) (int64, error) {
	const q = `INSERT INTO team_task (team_id, team_title, team_desc, reward_attr, reward_exp, team_freq,
		start_date, start_time, end_time, team_status, user_id, is_del, create_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12)`
	res, err := r.db.ExecContext(ctx, q, t.ID, t.Title, t.Desc, t.RewardAttr, t.RewardExp, t.Freq,
		t.StartDate.Format(time.DateOnly), t.StartTime, t.EndTime, t.Status, t.UserID, t.CreateTime)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByID fetches a live task or sql.ErrNoRows.
func (r *TaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM team_task WHERE team_id=$1 AND is_del=false`
	var row taskRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// List returns live tasks newest first.
func (r *TaskRepo) List(ctx context.Context, limit, offset int) ([]*entity.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM team_task WHERE is_del=false
		ORDER BY create_time DESC, team_id DESC LIMIT $1 OFFSET $2`
	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, q, limit, offset); err != nil {
		return nil, err
	}
	out := make([]*entity.Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *TaskRepo) Count(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM team_task WHERE is_del=false`
	var n int
	err := r.db.GetContext(ctx, &n, q)
	return n, err
}

// Complete marks an active task of ownerID complete and returns affected rows.
func (r *TaskRepo) Complete(ctx context.Context, id, ownerID int64, at time.Time) (int64, error) {
	const q = `UPDATE team_task SET team_status=$3, complete_time=$4
		WHERE team_id=$1 AND user_id=$2 AND is_del=false AND team_status=$5`
	res, err := r.db.ExecContext(ctx, q, id, ownerID, entity.StatusComplete, at, entity.StatusActive)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SoftDelete flags a task of ownerID deleted and returns affected rows.
func (r *TaskRepo) SoftDelete(ctx context.Context, id, ownerID int64) (int64, error) {
	const q = `UPDATE team_task SET is_del=true WHERE team_id=$1 AND user_id=$2 AND is_del=false`
	res, err := r.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
