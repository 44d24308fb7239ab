package repo

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
)

// RecordRepo provides data access for team_member_record. Records are
// append-only.
type RecordRepo struct {
	db database.Querier
}

func NewRecordRepo(db database.Querier) *RecordRepo { return &RecordRepo{db: db} }

// EnsureTable creates team_member_record. The partial unique index allows one
// sign-in per member and occurrence.
func (r *RecordRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS team_member_record (
  member_record_id BIGINT PRIMARY KEY,
  team_record_id BIGINT NOT NULL DEFAULT 0,
  team_id BIGINT NOT NULL,
  user_id BIGINT NOT NULL,
  record_type TEXT NOT NULL,
  user_activity TEXT NOT NULL DEFAULT '',
  activity_images TEXT[] NOT NULL DEFAULT '{}',
  create_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_team_member_record_team ON team_member_record(team_id, create_time DESC);
CREATE UNIQUE INDEX IF NOT EXISTS uq_team_member_record_sign
  ON team_member_record(team_id, user_id, team_record_id) WHERE record_type = 'sign';
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type recordViewRow struct {
	ID           int64          `db:"member_record_id"`
	TeamRecordID int64          `db:"team_record_id"`
	TeamID       int64          `db:"team_id"`
	TeamTitle    string         `db:"team_title"`
	UserID       int64          `db:"user_id"`
	Nickname     string         `db:"nickname"`
	Avatar       string         `db:"user_head"`
	Type         string         `db:"record_type"`
	Activity     string         `db:"user_activity"`
	Images       pq.StringArray `db:"activity_images"`
	CreateTime   time.Time      `db:"create_time"`
}

func (row recordViewRow) toView() entity.RecordView {
	images := []string(row.Images)
	if images == nil {
		images = []string{}
	}
	return entity.RecordView{
		ID:           row.ID,
		TeamRecordID: row.TeamRecordID,
		TeamID:       row.TeamID,
		TeamTitle:    row.TeamTitle,
		UserID:       row.UserID,
		Nickname:     row.Nickname,
		Avatar:       row.Avatar,
		Type:         row.Type,
		Activity:     row.Activity,
		Images:       images,
		CreateTime:   row.CreateTime,
	}
}

// Create inserts rec and returns affected rows.
func (r *RecordRepo) Create(ctx context.Context, rec *entity.Record) (int64, error) {
	const q = `INSERT INTO team_member_record (member_record_id, team_record_id, team_id, user_id,
		record_type, user_activity, activity_images, create_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	res, err := r.db.ExecContext(ctx, q, rec.ID, rec.TeamRecordID, rec.TeamID, rec.UserID,
		rec.Type, rec.Activity, pq.StringArray(rec.Images), rec.CreateTime)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Signed reports whether userID already signed occurrence teamRecordID of teamID.
func (r *RecordRepo) Signed(ctx context.Context, teamID, userID, teamRecordID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM team_member_record
		WHERE team_id=$1 AND user_id=$2 AND team_record_id=$3 AND record_type='sign')`
	var ok bool
	err := r.db.GetContext(ctx, &ok, q, teamID, userID, teamRecordID)
	return ok, err
}

func (r *RecordRepo) CountByTeam(ctx context.Context, teamID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM team_member_record WHERE team_id=$1`
	var n int
	err := r.db.GetContext(ctx, &n, q, teamID)
	return n, err
}

// ListByTeam returns records of teamID newest first.
func (r *RecordRepo) ListByTeam(ctx context.Context, teamID int64, limit, offset int) ([]entity.RecordView, error) {
	const q = `SELECT r.member_record_id, r.team_record_id, r.team_id, t.team_title, r.user_id,
		u.nickname, u.user_head, r.record_type, r.user_activity, r.activity_images, r.create_time
		FROM team_member_record r
		JOIN team_task t ON t.team_id = r.team_id
		JOIN user_info u ON u.user_id = r.user_id
		WHERE r.team_id=$1
		ORDER BY r.create_time DESC, r.member_record_id DESC LIMIT $2 OFFSET $3`
	var rows []recordViewRow
	if err := r.db.SelectContext(ctx, &rows, q, teamID, limit, offset); err != nil {
		return nil, err
	}
	out := make([]entity.RecordView, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toView())
	}
	return out, nil
}
