package repo

import (
	"context"
	"time"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
)

// MemberRepo provides data access for team_member.
type MemberRepo struct {
	db database.Querier
}

func NewMemberRepo(db database.Querier) *MemberRepo { return &MemberRepo{db: db} }

func (r *MemberRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS team_member (
  team_id BIGINT NOT NULL,
  user_id BIGINT NOT NULL,
  join_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (team_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_team_member_user_id ON team_member(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type memberViewRow struct {
	UserID   int64     `db:"user_id"`
	Nickname string    `db:"nickname"`
	Avatar   string    `db:"user_head"`
	Region   string    `db:"user_address"`
	JoinTime time.Time `db:"join_time"`
}

// Create inserts m and returns affected rows. A duplicate pair fails with
// the driver's unique violation.
func (r *MemberRepo) Create(ctx context.Context, m *entity.Member) (int64, error) {
	const q = `INSERT INTO team_member (team_id, user_id, join_time) VALUES ($1, $2, $3)`
	res, err := r.db.ExecContext(ctx, q, m.TeamID, m.UserID, m.JoinTime)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Exists reports whether userID is a member of teamID.
func (r *MemberRepo) Exists(ctx context.Context, teamID, userID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM team_member WHERE team_id=$1 AND user_id=$2)`
	var ok bool
	err := r.db.GetContext(ctx, &ok, q, teamID, userID)
	return ok, err
}

func (r *MemberRepo) CountByTeam(ctx context.Context, teamID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM team_member WHERE team_id=$1`
	var n int
	err := r.db.GetContext(ctx, &n, q, teamID)
	return n, err
}

// CountByUser counts the live teams userID belongs to.
func (r *MemberRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM team_member m JOIN team_task t ON t.team_id = m.team_id
		WHERE m.user_id=$1 AND t.is_del=false`
	var n int
	err := r.db.GetContext(ctx, &n, q, userID)
	return n, err
}

// ListByTeam returns members of teamID with their profiles, earliest first.
func (r *MemberRepo) ListByTeam(ctx context.Context, teamID int64, limit, offset int) ([]entity.MemberView, error) {
	const q = `SELECT m.user_id, u.nickname, u.user_head, u.user_address, m.join_time
		FROM team_member m JOIN user_info u ON u.user_id = m.user_id
		WHERE m.team_id=$1 AND u.is_del=false
		ORDER BY m.join_time, m.user_id LIMIT $2 OFFSET $3`
	var rows []memberViewRow
	if err := r.db.SelectContext(ctx, &rows, q, teamID, limit, offset); err != nil {
		return nil, err
	}
	out := make([]entity.MemberView, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.MemberView{
			UserID:   row.UserID,
			Nickname: row.Nickname,
			Avatar:   row.Avatar,
			Region:   row.Region,
			JoinTime: row.JoinTime,
		})
	}
	return out, nil
}
