package team

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team/entity"
)

var taskCols = []string{"team_id", "team_title", "team_desc", "reward_attr", "reward_exp", "team_freq", "start_date",
	"start_time", "end_time", "team_status", "complete_time", "user_id", "is_del", "create_time"}

func newTestService(t *testing.T, now time.Time) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	mockdb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockdb.Close() })
	svc := NewService(sqlx.NewDb(mockdb, "postgres"), Config{StartOffsetDays: 1, Location: time.UTC}, nil)
	svc.now = func() time.Time { return now }
	return svc, mock
}

// weeklyTask is owned by user 1: every 7 days from 2024-01-01, 08:00 to 09:00.
func weeklyTask(status int) *sqlmock.Rows {
	return sqlmock.NewRows(taskCols).AddRow(int64(100), "run", "", "endurance", 5, 7,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "08:00:00", "09:00:00", status, nil, int64(1), false,
		time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC))
}

func boolRow(v bool) *sqlmock.Rows { return sqlmock.NewRows([]string{"exists"}).AddRow(v) }

func TestAddTeamDerivesStartDate(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	svc, mock := newTestService(t, now)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO team_task").
		WithArgs(sqlmock.AnyArg(), "read", "", "learning", 3, 1, "2024-03-09", "07:00:00", nil, entity.StatusActive, int64(1), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO team_member").
		WithArgs(sqlmock.AnyArg(), int64(1), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO team_member_record").
		WithArgs(sqlmock.AnyArg(), int64(0), sqlmock.AnyArg(), int64(1), entity.RecordJoin, "let's go", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next, err := svc.AddTeam(context.Background(), 1, AddTeamRequest{
		Title:         " read ",
		RewardAttr:    "learning",
		RewardExp:     3,
		Freq:          1,
		FirstSignDate: "2024-03-10",
		StartTime:     entity.At(7, 0, 0),
		Activity:      "let's go",
	})
	require.NoError(t, err)
	assert.True(t, next.HasNext)
	assert.False(t, next.IsOpen)
	assert.Equal(t, time.Date(2024, 3, 9, 7, 0, 0, 0, time.UTC), *next.StartTime)
	assert.Equal(t, time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC), *next.EndTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddTeamValidation(t *testing.T) {
	svc, _ := newTestService(t, time.Now())
	base := AddTeamRequest{Title: "t", RewardAttr: "charm", StartDate: "2024-01-01"}
	cases := map[string]func(r *AddTeamRequest){
		"empty title":     func(r *AddTeamRequest) { r.Title = "  " },
		"unknown reward":  func(r *AddTeamRequest) { r.RewardAttr = "luck" },
		"negative exp":    func(r *AddTeamRequest) { r.RewardExp = -1 },
		"freq too large":  func(r *AddTeamRequest) { r.Freq = entity.MaxFreq + 1 },
		"negative freq":   func(r *AddTeamRequest) { r.Freq = -1 },
		"start after end": func(r *AddTeamRequest) { r.StartTime, r.EndTime = entity.At(10, 0, 0), entity.At(9, 0, 0) },
		"no date":         func(r *AddTeamRequest) { r.StartDate = "" },
		"bad date":        func(r *AddTeamRequest) { r.StartDate = "01/02/2024" },
		"too many images": func(r *AddTeamRequest) { r.Images = make([]string, maxImages+1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			_, err := svc.AddTeam(context.Background(), 1, req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestStartDatePrefersExplicit(t *testing.T) {
	svc, _ := newTestService(t, time.Now())
	d, err := svc.startDate("2024-06-01", "2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), d)

	svc.cfg.StartOffsetDays = 0
	d, err = svc.startDate("", "2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), d)
}

func TestJoinTeamRollsBackMembershipWhenRecordFails(t *testing.T) {
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	svc, mock := newTestService(t, now)

	mock.ExpectQuery("SELECT (.+) FROM team_task WHERE team_id").WithArgs(int64(100)).WillReturnRows(weeklyTask(entity.StatusActive))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO team_member").
		WithArgs(int64(100), int64(2), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO team_member_record").
		WithArgs(sqlmock.AnyArg(), int64(1), int64(100), int64(2), entity.RecordJoin, "hi", sqlmock.AnyArg(), now).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := svc.JoinTeam(context.Background(), 100, 2, ActivityRequest{Activity: "hi"})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinTeamTwiceConflicts(t *testing.T) {
	svc, mock := newTestService(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC))

	mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusActive))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO team_member").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := svc.JoinTeam(context.Background(), 100, 2, ActivityRequest{})
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinTeamMissingOrComplete(t *testing.T) {
	svc, mock := newTestService(t, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(sqlmock.NewRows(taskCols))
	assert.ErrorIs(t, svc.JoinTeam(context.Background(), 404, 2, ActivityRequest{}), ErrTeamNotFound)

	mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusComplete))
	assert.ErrorIs(t, svc.JoinTeam(context.Background(), 100, 2, ActivityRequest{}), ErrTeamComplete)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignInGrantsReward(t *testing.T) {
	now := time.Date(2024, 1, 8, 8, 30, 0, 0, time.UTC)
	svc, mock := newTestService(t, now)

	mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusActive))
	mock.ExpectQuery("FROM team_member WHERE").WithArgs(int64(100), int64(2)).WillReturnRows(boolRow(true))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM team_member_record").WithArgs(int64(100), int64(2), int64(1)).WillReturnRows(boolRow(false))
	mock.ExpectExec("INSERT INTO team_member_record").
		WithArgs(sqlmock.AnyArg(), int64(1), int64(100), int64(2), entity.RecordSign, "5km", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE user_attribute SET endurance_exp").
		WithArgs(int64(2), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := svc.SignIn(context.Background(), 100, 2, ActivityRequest{Activity: "5km", Images: []string{"a.png"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.TeamRecordID)
	assert.Equal(t, entity.RecordSign, rec.Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignInRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("window closed", func(t *testing.T) {
		svc, mock := newTestService(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
		mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusActive))
		mock.ExpectQuery("FROM team_member WHERE").WillReturnRows(boolRow(true))
		_, err := svc.SignIn(ctx, 100, 2, ActivityRequest{})
		assert.ErrorIs(t, err, ErrWindowClosed)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("not a member", func(t *testing.T) {
		svc, mock := newTestService(t, time.Date(2024, 1, 8, 8, 30, 0, 0, time.UTC))
		mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusActive))
		mock.ExpectQuery("FROM team_member WHERE").WillReturnRows(boolRow(false))
		_, err := svc.SignIn(ctx, 100, 9, ActivityRequest{})
		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("already signed", func(t *testing.T) {
		svc, mock := newTestService(t, time.Date(2024, 1, 8, 8, 30, 0, 0, time.UTC))
		mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusActive))
		mock.ExpectQuery("FROM team_member WHERE").WillReturnRows(boolRow(true))
		mock.ExpectBegin()
		mock.ExpectQuery("FROM team_member_record").WillReturnRows(boolRow(true))
		mock.ExpectRollback()
		_, err := svc.SignIn(ctx, 100, 2, ActivityRequest{})
		assert.ErrorIs(t, err, ErrAlreadySigned)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetNextSignTerminal(t *testing.T) {
	svc, mock := newTestService(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	rows := sqlmock.NewRows(taskCols).AddRow(int64(7), "once", "", "charm", 1, 0,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "08:00:00", "09:00:00", 0, nil, int64(1), false, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(rows)

	ns, err := svc.GetNextSign(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ns.HasNext)
	assert.Nil(t, ns.StartTime)
}

func TestGetDetail(t *testing.T) {
	svc, mock := newTestService(t, time.Date(2024, 1, 8, 8, 30, 0, 0, time.UTC))
	mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusActive))
	mock.ExpectQuery("SELECT COUNT(.+) FROM team_member WHERE").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery("FROM team_member WHERE").WillReturnRows(boolRow(true))

	d, err := svc.GetDetail(context.Background(), 100, 2)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", d.StartDate)
	assert.Equal(t, "08:00:00", d.StartTime.String())
	assert.Equal(t, 4, d.MemberAmount)
	assert.True(t, d.IsMember)
	assert.True(t, d.NextSign.IsOpen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPageClampsSize(t *testing.T) {
	svc, mock := newTestService(t, time.Now())
	mock.ExpectQuery("SELECT COUNT(.+) FROM team_task").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM team_task WHERE is_del=false").
		WithArgs(maxPageSize, 0).
		WillReturnRows(weeklyTask(entity.StatusActive))

	p, err := svc.Page(context.Background(), 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, maxPageSize, p.Size)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "run", p.Items[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPageMemberRecords(t *testing.T) {
	svc, mock := newTestService(t, time.Now())
	created := time.Date(2024, 1, 8, 8, 31, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusActive))
	mock.ExpectQuery("SELECT COUNT(.+) FROM team_member_record").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM team_member_record r").
		WithArgs(int64(100), defaultPageSize, 10).
		WillReturnRows(sqlmock.NewRows([]string{"member_record_id", "team_record_id", "team_id", "team_title", "user_id",
			"nickname", "user_head", "record_type", "user_activity", "activity_images", "create_time"}).
			AddRow(int64(9), int64(1), int64(100), "run", int64(2), "bo", "", "sign", "5km", "{a.png,b.png}", created))

	p, err := svc.PageMemberRecords(context.Background(), 100, 2, 0)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, []string{"a.png", "b.png"}, p.Items[0].Images)
	assert.Equal(t, "bo", p.Items[0].Nickname)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteAndDeleteOwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc, mock := newTestService(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	mock.ExpectExec("UPDATE team_task SET team_status").WithArgs(int64(100), int64(1), entity.StatusComplete, sqlmock.AnyArg(), entity.StatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, svc.Complete(ctx, 100, 1))

	mock.ExpectExec("UPDATE team_task SET is_del=true").WithArgs(int64(100), int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusActive))
	err := svc.Delete(ctx, 100, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	mock.ExpectExec("UPDATE team_task SET team_status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM team_task").WillReturnRows(weeklyTask(entity.StatusComplete))
	assert.ErrorIs(t, svc.Complete(ctx, 100, 1), ErrTeamComplete)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUserTeams(t *testing.T) {
	svc, mock := newTestService(t, time.Now())
	mock.ExpectQuery("SELECT COUNT(.+) FROM team_member m JOIN team_task").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	n, err := svc.CountUserTeams(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
