package team

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute"
	attrentity "github.com/ovaphlow/pitchfork/service-lifeup/internal/attribute/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team/entity"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team/repo"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/database"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/utilities"
)

var (
	ErrTeamNotFound  = fmt.Errorf("team %w", apperr.ErrNotFound)
	ErrNotMember     = fmt.Errorf("team member %w", apperr.ErrNotFound)
	ErrAlreadyMember = fmt.Errorf("team member already exists: %w", apperr.ErrConflict)
	ErrAlreadySigned = fmt.Errorf("sign-in already recorded: %w", apperr.ErrConflict)
	ErrWindowClosed  = fmt.Errorf("%w: sign-in window is not open", apperr.ErrValidation)
	ErrTeamComplete  = fmt.Errorf("%w: team is complete", apperr.ErrValidation)
)

const (
	maxTitleLen     = 64
	maxActivityLen  = 512
	maxImages       = 9
	defaultPageSize = 10
	maxPageSize     = 100
)

type Config struct {
	// StartOffsetDays is subtracted from the first sign-in date to derive a
	// task's start date when none is given.
	StartOffsetDays int
	Location        *time.Location
}

func ConfigFromEnv() Config {
	cfg := Config{StartOffsetDays: 1, Location: time.Local}
	if v, err := strconv.Atoi(os.Getenv("TEAM_START_DATE_OFFSET_DAYS")); err == nil && v >= 0 {
		cfg.StartOffsetDays = v
	}
	if name := os.Getenv("TEAM_TIMEZONE"); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			cfg.Location = loc
		}
	}
	return cfg
}

// Service manages team tasks, memberships and member records.
type Service struct {
	db      *sqlx.DB
	tasks   *repo.TaskRepo
	members *repo.MemberRepo
	records *repo.RecordRepo
	cfg     Config
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewService(db *sqlx.DB, cfg Config, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		db:      db,
		tasks:   repo.NewTaskRepo(db),
		members: repo.NewMemberRepo(db),
		records: repo.NewRecordRepo(db),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) clock() time.Time { return s.now().In(s.cfg.Location) }

// AddTeamRequest creates a task. StartDate wins over FirstSignDate; both are
// YYYY-MM-DD.
type AddTeamRequest struct {
	Title         string       `json:"team_title"`
	Desc          string       `json:"team_desc"`
	RewardAttr    string       `json:"reward_attr"`
	RewardExp     int          `json:"reward_exp"`
	Freq          int          `json:"team_freq"`
	StartDate     string       `json:"start_date"`
	FirstSignDate string       `json:"first_sign_date"`
	StartTime     entity.Clock `json:"start_time"`
	EndTime       entity.Clock `json:"end_time"`
	Activity      string       `json:"user_activity"`
	Images        []string     `json:"activity_images"`
}

// ActivityRequest is the note posted when joining or signing in.
type ActivityRequest struct {
	Activity string   `json:"user_activity"`
	Images   []string `json:"activity_images"`
}

func (in ActivityRequest) validate() error {
	if utf8.RuneCountInString(in.Activity) > maxActivityLen {
		return apperr.Validation("user_activity longer than %d characters", maxActivityLen)
	}
	if len(in.Images) > maxImages {
		return apperr.Validation("at most %d activity_images", maxImages)
	}
	return nil
}

func (s *Service) validateAdd(in *AddTeamRequest) (time.Time, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return time.Time{}, apperr.Validation("team_title is required")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLen {
		return time.Time{}, apperr.Validation("team_title longer than %d characters", maxTitleLen)
	}
	if !attrentity.Valid(in.RewardAttr) {
		return time.Time{}, apperr.Validation("unknown reward_attr %q", in.RewardAttr)
	}
	if in.RewardExp < 0 {
		return time.Time{}, apperr.Validation("reward_exp must not be negative")
	}
	if in.Freq < 0 || in.Freq > entity.MaxFreq {
		return time.Time{}, apperr.Validation("team_freq must be within 0..%d", entity.MaxFreq)
	}
	if in.StartTime.Or(entity.DayStart).Sec > in.EndTime.Or(entity.DayEnd).Sec {
		return time.Time{}, apperr.Validation("start_time must not be after end_time")
	}
	if err := (ActivityRequest{Activity: in.Activity, Images: in.Images}).validate(); err != nil {
		return time.Time{}, err
	}
	return s.startDate(in.StartDate, in.FirstSignDate)
}

// startDate resolves the effective start date of a new task.
func (s *Service) startDate(explicit, firstSign string) (time.Time, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		d, err := time.Parse(time.DateOnly, explicit)
		if err != nil {
			return time.Time{}, apperr.Validation("invalid start_date %q", explicit)
		}
		return d, nil
	}
	if firstSign = strings.TrimSpace(firstSign); firstSign != "" {
		d, err := time.Parse(time.DateOnly, firstSign)
		if err != nil {
			return time.Time{}, apperr.Validation("invalid first_sign_date %q", firstSign)
		}
		return d.AddDate(0, 0, -s.cfg.StartOffsetDays), nil
	}
	return time.Time{}, apperr.Validation("start_date or first_sign_date is required")
}

// AddTeam creates a task owned by userID, enrolls the owner and posts the
// owner's opening record, all in one transaction.
func (s *Service) AddTeam(ctx context.Context, userID int64, in AddTeamRequest) (*entity.NextSign, error) {
	start, err := s.validateAdd(&in)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	t := &entity.Task{
		ID:         utilities.NextID(),
		Title:      in.Title,
		Desc:       strings.TrimSpace(in.Desc),
		RewardAttr: in.RewardAttr,
		RewardExp:  in.RewardExp,
		Freq:       in.Freq,
		StartDate:  start,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		Status:     entity.StatusActive,
		UserID:     userID,
		CreateTime: now,
	}
	next := s.nextSign(t, now)

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := repo.NewTaskRepo(tx).Create(ctx, t)
		if err != nil {
			return apperr.Persistence("insert team", err)
		}
		if n != 1 {
			return apperr.Persistence("insert team", fmt.Errorf("affected rows = %d", n))
		}
		return s.enroll(ctx, tx, t.ID, userID, next.TeamRecordID, ActivityRequest{Activity: in.Activity, Images: in.Images}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("team created", "team_id", t.ID, "user_id", userID, "freq", t.Freq)
	return &next, nil
}

// JoinTeam adds userID to teamID with its opening record. Both rows are
// written or neither is.
func (s *Service) JoinTeam(ctx context.Context, teamID, userID int64, in ActivityRequest) error {
	if err := in.validate(); err != nil {
		return err
	}
	t, err := s.getTask(ctx, teamID)
	if err != nil {
		return err
	}
	if t.Status == entity.StatusComplete {
		return ErrTeamComplete
	}
	now := s.clock()
	next := s.nextSign(t, now)
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.enroll(ctx, tx, teamID, userID, next.TeamRecordID, in, now)
	})
	if err != nil {
		return err
	}
	s.logger.Infow("team joined", "team_id", teamID, "user_id", userID)
	return nil
}

func (s *Service) enroll(ctx context.Context, tx *sqlx.Tx, teamID, userID, teamRecordID int64, in ActivityRequest, now time.Time) error {
	n, err := repo.NewMemberRepo(tx).Create(ctx, &entity.Member{TeamID: teamID, UserID: userID, JoinTime: now})
	if database.IsUniqueViolation(err) {
		return ErrAlreadyMember
	}
	if err != nil {
		return apperr.Persistence("insert member", err)
	}
	if n != 1 {
		return apperr.Persistence("insert member", fmt.Errorf("affected rows = %d", n))
	}
	return insertRecord(ctx, tx, &entity.Record{
		TeamRecordID: teamRecordID,
		TeamID:       teamID,
		UserID:       userID,
		Type:         entity.RecordJoin,
		Activity:     in.Activity,
		Images:       in.Images,
		CreateTime:   now,
	})
}

func insertRecord(ctx context.Context, q database.Querier, rec *entity.Record) error {
	rec.ID = utilities.NextID()
	if rec.Images == nil {
		rec.Images = []string{}
	}
	n, err := repo.NewRecordRepo(q).Create(ctx, rec)
	if err != nil {
		if rec.Type == entity.RecordSign && database.IsUniqueViolation(err) {
			return ErrAlreadySigned
		}
		return apperr.Persistence("insert record", err)
	}
	if n != 1 {
		return apperr.Persistence("insert record", fmt.Errorf("affected rows = %d", n))
	}
	return nil
}

// SignIn records userID's check-in for the open window of teamID and grants
// the task's reward in the same transaction.
func (s *Service) SignIn(ctx context.Context, teamID, userID int64, in ActivityRequest) (rec *entity.Record, err error) {
	defer func() { metrics.ObserveSignIn(err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}
	t, err := s.getTask(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t.Status == entity.StatusComplete {
		return nil, ErrTeamComplete
	}
	member, err := s.members.Exists(ctx, teamID, userID)
	if err != nil {
		return nil, apperr.Persistence("query member", err)
	}
	if !member {
		return nil, ErrNotMember
	}
	now := s.clock()
	w, ok := NextSignWindow(t, now)
	if !ok || !w.Open {
		s.logger.Debugw("sign-in outside window", "team_id", teamID, "user_id", userID)
		return nil, ErrWindowClosed
	}

	rec = &entity.Record{
		TeamRecordID: w.Index,
		TeamID:       teamID,
		UserID:       userID,
		Type:         entity.RecordSign,
		Activity:     in.Activity,
		Images:       in.Images,
		CreateTime:   now,
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		signed, err := repo.NewRecordRepo(tx).Signed(ctx, teamID, userID, w.Index)
		if err != nil {
			return apperr.Persistence("query sign-in", err)
		}
		if signed {
			return ErrAlreadySigned
		}
		if err := insertRecord(ctx, tx, rec); err != nil {
			return err
		}
		return attribute.Grant(ctx, tx, userID, t.RewardAttr, t.RewardExp)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("signed in", "team_id", teamID, "user_id", userID, "team_record_id", w.Index)
	return rec, nil
}

func (s *Service) getTask(ctx context.Context, teamID int64) (*entity.Task, error) {
	t, err := s.tasks.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, apperr.Persistence("query team", err)
	}
	return t, nil
}

func (s *Service) nextSign(t *entity.Task, now time.Time) entity.NextSign {
	ns := entity.NextSign{TeamID: t.ID, TeamTitle: t.Title}
	w, ok := NextSignWindow(t, now)
	if !ok {
		return ns
	}
	ns.HasNext = true
	ns.TeamRecordID = w.Index
	ns.StartTime = &w.Start
	ns.EndTime = &w.End
	ns.IsOpen = w.Open
	return ns
}

// GetNextSign returns the next sign-in window of teamID.
func (s *Service) GetNextSign(ctx context.Context, teamID int64) (*entity.NextSign, error) {
	t, err := s.getTask(ctx, teamID)
	if err != nil {
		return nil, err
	}
	ns := s.nextSign(t, s.clock())
	return &ns, nil
}

// GetDetail returns teamID with its member count, the caller's membership
// and the next window.
func (s *Service) GetDetail(ctx context.Context, teamID, userID int64) (*entity.Detail, error) {
	t, err := s.getTask(ctx, teamID)
	if err != nil {
		return nil, err
	}
	count, err := s.members.CountByTeam(ctx, teamID)
	if err != nil {
		return nil, apperr.Persistence("count members", err)
	}
	member, err := s.members.Exists(ctx, teamID, userID)
	if err != nil {
		return nil, apperr.Persistence("query member", err)
	}
	return &entity.Detail{
		TaskView:     entity.ViewOf(t),
		MemberAmount: count,
		IsMember:     member,
		NextSign:     s.nextSign(t, s.clock()),
	}, nil
}

// normalizePage clamps page to 1.. and size to 1..maxPageSize.
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// Page lists live tasks newest first.
func (s *Service) Page(ctx context.Context, page, size int) (*entity.Page[entity.TaskView], error) {
	page, size = normalizePage(page, size)
	total, err := s.tasks.Count(ctx)
	if err != nil {
		return nil, apperr.Persistence("count teams", err)
	}
	tasks, err := s.tasks.List(ctx, size, (page-1)*size)
	if err != nil {
		return nil, apperr.Persistence("list teams", err)
	}
	items := make([]entity.TaskView, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, entity.ViewOf(t))
	}
	return &entity.Page[entity.TaskView]{Page: page, Size: size, Total: total, Items: items}, nil
}

// PageMembers lists the members of teamID.
func (s *Service) PageMembers(ctx context.Context, teamID int64, page, size int) (*entity.Page[entity.MemberView], error) {
	if _, err := s.getTask(ctx, teamID); err != nil {
		return nil, err
	}
	page, size = normalizePage(page, size)
	total, err := s.members.CountByTeam(ctx, teamID)
	if err != nil {
		return nil, apperr.Persistence("count members", err)
	}
	items, err := s.members.ListByTeam(ctx, teamID, size, (page-1)*size)
	if err != nil {
		return nil, apperr.Persistence("list members", err)
	}
	return &entity.Page[entity.MemberView]{Page: page, Size: size, Total: total, Items: items}, nil
}

// PageMemberRecords lists the activity records of teamID newest first.
func (s *Service) PageMemberRecords(ctx context.Context, teamID int64, page, size int) (*entity.Page[entity.RecordView], error) {
	if _, err := s.getTask(ctx, teamID); err != nil {
		return nil, err
	}
	page, size = normalizePage(page, size)
	total, err := s.records.CountByTeam(ctx, teamID)
	if err != nil {
		return nil, apperr.Persistence("count records", err)
	}
	items, err := s.records.ListByTeam(ctx, teamID, size, (page-1)*size)
	if err != nil {
		return nil, apperr.Persistence("list records", err)
	}
	return &entity.Page[entity.RecordView]{Page: page, Size: size, Total: total, Items: items}, nil
}

// CountUserTeams counts the live teams userID belongs to.
func (s *Service) CountUserTeams(ctx context.Context, userID int64) (int, error) {
	n, err := s.members.CountByUser(ctx, userID)
	if err != nil {
		return 0, apperr.Persistence("count user teams", err)
	}
	return n, nil
}

// Complete marks teamID complete. Only the owner may do so.
func (s *Service) Complete(ctx context.Context, teamID, userID int64) error {
	n, err := s.tasks.Complete(ctx, teamID, userID, s.clock())
	if err != nil {
		return apperr.Persistence("complete team", err)
	}
	if n == 0 {
		return s.explainMiss(ctx, teamID, userID)
	}
	s.logger.Infow("team completed", "team_id", teamID, "user_id", userID)
	return nil
}

// Delete soft-deletes teamID. Only the owner may do so.
func (s *Service) Delete(ctx context.Context, teamID, userID int64) error {
	n, err := s.tasks.SoftDelete(ctx, teamID, userID)
	if err != nil {
		return apperr.Persistence("delete team", err)
	}
	if n == 0 {
		return s.explainMiss(ctx, teamID, userID)
	}
	s.logger.Infow("team deleted", "team_id", teamID, "user_id", userID)
	return nil
}

// explainMiss tells why an owner-scoped update touched no row.
func (s *Service) explainMiss(ctx context.Context, teamID, userID int64) error {
	t, err := s.getTask(ctx, teamID)
	if err != nil {
		return err
	}
	if t.UserID != userID {
		s.logger.Infow("team change by non-owner", "team_id", teamID, "user_id", userID)
		return ErrTeamNotFound
	}
	return ErrTeamComplete
}
