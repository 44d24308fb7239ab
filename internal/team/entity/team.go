package entity

import "time"

// Task status values.
const (
	StatusActive   = 0
	StatusComplete = 1
)

// Record types of team_member_record.
const (
	RecordJoin = "join"
	RecordSign = "sign"
)

// MaxFreq is the largest accepted repeat interval in days.
const MaxFreq = 65525

// Task is a team task: a recurring sign-in window shared by its members.
type Task struct {
	ID           int64
	Title        string
	Desc         string
	RewardAttr   string
	RewardExp    int
	Freq         int // days between windows, 0 = single window
	StartDate    time.Time
	StartTime    Clock
	EndTime      Clock
	Status       int
	CompleteTime *time.Time
	UserID       int64
	IsDel        bool
	CreateTime   time.Time
}

// DayStart and DayEnd bound a window whose times of day were left unset.
var (
	DayStart = At(0, 0, 0)
	DayEnd   = At(23, 59, 59)
)

// Member is a row of team_member.
type Member struct {
	TeamID   int64
	UserID   int64
	JoinTime time.Time
}

// Record is one member activity, either the join note or a sign-in.
type Record struct {
	ID           int64
	TeamRecordID int64 // occurrence index of the window it belongs to
	TeamID       int64
	UserID       int64
	Type         string
	Activity     string
	Images       []string
	CreateTime   time.Time
}

// TaskView is the client shape of a task.
type TaskView struct {
	TeamID       int64      `json:"team_id,string"`
	Title        string     `json:"team_title"`
	Desc         string     `json:"team_desc"`
	RewardAttr   string     `json:"reward_attr"`
	RewardExp    int        `json:"reward_exp"`
	Freq         int        `json:"team_freq"`
	StartDate    string     `json:"start_date"`
	StartTime    Clock      `json:"start_time"`
	EndTime      Clock      `json:"end_time"`
	Status       int        `json:"team_status"`
	CompleteTime *time.Time `json:"complete_time,omitempty"`
	UserID       int64      `json:"user_id,string"`
	CreateTime   time.Time  `json:"create_time"`
}

func ViewOf(t *Task) TaskView {
	return TaskView{
		TeamID:       t.ID,
		Title:        t.Title,
		Desc:         t.Desc,
		RewardAttr:   t.RewardAttr,
		RewardExp:    t.RewardExp,
		Freq:         t.Freq,
		StartDate:    t.StartDate.Format(time.DateOnly),
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		Status:       t.Status,
		CompleteTime: t.CompleteTime,
		UserID:       t.UserID,
		CreateTime:   t.CreateTime,
	}
}

// NextSign describes the next sign-in window of a team. HasNext is false once
// a non-repeating task's only window has passed.
type NextSign struct {
	TeamID       int64      `json:"team_id,string"`
	TeamTitle    string     `json:"team_title"`
	HasNext      bool       `json:"has_next"`
	TeamRecordID int64      `json:"team_record_id"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	IsOpen       bool       `json:"is_open"`
}

// Detail is a task with its membership summary for the caller.
type Detail struct {
	TaskView
	MemberAmount int      `json:"member_amount"`
	IsMember     bool     `json:"is_member"`
	NextSign     NextSign `json:"next_sign"`
}

// MemberView is a member joined with its public profile.
type MemberView struct {
	UserID   int64     `json:"user_id,string"`
	Nickname string    `json:"nickname"`
	Avatar   string    `json:"user_head"`
	Region   string    `json:"user_address"`
	JoinTime time.Time `json:"join_time"`
}

// RecordView is an activity record joined with its author and team.
type RecordView struct {
	ID           int64     `json:"member_record_id,string"`
	TeamRecordID int64     `json:"team_record_id"`
	TeamID       int64     `json:"team_id,string"`
	TeamTitle    string    `json:"team_title"`
	UserID       int64     `json:"user_id,string"`
	Nickname     string    `json:"nickname"`
	Avatar       string    `json:"user_head"`
	Type         string    `json:"record_type"`
	Activity     string    `json:"user_activity"`
	Images       []string  `json:"activity_images"`
	CreateTime   time.Time `json:"create_time"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
	Items []T `json:"items"`
}
