package entity

import "time"

// User represents an account row in the `user_info` table.
type User struct {
	ID         int64
	Nickname   string
	Avatar     string
	Region     string
	PwdSalt    string
	AuthTypes  []string
	CreateTime time.Time
	UpdateTime time.Time
	IsDel      bool
}

// Profile is the public projection of a user. It is what the session cache
// stores per token and what the API returns; the password salt never leaves
// the repo layer.
type Profile struct {
	ID         int64     `json:"user_id,string"`
	Nickname   string    `json:"nickname"`
	Avatar     string    `json:"user_head"`
	Region     string    `json:"user_address"`
	AuthTypes  []string  `json:"auth_types"`
	CreateTime time.Time `json:"create_time"`
}

// Detail is a profile plus aggregate counters.
type Detail struct {
	Profile
	TeamAmount int `json:"team_amount"`
}

// ProfileOf copies the public fields of u.
func ProfileOf(u *User) *Profile {
	types := make([]string, len(u.AuthTypes))
	copy(types, u.AuthTypes)
	return &Profile{
		ID:         u.ID,
		Nickname:   u.Nickname,
		Avatar:     u.Avatar,
		Region:     u.Region,
		AuthTypes:  types,
		CreateTime: u.CreateTime,
	}
}
