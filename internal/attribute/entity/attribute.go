package entity

import "time"

// Reward attribute names accepted on team tasks.
const (
	Strength  = "strength"
	Learning  = "learning"
	Charm     = "charm"
	Endurance = "endurance"
	Vitality  = "vitality"
	Creative  = "creative"
)

// Attribute is the per-user experience record. Every account owns exactly one.
type Attribute struct {
	ID           int64     `json:"attribute_id,string"`
	UserID       int64     `json:"user_id,string"`
	StrengthExp  int       `json:"strength_exp"`
	LearningExp  int       `json:"learning_exp"`
	CharmExp     int       `json:"charm_exp"`
	EnduranceExp int       `json:"endurance_exp"`
	VitalityExp  int       `json:"vitality_exp"`
	CreativeExp  int       `json:"creative_exp"`
	CreateTime   time.Time `json:"create_time"`
	UpdateTime   time.Time `json:"update_time"`
}

var columns = map[string]string{
	Strength:  "strength_exp",
	Learning:  "learning_exp",
	Charm:     "charm_exp",
	Endurance: "endurance_exp",
	Vitality:  "vitality_exp",
	Creative:  "creative_exp",
}

// Column returns the table column holding attr's experience.
func Column(attr string) (string, bool) {
	c, ok := columns[attr]
	return c, ok
}

// Valid reports whether attr is a known reward attribute.
func Valid(attr string) bool {
	_, ok := columns[attr]
	return ok
}
