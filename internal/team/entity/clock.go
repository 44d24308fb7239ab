package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Clock is a time of day with second precision. The zero value is unset and
// stores as NULL.
type Clock struct {
	Sec   int // seconds since midnight
	Valid bool
}

// At builds a set Clock.
func At(hour, min, sec int) Clock {
	return Clock{Sec: hour*3600 + min*60 + sec, Valid: true}
}

// ParseClock accepts "15:04:05" or "15:04". An empty string is an unset Clock.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Clock{}, nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return At(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return Clock{}, fmt.Errorf("invalid time of day %q", s)
}

// Or returns c when set, def otherwise.
func (c Clock) Or(def Clock) Clock {
	if c.Valid {
		return c
	}
	return def
}

func (c Clock) String() string {
	if !c.Valid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", c.Sec/3600, c.Sec/60%60, c.Sec%60)
}

// Scan reads a Postgres TIME column.
func (c *Clock) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = Clock{}
		return nil
	case time.Time:
		*c = At(v.Hour(), v.Minute(), v.Second())
		return nil
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	}
	return fmt.Errorf("cannot scan %T into Clock", src)
}

func (c *Clock) scanString(s string) error {
	// drop fractional seconds and zone suffixes
	if i := strings.IndexAny(s, ".+-"); i > 0 {
		s = s[:i]
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Clock) Value() (driver.Value, error) {
	if !c.Valid {
		return nil, nil
	}
	return c.String(), nil
}

func (c Clock) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*c = Clock{}
		return nil
	}
	parsed, err := ParseClock(*s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
