package team

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/team/entity"
)

// Window is one sign-in occurrence of a task. Index is the occurrence number
// counted from the start date.
type Window struct {
	Index int64
	Start time.Time
	End   time.Time
	Open  bool
}

// NextSignWindow returns the earliest window of t whose end is not before now.
// Days are counted on the civil calendar of now's location. The second result
// is false when a non-repeating task's only window has already closed.
func NextSignWindow(t *entity.Task, now time.Time) (Window, bool) {
	y, m, d := t.StartDate.Date()
	from := t.StartTime.Or(entity.DayStart).Sec
	to := t.EndTime.Or(entity.DayEnd).Sec
	loc := now.Location()

	at := func(k int64) Window {
		day := d + int(k)*t.Freq
		w := Window{
			Index: k,
			Start: time.Date(y, m, day, 0, 0, from, 0, loc),
			End:   time.Date(y, m, day, 0, 0, to, 0, loc),
		}
		w.Open = !now.Before(w.Start) && !now.After(w.End)
		return w
	}

	if t.Freq <= 0 {
		w := at(0)
		if now.After(w.End) {
			return Window{}, false
		}
		return w, true
	}

	var k int64
	if elapsed := civilDays(y, m, d, now); elapsed > 0 {
		k = int64(elapsed / t.Freq)
	}
	w := at(k)
	if now.After(w.End) {
		w = at(k + 1)
	}
	return w, true
}

// civilDays counts calendar days from y-m-d to the date of now.
func civilDays(y int, m time.Month, d int, now time.Time) int {
	ny, nm, nd := now.Date()
	a := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	b := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
