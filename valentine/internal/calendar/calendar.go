// Package calendar is the date-picker behind the verification modal: a
// navigable (year, month, selected day) cursor, its month grid, and the
// comparison against a hidden target date.
//
// Months are zero-indexed (0 = January) throughout the package. A Day of 0
// means "nothing selected".
package calendar

import "time"

// Date is a calendar date with a zero-indexed month.
type Date struct {
	Year  int `json:"year" yaml:"year"`
	Month int `json:"month" yaml:"month"`
	Day   int `json:"day" yaml:"day"`
}

// Cursor is the navigable state of the picker.
type Cursor struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day,omitempty"`
}

// HasSelection reports whether a day is currently picked.
func (c Cursor) HasSelection() bool { return c.Day != 0 }

// Outcome is the result of a submission.
type Outcome string

const (
	NoSelection Outcome = "no_selection"
	Mismatch    Outcome = "mismatch"
	Match       Outcome = "match"
)

// Message is the inline text shown next to the picker for the outcome.
func (o Outcome) Message() string {
	switch o {
	case NoSelection:
		return "Pick a day"
	case Mismatch:
		return "Wrong date - try again"
	}
	return ""
}

// Failed reports whether the outcome should shake the card.
func (o Outcome) Failed() bool { return o == NoSelection || o == Mismatch }

// Calendar holds one cursor. It is not safe for concurrent use; sessions
// drive it from their event loop.
type Calendar struct {
	cur Cursor
}

// New returns a Calendar positioned on now's month with no selection.
func New(now time.Time) *Calendar {
	c := &Calendar{}
	c.Reset(now)
	return c
}

// Cursor returns the current cursor value.
func (c *Calendar) Cursor() Cursor { return c.cur }

// Reset moves the cursor to now's year and month and clears the selection.
func (c *Calendar) Reset(now time.Time) {
	c.cur = Cursor{Year: now.Year(), Month: int(now.Month()) - 1}
}

// ChangeMonth moves the cursor by delta months, wrapping across years in
// either direction. The selection is cleared.
func (c *Calendar) ChangeMonth(delta int) {
	total := c.cur.Year*12 + c.cur.Month + delta
	year := total / 12
	if total%12 < 0 {
		year--
	}
	c.cur = Cursor{Year: year, Month: total - year*12}
}

// SetYear replaces the year and clears the selection.
func (c *Calendar) SetYear(year int) {
	c.cur = Cursor{Year: year, Month: c.cur.Month}
}

// SelectDay picks day if it exists in the current month. Out of range days
// are ignored and reported with false.
func (c *Calendar) SelectDay(day int) bool {
	if day < 1 || day > DaysIn(c.cur.Year, c.cur.Month) {
		return false
	}
	c.cur.Day = day
	return true
}

// Submit compares the cursor with target.
func (c *Calendar) Submit(target Date) Outcome {
	if !c.cur.HasSelection() {
		return NoSelection
	}
	if c.cur.Year == target.Year && c.cur.Month == target.Month && c.cur.Day == target.Day {
		return Match
	}
	return Mismatch
}

// Render returns the grid for the current cursor.
func (c *Calendar) Render() Grid { return Render(c.cur) }

// DaysIn returns the number of days in the zero-indexed month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the weekday of the 1st of the zero-indexed month.
func FirstWeekday(year, month int) time.Weekday {
	return time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC).Weekday()
}

// YearWindow bounds the years offered by the picker. It is a UI constraint:
// the Calendar itself accepts any year.
type YearWindow struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Contains reports whether year is inside the inclusive window.
func (w YearWindow) Contains(year int) bool { return year >= w.Min && year <= w.Max }

// Years lists the window's years in ascending order.
func (w YearWindow) Years() []int {
	if w.Max < w.Min {
		return nil
	}
	out := make([]int, 0, w.Max-w.Min+1)
	for y := w.Min; y <= w.Max; y++ {
		out = append(out, y)
	}
	return out
}
