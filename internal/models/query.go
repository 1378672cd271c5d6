package models

import (
	"fmt"
	"time"
)

// DateLayout is the layout used for date window bounds.
const DateLayout = "2006-01-02"

// DateWindow is a closed interval of calendar days.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// ParseDateWindow parses start and end in YYYY-MM-DD form and validates the window.
func ParseDateWindow(start, end string) (DateWindow, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateWindow{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateWindow{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	w := DateWindow{Start: s, End: e}
	if err := w.Validate(); err != nil {
		return DateWindow{}, err
	}
	return w, nil
}

// Validate returns an error if the window is empty or reversed.
func (w DateWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("date window bounds must be set")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("end date %s is before start date %s", w.End.Format(DateLayout), w.Start.Format(DateLayout))
	}
	return nil
}

// Contains reports whether t falls on a day inside the window. Only the
// calendar day of t is compared, so any time on the end date is included.
func (w DateWindow) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	start := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(start) && !day.After(end)
}

// String formats the window as "start..end".
func (w DateWindow) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}
