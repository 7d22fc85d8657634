package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a range does not satisfy start < end.
var ErrInvalidRange = errors.New("invalid range: start must be before end")

// Range is a half-open time range [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// New builds a Range and rejects empty or inverted ranges.
func New(start, end time.Time) (Range, error) {
	if !start.Before(end) {
		return Range{}, ErrInvalidRange
	}
	return Range{Start: start, End: end}, nil
}

// Parse builds a Range from two RFC3339 timestamps. Unparseable bounds
// are reported as invalid ranges.
func Parse(start, end string) (Range, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad start %q", ErrInvalidRange, start)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad end %q", ErrInvalidRange, end)
	}
	return New(s, e)
}

// Overlaps reports whether a and b share at least one instant.
// Half-open semantics: ranges that only touch at a boundary do not overlap.
func Overlaps(a, b Range) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Contains reports whether inner lies entirely within outer.
func (r Range) Contains(inner Range) bool {
	return !inner.Start.Before(r.Start) && !inner.End.After(r.End)
}

// ContainsInstant reports whether t falls inside the range.
func (r Range) ContainsInstant(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Day returns the calendar date of the range start in format 2006-01-02.
func (r Range) Day() string {
	return r.Start.Format(time.DateOnly)
}

// SameDay reports whether the range starts and ends on one calendar date.
// A range ending exactly at midnight of the next day still counts as the
// starting day because the end bound is exclusive.
func (r Range) SameDay() bool {
	end := r.End
	if end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0 {
		end = end.Add(-time.Second)
	}
	return r.Start.Format(time.DateOnly) == end.Format(time.DateOnly)
}

// StartClock and EndClock return the time-of-day bounds as HH:MM strings.
// An exclusive end at midnight maps to 24:00 so it compares after any
// same-day clock value.
func (r Range) StartClock() string {
	return r.Start.Format("15:04")
}

func (r Range) EndClock() string {
	c := r.End.Format("15:04")
	if c == "00:00" && !r.End.Equal(r.Start) {
		return "24:00"
	}
	return c
}
