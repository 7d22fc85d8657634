package interval_test

import (
	"errors"
	"testing"
	"time"

	"siteline/internal/interval"
)

func mustRange(t *testing.T, start, end string) interval.Range {
	t.Helper()
	r, err := interval.Parse(start, end)
	if err != nil {
		t.Fatalf("parse %s..%s: %v", start, end, err)
	}
	return r
}

func TestNewRejectsInvertedAndEmpty(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	if _, err := interval.New(at, at); !errors.Is(err, interval.ErrInvalidRange) {
		t.Fatalf("empty range: got %v", err)
	}
	if _, err := interval.New(at.Add(time.Hour), at); !errors.Is(err, interval.ErrInvalidRange) {
		t.Fatalf("inverted range: got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := interval.Parse("not-a-time", "2024-06-01T10:00:00Z"); !errors.Is(err, interval.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	a := mustRange(t, "2024-06-01T09:00:00Z", "2024-06-01T11:00:00Z")
	cases := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{"identical", "2024-06-01T09:00:00Z", "2024-06-01T11:00:00Z", true},
		{"contained", "2024-06-01T09:30:00Z", "2024-06-01T10:30:00Z", true},
		{"partial_left", "2024-06-01T08:00:00Z", "2024-06-01T09:30:00Z", true},
		{"partial_right", "2024-06-01T10:30:00Z", "2024-06-01T12:00:00Z", true},
		{"touching_end", "2024-06-01T11:00:00Z", "2024-06-01T12:00:00Z", false},
		{"touching_start", "2024-06-01T08:00:00Z", "2024-06-01T09:00:00Z", false},
		{"disjoint", "2024-06-02T09:00:00Z", "2024-06-02T11:00:00Z", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := mustRange(t, tc.start, tc.end)
			if got := interval.Overlaps(a, b); got != tc.want {
				t.Fatalf("Overlaps=%v want %v", got, tc.want)
			}
			if got := interval.Overlaps(b, a); got != tc.want {
				t.Fatalf("Overlaps symmetric=%v want %v", got, tc.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	outer := mustRange(t, "2024-06-01T08:00:00Z", "2024-06-01T17:00:00Z")
	if !outer.Contains(mustRange(t, "2024-06-01T08:00:00Z", "2024-06-01T17:00:00Z")) {
		t.Fatal("range should contain itself")
	}
	if !outer.Contains(mustRange(t, "2024-06-01T09:00:00Z", "2024-06-01T11:00:00Z")) {
		t.Fatal("inner range should be contained")
	}
	if outer.Contains(mustRange(t, "2024-06-01T07:00:00Z", "2024-06-01T09:00:00Z")) {
		t.Fatal("range starting earlier must not be contained")
	}
}

func TestClockBounds(t *testing.T) {
	r := mustRange(t, "2024-06-01T09:00:00Z", "2024-06-01T11:30:00Z")
	if r.Day() != "2024-06-01" {
		t.Fatalf("Day=%s", r.Day())
	}
	if r.StartClock() != "09:00" || r.EndClock() != "11:30" {
		t.Fatalf("clocks=%s..%s", r.StartClock(), r.EndClock())
	}
	if !r.SameDay() {
		t.Fatal("expected same day")
	}
	midnight := mustRange(t, "2024-06-01T22:00:00Z", "2024-06-02T00:00:00Z")
	if !midnight.SameDay() {
		t.Fatal("range ending at midnight belongs to its starting day")
	}
	if midnight.EndClock() != "24:00" {
		t.Fatalf("midnight end clock=%s", midnight.EndClock())
	}
	overnight := mustRange(t, "2024-06-01T22:00:00Z", "2024-06-02T06:00:00Z")
	if overnight.SameDay() {
		t.Fatal("overnight range spans two days")
	}
}

func TestContainsInstant(t *testing.T) {
	r := mustRange(t, "2024-07-01T00:00:00Z", "2024-07-02T00:00:00Z")
	if !r.ContainsInstant(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatal("noon should be inside")
	}
	if r.ContainsInstant(time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("exclusive end must not be inside")
	}
}
