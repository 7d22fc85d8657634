package engine

import (
	"testing"

	"siteline/internal/domain"
)

func window(start, end string) domain.AvailabilityWindow {
	return domain.AvailabilityWindow{
		ID:          "w1",
		SubjectKind: domain.SubjectWorker,
		SubjectID:   "worker-1",
		Day:         "2024-06-01",
		StartTime:   start,
		EndTime:     end,
	}
}

func TestSplitWindowMiddleCut(t *testing.T) {
	frags := splitWindow(window("08:00", "17:00"), "09:00", "11:00", "2024-06-01T00:00:00Z")
	if len(frags) != 2 {
		t.Fatalf("fragments=%d want 2", len(frags))
	}
	if frags[0].StartTime != "08:00" || frags[0].EndTime != "09:00" {
		t.Fatalf("leading fragment %s..%s", frags[0].StartTime, frags[0].EndTime)
	}
	if frags[1].StartTime != "11:00" || frags[1].EndTime != "17:00" {
		t.Fatalf("trailing fragment %s..%s", frags[1].StartTime, frags[1].EndTime)
	}
	for _, f := range frags {
		if f.SubjectID != "worker-1" || f.Day != "2024-06-01" {
			t.Fatalf("fragment lost subject/day: %+v", f)
		}
		if f.ID == "w1" || f.ID == "" {
			t.Fatalf("fragment must get a fresh id, got %q", f.ID)
		}
	}
}

func TestSplitWindowEdgeCuts(t *testing.T) {
	// Cut flush with the window start leaves only a trailing fragment.
	frags := splitWindow(window("08:00", "17:00"), "08:00", "10:00", "")
	if len(frags) != 1 || frags[0].StartTime != "10:00" || frags[0].EndTime != "17:00" {
		t.Fatalf("leading cut: %+v", frags)
	}
	// Cut flush with the window end leaves only a leading fragment.
	frags = splitWindow(window("08:00", "17:00"), "15:00", "17:00", "")
	if len(frags) != 1 || frags[0].StartTime != "08:00" || frags[0].EndTime != "15:00" {
		t.Fatalf("trailing cut: %+v", frags)
	}
}

func TestSplitWindowFullConsumption(t *testing.T) {
	if frags := splitWindow(window("08:00", "17:00"), "08:00", "17:00", ""); len(frags) != 0 {
		t.Fatalf("full cut should consume window, got %+v", frags)
	}
}

func TestSplitWindowCoversOriginalExactly(t *testing.T) {
	w := window("06:30", "18:45")
	cuts := [][2]string{
		{"06:30", "07:00"}, {"07:15", "09:00"}, {"12:00", "18:45"}, {"10:10", "10:20"},
	}
	for _, cut := range cuts {
		frags := splitWindow(w, cut[0], cut[1], "")
		// Fragments plus the cut must tile the original window with no
		// overlap and no gap.
		bounds := [][2]string{cut}
		for _, f := range frags {
			bounds = append(bounds, [2]string{f.StartTime, f.EndTime})
		}
		for i, a := range bounds {
			if a[0] >= a[1] {
				t.Fatalf("cut %v: empty piece %v", cut, a)
			}
			for j, b := range bounds {
				if i != j && a[0] < b[1] && b[0] < a[1] {
					t.Fatalf("cut %v: pieces %v and %v overlap", cut, a, b)
				}
			}
		}
		total := 0
		for _, b := range bounds {
			total += clockMinutes(b[1]) - clockMinutes(b[0])
		}
		if want := clockMinutes(w.EndTime) - clockMinutes(w.StartTime); total != want {
			t.Fatalf("cut %v: pieces cover %d minutes, window has %d", cut, total, want)
		}
	}
}

func clockMinutes(v string) int {
	return int(v[0]-'0')*600 + int(v[1]-'0')*60 + int(v[3]-'0')*10 + int(v[4]-'0')
}

func TestCompletionTable(t *testing.T) {
	cases := map[string]float64{
		domain.StatusCompleted:  100,
		domain.StatusInProgress: 50,
		domain.StatusAssigned:   25,
		domain.StatusOnHold:     10,
		domain.StatusDelayed:    5,
		domain.StatusPlanned:    0,
		domain.StatusCancelled:  0,
		"anything-else":         0,
	}
	for status, want := range cases {
		if got := completionFor(status); got != want {
			t.Fatalf("completionFor(%s)=%v want %v", status, got, want)
		}
	}
}

func TestRound2HalfUp(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{33.333333, 33.33},
		{33.335, 33.34},
		{66.666666, 66.67},
		{0, 0},
		{100, 100},
	}
	for _, tc := range cases {
		if got := round2(tc.in); got != tc.want {
			t.Fatalf("round2(%v)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestOverduePredicate(t *testing.T) {
	today := "2024-06-15"
	if !isOverdue(domain.StatusInProgress, "2024-06-01", today) {
		t.Fatal("past planned end with open status must be overdue")
	}
	if isOverdue(domain.StatusCompleted, "2024-06-01", today) {
		t.Fatal("completed is never overdue")
	}
	if isOverdue(domain.StatusInProgress, "", today) {
		t.Fatal("missing planned end is never overdue")
	}
	if isOverdue(domain.StatusInProgress, "2024-06-15", today) {
		t.Fatal("due today is not overdue yet")
	}
	if !isOverdue(domain.StatusDelayed, "2024-06-01T08:00:00Z", today) {
		t.Fatal("timestamp planned end should compare by date part")
	}
}
