package command

import (
	"testing"
	"time"
)

func TestWeekStartSnapsToMonday(t *testing.T) {
	cases := []struct {
		day  time.Time
		want string
	}{
		{time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), "2026-01-05"},  // Monday
		{time.Date(2026, 1, 7, 15, 0, 0, 0, time.UTC), "2026-01-05"}, // Wednesday
		{time.Date(2026, 1, 11, 23, 59, 0, 0, time.UTC), "2026-01-05"}, // Sunday
		{time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), "2026-01-12"},
	}
	for _, c := range cases {
		if got := WeekStart(c.day); got != c.want {
			t.Fatalf("WeekStart(%s) = %s, want %s", c.day, got, c.want)
		}
	}
}

func TestNormalizeWeek(t *testing.T) {
	now := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

	got, err := NormalizeWeek("", now)
	if err != nil || got != "2026-01-05" {
		t.Fatalf("empty week: got %s, %v", got, err)
	}

	got, err = NormalizeWeek("2026-01-14", now)
	if err != nil || got != "2026-01-12" {
		t.Fatalf("mid-week date: got %s, %v", got, err)
	}

	if _, err := NormalizeWeek("next tuesday", now); err == nil {
		t.Fatalf("expected error for unparsable week")
	}
}

func TestWeeksFrom(t *testing.T) {
	now := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	weeks := WeeksFrom(now, 3)
	want := []string{"2026-01-05", "2026-01-12", "2026-01-19"}
	if len(weeks) != len(want) {
		t.Fatalf("expected %d weeks, got %d", len(want), len(weeks))
	}
	for i := range want {
		if weeks[i] != want[i] {
			t.Fatalf("week %d: got %s, want %s", i, weeks[i], want[i])
		}
	}
}
