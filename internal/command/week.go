package command

import (
	"fmt"
	"time"
)

const weekLayout = "2006-01-02"

// WeekStart returns the ISO date of the Monday of t's week.
func WeekStart(t time.Time) string {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(weekLayout)
}

// NormalizeWeek parses a date string and snaps it to its Monday. An empty
// string normalizes to the current week.
func NormalizeWeek(s string, now time.Time) (string, error) {
	if s == "" {
		return WeekStart(now), nil
	}
	t, err := time.Parse(weekLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid week %q: %w", s, err)
	}
	return WeekStart(t), nil
}

// WeeksFrom lists n consecutive week starts beginning with t's week.
func WeeksFrom(t time.Time, n int) []string {
	if n < 1 {
		n = 1
	}
	start, _ := time.Parse(weekLayout, WeekStart(t))
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, start.AddDate(0, 0, 7*i).Format(weekLayout))
	}
	return out
}
