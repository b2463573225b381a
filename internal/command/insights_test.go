package command

import (
	"testing"
	"time"

	"github.com/crewplan/backend/internal/models"
)

func insightCfg() InsightConfig {
	return InsightConfig{
		DefaultCapacity:      40,
		CriticalOverageHours: 8,
		UnderAllocationRatio: 0.5,
	}
}

// A user at exactly 40h in each of four consecutive weeks is fully booked,
// not 160h over capacity. Totals must never cross week boundaries.
func TestAnalyzeSnapshotSumsPerWeekOnly(t *testing.T) {
	snap := &ContextSnapshot{
		Projects: []models.Project{testProject("p1", "Apollo")},
	}
	var allocs []models.Allocation
	for _, w := range []string{"2026-01-05", "2026-01-12", "2026-01-19", "2026-01-26"} {
		allocs = append(allocs, models.Allocation{UserID: "u1", ProjectID: "p1", WeekStart: w, PlannedHours: 40})
	}
	snap.Users = []UserContext{{User: testUser("u1", "Dana Fox", "Developer"), Allocations: allocs}}

	insights := AnalyzeSnapshot(snap, insightCfg())
	for _, in := range insights {
		if in.Type == InsightOverAllocation {
			t.Fatalf("40h per week flagged as over-allocation: %+v", in)
		}
	}
}

func TestAnalyzeSnapshotOverAllocationAcrossProjects(t *testing.T) {
	snap := testSnapshot()
	insights := AnalyzeSnapshot(snap, insightCfg())

	var found *ResourceInsight
	for i, in := range insights {
		if in.Type == InsightOverAllocation && in.AffectedEntities[0] == "Alex Rivera" {
			found = &insights[i]
		}
	}
	if found == nil {
		t.Fatalf("expected over-allocation insight for Alex, got %+v", insights)
	}
	if found.Data.TotalHours != 44 {
		t.Fatalf("expected 44 total hours, got %v", found.Data.TotalHours)
	}
	if found.Data.Overage != 4 {
		t.Fatalf("expected 4h overage, got %v", found.Data.Overage)
	}
	if found.Severity != SeverityWarning {
		t.Fatalf("4h overage should be a warning, got %s", found.Severity)
	}
	if found.Data.WeekStart != "2026-01-05" {
		t.Fatalf("expected week 2026-01-05, got %s", found.Data.WeekStart)
	}
}

func TestAnalyzeSnapshotCriticalAboveThreshold(t *testing.T) {
	snap := &ContextSnapshot{Projects: []models.Project{testProject("p1", "Apollo")}}
	snap.Users = []UserContext{{
		User: testUser("u1", "Dana Fox", "Developer"),
		Allocations: []models.Allocation{
			{UserID: "u1", ProjectID: "p1", WeekStart: "2026-01-05", PlannedHours: 52},
		},
	}}

	insights := AnalyzeSnapshot(snap, insightCfg())
	if len(insights) != 1 || insights[0].Severity != SeverityCritical {
		t.Fatalf("12h overage should be critical, got %+v", insights)
	}
}

func TestAnalyzeSnapshotRespectsPerUserCapacity(t *testing.T) {
	u := testUser("u1", "Dana Fox", "Developer")
	u.WeeklyCapacity = hoursPtr(20)
	snap := &ContextSnapshot{Projects: []models.Project{testProject("p1", "Apollo")}}
	snap.Users = []UserContext{{
		User: u,
		Allocations: []models.Allocation{
			{UserID: "u1", ProjectID: "p1", WeekStart: "2026-01-05", PlannedHours: 24},
		},
	}}

	insights := AnalyzeSnapshot(snap, insightCfg())
	if len(insights) != 1 || insights[0].Type != InsightOverAllocation {
		t.Fatalf("expected over-allocation against 20h capacity, got %+v", insights)
	}
	if insights[0].Data.Capacity != 20 || insights[0].Data.Overage != 4 {
		t.Fatalf("expected capacity 20 and overage 4, got %+v", insights[0].Data)
	}
}

func TestAnalyzeSnapshotUnderAllocation(t *testing.T) {
	snap := &ContextSnapshot{Projects: []models.Project{testProject("p1", "Apollo")}}
	snap.Users = []UserContext{{
		User: testUser("u1", "Dana Fox", "Developer"),
		Allocations: []models.Allocation{
			{UserID: "u1", ProjectID: "p1", WeekStart: "2026-01-05", PlannedHours: 10},
			{UserID: "u1", ProjectID: "p1", WeekStart: "2026-01-12", PlannedHours: 30},
		},
	}}

	insights := AnalyzeSnapshot(snap, insightCfg())
	var under []ResourceInsight
	for _, in := range insights {
		if in.Type == InsightUnderAllocation {
			under = append(under, in)
		}
	}
	// 10h of 40 is a large gap; 30h of 40 is not.
	if len(under) != 1 || under[0].Data.WeekStart != "2026-01-05" {
		t.Fatalf("expected one under-allocation for 2026-01-05, got %+v", under)
	}
	if under[0].Severity != SeverityInfo {
		t.Fatalf("under-allocation should be info, got %s", under[0].Severity)
	}
}

func TestRubberStampInsight(t *testing.T) {
	snap := &ContextSnapshot{Projects: []models.Project{testProject("p1", "Apollo")}}
	var allocs []models.Allocation
	var sheets []models.Timesheet
	for _, w := range []string{"2026-01-05", "2026-01-12", "2026-01-19"} {
		allocs = append(allocs, models.Allocation{UserID: "u1", ProjectID: "p1", WeekStart: w, PlannedHours: 32})
		sheets = append(sheets, models.Timesheet{UserID: "u1", ProjectID: "p1", WeekStart: w, ActualHours: 32, SubmittedAt: time.Now()})
	}
	snap.Users = []UserContext{{User: testUser("u1", "Dana Fox", "Developer"), Allocations: allocs}}
	snap.Timesheets = sheets

	cfg := insightCfg()
	cfg.RubberStampEnabled = true
	cfg.RubberStampMinWeeks = 3

	insights := AnalyzeSnapshot(snap, cfg)
	found := false
	for _, in := range insights {
		if in.Type == InsightRubberStamp {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rubber-stamp insight for three exact weeks, got %+v", insights)
	}

	// One divergent week breaks the streak below the threshold.
	snap.Timesheets[1].ActualHours = 30
	insights = AnalyzeSnapshot(snap, cfg)
	for _, in := range insights {
		if in.Type == InsightRubberStamp {
			t.Fatalf("rubber-stamp flagged with only two exact weeks")
		}
	}
}
