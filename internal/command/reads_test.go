package command

import (
	"strings"
	"testing"
)

func TestReadAvailabilityFiltersOnJobFunction(t *testing.T) {
	snap := testSnapshot()
	r := testResolver(nil)

	qr := r.readAvailability(snap, &GetUserAvailabilityArgs{RoleFilter: "developer", WeekStart: "2026-01-05"})
	rows := qr.Data["users"].([]availRow)

	// everyone is listed; matches come first
	if len(rows) != len(snap.Users) {
		t.Fatalf("filter must not drop anyone, got %d of %d", len(rows), len(snap.Users))
	}
	sawNonMatch := false
	for _, row := range rows {
		if !row.Matches {
			sawNonMatch = true
		} else if sawNonMatch {
			t.Fatalf("matching users must rank before non-matching: %+v", rows)
		}
	}
	for _, row := range rows {
		if row.User == "Alex Rivera" {
			if row.PlannedHours != 44 || row.FreeHours != -4 {
				t.Fatalf("alex: planned %v free %v, want 44 / -4", row.PlannedHours, row.FreeHours)
			}
		}
	}
}

// A profession filter nobody matches degrades to the whole team instead of
// an empty or failed reply.
func TestReadAvailabilityUnknownFilterDegrades(t *testing.T) {
	snap := testSnapshot()
	r := testResolver(nil)

	qr := r.readAvailability(snap, &GetUserAvailabilityArgs{RoleFilter: "astronaut"})
	if !strings.Contains(qr.Summary, "astronaut") {
		t.Fatalf("summary should explain the degraded filter: %s", qr.Summary)
	}
	rows := qr.Data["users"].([]availRow)
	if len(rows) != len(snap.Users) {
		t.Fatalf("degraded filter must list the whole team, got %d", len(rows))
	}
}

func TestMatchesJobFunctionIgnoresPermissionRole(t *testing.T) {
	// "manager" must match against job function text only; a permission
	// role of the same name is irrelevant.
	if matchesJobFunction("Developer", "manager") {
		t.Fatalf("developer should not match a manager filter")
	}
	if !matchesJobFunction("Engineering Manager", "manager") {
		t.Fatalf("job function containing the filter should match")
	}
	if !matchesJobFunction("Developer", "") {
		t.Fatalf("empty filter matches everyone")
	}
	if !matchesJobFunction("Senior Developer", "DEVELOPER") {
		t.Fatalf("matching is case-insensitive")
	}
}

func TestReadCoverageRanksByFit(t *testing.T) {
	snap := testSnapshot()
	r := testResolver(nil)

	qr := r.readCoverage(snap, &SuggestCoverageArgs{
		ProjectName: "Borealis", Hours: 20, WeekStart: "2026-01-05", RoleFilter: "developer",
	})
	candidates := qr.Data["candidates"].([]coverageCandidate)

	// Alex is at 44h with nothing free and must not appear
	for _, c := range candidates {
		if c.User == "Alex Rivera" {
			t.Fatalf("over-booked user offered as coverage: %+v", candidates)
		}
	}
	// developers with free time rank above the non-matching designer
	if len(candidates) < 2 {
		t.Fatalf("expected multiple candidates, got %+v", candidates)
	}
	if !candidates[0].Matches {
		t.Fatalf("top candidate should match the filter: %+v", candidates)
	}
}

func TestReadProjectStatus(t *testing.T) {
	snap := testSnapshot()
	r := testResolver(nil)

	qr := r.readProjectStatus(snap, &GetProjectStatusArgs{ProjectName: "Apollo"})
	if qr.Data["total_hours"] != 40.0 {
		t.Fatalf("expected 40h booked on Apollo, got %v", qr.Data["total_hours"])
	}
	if !strings.Contains(qr.Summary, "2 people") {
		t.Fatalf("summary should count distinct people: %s", qr.Summary)
	}
}

// An ambiguous first name on a read answers for the first match but must
// say who else it could have meant.
func TestReadUserAllocationsAmbiguousNameFlagsOthers(t *testing.T) {
	r := testResolver(nil)
	qr := r.readUserAllocations(testSnapshot(), &GetUserAllocationsArgs{UserName: "Jordan"})

	if qr.Data["user"] != "Jordan Lee" {
		t.Fatalf("expected the first match to answer, got %v", qr.Data["user"])
	}
	if !strings.Contains(qr.Summary, "Jordan Kim") {
		t.Fatalf("summary should mention the other match: %s", qr.Summary)
	}
	others := qr.Data["other_matches"].([]string)
	if len(others) != 1 || others[0] != "Jordan Kim" {
		t.Fatalf("unexpected other_matches: %v", others)
	}
}

func TestReadUserAllocationsUnknownUser(t *testing.T) {
	r := testResolver(nil)
	qr := r.readUserAllocations(testSnapshot(), &GetUserAllocationsArgs{UserName: "Nobody"})
	if !strings.Contains(qr.Summary, "couldn't find") {
		t.Fatalf("expected a miss summary, got %s", qr.Summary)
	}
}
