package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crewplan/backend/internal/utils"
)

// Row shapes for the read tools' Data payloads.

type weekRow struct {
	Week       string         `json:"week_start"`
	Projects   []ProjectHours `json:"projects"`
	TotalHours float64        `json:"total_hours"`
}

type availRow struct {
	User         string  `json:"user"`
	JobFunction  string  `json:"job_function"`
	PlannedHours float64 `json:"planned_hours"`
	FreeHours    float64 `json:"free_hours"`
	Capacity     float64 `json:"capacity"`
	Matches      bool    `json:"matches_filter"`
}

type bookingRow struct {
	User  string  `json:"user"`
	Week  string  `json:"week_start"`
	Hours float64 `json:"hours"`
}

type coverageCandidate struct {
	User      string  `json:"user"`
	FreeHours float64 `json:"free_hours"`
	Matches   bool    `json:"matches_filter"`
}

// Read tools run against the in-memory snapshot only; they are
// side-effect-free and safe to execute immediately at resolve time.
func (r Resolver) executeRead(snap *ContextSnapshot, tool string, args any) QueryResult {
	switch a := args.(type) {
	case *GetUserAllocationsArgs:
		return r.readUserAllocations(snap, a)
	case *GetUserAvailabilityArgs:
		return r.readAvailability(snap, a)
	case *GetProjectStatusArgs:
		return r.readProjectStatus(snap, a)
	case *SuggestCoverageArgs:
		return r.readCoverage(snap, a)
	}
	return QueryResult{Tool: tool, Summary: "Nothing to report."}
}

func (r Resolver) readUserAllocations(snap *ContextSnapshot, a *GetUserAllocationsArgs) QueryResult {
	matches := snap.UsersByName(a.UserName)
	if len(matches) == 0 {
		return QueryResult{Tool: ToolGetUserAllocations, Summary: fmt.Sprintf("I couldn't find anyone called %s.", strings.TrimSpace(a.UserName))}
	}
	u := matches[0]

	weekFilter := ""
	if a.WeekStart != "" {
		if w, err := NormalizeWeek(a.WeekStart, snap.AsOf); err == nil {
			weekFilter = w
		}
	}

	byWeek := map[string]*weekRow{}
	var weeks []string
	total := 0.0
	for _, al := range u.Allocations {
		if weekFilter != "" && al.WeekStart != weekFilter {
			continue
		}
		row, ok := byWeek[al.WeekStart]
		if !ok {
			row = &weekRow{Week: al.WeekStart}
			byWeek[al.WeekStart] = row
			weeks = append(weeks, al.WeekStart)
		}
		row.Projects = append(row.Projects, ProjectHours{ProjectName: snap.ProjectName(al.ProjectID), Hours: al.PlannedHours})
		row.TotalHours += al.PlannedHours
		total += al.PlannedHours
	}
	sort.Strings(weeks)

	rows := make([]weekRow, 0, len(weeks))
	for _, w := range weeks {
		rows = append(rows, *byWeek[w])
	}

	summary := fmt.Sprintf("%s has %sh planned", u.Name, trimHours(total))
	if weekFilter != "" {
		summary += fmt.Sprintf(" for the week of %s", weekFilter)
	}
	if len(rows) == 0 {
		summary = fmt.Sprintf("%s has nothing planned", u.Name)
	}
	summary += "."

	data := map[string]any{
		"user":        u.Name,
		"weeks":       rows,
		"total_hours": total,
	}
	if len(matches) > 1 {
		others := make([]string, 0, len(matches)-1)
		for _, m := range matches[1:] {
			others = append(others, m.Name)
		}
		summary += fmt.Sprintf(" There's also %s — ask with the full name if you meant someone else.", strings.Join(others, " and "))
		data["other_matches"] = others
	}
	return QueryResult{
		Tool:    ToolGetUserAllocations,
		Summary: summary,
		Data:    data,
	}
}

func (r Resolver) readAvailability(snap *ContextSnapshot, a *GetUserAvailabilityArgs) QueryResult {
	week, err := NormalizeWeek(a.WeekStart, snap.AsOf)
	if err != nil {
		week = snap.Weeks[0]
	}

	var rows []availRow
	anyMatch := false
	for _, u := range snap.Users {
		planned := 0.0
		for _, al := range u.Allocations {
			if al.WeekStart == week {
				planned += al.PlannedHours
			}
		}
		capacity := u.Capacity(r.DefaultCapacity)
		matched := matchesJobFunction(u.JobFunction, a.RoleFilter)
		if matched && a.RoleFilter != "" {
			anyMatch = true
		}
		rows = append(rows, availRow{
			User:         u.Name,
			JobFunction:  u.JobFunction,
			PlannedHours: planned,
			FreeHours:    capacity - planned,
			Capacity:     capacity,
			Matches:      matched,
		})
	}

	// A filter that matches nobody degrades to no filter: everyone comes
	// back, matches (if any) ranked first.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Matches != rows[j].Matches {
			return rows[i].Matches
		}
		if rows[i].FreeHours != rows[j].FreeHours {
			return rows[i].FreeHours > rows[j].FreeHours
		}
		return rows[i].User < rows[j].User
	})

	summary := fmt.Sprintf("Availability for the week of %s across %d people.", week, len(rows))
	if a.RoleFilter != "" && !anyMatch {
		summary = fmt.Sprintf("Nobody's job function matches %q, so here is the whole team for the week of %s.", a.RoleFilter, week)
	}
	return QueryResult{
		Tool:    ToolGetUserAvailability,
		Summary: summary,
		Data: map[string]any{
			"week_start": week,
			"users":      rows,
		},
	}
}

func (r Resolver) readProjectStatus(snap *ContextSnapshot, a *GetProjectStatusArgs) QueryResult {
	p, ok := snap.ProjectByName(a.ProjectName)
	if !ok {
		return QueryResult{Tool: ToolGetProjectStatus, Summary: fmt.Sprintf("I couldn't find a project called %s.", strings.TrimSpace(a.ProjectName))}
	}

	var bookings []bookingRow
	total := 0.0
	people := map[string]bool{}
	for _, u := range snap.Users {
		for _, al := range u.Allocations {
			if al.ProjectID != p.ID {
				continue
			}
			bookings = append(bookings, bookingRow{User: u.Name, Week: al.WeekStart, Hours: al.PlannedHours})
			total += al.PlannedHours
			people[u.Name] = true
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Week != bookings[j].Week {
			return bookings[i].Week < bookings[j].Week
		}
		return bookings[i].User < bookings[j].User
	})

	return QueryResult{
		Tool:    ToolGetProjectStatus,
		Summary: fmt.Sprintf("%s has %d people booked for %sh total over the visible weeks.", p.Name, len(people), trimHours(total)),
		Data: map[string]any{
			"project":     p.Name,
			"bookings":    bookings,
			"total_hours": total,
		},
	}
}

func (r Resolver) readCoverage(snap *ContextSnapshot, a *SuggestCoverageArgs) QueryResult {
	p, ok := snap.ProjectByName(a.ProjectName)
	if !ok {
		return QueryResult{Tool: ToolSuggestCoverage, Summary: fmt.Sprintf("I couldn't find a project called %s.", strings.TrimSpace(a.ProjectName))}
	}
	week, err := NormalizeWeek(a.WeekStart, snap.AsOf)
	if err != nil {
		week = snap.Weeks[0]
	}

	var candidates []coverageCandidate
	for _, u := range snap.Users {
		planned := 0.0
		for _, al := range u.Allocations {
			if al.WeekStart == week {
				planned += al.PlannedHours
			}
		}
		free := u.Capacity(r.DefaultCapacity) - planned
		if free < a.Hours {
			continue
		}
		candidates = append(candidates, coverageCandidate{
			User:      u.Name,
			FreeHours: free,
			Matches:   matchesJobFunction(u.JobFunction, a.RoleFilter),
		})
	}
	// Equal free capacity should not always favor the same person;
	// tie-break with a stable hash over user and week.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Matches != candidates[j].Matches {
			return candidates[i].Matches
		}
		if candidates[i].FreeHours != candidates[j].FreeHours {
			return candidates[i].FreeHours > candidates[j].FreeHours
		}
		return utils.TieBreak(candidates[i].User, week) < utils.TieBreak(candidates[j].User, week)
	})

	summary := fmt.Sprintf("%d people could cover %sh on %s in the week of %s.", len(candidates), trimHours(a.Hours), p.Name, week)
	if len(candidates) == 0 {
		summary = fmt.Sprintf("Nobody has %sh free for %s in the week of %s.", trimHours(a.Hours), p.Name, week)
	}
	return QueryResult{
		Tool:    ToolSuggestCoverage,
		Summary: summary,
		Data: map[string]any{
			"project":    p.Name,
			"week_start": week,
			"candidates": candidates,
		},
	}
}

// matchesJobFunction compares a free-text profession filter against the
// user's job function. The permission role never participates here, and no
// filter value is ever an error.
func matchesJobFunction(jobFunction, filter string) bool {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return true
	}
	return strings.Contains(strings.ToLower(jobFunction), f)
}
