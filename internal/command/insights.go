package command

import (
	"fmt"
	"sort"
)

// InsightConfig carries the allocation-health thresholds. Everything here
// is configuration; none of it is compiled in.
type InsightConfig struct {
	DefaultCapacity      float64
	CriticalOverageHours float64
	UnderAllocationRatio float64
	RubberStampEnabled   bool
	RubberStampMinWeeks  int
}

// AnalyzeSnapshot scans one snapshot for allocation-health conditions.
// Hours are summed per (user, week) and compared against that user's
// weekly capacity; totals are never carried across week boundaries, so a
// user booked 40h in each of four weeks is at capacity, not 4x over it.
func AnalyzeSnapshot(snap *ContextSnapshot, cfg InsightConfig) []ResourceInsight {
	var out []ResourceInsight
	for _, u := range snap.Users {
		capacity := u.Capacity(cfg.DefaultCapacity)

		weekly := map[string]float64{}
		for _, a := range u.Allocations {
			weekly[a.WeekStart] += a.PlannedHours
		}

		weeks := make([]string, 0, len(weekly))
		for w := range weekly {
			weeks = append(weeks, w)
		}
		sort.Strings(weeks)

		for _, week := range weeks {
			total := weekly[week]
			if total > capacity {
				overage := total - capacity
				severity := SeverityWarning
				if overage > cfg.CriticalOverageHours {
					severity = SeverityCritical
				}
				out = append(out, ResourceInsight{
					Type:             InsightOverAllocation,
					Severity:         severity,
					Title:            fmt.Sprintf("%s is over capacity", u.Name),
					Description:      fmt.Sprintf("%s has %.0fh planned for the week of %s against a %.0fh capacity (%.0fh over).", u.Name, total, week, capacity, overage),
					AffectedEntities: []string{u.Name},
					Data: InsightData{
						WeekStart:  week,
						TotalHours: total,
						Capacity:   capacity,
						Overage:    overage,
					},
				})
				continue
			}
			// Only flag large gaps; small ones are usually intentional
			// part-time arrangements.
			if capacity > 0 && total < capacity*(1-cfg.UnderAllocationRatio) {
				out = append(out, ResourceInsight{
					Type:             InsightUnderAllocation,
					Severity:         SeverityInfo,
					Title:            fmt.Sprintf("%s has free capacity", u.Name),
					Description:      fmt.Sprintf("%s has only %.0fh planned for the week of %s; %.0fh of capacity is unused.", u.Name, total, week, capacity-total),
					AffectedEntities: []string{u.Name},
					Data: InsightData{
						WeekStart:  week,
						TotalHours: total,
						Capacity:   capacity,
					},
				})
			}
		}

		if cfg.RubberStampEnabled {
			if ins, ok := rubberStampInsight(snap, u, cfg); ok {
				out = append(out, ins)
			}
		}
	}
	return out
}

// rubberStampInsight flags users whose submitted actuals exactly equal the
// planned hours for a configurable number of consecutive recorded weeks.
// Exact matches every week can mean hours are approved without review; the
// streak length is configurable because the rule has no validated
// false-positive tolerance.
func rubberStampInsight(snap *ContextSnapshot, u UserContext, cfg InsightConfig) (ResourceInsight, bool) {
	minWeeks := cfg.RubberStampMinWeeks
	if minWeeks < 1 {
		minWeeks = 3
	}

	planned := map[string]float64{}
	for _, a := range u.Allocations {
		planned[a.WeekStart+"|"+a.ProjectID] = a.PlannedHours
	}

	exactWeeks := map[string]bool{}
	for _, t := range snap.Timesheets {
		if t.UserID != u.ID {
			continue
		}
		p, ok := planned[t.WeekStart+"|"+t.ProjectID]
		if !ok {
			continue
		}
		if t.ActualHours == p {
			if _, seen := exactWeeks[t.WeekStart]; !seen {
				exactWeeks[t.WeekStart] = true
			}
		} else {
			exactWeeks[t.WeekStart] = false
		}
	}

	count := 0
	for _, exact := range exactWeeks {
		if exact {
			count++
		}
	}
	if count < minWeeks {
		return ResourceInsight{}, false
	}
	return ResourceInsight{
		Type:             InsightRubberStamp,
		Severity:         SeverityInfo,
		Title:            fmt.Sprintf("%s's timesheets exactly match plan", u.Name),
		Description:      fmt.Sprintf("%s submitted actuals identical to planned hours for %d weeks; worth a closer look at how those were approved.", u.Name, count),
		AffectedEntities: []string{u.Name},
		Data:             InsightData{},
	}, true
}
