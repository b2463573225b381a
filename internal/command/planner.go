package command

import (
	"sort"

	"github.com/crewplan/backend/internal/models"
)

// ledger is the in-memory hours-by-key projection the planner simulates
// against. It never touches the store.
type ledger map[models.AllocationKey]float64

func snapshotLedger(snap *ContextSnapshot) ledger {
	l := ledger{}
	for _, u := range snap.Users {
		for _, a := range u.Allocations {
			l[a.Key()] = a.PlannedHours
		}
	}
	return l
}

func (l ledger) apply(o op) {
	key := models.AllocationKey{UserID: o.user.ID, ProjectID: o.project.ID, WeekStart: o.week}
	switch o.kind {
	case opCreate, opUpdate:
		l[key] = o.hours
	case opDelete:
		delete(l, key)
	case opSwap:
		remaining := l[key] - o.hours
		if remaining > 0 {
			l[key] = remaining
		} else {
			delete(l, key)
		}
		toKey := models.AllocationKey{UserID: o.toUser.ID, ProjectID: o.project.ID, WeekStart: o.week}
		l[toKey] += o.hours
	}
}

// BuildDiff computes the advisory before/after snapshots for one candidate
// action set. Both sides use the same projection so the caller can render a
// symmetric diff; the result is recomputed against live state at execution
// time because the snapshot is already aging.
func BuildDiff(snap *ContextSnapshot, actions []ActionCall) (*StateSnapshot, *StateSnapshot) {
	type userWeek struct {
		userID string
		week   string
	}
	var affected []userWeek
	seen := map[userWeek]bool{}
	for _, a := range actions {
		for _, k := range a.op.keys() {
			uw := userWeek{userID: k.UserID, week: k.WeekStart}
			if !seen[uw] {
				seen[uw] = true
				affected = append(affected, uw)
			}
		}
	}
	sort.Slice(affected, func(i, j int) bool {
		if affected[i].week != affected[j].week {
			return affected[i].week < affected[j].week
		}
		return snap.UserName(affected[i].userID) < snap.UserName(affected[j].userID)
	})

	before := snapshotLedger(snap)
	after := ledger{}
	for k, v := range before {
		after[k] = v
	}
	for _, a := range actions {
		after.apply(a.op)
	}

	project := func(l ledger) *StateSnapshot {
		out := &StateSnapshot{}
		for _, uw := range affected {
			out.Users = append(out.Users, projectUserState(snap, l, uw.userID, uw.week))
		}
		return out
	}
	return project(before), project(after)
}

func projectUserState(snap *ContextSnapshot, l ledger, userID, week string) UserState {
	state := UserState{Name: snap.UserName(userID), Week: week}
	var names []string
	hoursByName := map[string]float64{}
	for key, hours := range l {
		if key.UserID != userID || key.WeekStart != week {
			continue
		}
		name := snap.ProjectName(key.ProjectID)
		if _, ok := hoursByName[name]; !ok {
			names = append(names, name)
		}
		hoursByName[name] += hours
		state.TotalHours += hours
	}
	sort.Strings(names)
	for _, n := range names {
		state.Projects = append(state.Projects, ProjectHours{ProjectName: n, Hours: hoursByName[n]})
	}
	return state
}
