package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/crewplan/backend/internal/db"
	"github.com/crewplan/backend/internal/models"
)

// Executor applies confirmed actions against live store state. Every
// action gets its own ActionResult; one failure never aborts siblings.
type Executor struct {
	Store  Store
	Logger zerolog.Logger
}

// Execute runs the confirmed action list. Actions whose allocation key
// sets are disjoint run concurrently; actions sharing a key stay in one
// group and run in their original order.
func (e Executor) Execute(ctx context.Context, actions []ActionCall) []ActionResult {
	results := make([]ActionResult, len(actions))
	groups := groupByKeys(actions)

	var g errgroup.Group
	for _, group := range groups {
		group := group
		g.Go(func() error {
			for _, idx := range group {
				results[idx] = e.executeOne(ctx, idx, actions[idx])
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// groupByKeys partitions action indices so that any two actions touching a
// common allocation key land in the same group.
func groupByKeys(actions []ActionCall) [][]int {
	var groups [][]int
	keyGroup := map[models.AllocationKey]int{}
	for i, a := range actions {
		target := -1
		for _, k := range a.op.keys() {
			if gi, ok := keyGroup[k]; ok {
				if target == -1 {
					target = gi
				} else if gi != target {
					// merge the later group into the earlier one
					lo, hi := target, gi
					if lo > hi {
						lo, hi = hi, lo
					}
					groups[lo] = append(groups[lo], groups[hi]...)
					for k2, g2 := range keyGroup {
						if g2 == hi {
							keyGroup[k2] = lo
						}
					}
					groups[hi] = nil
					target = lo
				}
			}
		}
		if target == -1 {
			groups = append(groups, nil)
			target = len(groups) - 1
		}
		groups[target] = append(groups[target], i)
		for _, k := range a.op.keys() {
			keyGroup[k] = target
		}
	}
	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}

func (e Executor) executeOne(ctx context.Context, index int, a ActionCall) ActionResult {
	data, err := e.apply(ctx, a.op)
	if errors.Is(err, db.ErrVersionConflict) {
		// Optimistic-concurrency races are retried exactly once.
		data, err = e.apply(ctx, a.op)
	}
	if err != nil {
		e.Logger.Warn().Err(err).Int("action", index).Str("tool", a.Tool).Msg("action failed")
		return ActionResult{Index: index, Success: false, Error: userFacingError(err)}
	}
	e.Logger.Info().Int("action", index).Str("tool", a.Tool).Msg("action applied")
	return ActionResult{Index: index, Success: true, Data: data}
}

// apply re-validates preconditions against the live store and performs one
// mutation. It never trusts the snapshot the action was planned from.
func (e Executor) apply(ctx context.Context, o op) (map[string]any, error) {
	user, err := e.Store.GetUser(ctx, o.user.ID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !user.Active) {
		return nil, ValidationError{Reason: fmt.Sprintf("%s is no longer an active team member", o.user.Name)}
	}
	if err != nil {
		return nil, err
	}
	project, err := e.Store.GetProject(ctx, o.project.ID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !project.Active) {
		return nil, ValidationError{Reason: fmt.Sprintf("%s is no longer an active project", o.project.Name)}
	}
	if err != nil {
		return nil, err
	}

	key := models.AllocationKey{UserID: o.user.ID, ProjectID: o.project.ID, WeekStart: o.week}
	switch o.kind {
	case opCreate:
		if o.hours < 0 {
			return nil, ValidationError{Reason: "planned hours can't be negative"}
		}
		written, err := e.Store.UpsertAllocation(ctx, models.Allocation{
			UserID:       o.user.ID,
			ProjectID:    o.project.ID,
			WeekStart:    o.week,
			PlannedHours: o.hours,
			Notes:        o.notes,
			IsBillable:   o.billable,
		})
		if err != nil {
			return nil, err
		}
		return resultData(o, written.PlannedHours), nil

	case opUpdate:
		current, err := e.Store.GetAllocation(ctx, key)
		if errors.Is(err, db.ErrNotFound) {
			return nil, ValidationError{Reason: fmt.Sprintf("%s has no allocation on %s for the week of %s anymore", o.user.Name, o.project.Name, o.week)}
		}
		if err != nil {
			return nil, err
		}
		if o.hours < 0 {
			return nil, ValidationError{Reason: "planned hours can't be negative"}
		}
		written, err := e.Store.UpdateAllocationHours(ctx, key, o.hours, current.Version)
		if err != nil {
			return nil, err
		}
		return resultData(o, written.PlannedHours), nil

	case opDelete:
		err := e.Store.DeleteAllocation(ctx, key)
		if errors.Is(err, db.ErrNotFound) {
			return nil, ValidationError{Reason: fmt.Sprintf("%s's allocation on %s for the week of %s was already removed", o.user.Name, o.project.Name, o.week)}
		}
		if err != nil {
			return nil, err
		}
		return resultData(o, 0), nil

	case opSwap:
		return e.applySwap(ctx, o, key)
	}
	return nil, ValidationError{Reason: "unsupported action"}
}

func (e Executor) applySwap(ctx context.Context, o op, fromKey models.AllocationKey) (map[string]any, error) {
	toUser, err := e.Store.GetUser(ctx, o.toUser.ID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !toUser.Active) {
		return nil, ValidationError{Reason: fmt.Sprintf("%s is no longer an active team member", o.toUser.Name)}
	}
	if err != nil {
		return nil, err
	}

	source, err := e.Store.GetAllocation(ctx, fromKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ValidationError{Reason: fmt.Sprintf("%s has no hours on %s for the week of %s", o.user.Name, o.project.Name, o.week)}
	}
	if err != nil {
		return nil, err
	}
	if source.PlannedHours < o.hours {
		return nil, ValidationError{Reason: fmt.Sprintf("%s only has %sh on %s that week, not %sh", o.user.Name, trimHours(source.PlannedHours), o.project.Name, trimHours(o.hours))}
	}

	// Both legs commit or roll back together; a failed credit must never
	// leave the debit behind.
	toKey := models.AllocationKey{UserID: o.toUser.ID, ProjectID: o.project.ID, WeekStart: o.week}
	written, err := e.Store.MoveAllocationHours(ctx, fromKey, toKey, o.hours, source.Version)
	if err != nil {
		return nil, err
	}

	data := resultData(o, written.PlannedHours)
	data["from_user"] = o.user.Name
	data["to_user"] = o.toUser.Name
	data["moved_hours"] = o.hours
	delete(data, "user")
	return data, nil
}

func resultData(o op, hours float64) map[string]any {
	return map[string]any{
		"user":       o.user.Name,
		"project":    o.project.Name,
		"week_start": o.week,
		"hours":      hours,
	}
}

// userFacingError maps internal failures onto phrasing fit for a chat
// surface. Raw store errors never reach the caller verbatim.
func userFacingError(err error) string {
	var v ValidationError
	if errors.As(err, &v) {
		return v.Reason
	}
	if errors.Is(err, db.ErrVersionConflict) {
		return "that allocation was changed by someone else in the meantime"
	}
	if errors.Is(err, db.ErrNotFound) {
		return "that allocation no longer exists"
	}
	return "the change couldn't be saved; nothing else was affected"
}
