package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
)

// SnapshotBuilder assembles the per-command view of the organization,
// bounded to active users/projects and the requested week range.
type SnapshotBuilder struct {
	Store           Store
	Logger          zerolog.Logger
	LookaheadWeeks  int
	DefaultCapacity float64
}

// Build reads a fresh snapshot. Any store failure is wrapped as
// ErrContextUnavailable and aborts the whole command.
func (b SnapshotBuilder) Build(ctx context.Context, orgID string, now time.Time) (*ContextSnapshot, error) {
	lookahead := b.LookaheadWeeks
	if lookahead < 1 {
		lookahead = 3
	}
	weeks := WeeksFrom(now, lookahead+1)

	users, err := b.Store.ListUsers(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing users: %v", ErrContextUnavailable, err)
	}
	projects, err := b.Store.ListProjects(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing projects: %v", ErrContextUnavailable, err)
	}
	allocations, err := b.Store.ListAllocations(ctx, orgID, weeks)
	if err != nil {
		return nil, fmt.Errorf("%w: listing allocations: %v", ErrContextUnavailable, err)
	}
	timesheets, err := b.Store.ListTimesheets(ctx, orgID, weeks)
	if err != nil {
		return nil, fmt.Errorf("%w: listing timesheets: %v", ErrContextUnavailable, err)
	}

	snap := &ContextSnapshot{
		AsOf:       now.UTC(),
		OrgID:      orgID,
		Weeks:      weeks,
		Projects:   projects,
		Timesheets: timesheets,
	}
	allocsByUser := map[string][]int{}
	for i, a := range allocations {
		allocsByUser[a.UserID] = append(allocsByUser[a.UserID], i)
	}
	for _, u := range users {
		uc := UserContext{User: u}
		for _, i := range allocsByUser[u.ID] {
			uc.Allocations = append(uc.Allocations, allocations[i])
		}
		snap.Users = append(snap.Users, uc)
	}

	b.Logger.Debug().
		Str("org_id", orgID).
		Int("users", len(snap.Users)).
		Int("projects", len(snap.Projects)).
		Int("allocations", len(allocations)).
		Strs("weeks", weeks).
		Msg("context snapshot built")
	return snap, nil
}

// Summary renders the compact serialized view sent to the completion
// service: a user roster and a markdown allocation table. No internal ids
// appear here; the service works in display names.
func (b SnapshotBuilder) Summary(snap *ContextSnapshot) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Today: %s. Current week starts %s.\n\n", snap.AsOf.Format("2006-01-02"), snap.Weeks[0]))

	sb.WriteString("Team:\n")
	for _, u := range snap.Users {
		sb.WriteString(fmt.Sprintf("- %s (%s, capacity %.0fh/week)\n", u.Name, u.JobFunction, u.Capacity(b.DefaultCapacity)))
	}

	sb.WriteString("\nActive projects: ")
	names := make([]string, 0, len(snap.Projects))
	for _, p := range snap.Projects {
		names = append(names, p.Name)
	}
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString("\n\nAllocations:\n")

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"User", "Project", "Week", "Hours"})
	for _, u := range snap.Users {
		for _, a := range u.Allocations {
			tw.AppendRow(table.Row{u.Name, snap.ProjectName(a.ProjectID), a.WeekStart, a.PlannedHours})
		}
	}
	sb.WriteString(tw.RenderMarkdown())
	sb.WriteString("\n")
	return sb.String()
}
