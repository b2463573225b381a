package command

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewplan/backend/internal/db"
	"github.com/crewplan/backend/internal/llm"
	"github.com/crewplan/backend/internal/models"
)

func hoursPtr(v float64) *float64 { return &v }

func testUser(id, name, jobFunction string) models.User {
	return models.User{
		ID:             id,
		OrgID:          "org-test",
		Name:           name,
		JobFunction:    jobFunction,
		PermissionRole: models.RoleEmployee,
		Active:         true,
	}
}

func testProject(id, name string) models.Project {
	return models.Project{ID: id, OrgID: "org-test", Name: name, Active: true}
}

// testSnapshot is the shared planning scene: Alex and Jake are developers,
// Sam is a designer, and the two Jordans exist to force first-name
// ambiguity. The current week is the Monday of 2026-01-05.
func testSnapshot() *ContextSnapshot {
	asOf := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	snap := &ContextSnapshot{
		AsOf:  asOf,
		OrgID: "org-test",
		Weeks: WeeksFrom(asOf, 4),
		Projects: []models.Project{
			testProject("p-apollo", "Apollo"),
			testProject("p-borealis", "Borealis"),
		},
	}
	snap.Users = []UserContext{
		{User: testUser("u-alex", "Alex Rivera", "Developer"), Allocations: []models.Allocation{
			{UserID: "u-alex", ProjectID: "p-apollo", WeekStart: "2026-01-05", PlannedHours: 24, Version: 1},
			{UserID: "u-alex", ProjectID: "p-borealis", WeekStart: "2026-01-05", PlannedHours: 20, Version: 1},
		}},
		{User: testUser("u-jake", "Jake Morgan", "Developer"), Allocations: []models.Allocation{
			{UserID: "u-jake", ProjectID: "p-apollo", WeekStart: "2026-01-05", PlannedHours: 16, Version: 1},
		}},
		{User: testUser("u-sam", "Sam Okafor", "Designer"), Allocations: nil},
		{User: testUser("u-jlee", "Jordan Lee", "Developer"), Allocations: nil},
		{User: testUser("u-jkim", "Jordan Kim", "QA Engineer"), Allocations: nil},
	}
	return snap
}

// fakeStore is the in-memory Store used by executor and engine tests. It
// honors versions the way the real store does and can serve injected
// version conflicts to exercise the retry path.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]models.User
	projects    map[string]models.Project
	allocations map[models.AllocationKey]models.Allocation
	timesheets  []models.Timesheet

	conflicts   int // pending UpdateAllocationHours conflicts to serve
	upsertFails int // pending UpsertAllocation failures to serve
	moveFails   int // pending MoveAllocationHours failures to serve
}

func newFakeStore(snap *ContextSnapshot) *fakeStore {
	s := &fakeStore{
		users:       map[string]models.User{},
		projects:    map[string]models.Project{},
		allocations: map[models.AllocationKey]models.Allocation{},
	}
	for _, u := range snap.Users {
		s.users[u.ID] = u.User
		for _, a := range u.Allocations {
			s.allocations[a.Key()] = a
		}
	}
	for _, p := range snap.Projects {
		s.projects[p.ID] = p
	}
	s.timesheets = snap.Timesheets
	return s
}

func (s *fakeStore) ListUsers(ctx context.Context, orgID string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeStore) ListProjects(ctx context.Context, orgID string) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Project
	for _, p := range s.projects {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) ListAllocations(ctx context.Context, orgID string, weekStarts []string) ([]models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	weeks := map[string]bool{}
	for _, w := range weekStarts {
		weeks[w] = true
	}
	var out []models.Allocation
	for _, a := range s.allocations {
		if weeks[a.WeekStart] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListTimesheets(ctx context.Context, orgID string, weekStarts []string) ([]models.Timesheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timesheets, nil
}

func (s *fakeStore) GetUser(ctx context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, db.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) GetProject(ctx context.Context, id string) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, db.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) GetAllocation(ctx context.Context, key models.AllocationKey) (models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocations[key]
	if !ok {
		return models.Allocation{}, db.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) UpsertAllocation(ctx context.Context, a models.Allocation) (models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertFails > 0 {
		s.upsertFails--
		return models.Allocation{}, context.DeadlineExceeded
	}
	key := a.Key()
	if existing, ok := s.allocations[key]; ok {
		existing.PlannedHours = a.PlannedHours
		existing.Notes = a.Notes
		existing.IsBillable = a.IsBillable
		existing.Version++
		s.allocations[key] = existing
		return existing, nil
	}
	a.Version = 1
	s.allocations[key] = a
	return a, nil
}

func (s *fakeStore) UpdateAllocationHours(ctx context.Context, key models.AllocationKey, hours float64, expectedVersion int) (models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocations[key]
	if !ok {
		return models.Allocation{}, db.ErrNotFound
	}
	if s.conflicts > 0 {
		s.conflicts--
		a.Version++
		s.allocations[key] = a
		return models.Allocation{}, db.ErrVersionConflict
	}
	if a.Version != expectedVersion {
		return models.Allocation{}, db.ErrVersionConflict
	}
	a.PlannedHours = hours
	a.Version++
	s.allocations[key] = a
	return a, nil
}

// MoveAllocationHours mirrors the real store's all-or-nothing move: an
// injected failure leaves both allocations untouched.
func (s *fakeStore) MoveAllocationHours(ctx context.Context, from, to models.AllocationKey, hours float64, expectedVersion int) (models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moveFails > 0 {
		s.moveFails--
		return models.Allocation{}, context.DeadlineExceeded
	}
	source, ok := s.allocations[from]
	if !ok {
		return models.Allocation{}, db.ErrNotFound
	}
	if source.Version != expectedVersion {
		return models.Allocation{}, db.ErrVersionConflict
	}

	if remaining := source.PlannedHours - hours; remaining > 0 {
		source.PlannedHours = remaining
		source.Version++
		s.allocations[from] = source
	} else {
		delete(s.allocations, from)
	}

	target, ok := s.allocations[to]
	if ok {
		target.PlannedHours += hours
		target.Version++
	} else {
		target = models.Allocation{
			UserID:       to.UserID,
			ProjectID:    to.ProjectID,
			WeekStart:    to.WeekStart,
			PlannedHours: hours,
			IsBillable:   true,
			Version:      1,
		}
	}
	s.allocations[to] = target
	return target, nil
}

func (s *fakeStore) DeleteAllocation(ctx context.Context, key models.AllocationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allocations[key]; !ok {
		return db.ErrNotFound
	}
	delete(s.allocations, key)
	return nil
}

// scriptedLLM replays a fixed completion, recording the request.
type scriptedLLM struct {
	completion llm.Completion
	err        error
	lastReq    llm.Request
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	s.lastReq = req
	return s.completion, s.err
}

func toolCall(t *testing.T, name string, args map[string]any) llm.ToolCall {
	t.Helper()
	b, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return llm.ToolCall{Name: name, Arguments: b}
}

func testResolver(client llm.Client) Resolver {
	return Resolver{LLM: client, Logger: zerolog.Nop(), DefaultCapacity: 40}
}
