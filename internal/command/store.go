package command

import (
	"context"

	"github.com/crewplan/backend/internal/models"
)

// Store is the slice of the persistence layer the engine needs. *db.Store
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	ListUsers(ctx context.Context, orgID string) ([]models.User, error)
	ListProjects(ctx context.Context, orgID string) ([]models.Project, error)
	ListAllocations(ctx context.Context, orgID string, weekStarts []string) ([]models.Allocation, error)
	ListTimesheets(ctx context.Context, orgID string, weekStarts []string) ([]models.Timesheet, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	GetProject(ctx context.Context, id string) (models.Project, error)
	GetAllocation(ctx context.Context, key models.AllocationKey) (models.Allocation, error)
	UpsertAllocation(ctx context.Context, a models.Allocation) (models.Allocation, error)
	UpdateAllocationHours(ctx context.Context, key models.AllocationKey, hours float64, expectedVersion int) (models.Allocation, error)
	MoveAllocationHours(ctx context.Context, from, to models.AllocationKey, hours float64, expectedVersion int) (models.Allocation, error)
	DeleteAllocation(ctx context.Context, key models.AllocationKey) error
}
