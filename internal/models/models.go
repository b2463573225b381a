package models

import "time"

// PermissionRole is the access-control role. It is a closed enum and is
// never used to match a user's profession; JobFunction carries that.
type PermissionRole string

const (
	RoleEmployee PermissionRole = "employee"
	RoleManager  PermissionRole = "manager"
	RoleAdmin    PermissionRole = "admin"
)

type User struct {
	ID             string         `json:"id"`
	OrgID          string         `json:"org_id"`
	Name           string         `json:"name"`
	JobFunction    string         `json:"job_function"`
	PermissionRole PermissionRole `json:"permission_role"`
	WeeklyCapacity *float64       `json:"weekly_capacity,omitempty"`
	Active         bool           `json:"active"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Capacity returns the user's weekly capacity, falling back to the
// organization default when no per-user value is configured.
func (u User) Capacity(defaultHours float64) float64 {
	if u.WeeklyCapacity != nil && *u.WeeklyCapacity > 0 {
		return *u.WeeklyCapacity
	}
	return defaultHours
}

type Project struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Phase struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// Allocation is planned hours for one user on one project in one week.
// (UserID, ProjectID, WeekStart) is the natural key. WeekStart is an ISO
// date string for the Monday of the week.
type Allocation struct {
	UserID       string    `json:"user_id"`
	ProjectID    string    `json:"project_id"`
	WeekStart    string    `json:"week_start"`
	PlannedHours float64   `json:"planned_hours"`
	PhaseID      *string   `json:"phase_id,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	IsBillable   bool      `json:"is_billable"`
	Version      int       `json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a Allocation) Key() AllocationKey {
	return AllocationKey{UserID: a.UserID, ProjectID: a.ProjectID, WeekStart: a.WeekStart}
}

// AllocationKey identifies a single allocation row. Actions whose key sets
// are disjoint may execute concurrently.
type AllocationKey struct {
	UserID    string
	ProjectID string
	WeekStart string
}

// Timesheet is the submitted actual hours for a week, read-only input to
// the approval-health scan.
type Timesheet struct {
	UserID      string    `json:"user_id"`
	ProjectID   string    `json:"project_id"`
	WeekStart   string    `json:"week_start"`
	ActualHours float64   `json:"actual_hours"`
	SubmittedAt time.Time `json:"submitted_at"`
}
