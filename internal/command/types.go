package command

import (
	"strings"
	"time"

	"github.com/crewplan/backend/internal/models"
)

// ContextSnapshot is the bounded, point-in-time view of the organization a
// single command runs against. It is built fresh per command, never cached,
// and never mutated after construction.
type ContextSnapshot struct {
	AsOf       time.Time           `json:"as_of"`
	OrgID      string              `json:"organization_id"`
	Weeks      []string            `json:"weeks"`
	Users      []UserContext       `json:"users"`
	Projects   []models.Project    `json:"projects"`
	Timesheets []models.Timesheet  `json:"-"`
}

type UserContext struct {
	models.User
	Allocations []models.Allocation `json:"allocations"`
}

// UsersByName returns the users whose display name matches the given text,
// comparing case-insensitively against the full name and the first name.
func (s *ContextSnapshot) UsersByName(name string) []UserContext {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	var out []UserContext
	for _, u := range s.Users {
		full := strings.ToLower(u.Name)
		first, _, _ := strings.Cut(full, " ")
		if full == needle || first == needle {
			out = append(out, u)
		}
	}
	return out
}

func (s *ContextSnapshot) ProjectByName(name string) (models.Project, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, p := range s.Projects {
		if strings.ToLower(p.Name) == needle {
			return p, true
		}
	}
	// fall back to substring match so "Project A" finds "Project A (mobile)"
	for _, p := range s.Projects {
		if needle != "" && strings.Contains(strings.ToLower(p.Name), needle) {
			return p, true
		}
	}
	return models.Project{}, false
}

func (s *ContextSnapshot) ProjectName(id string) string {
	for _, p := range s.Projects {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

func (s *ContextSnapshot) UserName(id string) string {
	for _, u := range s.Users {
		if u.ID == id {
			return u.Name
		}
	}
	return ""
}

// op is the resolved mutation behind a write ActionCall. Entity references
// are resolved once at intent time and re-validated at execution time.
type op struct {
	kind     string // create, update, delete, swap
	user     models.User
	toUser   models.User // swap only
	project  models.Project
	week     string
	hours    float64
	notes    string
	billable bool
}

func (o op) keys() []models.AllocationKey {
	keys := []models.AllocationKey{{UserID: o.user.ID, ProjectID: o.project.ID, WeekStart: o.week}}
	if o.kind == opSwap {
		keys = append(keys, models.AllocationKey{UserID: o.toUser.ID, ProjectID: o.project.ID, WeekStart: o.week})
	}
	return keys
}

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
	opSwap   = "swap"
)

// ActionCall is one previewable mutation. Params carries only display
// names; internal identifiers stay in the resolved op and are never
// serialized toward a human-facing surface.
type ActionCall struct {
	Tool        string         `json:"tool"`
	Params      map[string]any `json:"params"`
	Description string         `json:"description"`

	op op
}

// ActionResult reports one action's outcome, keyed back to its ActionCall
// by index. Results are independent; no transaction spans two of them.
type ActionResult struct {
	Index   int            `json:"index"`
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// StateSnapshot is the diff unit: per affected user, (project name, hours)
// pairs plus the weekly total, captured with one shared projection so
// before/after render symmetrically.
type StateSnapshot struct {
	Users []UserState `json:"users"`
}

type UserState struct {
	Name       string         `json:"name"`
	Week       string         `json:"week_start"`
	Projects   []ProjectHours `json:"projects"`
	TotalHours float64        `json:"total_hours"`
}

type ProjectHours struct {
	ProjectName string  `json:"project_name"`
	Hours       float64 `json:"hours"`
}

type InsightType string

const (
	InsightOverAllocation  InsightType = "over_allocation"
	InsightUnderAllocation InsightType = "under_allocation"
	InsightRubberStamp     InsightType = "rubber_stamp_approval"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ResourceInsight flags one allocation-health condition for one user and
// one week. Multi-week conditions are never aggregated into one insight.
type ResourceInsight struct {
	Type             InsightType `json:"type"`
	Severity         Severity    `json:"severity"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	AffectedEntities []string    `json:"affected_entities"`
	Data             InsightData `json:"data"`
}

type InsightData struct {
	WeekStart  string  `json:"week_start"`
	TotalHours float64 `json:"total_hours"`
	Capacity   float64 `json:"capacity"`
	Overage    float64 `json:"overage,omitempty"`
}

type EnvelopeKind string

const (
	KindDirective     EnvelopeKind = "directive"
	KindSuggestion    EnvelopeKind = "suggestion"
	KindClarification EnvelopeKind = "clarification"
	KindInformational EnvelopeKind = "informational"
)

// Candidate is one confirmable set of actions with its advisory diff.
type Candidate struct {
	Label   string         `json:"label"`
	Actions []ActionCall   `json:"actions"`
	Before  *StateSnapshot `json:"before,omitempty"`
	After   *StateSnapshot `json:"after,omitempty"`
}

// QueryResult is one read tool's output inside an Informational envelope.
type QueryResult struct {
	Tool    string         `json:"tool"`
	Summary string         `json:"summary"`
	Data    map[string]any `json:"data,omitempty"`
}

// ResponseEnvelope is the tagged union over the four response kinds. A
// Directive carries exactly one candidate, a Suggestion two or more, a
// Clarification a question and no actions, an Informational read results.
type ResponseEnvelope struct {
	ID           string            `json:"id"`
	Kind         EnvelopeKind      `json:"kind"`
	Answer       string            `json:"answer,omitempty"`
	Question     string            `json:"question,omitempty"`
	QueryResults []QueryResult     `json:"query_results,omitempty"`
	Candidates   []Candidate       `json:"candidates,omitempty"`
	Insights     []ResourceInsight `json:"insights,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
