package command

import (
	"encoding/json"
	"fmt"

	"github.com/crewplan/backend/internal/llm"
)

// Tool names form a closed registry. Anything outside this set coming back
// from the completion service is a protocol violation, not a dispatch.
const (
	ToolGetUserAllocations  = "get_user_allocations"
	ToolGetUserAvailability = "get_user_availability"
	ToolGetProjectStatus    = "get_project_status"
	ToolSuggestCoverage     = "suggest_coverage"

	ToolCreateAllocation = "create_allocation"
	ToolUpdateAllocation = "update_allocation"
	ToolDeleteAllocation = "delete_allocation"
	ToolSwapHours        = "swap_hours"
)

type toolKind int

const (
	kindRead toolKind = iota
	kindWrite
)

type toolSpec struct {
	Name        string
	Description string
	Kind        toolKind
	Parameters  map[string]any
}

// Argument structs decoded from the service's raw JSON. All entity
// references are display names; the resolver maps them onto snapshot
// entities and treats ambiguity as a clarification, not an error.

type GetUserAllocationsArgs struct {
	UserName  string `json:"user_name"`
	WeekStart string `json:"week_start,omitempty"`
}

type GetUserAvailabilityArgs struct {
	RoleFilter string `json:"role_filter,omitempty"`
	WeekStart  string `json:"week_start,omitempty"`
}

type GetProjectStatusArgs struct {
	ProjectName string `json:"project_name"`
}

type SuggestCoverageArgs struct {
	ProjectName string  `json:"project_name"`
	Hours       float64 `json:"hours"`
	WeekStart   string  `json:"week_start,omitempty"`
	RoleFilter  string  `json:"role_filter,omitempty"`
}

type CreateAllocationArgs struct {
	UserName    string  `json:"user_name"`
	ProjectName string  `json:"project_name"`
	Hours       float64 `json:"hours"`
	WeekStart   string  `json:"week_start,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	Billable    *bool   `json:"billable,omitempty"`
	Option      string  `json:"option,omitempty"`
}

type UpdateAllocationArgs struct {
	UserName    string  `json:"user_name"`
	ProjectName string  `json:"project_name"`
	Hours       float64 `json:"hours"`
	WeekStart   string  `json:"week_start,omitempty"`
	Option      string  `json:"option,omitempty"`
}

type DeleteAllocationArgs struct {
	UserName    string `json:"user_name"`
	ProjectName string `json:"project_name"`
	WeekStart   string `json:"week_start,omitempty"`
	Option      string `json:"option,omitempty"`
}

type SwapHoursArgs struct {
	FromUserName string  `json:"from_user_name"`
	ToUserName   string  `json:"to_user_name"`
	ProjectName  string  `json:"project_name,omitempty"`
	Hours        float64 `json:"hours"`
	WeekStart    string  `json:"week_start,omitempty"`
	Option       string  `json:"option,omitempty"`
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func schema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var optionProp = prop("string", "Label grouping this call into one of several alternative plans, e.g. \"A\" or \"B\". Use only when proposing multiple options.")

var toolRegistry = map[string]toolSpec{
	ToolGetUserAllocations: {
		Name:        ToolGetUserAllocations,
		Description: "List one user's planned hours per project and week.",
		Kind:        kindRead,
		Parameters: schema([]string{"user_name"}, map[string]any{
			"user_name":  prop("string", "Display name of the user."),
			"week_start": prop("string", "ISO date of the week to inspect; omit for the whole visible range."),
		}),
	},
	ToolGetUserAvailability: {
		Name:        ToolGetUserAvailability,
		Description: "List users with free capacity, optionally filtered by profession.",
		Kind:        kindRead,
		Parameters: schema(nil, map[string]any{
			"role_filter": prop("string", "Free-text profession filter, e.g. Developer. Matches job function, not permission level."),
			"week_start":  prop("string", "ISO date of the week to inspect; defaults to the current week."),
		}),
	},
	ToolGetProjectStatus: {
		Name:        ToolGetProjectStatus,
		Description: "Summarize who is booked on a project and for how long.",
		Kind:        kindRead,
		Parameters: schema([]string{"project_name"}, map[string]any{
			"project_name": prop("string", "Display name of the project."),
		}),
	},
	ToolSuggestCoverage: {
		Name:        ToolSuggestCoverage,
		Description: "Rank users who could cover additional hours on a project.",
		Kind:        kindRead,
		Parameters: schema([]string{"project_name", "hours"}, map[string]any{
			"project_name": prop("string", "Display name of the project needing coverage."),
			"hours":        prop("number", "Hours of coverage needed."),
			"week_start":   prop("string", "ISO date of the target week; defaults to the current week."),
			"role_filter":  prop("string", "Free-text profession filter for candidates."),
		}),
	},
	ToolCreateAllocation: {
		Name:        ToolCreateAllocation,
		Description: "Plan hours for a user on a project for one week.",
		Kind:        kindWrite,
		Parameters: schema([]string{"user_name", "project_name", "hours"}, map[string]any{
			"user_name":    prop("string", "Display name of the user."),
			"project_name": prop("string", "Display name of the project."),
			"hours":        prop("number", "Planned hours, non-negative."),
			"week_start":   prop("string", "ISO date of the week; defaults to the current week."),
			"notes":        prop("string", "Optional note on the allocation."),
			"billable":     prop("boolean", "Whether the hours are billable; defaults to true."),
			"option":       optionProp,
		}),
	},
	ToolUpdateAllocation: {
		Name:        ToolUpdateAllocation,
		Description: "Change the planned hours of an existing allocation.",
		Kind:        kindWrite,
		Parameters: schema([]string{"user_name", "project_name", "hours"}, map[string]any{
			"user_name":    prop("string", "Display name of the user."),
			"project_name": prop("string", "Display name of the project."),
			"hours":        prop("number", "New planned hours."),
			"week_start":   prop("string", "ISO date of the week; defaults to the current week."),
			"option":       optionProp,
		}),
	},
	ToolDeleteAllocation: {
		Name:        ToolDeleteAllocation,
		Description: "Remove a user's allocation on a project for one week.",
		Kind:        kindWrite,
		Parameters: schema([]string{"user_name", "project_name"}, map[string]any{
			"user_name":    prop("string", "Display name of the user."),
			"project_name": prop("string", "Display name of the project."),
			"week_start":   prop("string", "ISO date of the week; defaults to the current week."),
			"option":       optionProp,
		}),
	},
	ToolSwapHours: {
		Name:        ToolSwapHours,
		Description: "Move planned hours from one user to another on the same project and week.",
		Kind:        kindWrite,
		Parameters: schema([]string{"from_user_name", "to_user_name", "hours"}, map[string]any{
			"from_user_name": prop("string", "User giving up hours."),
			"to_user_name":   prop("string", "User taking on hours."),
			"project_name":   prop("string", "Project to move hours on; inferred from the source user's single project when omitted."),
			"hours":          prop("number", "Hours to move."),
			"week_start":     prop("string", "ISO date of the week; defaults to the current week."),
			"option":         optionProp,
		}),
	},
}

// ToolDeclarations lists the registry in the shape the completion service
// expects, in a stable order.
func ToolDeclarations() []llm.Tool {
	names := []string{
		ToolGetUserAllocations, ToolGetUserAvailability, ToolGetProjectStatus, ToolSuggestCoverage,
		ToolCreateAllocation, ToolUpdateAllocation, ToolDeleteAllocation, ToolSwapHours,
	}
	out := make([]llm.Tool, 0, len(names))
	for _, n := range names {
		spec := toolRegistry[n]
		out = append(out, llm.Tool{Name: spec.Name, Description: spec.Description, Parameters: spec.Parameters})
	}
	return out
}

// decodeToolCall maps a raw tool call onto its typed arguments. Unknown
// names and undecodable payloads are protocol violations.
func decodeToolCall(call llm.ToolCall) (toolSpec, any, error) {
	spec, ok := toolRegistry[call.Name]
	if !ok {
		return toolSpec{}, nil, fmt.Errorf("%w: unknown tool %q", ErrProtocolViolation, call.Name)
	}

	var args any
	switch call.Name {
	case ToolGetUserAllocations:
		args = &GetUserAllocationsArgs{}
	case ToolGetUserAvailability:
		args = &GetUserAvailabilityArgs{}
	case ToolGetProjectStatus:
		args = &GetProjectStatusArgs{}
	case ToolSuggestCoverage:
		args = &SuggestCoverageArgs{}
	case ToolCreateAllocation:
		args = &CreateAllocationArgs{}
	case ToolUpdateAllocation:
		args = &UpdateAllocationArgs{}
	case ToolDeleteAllocation:
		args = &DeleteAllocationArgs{}
	case ToolSwapHours:
		args = &SwapHoursArgs{}
	}
	raw := call.Arguments
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, args); err != nil {
		return toolSpec{}, nil, fmt.Errorf("%w: bad arguments for %s: %v", ErrProtocolViolation, call.Name, err)
	}
	return spec, args, nil
}
