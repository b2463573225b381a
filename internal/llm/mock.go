package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Mock is a deterministic stand-in used when no completion endpoint is
// configured. It keyword-matches a handful of command shapes so the whole
// pipeline stays exercisable in dev without network access.
type Mock struct{}

var (
	reMoveHours = regexp.MustCompile(`(?i)move\s+(\d+(?:\.\d+)?)\s*(?:hours?|h)\s+from\s+(\w+)\s+to\s+(\w+)(?:\s+on\s+([\w -]+?))?(?:\s+(?:next week|this week|week of [\d-]+))?\s*$`)
	reBookHours = regexp.MustCompile(`(?i)(?:book|allocate|add|put)\s+(\w+)\s+(?:for\s+)?(\d+(?:\.\d+)?)\s*(?:hours?|h)\s+on\s+([\w -]+?)\s*$`)
	reWorking   = regexp.MustCompile(`(?i)how much is\s+(\w+)\s+working`)
	reAvail     = regexp.MustCompile(`(?i)(?:availability|who has|who is free|free capacity)`)
	reRole      = regexp.MustCompile(`(?i)\b(developer|designer|engineer|manager|qa|analyst)s?\b`)
)

func (Mock) Complete(ctx context.Context, req Request) (Completion, error) {
	text := strings.TrimSpace(req.User)

	if m := reMoveHours.FindStringSubmatch(text); m != nil {
		hours, _ := strconv.ParseFloat(m[1], 64)
		args := map[string]any{
			"from_user_name": m[2],
			"to_user_name":   m[3],
			"hours":          hours,
		}
		if strings.TrimSpace(m[4]) != "" {
			args["project_name"] = strings.TrimSpace(m[4])
		}
		return toolCompletion("swap_hours", args), nil
	}

	if m := reBookHours.FindStringSubmatch(text); m != nil {
		hours, _ := strconv.ParseFloat(m[2], 64)
		return toolCompletion("create_allocation", map[string]any{
			"user_name":    m[1],
			"project_name": strings.TrimSpace(m[3]),
			"hours":        hours,
		}), nil
	}

	if m := reWorking.FindStringSubmatch(text); m != nil {
		return toolCompletion("get_user_allocations", map[string]any{
			"user_name": m[1],
		}), nil
	}

	if reAvail.MatchString(text) {
		args := map[string]any{}
		if m := reRole.FindStringSubmatch(text); m != nil {
			args["role_filter"] = m[1]
		}
		return toolCompletion("get_user_availability", args), nil
	}

	return Completion{Text: "I can look up allocations and availability, or move, book and remove hours. Try asking who has availability this week."}, nil
}

func toolCompletion(name string, args map[string]any) Completion {
	b, _ := json.Marshal(args)
	return Completion{ToolCalls: []ToolCall{{Name: name, Arguments: b}}}
}
