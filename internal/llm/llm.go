package llm

import (
	"context"
	"encoding/json"
)

// Tool declares one callable function to the completion service. Parameters
// is a JSON-schema object; the service may only invoke tools declared here.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is one function invocation returned by the completion service.
// Arguments is the raw JSON object the service produced; callers decode it
// into the tool's typed argument struct.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Completion is the service's reply: assistant text, tool calls, or both.
type Completion struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

type Request struct {
	System string
	User   string
	Tools  []Tool
}

type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}
