package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/crewplan/backend/internal/llm"
)

func TestResolveSingleWriteIsDirective(t *testing.T) {
	client := &scriptedLLM{completion: llm.Completion{ToolCalls: []llm.ToolCall{
		toolCall(t, ToolSwapHours, map[string]any{
			"from_user_name": "Jake",
			"to_user_name":   "Alex",
			"hours":          8.0,
			"week_start":     "2026-01-05",
		}),
	}}}
	snap := testSnapshot()
	r := testResolver(client)

	env, err := r.Resolve(context.Background(), "move 8 hours from Jake to Alex", "", snap)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if env.Kind != KindDirective {
		t.Fatalf("expected directive, got %s", env.Kind)
	}
	if len(env.Candidates) != 1 || len(env.Candidates[0].Actions) != 1 {
		t.Fatalf("directive must carry exactly one candidate with its actions, got %+v", env.Candidates)
	}

	a := env.Candidates[0].Actions[0]
	// the project is inferred: Jake is only on Apollo that week
	if a.Params["project"] != "Apollo" {
		t.Fatalf("expected inferred project Apollo, got %v", a.Params["project"])
	}
	if a.Params["from_user"] != "Jake Morgan" || a.Params["to_user"] != "Alex Rivera" {
		t.Fatalf("params must carry display names, got %+v", a.Params)
	}
	if !strings.Contains(a.Description, "Jake Morgan") || !strings.Contains(a.Description, "Alex Rivera") {
		t.Fatalf("description should name both users: %s", a.Description)
	}
}

func TestResolveMultipleOptionsIsSuggestion(t *testing.T) {
	client := &scriptedLLM{completion: llm.Completion{ToolCalls: []llm.ToolCall{
		toolCall(t, ToolCreateAllocation, map[string]any{
			"user_name": "Sam", "project_name": "Borealis", "hours": 12.0, "option": "A",
		}),
		toolCall(t, ToolCreateAllocation, map[string]any{
			"user_name": "Jake", "project_name": "Borealis", "hours": 12.0, "week_start": "2026-01-12", "option": "B",
		}),
	}}}
	snap := testSnapshot()
	r := testResolver(client)

	env, err := r.Resolve(context.Background(), "find someone for Borealis", "", snap)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if env.Kind != KindSuggestion {
		t.Fatalf("expected suggestion, got %s", env.Kind)
	}
	if len(env.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(env.Candidates))
	}
	if env.Candidates[0].Label != "Option A" || env.Candidates[1].Label != "Option B" {
		t.Fatalf("unexpected labels %q, %q", env.Candidates[0].Label, env.Candidates[1].Label)
	}
}

func TestResolveAmbiguousNameAsksForClarification(t *testing.T) {
	client := &scriptedLLM{completion: llm.Completion{ToolCalls: []llm.ToolCall{
		toolCall(t, ToolCreateAllocation, map[string]any{
			"user_name": "Jordan", "project_name": "Apollo", "hours": 8.0,
		}),
	}}}
	snap := testSnapshot()
	r := testResolver(client)

	env, err := r.Resolve(context.Background(), "book Jordan on Apollo", "", snap)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if env.Kind != KindClarification {
		t.Fatalf("expected clarification for ambiguous name, got %s", env.Kind)
	}
	if !strings.Contains(env.Question, "Jordan Lee") || !strings.Contains(env.Question, "Jordan Kim") {
		t.Fatalf("question should list both Jordans: %s", env.Question)
	}
	if len(env.Candidates) != 0 {
		t.Fatalf("clarification must carry no actions")
	}
}

func TestResolveUnknownUserAsksForClarification(t *testing.T) {
	client := &scriptedLLM{completion: llm.Completion{ToolCalls: []llm.ToolCall{
		toolCall(t, ToolCreateAllocation, map[string]any{
			"user_name": "Taylor", "project_name": "Apollo", "hours": 8.0,
		}),
	}}}
	r := testResolver(client)

	env, err := r.Resolve(context.Background(), "book Taylor on Apollo", "", testSnapshot())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if env.Kind != KindClarification {
		t.Fatalf("expected clarification for unknown name, got %s", env.Kind)
	}
}

func TestResolveReadIsInformational(t *testing.T) {
	client := &scriptedLLM{completion: llm.Completion{
		Text: "Here are Alex's hours.",
		ToolCalls: []llm.ToolCall{
			toolCall(t, ToolGetUserAllocations, map[string]any{"user_name": "Alex"}),
		},
	}}
	r := testResolver(client)

	env, err := r.Resolve(context.Background(), "how much is Alex working", "", testSnapshot())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if env.Kind != KindInformational {
		t.Fatalf("expected informational, got %s", env.Kind)
	}
	if len(env.QueryResults) != 1 {
		t.Fatalf("expected one query result, got %d", len(env.QueryResults))
	}
	qr := env.QueryResults[0]
	// hours are summed within the week across both projects
	if qr.Data["total_hours"] != 44.0 {
		t.Fatalf("expected 44 total hours, got %v", qr.Data["total_hours"])
	}
	if !strings.Contains(qr.Summary, "44h") {
		t.Fatalf("summary should state the total: %s", qr.Summary)
	}
}

func TestResolveUnknownToolIsProtocolViolation(t *testing.T) {
	client := &scriptedLLM{completion: llm.Completion{ToolCalls: []llm.ToolCall{
		{Name: "drop_all_tables", Arguments: []byte(`{}`)},
	}}}
	r := testResolver(client)

	_, err := r.Resolve(context.Background(), "do something", "", testSnapshot())
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
}

func TestResolveEmptyReplyIsProtocolViolation(t *testing.T) {
	client := &scriptedLLM{completion: llm.Completion{}}
	r := testResolver(client)

	_, err := r.Resolve(context.Background(), "hello", "", testSnapshot())
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected protocol violation for empty reply, got %v", err)
	}
}

func TestResolvePlainQuestionBecomesClarification(t *testing.T) {
	client := &scriptedLLM{completion: llm.Completion{Text: "Which week did you mean?"}}
	r := testResolver(client)

	env, err := r.Resolve(context.Background(), "shift things around", "", testSnapshot())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if env.Kind != KindClarification || env.Question == "" {
		t.Fatalf("expected clarification, got %+v", env)
	}
}

func TestResolveLogsClassification(t *testing.T) {
	var buf bytes.Buffer
	client := &scriptedLLM{completion: llm.Completion{Text: "All quiet this week."}}
	r := Resolver{LLM: client, Logger: zerolog.New(&buf), DefaultCapacity: 40}

	if _, err := r.Resolve(context.Background(), "how are things", "summary", testSnapshot()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	logged := buf.String()
	if !strings.Contains(logged, "command classified") || !strings.Contains(logged, string(KindInformational)) {
		t.Fatalf("classification outcome not logged: %s", logged)
	}
}

func TestResolveDeclaresAllTools(t *testing.T) {
	client := &scriptedLLM{completion: llm.Completion{Text: "ok"}}
	r := testResolver(client)

	if _, err := r.Resolve(context.Background(), "hi", "", testSnapshot()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(client.lastReq.Tools) != 8 {
		t.Fatalf("expected 8 declared tools, got %d", len(client.lastReq.Tools))
	}
}
