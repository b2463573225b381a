package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crewplan/backend/internal/llm"
)

// Engine runs the full command pipeline: snapshot, intent resolution,
// diff planning, insight analysis, rendering. Mutations only happen when
// a previously issued envelope is confirmed.
type Engine struct {
	Store    Store
	LLM      llm.Client
	Logger   zerolog.Logger
	OrgID    string
	Insights InsightConfig

	LookaheadWeeks  int
	DefaultCapacity float64
	PendingTTL      time.Duration

	Now func() time.Time

	mu      sync.Mutex
	pending map[string]pendingEnvelope
}

type pendingEnvelope struct {
	envelope  *ResponseEnvelope
	expiresAt time.Time
}

// CommandResponse is what the transport layer returns for one utterance.
type CommandResponse struct {
	Envelope *ResponseEnvelope `json:"envelope"`
	Message  string            `json:"message"`
	Tone     Tone              `json:"tone"`
}

// ExecutionResponse is returned when a pending envelope is confirmed.
type ExecutionResponse struct {
	EnvelopeID string         `json:"envelope_id"`
	Results    []ActionResult `json:"results"`
	Message    string         `json:"message"`
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Handle processes one free-text command and returns a rendered envelope.
// Directive and Suggestion envelopes are parked as pending until the user
// confirms, cancels, or the TTL expires. The optional hints map carries
// caller metadata; an "as_of" date anchors week resolution to that day
// instead of the current time.
func (e *Engine) Handle(ctx context.Context, text string, hints map[string]string) (*CommandResponse, error) {
	now := e.now()
	if asOf := hints["as_of"]; asOf != "" {
		t, err := time.Parse(weekLayout, asOf)
		if err != nil {
			return nil, ValidationError{Reason: fmt.Sprintf("as_of must be a YYYY-MM-DD date, got %q", asOf)}
		}
		now = t
	}
	builder := SnapshotBuilder{
		Store:           e.Store,
		Logger:          e.Logger,
		LookaheadWeeks:  e.LookaheadWeeks,
		DefaultCapacity: e.DefaultCapacity,
	}
	snap, err := builder.Build(ctx, e.OrgID, now)
	if err != nil {
		return nil, err
	}

	resolver := Resolver{LLM: e.LLM, Logger: e.Logger, DefaultCapacity: e.DefaultCapacity}
	env, err := resolver.Resolve(ctx, text, builder.Summary(snap), snap)
	if err != nil {
		return nil, err
	}
	env.ID = uuid.NewString()
	env.CreatedAt = now.UTC()

	for i := range env.Candidates {
		before, after := BuildDiff(snap, env.Candidates[i].Actions)
		env.Candidates[i].Before = before
		env.Candidates[i].After = after
	}
	env.Insights = AnalyzeSnapshot(snap, e.Insights)

	if env.Kind == KindDirective || env.Kind == KindSuggestion {
		e.park(env)
	}

	formatter := Formatter{Logger: e.Logger}
	resp := &CommandResponse{
		Envelope: env,
		Message:  formatter.RenderEnvelope(env),
		Tone:     formatter.ResponseTone(env),
	}
	e.Logger.Info().
		Str("envelope_id", env.ID).
		Str("kind", string(env.Kind)).
		Int("candidates", len(env.Candidates)).
		Msg("command handled")
	return resp, nil
}

// Confirm executes a pending envelope. For a Suggestion the label selects
// the candidate; a Directive ignores the label. The envelope is consumed
// whatever the per-action outcomes are.
func (e *Engine) Confirm(ctx context.Context, envelopeID, label string) (*ExecutionResponse, error) {
	env, ok := e.take(envelopeID)
	if !ok {
		return nil, ErrEnvelopeNotFound
	}

	candidate := env.Candidates[0]
	if env.Kind == KindSuggestion {
		found := false
		for _, c := range env.Candidates {
			if c.Label == label {
				candidate = c
				found = true
				break
			}
		}
		if !found {
			// put it back so the user can pick again
			e.park(env)
			return nil, fmt.Errorf("unknown option %q", label)
		}
	}

	executor := Executor{Store: e.Store, Logger: e.Logger}
	results := executor.Execute(ctx, candidate.Actions)

	formatter := Formatter{Logger: e.Logger}
	return &ExecutionResponse{
		EnvelopeID: env.ID,
		Results:    results,
		Message:    formatter.RenderResults(results),
	}, nil
}

// Cancel discards a pending envelope without executing anything.
func (e *Engine) Cancel(envelopeID string) error {
	if _, ok := e.take(envelopeID); !ok {
		return ErrEnvelopeNotFound
	}
	return nil
}

// SnapshotInsights runs insight analysis on a fresh snapshot, for the
// dashboard endpoint.
func (e *Engine) SnapshotInsights(ctx context.Context) ([]ResourceInsight, error) {
	builder := SnapshotBuilder{
		Store:           e.Store,
		Logger:          e.Logger,
		LookaheadWeeks:  e.LookaheadWeeks,
		DefaultCapacity: e.DefaultCapacity,
	}
	snap, err := builder.Build(ctx, e.OrgID, e.now())
	if err != nil {
		return nil, err
	}
	return AnalyzeSnapshot(snap, e.Insights), nil
}

func (e *Engine) park(env *ResponseEnvelope) {
	ttl := e.PendingTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		e.pending = map[string]pendingEnvelope{}
	}
	now := e.now()
	for id, p := range e.pending {
		if now.After(p.expiresAt) {
			delete(e.pending, id)
		}
	}
	e.pending[env.ID] = pendingEnvelope{envelope: env, expiresAt: now.Add(ttl)}
}

func (e *Engine) take(id string) (*ResponseEnvelope, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[id]
	if !ok || e.now().After(p.expiresAt) {
		delete(e.pending, id)
		return nil, false
	}
	delete(e.pending, id)
	return p.envelope, true
}
