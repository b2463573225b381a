package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crewplan/backend/internal/llm"
	"github.com/crewplan/backend/internal/models"
)

const systemPrompt = `You are a resource-planning assistant for a team's weekly allocation ledger.
Answer questions about who is booked where, and perform changes by calling the declared tools.
Refer to people and projects by display name exactly as they appear in the context.
When several viable plans exist, call the write tools once per plan and tag each call with an "option" label.
If a request is ambiguous, ask a short clarifying question instead of guessing.`

// Resolver sends one completion request per command turn and classifies
// the reply into a ResponseEnvelope.
type Resolver struct {
	LLM             llm.Client
	Logger          zerolog.Logger
	DefaultCapacity float64
}

// clarify is an internal signal that name/week resolution needs a human
// follow-up; it becomes a Clarification envelope, never an error.
type clarify struct {
	question string
}

func (c clarify) Error() string { return c.question }

func (r Resolver) Resolve(ctx context.Context, text, summary string, snap *ContextSnapshot) (*ResponseEnvelope, error) {
	req := llm.Request{
		System: systemPrompt,
		User:   fmt.Sprintf("%s\n\nContext:\n%s", text, summary),
		Tools:  ToolDeclarations(),
	}
	completion, err := r.LLM.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	env := &ResponseEnvelope{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}

	type decoded struct {
		spec toolSpec
		args any
	}
	var reads, writes []decoded
	for _, call := range completion.ToolCalls {
		spec, args, err := decodeToolCall(call)
		if err != nil {
			return nil, err
		}
		if spec.Kind == kindWrite {
			writes = append(writes, decoded{spec, args})
		} else {
			reads = append(reads, decoded{spec, args})
		}
	}

	if len(writes) > 0 {
		byOption := map[string][]ActionCall{}
		var labels []string
		for _, d := range writes {
			action, label, err := r.resolveWrite(snap, d.spec.Name, d.args)
			if err != nil {
				var c clarify
				if asClarify(err, &c) {
					env.Kind = KindClarification
					env.Question = c.question
					return r.classified(env), nil
				}
				return nil, err
			}
			if _, seen := byOption[label]; !seen {
				labels = append(labels, label)
			}
			byOption[label] = append(byOption[label], action)
		}

		if len(labels) >= 2 {
			sort.Strings(labels)
			env.Kind = KindSuggestion
			for _, l := range labels {
				env.Candidates = append(env.Candidates, Candidate{Label: displayLabel(l), Actions: byOption[l]})
			}
		} else {
			env.Kind = KindDirective
			env.Candidates = []Candidate{{Actions: byOption[labels[0]]}}
		}
		return r.classified(env), nil
	}

	if len(reads) > 0 {
		env.Kind = KindInformational
		env.Answer = completion.Text
		for _, d := range reads {
			env.QueryResults = append(env.QueryResults, r.executeRead(snap, d.spec.Name, d.args))
		}
		return r.classified(env), nil
	}

	answer := strings.TrimSpace(completion.Text)
	if answer == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrProtocolViolation)
	}
	if strings.Contains(answer, "?") {
		env.Kind = KindClarification
		env.Question = answer
		return r.classified(env), nil
	}
	env.Kind = KindInformational
	env.Answer = answer
	return r.classified(env), nil
}

// classified logs how a turn was classified before the envelope leaves
// the resolver.
func (r Resolver) classified(env *ResponseEnvelope) *ResponseEnvelope {
	r.Logger.Debug().
		Str("kind", string(env.Kind)).
		Int("candidates", len(env.Candidates)).
		Int("query_results", len(env.QueryResults)).
		Msg("command classified")
	return env
}

func asClarify(err error, target *clarify) bool {
	c, ok := err.(clarify)
	if ok {
		*target = c
	}
	return ok
}

func displayLabel(l string) string {
	if l == "" {
		return "Option"
	}
	return "Option " + l
}

func (r Resolver) resolveUser(snap *ContextSnapshot, name string) (UserContext, error) {
	matches := snap.UsersByName(name)
	switch len(matches) {
	case 0:
		return UserContext{}, clarify{question: fmt.Sprintf("I couldn't find anyone called %s on the team. Who did you mean?", strings.TrimSpace(name))}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Name)
		}
		return UserContext{}, clarify{question: fmt.Sprintf("There are %d people matching %s: %s. Which one did you mean?", len(matches), strings.TrimSpace(name), strings.Join(names, ", "))}
	}
}

func (r Resolver) resolveProject(snap *ContextSnapshot, name string) (models.Project, error) {
	if strings.TrimSpace(name) == "" {
		return models.Project{}, clarify{question: "Which project is this for?"}
	}
	p, ok := snap.ProjectByName(name)
	if !ok {
		return models.Project{}, clarify{question: fmt.Sprintf("I couldn't find a project called %s. Which project did you mean?", strings.TrimSpace(name))}
	}
	return p, nil
}

func (r Resolver) resolveWeek(snap *ContextSnapshot, week string) (string, error) {
	w, err := NormalizeWeek(week, snap.AsOf)
	if err != nil {
		return "", clarify{question: fmt.Sprintf("I didn't follow the week %q. Which week should this apply to?", week)}
	}
	return w, nil
}

func (r Resolver) resolveWrite(snap *ContextSnapshot, tool string, args any) (ActionCall, string, error) {
	switch a := args.(type) {
	case *CreateAllocationArgs:
		user, err := r.resolveUser(snap, a.UserName)
		if err != nil {
			return ActionCall{}, "", err
		}
		project, err := r.resolveProject(snap, a.ProjectName)
		if err != nil {
			return ActionCall{}, "", err
		}
		week, err := r.resolveWeek(snap, a.WeekStart)
		if err != nil {
			return ActionCall{}, "", err
		}
		billable := true
		if a.Billable != nil {
			billable = *a.Billable
		}
		o := op{kind: opCreate, user: user.User, project: project, week: week, hours: a.Hours, notes: a.Notes, billable: billable}
		return ActionCall{
			Tool:        tool,
			Params:      writeParams(o),
			Description: fmt.Sprintf("Book %s for %sh on %s (week of %s)", user.Name, trimHours(a.Hours), project.Name, week),
			op:          o,
		}, a.Option, nil

	case *UpdateAllocationArgs:
		user, err := r.resolveUser(snap, a.UserName)
		if err != nil {
			return ActionCall{}, "", err
		}
		project, err := r.resolveProject(snap, a.ProjectName)
		if err != nil {
			return ActionCall{}, "", err
		}
		week, err := r.resolveWeek(snap, a.WeekStart)
		if err != nil {
			return ActionCall{}, "", err
		}
		o := op{kind: opUpdate, user: user.User, project: project, week: week, hours: a.Hours}
		return ActionCall{
			Tool:        tool,
			Params:      writeParams(o),
			Description: fmt.Sprintf("Set %s to %sh on %s (week of %s)", user.Name, trimHours(a.Hours), project.Name, week),
			op:          o,
		}, a.Option, nil

	case *DeleteAllocationArgs:
		user, err := r.resolveUser(snap, a.UserName)
		if err != nil {
			return ActionCall{}, "", err
		}
		project, err := r.resolveProject(snap, a.ProjectName)
		if err != nil {
			return ActionCall{}, "", err
		}
		week, err := r.resolveWeek(snap, a.WeekStart)
		if err != nil {
			return ActionCall{}, "", err
		}
		o := op{kind: opDelete, user: user.User, project: project, week: week}
		return ActionCall{
			Tool:        tool,
			Params:      writeParams(o),
			Description: fmt.Sprintf("Remove %s from %s (week of %s)", user.Name, project.Name, week),
			op:          o,
		}, a.Option, nil

	case *SwapHoursArgs:
		from, err := r.resolveUser(snap, a.FromUserName)
		if err != nil {
			return ActionCall{}, "", err
		}
		to, err := r.resolveUser(snap, a.ToUserName)
		if err != nil {
			return ActionCall{}, "", err
		}
		week, err := r.resolveWeek(snap, a.WeekStart)
		if err != nil {
			return ActionCall{}, "", err
		}
		project, err := r.resolveSwapProject(snap, from, a.ProjectName, week)
		if err != nil {
			return ActionCall{}, "", err
		}
		o := op{kind: opSwap, user: from.User, toUser: to.User, project: project, week: week, hours: a.Hours}
		return ActionCall{
			Tool:        tool,
			Params:      writeParams(o),
			Description: fmt.Sprintf("Move %sh on %s from %s to %s (week of %s)", trimHours(a.Hours), project.Name, from.Name, to.Name, week),
			op:          o,
		}, a.Option, nil
	}
	return ActionCall{}, "", fmt.Errorf("%w: unhandled write tool %q", ErrProtocolViolation, tool)
}

// resolveSwapProject infers the project of a swap when the service omitted
// it: unambiguous only when the source user is on exactly one project that
// week.
func (r Resolver) resolveSwapProject(snap *ContextSnapshot, from UserContext, projectName, week string) (models.Project, error) {
	if strings.TrimSpace(projectName) != "" {
		return r.resolveProject(snap, projectName)
	}
	seen := map[string]bool{}
	var only models.Project
	for _, a := range from.Allocations {
		if a.WeekStart != week || seen[a.ProjectID] {
			continue
		}
		seen[a.ProjectID] = true
		for _, p := range snap.Projects {
			if p.ID == a.ProjectID {
				only = p
			}
		}
	}
	if len(seen) == 1 {
		return only, nil
	}
	return models.Project{}, clarify{question: fmt.Sprintf("Which project should I move %s's hours from?", from.Name)}
}

func writeParams(o op) map[string]any {
	params := map[string]any{
		"user":       o.user.Name,
		"project":    o.project.Name,
		"week_start": o.week,
	}
	if o.kind != opDelete {
		params["hours"] = o.hours
	}
	if o.kind == opSwap {
		params["from_user"] = o.user.Name
		params["to_user"] = o.toUser.Name
		delete(params, "user")
	}
	return params
}

func trimHours(h float64) string {
	s := fmt.Sprintf("%.2f", h)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
