package command

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
)

// Tone classifies how a response should be presented.
type Tone string

const (
	ToneCasual       Tone = "casual"
	ToneProfessional Tone = "professional"
	ToneUrgent       Tone = "urgent"
)

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Formatter renders envelopes and execution outcomes as markdown for the
// chat surface. Everything it emits passes through an identifier scrub so
// internal ids can never leak into rendered text, whatever upstream
// component produced them.
type Formatter struct {
	Logger zerolog.Logger
}

// RenderEnvelope produces the user-facing message for one envelope. The
// direct answer always leads; insights and diffs follow it.
func (f Formatter) RenderEnvelope(env *ResponseEnvelope) string {
	var sb strings.Builder

	switch env.Kind {
	case KindClarification:
		sb.WriteString(env.Question)

	case KindInformational:
		if env.Answer != "" {
			sb.WriteString(env.Answer)
		}
		for _, qr := range env.QueryResults {
			if qr.Summary == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(qr.Summary)
		}

	case KindDirective:
		c := env.Candidates[0]
		sb.WriteString("Here's what I'll change:\n")
		for _, a := range c.Actions {
			sb.WriteString(fmt.Sprintf("- %s\n", a.Description))
		}
		if diff := renderDiff(c.Before, c.After); diff != "" {
			sb.WriteString("\n")
			sb.WriteString(diff)
		}
		sb.WriteString("\nConfirm to apply.")

	case KindSuggestion:
		sb.WriteString("A few ways to do that:\n")
		for _, c := range env.Candidates {
			sb.WriteString(fmt.Sprintf("\n**%s**\n", c.Label))
			for _, a := range c.Actions {
				sb.WriteString(fmt.Sprintf("- %s\n", a.Description))
			}
			if diff := renderDiff(c.Before, c.After); diff != "" {
				sb.WriteString(diff)
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\nPick an option to apply it.")
	}

	if note := insightNote(env.Insights); note != "" {
		sb.WriteString("\n\n")
		sb.WriteString(note)
	}

	return f.scrub(sb.String())
}

// RenderResults summarizes an execution. Failures are reported alongside
// the successes, never instead of them.
func (f Formatter) RenderResults(results []ActionResult) string {
	applied := 0
	var failures []string
	for _, r := range results {
		if r.Success {
			applied++
		} else {
			failures = append(failures, r.Error)
		}
	}

	var sb strings.Builder
	switch {
	case len(failures) == 0 && len(results) == 1:
		sb.WriteString("Done, change applied.")
	case len(failures) == 0:
		sb.WriteString(fmt.Sprintf("Done, all %d changes applied.", len(results)))
	case applied == 0:
		sb.WriteString("I couldn't apply that:")
	default:
		sb.WriteString(fmt.Sprintf("%d of %d changes applied. The rest hit problems:", applied, len(results)))
	}
	for _, reason := range failures {
		sb.WriteString(fmt.Sprintf("\n- %s", reason))
	}
	return f.scrub(sb.String())
}

// ResponseTone picks how the message should read. A critical insight
// always forces urgent. Plain informational answers with nothing to flag
// stay casual; anything proposing changes reads professional.
func (f Formatter) ResponseTone(env *ResponseEnvelope) Tone {
	for _, in := range env.Insights {
		if in.Severity == SeverityCritical {
			return ToneUrgent
		}
	}
	if env.Kind == KindInformational && len(env.Insights) == 0 {
		return ToneCasual
	}
	return ToneProfessional
}

func (f Formatter) scrub(s string) string {
	if uuidPattern.MatchString(s) {
		f.Logger.Warn().Msg("internal identifier reached rendered text, scrubbed")
		return uuidPattern.ReplaceAllString(s, "[id]")
	}
	return s
}

// renderDiff shows per-user before/after hours for the affected weeks.
// Both sides come from the same projection, so rows line up one to one.
func renderDiff(before, after *StateSnapshot) string {
	if before == nil || after == nil {
		return ""
	}
	afterByKey := map[string]UserState{}
	for _, u := range after.Users {
		afterByKey[u.Name+"|"+u.Week] = u
	}

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"User", "Week", "Before", "After"})
	for _, b := range before.Users {
		a := afterByKey[b.Name+"|"+b.Week]
		tw.AppendRow(table.Row{
			b.Name, b.Week,
			describeUserState(b), describeUserState(a),
		})
	}
	return tw.RenderMarkdown()
}

func describeUserState(u UserState) string {
	if len(u.Projects) == 0 {
		return "no hours"
	}
	parts := make([]string, 0, len(u.Projects))
	for _, p := range u.Projects {
		parts = append(parts, fmt.Sprintf("%s %sh", p.ProjectName, trimHours(p.Hours)))
	}
	return fmt.Sprintf("%s (total %sh)", strings.Join(parts, ", "), trimHours(u.TotalHours))
}

func insightNote(insights []ResourceInsight) string {
	if len(insights) == 0 {
		return ""
	}
	var critical, other []string
	for _, in := range insights {
		if in.Severity == SeverityCritical {
			critical = append(critical, in.Description)
		} else {
			other = append(other, in.Description)
		}
	}
	var sb strings.Builder
	if len(critical) > 0 {
		sb.WriteString("⚠️ Heads up:")
		for _, d := range critical {
			sb.WriteString("\n- " + d)
		}
	}
	if len(other) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Also worth noting:")
		for _, d := range other {
			sb.WriteString("\n- " + d)
		}
	}
	return sb.String()
}
