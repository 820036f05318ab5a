package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/courtvision/scoutgraph/internal/leaguedb"
	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/internal/report"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

var analysisSchema = llm.MustCompileSchema(report.AnalysisSchemaName, report.AnalysisSchema)

// summaryWindow is how many earlier messages the scout sees.
const summaryWindow = 5

// Scout fetches the confirmed player's record, has the model write the
// analysis and delivers the rendered report. A failed fetch or analysis ends
// the node with an error; a failed delivery only leaves pdf_url unset.
func (a *Agent) Scout(ctx flowgraph.Context, s State) (Update, error) {
	if s.PlayerID == "" || s.League == "" {
		return scoutFailure("Missing player_id or league for scouting report generation",
			"Missing player information."), nil
	}
	league := leaguedb.DisplayName(s.League)

	detail, err := a.cfg.Details.Get(ctx, s.League, s.PlayerID)
	if err != nil {
		ctx.Logger().Warn("player detail fetch failed",
			"player_id", s.PlayerID, "league", league, "error", err)
		return fetchFailure(err), nil
	}

	name := s.PlayerName
	if name == "" {
		name = detail.FullName
	}

	system, err := scoutPrompt.Render(map[string]any{
		"player_name":   name,
		"league":        league,
		"player_detail": detail,
		"conversation":  a.conversationSummary(s.Messages),
		"schema":        analysisSchema.Source(),
	})
	if err != nil {
		return Update{}, err
	}
	analysis, err := llm.Structured[report.Analysis](ctx, a.cfg.ScoutLLM, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: scoutRequest.MustRender(map[string]any{"player_name": name})}},
		Temperature: llm.TaskScout.Temperature(),
	}, analysisSchema)
	if err != nil {
		ctx.Logger().Warn("scouting analysis failed", "player_id", s.PlayerID, "error", err)
		msg := flowerrors.UserMessage(err)
		return scoutFailure("Scouting analysis generation failed: "+msg, "Analysis failed - "+msg), nil
	}

	rep := &report.Report{
		ReportID:    a.newID(),
		GeneratedAt: a.now().UTC(),
		Profile:     report.ProfileFromDetail(detail, league),
		Detail:      detail,
		Analysis:    analysis,
	}

	var link string
	if a.cfg.Reports != nil {
		link = a.cfg.Reports.Deliver(ctx, name, rep)
	}

	pdf := "Available"
	u := Update{ScoutingReport: rep, ClearReport: true, ClearError: true}
	if link != "" {
		u.PDFURL = &link
	} else {
		pdf = "Generation failed"
	}
	u.Messages = []Message{Assistant(fmt.Sprintf(
		"**Scouting Report Generated** for %s (%s):\n- Archetype: %s\n- Strengths: %d identified\n- Weaknesses: %d identified\n- PDF: %s",
		name, league, analysis.Archetype, len(analysis.Strengths), len(analysis.Weaknesses), pdf))}

	ctx.Logger().Info("scouting report generated",
		"player_id", s.PlayerID, "report_id", rep.ReportID, "pdf", link != "")
	return u, nil
}

func scoutFailure(errMsg, userMsg string) Update {
	return Update{
		Error:       &errMsg,
		ClearReport: true,
		Messages:    []Message{Assistant("**Scouting Error**: " + userMsg)},
	}
}

func fetchFailure(err error) Update {
	var timeout *flowerrors.TimeoutError
	var status *flowerrors.HTTPError
	switch {
	case errors.As(err, &timeout) || errors.Is(err, context.DeadlineExceeded):
		return scoutFailure("Request timeout while fetching player data", "Request timeout.")
	case errors.As(err, &status):
		msg := fmt.Sprintf("HTTP error %d while fetching player data", status.StatusCode)
		return scoutFailure(msg, fmt.Sprintf("HTTP error %d.", status.StatusCode))
	default:
		return scoutFailure("Failed to fetch player data: "+flowerrors.UserMessage(err),
			"Failed to fetch player data.")
	}
}

// conversationSummary lists the messages before the current one, newest
// last, each cut to the summary budget.
func (a *Agent) conversationSummary(msgs []Message) string {
	if len(msgs) <= 2 {
		return "No prior conversation."
	}
	recent := msgs[:len(msgs)-1]
	if len(recent) > summaryWindow {
		recent = recent[len(recent)-summaryWindow:]
	}

	var b strings.Builder
	b.WriteString("**Recent Conversation:**")
	for _, m := range recent {
		who := "User"
		if m.Role == RoleAssistant {
			who = "Assistant"
		}
		text := a.cfg.Tokens.Truncate(m.Content, a.cfg.SummaryTokens)
		if len(text) < len(m.Content) {
			text += "..."
		}
		fmt.Fprintf(&b, "\n- %s: %s", who, text)
	}
	return b.String()
}
