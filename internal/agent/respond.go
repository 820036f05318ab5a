package agent

import (
	"strings"

	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
)

// FallbackReply is sent when the responder model is unavailable.
const FallbackReply = "I'm here to help with Canada Basketball scouting. How can I assist you?"

var replySchema = llm.MustCompileSchema("text_response", `{
  "type": "object",
  "required": ["main_response"],
  "properties": {
    "main_response": {"type": "string", "minLength": 1}
  }
}`)

type reply struct {
	MainResponse string `json:"main_response"`
}

// GenerateResponse builds the turn's final payload. The first matching rule
// wins: an error, a stats result, a scouting report, then a model reply.
// It never fails.
func (a *Agent) GenerateResponse(ctx flowgraph.Context, s State) (Update, error) {
	switch {
	case s.Error != nil:
		return Update{Response: &Response{
			ResponseType: ResponseText,
			MainResponse: "I encountered an error: " + strings.TrimSuffix(*s.Error, ".") +
				". Please try rephrasing your question.",
		}}, nil

	case s.Intent == IntentStats && s.QueryResult != nil:
		qr := s.QueryResult
		return Update{Response: &Response{
			ResponseType: ResponseQuery,
			MainResponse: qr.SummaryText,
			Data:         qr.Data,
			ChartConfig:  qr.ChartConfig,
			QueryResult:  qr,
		}}, nil

	case s.Intent == IntentScouting && s.ScoutingReport != nil:
		main := "Scouting report generated for " + s.PlayerName + "."
		if s.PDFURL != nil {
			main += " PDF available for download."
		}
		return Update{Response: &Response{
			ResponseType:   ResponseScouting,
			MainResponse:   main,
			ScoutingReport: s.ScoutingReport,
			PDFURL:         s.PDFURL,
		}}, nil
	}

	text := a.reply(ctx, s)
	return Update{
		Response: &Response{ResponseType: ResponseText, MainResponse: text},
		Messages: []Message{Assistant(text)},
	}, nil
}

func (a *Agent) reply(ctx flowgraph.Context, s State) string {
	hint := ""
	if qc := value(s.Entities.QueryContext); qc != "" {
		vars := map[string]any{"query_context": strings.TrimSuffix(qc, ".")}
		lower := strings.ToLower(qc)
		if strings.Contains(lower, "needs") || strings.Contains(lower, "clarify") || strings.Contains(lower, "missing") {
			hint = clarifyHint.MustRender(vars)
		} else {
			hint = contextHint.MustRender(vars)
		}
	}

	system, err := responsePrompt.Render(map[string]any{"hint": hint})
	if err != nil {
		ctx.Logger().Warn("response prompt failed", "error", err)
		return FallbackReply
	}
	out, err := llm.Structured[reply](ctx, a.cfg.ResponseLLM, llm.Request{
		System:      system,
		Messages:    a.history(s),
		Temperature: llm.TaskResponse.Temperature(),
	}, replySchema)
	if err != nil {
		ctx.Logger().Warn("response generation failed, using fallback", "error", err)
		return FallbackReply
	}
	text := strings.TrimSpace(out.MainResponse)
	if text == "" {
		return FallbackReply
	}
	return text
}
