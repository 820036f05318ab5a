package agent

import (
	"strings"

	"github.com/courtvision/scoutgraph/internal/leaguedb"
	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

var routerSchema = llm.MustCompileSchema("router_decision", `{
  "type": "object",
  "required": ["intent"],
  "properties": {
    "intent": {"enum": ["stats_query", "scouting_report", "text_response", "terminate"]},
    "player_name": {"type": ["string", "null"]},
    "league": {"type": ["string", "null"]},
    "season": {"type": ["string", "null"]},
    "query_context": {"type": ["string", "null"]}
  }
}`)

// decision is the classifier's answer.
type decision struct {
	Intent       string  `json:"intent"`
	PlayerName   *string `json:"player_name"`
	League       *string `json:"league"`
	Season       *string `json:"season"`
	QueryContext *string `json:"query_context"`
}

// Router classifies the latest message against the whole conversation and
// refreshes the extracted entities. Classifier failures fall back to a text
// response; the router never returns an error.
func (a *Agent) Router(ctx flowgraph.Context, s State) (Update, error) {
	query := s.LastHuman()
	iteration := s.RoutingIteration + 1
	u := Update{CurrentUserQuery: &query, RoutingIteration: &iteration}

	system, err := routerPrompt.Render(map[string]any{
		"leagues":        strings.Join(leaguedb.Leagues(), ", "),
		"default_league": a.cfg.DefaultLeague,
		"default_season": a.cfg.DefaultSeason,
		"entities":       s.Entities,
		"schema":         routerSchema.Source(),
	})
	var d decision
	if err == nil {
		d, err = llm.Structured[decision](ctx, a.cfg.RouterLLM, llm.Request{
			System:      system,
			Messages:    a.history(s),
			Temperature: llm.TaskRouter.Temperature(),
		}, routerSchema)
	}
	if err != nil {
		ctx.Logger().Warn("intent classification failed", "error", err)
		u.Intent = ptr(IntentText)
		u.Entities = &Entities{QueryContext: ptr("error")}
		u.Error = ptr("Intent classification failed: " + flowerrors.UserMessage(err))
		return u, nil
	}

	intent, ok := ParseIntent(d.Intent)
	if !ok {
		intent = IntentText
	}
	u.Intent = &intent

	found := Entities{
		PlayerName:   trimmed(d.PlayerName),
		League:       trimmed(d.League),
		Season:       trimmed(d.Season),
		QueryContext: trimmed(d.QueryContext),
	}
	if found.League != nil {
		found.League = ptr(leaguedb.DisplayName(*found.League))
	}

	merged := s.Entities.Merge(found)
	if merged.League == nil {
		found.League = ptr(a.cfg.DefaultLeague)
	}
	if merged.Season == nil {
		found.Season = ptr(a.cfg.DefaultSeason)
	}
	merged = s.Entities.Merge(found)
	u.Entities = &found

	if merged.PlayerName != nil {
		u.PlayerName = merged.PlayerName
	}
	u.League = merged.League

	ctx.Logger().Debug("intent classified",
		"intent", intent,
		"player_name", value(merged.PlayerName),
		"league", value(merged.League),
		"season", value(merged.Season))
	return u, nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
