package agent

import (
	"fmt"
	"strings"

	"github.com/courtvision/scoutgraph/internal/leaguedb"
	"github.com/courtvision/scoutgraph/internal/sqlagent"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// StatsLookup answers a statistics question through the SQL agent and runs
// the agent's final query again for clean rows. Failures still produce an
// empty QueryResult so the response node can render it.
func (a *Agent) StatsLookup(ctx flowgraph.Context, s State) (Update, error) {
	league := s.League
	if league == "" {
		league = value(s.Entities.League)
	}
	if league == "" {
		league = a.cfg.DefaultLeague
	}
	dbID := leaguedb.IDForLeague(league)
	display := leaguedb.DisplayName(league)

	season := value(s.Entities.Season)
	if season == "" {
		season = a.cfg.DefaultSeason
	}

	agent := sqlagent.New(a.cfg.SQLLLM, a.cfg.DB,
		sqlagent.WithMaxSteps(a.cfg.MaxSQLSteps),
		sqlagent.WithMaxRows(a.cfg.MaxRows),
		sqlagent.WithLogger(ctx.Logger()))

	ans, err := agent.Run(ctx, sqlagent.Question{
		DBName:   dbID,
		League:   display,
		Season:   season,
		Intent:   string(s.Intent),
		Entities: s.Entities,
		History:  a.history(s),
	})
	if err != nil {
		ctx.Logger().Warn("stats lookup failed", "db", dbID, "error", err)
		return statsFailure(dbID, err), nil
	}

	rows, err := a.cfg.DB.Query(ctx, dbID, ans.SQLQuery, 0)
	if err != nil {
		ctx.Logger().Warn("re-running stats query failed", "db", dbID, "sql", ans.SQLQuery, "error", err)
		rows = []leaguedb.Row{}
	}

	chart := ans.ChartConfig
	if len(rows) == 0 {
		chart = nil
	}
	summary := ans.SummaryText
	if summary == "" {
		summary = "Query completed successfully."
	}

	text := fmt.Sprintf("**Stats Query Result** (%s, %s):\n%s", strings.ToUpper(display), season, summary)
	if len(rows) > 0 {
		text += fmt.Sprintf(" Found %d result(s).", len(rows))
	}

	return Update{
		QueryResult: &QueryResult{
			Data:        rows,
			SQLQuery:    ans.SQLQuery,
			DBName:      dbID,
			ChartConfig: chart,
			SummaryText: summary,
		},
		Messages:   []Message{Assistant(text)},
		ClearError: true,
	}, nil
}

func statsFailure(dbID string, err error) Update {
	msg := flowerrors.UserMessage(err)
	return Update{
		QueryResult: &QueryResult{
			Data:        []leaguedb.Row{},
			DBName:      dbID,
			SummaryText: fmt.Sprintf("I encountered an error: %s Please try rephrasing your question.", msg),
		},
		Error:    ptr("Stats lookup failed: " + msg),
		Messages: []Message{Assistant("**Stats Query Error**: " + msg)},
	}
}
