// Package agent implements the scouting conversation as a flowgraph: a
// router that classifies each turn, a statistics branch, a scouting branch
// that asks the user to pick and confirm a player, and a final response
// node.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courtvision/scoutgraph/internal/leaguedb"
	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/internal/players"
	"github.com/courtvision/scoutgraph/internal/report"
	"github.com/courtvision/scoutgraph/internal/sqlagent"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// Node identifiers.
const (
	NodeRouter           = "router"
	NodeStatsLookup      = "stats_lookup"
	NodeConfirmScouting  = "confirm_scouting"
	NodeScout            = "scout"
	NodeGenerateResponse = "generate_response"
)

// Defaults applied by New.
const (
	DefaultSearchLimit   = 20
	DefaultMinScore      = 80
	DefaultHistoryTokens = 6000
	DefaultSummaryTokens = 40
)

// Deliverer stores a finished report and returns a link to it, or "".
type Deliverer interface {
	Deliver(ctx context.Context, playerName string, r *report.Report) string
}

// Config holds the collaborators of the nodes.
type Config struct {
	// RouterLLM classifies intents.
	RouterLLM llm.Client
	// SQLLLM drives the statistics SQL agent.
	SQLLLM llm.Client
	// ScoutLLM writes scouting analyses.
	ScoutLLM llm.Client
	// ResponseLLM writes free-text replies.
	ResponseLLM llm.Client

	// DB serves the league statistics databases.
	DB sqlagent.Database
	// Searcher finds players by name.
	Searcher players.Searcher
	// Details fetches full player records.
	Details players.DetailClient
	// Reports renders and stores scouting reports. Optional.
	Reports Deliverer
	// Tokens bounds prompt sizes. Optional; a character estimate is used
	// without it.
	Tokens *llm.TokenBudget

	DefaultLeague string
	DefaultSeason string
	SearchLimit   int
	MinScore      int
	MaxSQLSteps   int
	MaxRows       int
	// HistoryTokens caps the conversation sent to the router, SQL agent and
	// responder.
	HistoryTokens int
	// SummaryTokens caps each message in the scouting conversation summary.
	SummaryTokens int
}

// Agent owns the node implementations.
type Agent struct {
	cfg   Config
	now   func() time.Time
	newID func() string
}

// New creates an Agent, filling unset limits with defaults.
func New(cfg Config) *Agent {
	if cfg.DefaultLeague == "" {
		cfg.DefaultLeague = leaguedb.DisplayName(leaguedb.CEBL)
	}
	if cfg.DefaultSeason == "" {
		cfg.DefaultSeason = "2025"
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.HistoryTokens <= 0 {
		cfg.HistoryTokens = DefaultHistoryTokens
	}
	if cfg.SummaryTokens <= 0 {
		cfg.SummaryTokens = DefaultSummaryTokens
	}
	return &Agent{
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Graph compiles the conversation graph.
//
//	router --stats_query--> stats_lookup --> generate_response
//	router --scouting_report--> confirm_scouting --confirmed--> scout --> generate_response
//	confirm_scouting --otherwise--> generate_response
//	router --otherwise--> generate_response
func (a *Agent) Graph() (*flowgraph.CompiledGraph[State, Update], error) {
	return flowgraph.NewGraph[State, Update]().
		AddNode(NodeRouter, a.Router).
		AddNode(NodeStatsLookup, a.StatsLookup).
		AddNode(NodeConfirmScouting, a.ConfirmScouting).
		AddNode(NodeScout, a.Scout).
		AddNode(NodeGenerateResponse, a.GenerateResponse).
		AddConditionalEdge(NodeRouter, RouteIntent).
		AddEdge(NodeStatsLookup, NodeGenerateResponse).
		AddConditionalEdge(NodeConfirmScouting, RouteConfirmation).
		AddEdge(NodeScout, NodeGenerateResponse).
		AddEdge(NodeGenerateResponse, flowgraph.END).
		SetEntry(NodeRouter).
		SetReducer(Merge).
		OnNodeError(NodeGenerateResponse, Recover).
		Compile()
}

// RouteIntent picks the branch after the router.
func RouteIntent(_ flowgraph.Context, s State) string {
	switch s.Intent {
	case IntentStats:
		return NodeStatsLookup
	case IntentScouting:
		return NodeConfirmScouting
	default:
		return NodeGenerateResponse
	}
}

// RouteConfirmation continues to the scout only after both confirmations.
func RouteConfirmation(_ flowgraph.Context, s State) string {
	if s.ScoutingReportConfirmed {
		return NodeScout
	}
	return NodeGenerateResponse
}

// Branches lists the targets of each conditional edge.
func Branches() map[string][]string {
	return map[string][]string{
		NodeRouter:          {NodeStatsLookup, NodeConfirmScouting, NodeGenerateResponse},
		NodeConfirmScouting: {NodeScout, NodeGenerateResponse},
	}
}

// Recover turns an error that escaped a node into a user-facing error.
func Recover(nodeID string, err error) Update {
	msg := fmt.Sprintf("%s failed: %s", nodeLabel(nodeID), flowerrors.UserMessage(rootCause(err)))
	u := failure(msg)
	if nodeID == NodeConfirmScouting {
		u.ScoutingReportConfirmed = ptr(false)
	}
	return u
}

func nodeLabel(nodeID string) string {
	switch nodeID {
	case NodeRouter:
		return "Intent classification"
	case NodeStatsLookup:
		return "Stats lookup"
	case NodeConfirmScouting:
		return "Player confirmation"
	case NodeScout:
		return "Scouting report"
	default:
		return nodeID
	}
}

// rootCause strips the engine's node wrapper so classification sees the
// node's own error.
func rootCause(err error) error {
	var nodeErr *flowgraph.NodeError
	if errors.As(err, &nodeErr) && nodeErr.Err != nil {
		return nodeErr.Err
	}
	return err
}

// history returns the newest messages that fit the history budget.
func (a *Agent) history(s State) []llm.Message {
	return a.cfg.Tokens.Fit(s.History(), a.cfg.HistoryTokens)
}
