// Package sqlagent turns a statistics question into a read-only SQL query
// by letting an LLM explore the league database through a small tool set.
package sqlagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/courtvision/scoutgraph/internal/leaguedb"
	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/template"
)

// DefaultMaxSteps bounds tool calls per question.
const DefaultMaxSteps = 8

// DefaultMaxRows caps rows shown to the model by run_query.
const DefaultMaxRows = 50

// ErrStepLimit is returned when the model does not finish within MaxSteps.
var ErrStepLimit = errors.New("sqlagent: step limit reached without an answer")

// Tool names.
const (
	ToolListTables    = "list_tables"
	ToolDescribeTable = "describe_table"
	ToolRunQuery      = "run_query"
	ActionFinal       = "final"
)

// Database is the subset of leaguedb.Pool the agent needs.
type Database interface {
	Tables(ctx context.Context, id string) ([]string, error)
	Describe(ctx context.Context, id, table string) ([]leaguedb.Column, error)
	Query(ctx context.Context, id, query string, limit int) ([]leaguedb.Row, error)
}

// Question is one stats request.
type Question struct {
	// DBName is the league database identifier.
	DBName string
	// League is the display name used in prompts.
	League string
	Season string
	Intent string
	// Entities is shown to the model as JSON.
	Entities any
	// History is the conversation so far; the last message is the question.
	History []llm.Message
}

// Answer is the agent's final structured response.
type Answer struct {
	SQLQuery    string       `json:"sql_query"`
	DBName      string       `json:"db_name"`
	ChartConfig *ChartConfig `json:"chart_config"`
	SummaryText string       `json:"summary_text"`
}

// step is one model turn: a tool call or the final answer.
type step struct {
	Action string `json:"action"`
	Table  string `json:"table,omitempty"`
	SQL    string `json:"sql,omitempty"`
	Answer
}

var stepSchema = llm.MustCompileSchema("sql_step", `{
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": {"enum": ["list_tables", "describe_table", "run_query", "final"]},
    "table": {"type": "string"},
    "sql": {"type": "string"},
    "sql_query": {"type": "string"},
    "db_name": {"type": "string"},
    "chart_config": {"oneOf": [{"type": "null"}, `+chartSchema+`]},
    "summary_text": {"type": "string"}
  },
  "allOf": [
    {"if": {"properties": {"action": {"const": "describe_table"}}}, "then": {"required": ["table"]}},
    {"if": {"properties": {"action": {"const": "run_query"}}}, "then": {"required": ["sql"]}},
    {"if": {"properties": {"action": {"const": "final"}}}, "then": {"required": ["sql_query", "summary_text"]}}
  ]
}`)

// Agent runs the tool loop.
type Agent struct {
	client   llm.Client
	db       Database
	maxSteps int
	maxRows  int
	logger   *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxSteps sets the tool-call budget.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithMaxRows caps rows returned to the model by run_query.
func WithMaxRows(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRows = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Agent.
func New(client llm.Client, db Database, opts ...Option) *Agent {
	a := &Agent{
		client:   client,
		db:       db,
		maxSteps: DefaultMaxSteps,
		maxRows:  DefaultMaxRows,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run answers q. Tool failures are reported back to the model as
// observations; model call failures and malformed steps end the run.
func (a *Agent) Run(ctx context.Context, q Question) (Answer, error) {
	msgs := append([]llm.Message(nil), q.History...)
	system := systemPrompt(q)

	for i := 0; i < a.maxSteps; i++ {
		resp, err := a.client.Complete(ctx, llm.Request{
			System:      system,
			Messages:    msgs,
			Temperature: llm.TaskSQL.Temperature(),
			JSON:        true,
		})
		if err != nil {
			return Answer{}, err
		}

		var s step
		if err := stepSchema.Decode(resp.Text, &s); err != nil {
			return Answer{}, fmt.Errorf("sql agent step %d: %w", i+1, err)
		}

		if s.Action == ActionFinal {
			ans := s.Answer
			if ans.DBName == "" {
				ans.DBName = q.DBName
			}
			if ans.ChartConfig != nil {
				cfg := ans.ChartConfig.WithDefaults()
				ans.ChartConfig = &cfg
			}
			return ans, nil
		}

		observation := a.execute(ctx, q.DBName, s)
		a.logger.Debug("sql agent tool call", "tool", s.Action, "step", i+1)
		msgs = append(msgs,
			llm.Message{Role: llm.RoleAssistant, Content: llm.ExtractJSON(resp.Text)},
			llm.Message{Role: llm.RoleUser, Content: "Observation:\n" + observation},
		)
	}
	return Answer{}, ErrStepLimit
}

func (a *Agent) execute(ctx context.Context, dbName string, s step) string {
	var (
		out any
		err error
	)
	switch s.Action {
	case ToolListTables:
		out, err = a.db.Tables(ctx, dbName)
	case ToolDescribeTable:
		out, err = a.db.Describe(ctx, dbName, s.Table)
	case ToolRunQuery:
		out, err = a.db.Query(ctx, dbName, s.SQL, a.maxRows)
	default:
		err = fmt.Errorf("unknown tool %q", s.Action)
	}
	if err != nil {
		return "Error: " + err.Error()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "Error: " + err.Error()
	}
	return string(b)
}

var systemTemplate = template.MustParse("sql_system", `You answer basketball statistics questions for the ${league} database (${db_name}).
Default season: ${season}. Classified intent: ${intent}.
Extracted entities:
${entities}

${instructions}`)

func systemPrompt(q Question) string {
	return systemTemplate.MustRender(map[string]any{
		"league":       q.League,
		"db_name":      q.DBName,
		"season":       q.Season,
		"intent":       q.Intent,
		"entities":     q.Entities,
		"instructions": sqlInstructions,
	})
}

const sqlInstructions = `Work one step at a time. Reply with exactly one JSON object per message:

  {"action": "list_tables"}
  {"action": "describe_table", "table": "<name>"}
  {"action": "run_query", "sql": "<single SELECT statement>"}
  {"action": "final", "sql_query": "<the SELECT you ran>", "db_name": "<database>",
   "chart_config": <chart object or null>, "summary_text": "<one or two sentences>"}

Only SELECT statements are allowed. Inspect the schema before querying. Use
exact column names. Return chart_config null when a table reads better than a
chart. chart_type is one of bar, line, table, radar, pie.`
