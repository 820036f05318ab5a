package agent

import (
	"slices"

	"github.com/courtvision/scoutgraph/internal/leaguedb"
	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/internal/report"
	"github.com/courtvision/scoutgraph/internal/sqlagent"
)

// Role tags a conversation message.
type Role string

// Message roles.
const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Human returns a human message.
func Human(text string) Message {
	return Message{Role: RoleHuman, Content: text}
}

// Assistant returns an assistant message.
func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// Intent is the classified purpose of a turn.
type Intent string

// Intents the router can choose.
const (
	IntentStats     Intent = "stats_query"
	IntentScouting  Intent = "scouting_report"
	IntentText      Intent = "text_response"
	IntentTerminate Intent = "terminate"
)

// Intents lists every valid intent.
func Intents() []Intent {
	return []Intent{IntentStats, IntentScouting, IntentText, IntentTerminate}
}

// ParseIntent validates s against the closed intent set.
func ParseIntent(s string) (Intent, bool) {
	i := Intent(s)
	if slices.Contains(Intents(), i) {
		return i, true
	}
	return "", false
}

// Entities are the slot values extracted from the conversation. They carry
// over between turns, except QueryContext, which describes only the current
// turn.
type Entities struct {
	PlayerName   *string `json:"player_name,omitempty"`
	League       *string `json:"league,omitempty"`
	Season       *string `json:"season,omitempty"`
	QueryContext *string `json:"query_context,omitempty"`
}

// Merge overlays the non-empty values of in onto e. A missing value never
// clears a stored one.
func (e Entities) Merge(in Entities) Entities {
	e.PlayerName = sticky(e.PlayerName, in.PlayerName)
	e.League = sticky(e.League, in.League)
	e.Season = sticky(e.Season, in.Season)
	e.QueryContext = sticky(e.QueryContext, in.QueryContext)
	return e
}

func sticky(cur, in *string) *string {
	if in == nil || *in == "" {
		return cur
	}
	v := *in
	return &v
}

// value dereferences p, returning "" for nil.
func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptr[T any](v T) *T {
	return &v
}

// QueryResult is the output of a stats lookup.
type QueryResult struct {
	Data        []leaguedb.Row        `json:"data"`
	SQLQuery    string                `json:"sql_query,omitempty"`
	DBName      string                `json:"db_name"`
	ChartConfig *sqlagent.ChartConfig `json:"chart_config"`
	SummaryText string                `json:"summary_text"`
}

// Response types.
const (
	ResponseText     = "text_response"
	ResponseQuery    = "query_result"
	ResponseScouting = "scouting_report_plan"
)

// Response is the payload shown to the user at the end of a turn.
type Response struct {
	ResponseType   string                `json:"response_type"`
	MainResponse   string                `json:"main_response"`
	Data           []leaguedb.Row        `json:"data,omitempty"`
	ChartConfig    *sqlagent.ChartConfig `json:"chart_config,omitempty"`
	QueryResult    *QueryResult          `json:"query_result,omitempty"`
	ScoutingReport *report.Report        `json:"scouting_report,omitempty"`
	PDFURL         *string               `json:"pdf_url,omitempty"`
}

// State is the conversation state of one session. It is only changed by
// merging node updates.
type State struct {
	Messages         []Message `json:"messages"`
	CurrentUserQuery string    `json:"current_user_query"`
	Intent           Intent    `json:"intent,omitempty"`
	Entities         Entities  `json:"entities"`

	PlayerID   string `json:"player_id,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	League     string `json:"league,omitempty"`

	QueryResult             *QueryResult   `json:"query_result,omitempty"`
	ScoutingReportConfirmed bool           `json:"scouting_report_confirmed"`
	ScoutingReport          *report.Report `json:"scouting_report,omitempty"`
	PDFURL                  *string        `json:"pdf_url,omitempty"`

	Error            *string   `json:"error,omitempty"`
	RoutingIteration int       `json:"routing_iteration"`
	Response         *Response `json:"response,omitempty"`

	// Turn counts fresh turns.
	Turn int `json:"turn"`
}

// History converts the conversation to model messages.
func (s State) History() []llm.Message {
	out := make([]llm.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// LastHuman returns the newest human message, or "".
func (s State) LastHuman() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleHuman {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Update is a node's partial change to State. Nil fields are left alone.
type Update struct {
	// Messages are appended.
	Messages []Message `json:"messages,omitempty"`

	CurrentUserQuery *string   `json:"current_user_query,omitempty"`
	Intent           *Intent   `json:"intent,omitempty"`
	Entities         *Entities `json:"entities,omitempty"`

	PlayerID   *string `json:"player_id,omitempty"`
	PlayerName *string `json:"player_name,omitempty"`
	League     *string `json:"league,omitempty"`

	QueryResult             *QueryResult   `json:"query_result,omitempty"`
	ScoutingReportConfirmed *bool          `json:"scouting_report_confirmed,omitempty"`
	ScoutingReport          *report.Report `json:"scouting_report,omitempty"`
	PDFURL                  *string        `json:"pdf_url,omitempty"`

	Error            *string   `json:"error,omitempty"`
	RoutingIteration *int      `json:"routing_iteration,omitempty"`
	Response         *Response `json:"response,omitempty"`

	// ClearError removes a stored error before Error is applied.
	ClearError bool `json:"-"`
	// ClearReport removes the stored report and link.
	ClearReport bool `json:"-"`
	// NewTurn resets the per-turn results and advances Turn.
	NewTurn bool `json:"-"`
}

// Input is the update for a fresh user turn.
func Input(text string) Update {
	return Update{
		Messages:         []Message{Human(text)},
		CurrentUserQuery: &text,
		NewTurn:          true,
	}
}

// failure returns an update that records msg as the error.
func failure(msg string) Update {
	return Update{Error: &msg}
}

// Merge applies u to s. Messages are appended, entities merged stickily and
// every other field is last-write-wins.
func Merge(s State, u Update) State {
	if u.NewTurn {
		s.Turn++
		s.Entities.QueryContext = nil
		s.QueryResult = nil
		s.ScoutingReport = nil
		s.PDFURL = nil
		s.Error = nil
		s.Response = nil
		s.ScoutingReportConfirmed = false
	}
	if u.ClearError {
		s.Error = nil
	}
	if u.ClearReport {
		s.ScoutingReport = nil
		s.PDFURL = nil
	}

	if len(u.Messages) > 0 {
		s.Messages = slices.Concat(s.Messages, u.Messages)
	}
	if u.CurrentUserQuery != nil {
		s.CurrentUserQuery = *u.CurrentUserQuery
	}
	if u.Intent != nil {
		s.Intent = *u.Intent
	}
	if u.Entities != nil {
		s.Entities = s.Entities.Merge(*u.Entities)
	}
	if u.PlayerID != nil {
		s.PlayerID = *u.PlayerID
	}
	if u.PlayerName != nil {
		s.PlayerName = *u.PlayerName
	}
	if u.League != nil {
		s.League = *u.League
	}
	if u.QueryResult != nil {
		s.QueryResult = u.QueryResult
	}
	if u.ScoutingReportConfirmed != nil {
		s.ScoutingReportConfirmed = *u.ScoutingReportConfirmed
	}
	if u.ScoutingReport != nil {
		s.ScoutingReport = u.ScoutingReport
	}
	if u.PDFURL != nil {
		s.PDFURL = u.PDFURL
	}
	if u.Error != nil {
		s.Error = u.Error
	}
	if u.RoutingIteration != nil {
		s.RoutingIteration = *u.RoutingIteration
	}
	if u.Response != nil {
		s.Response = u.Response
	}
	return s
}
