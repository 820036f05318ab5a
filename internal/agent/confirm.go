package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courtvision/scoutgraph/internal/leaguedb"
	"github.com/courtvision/scoutgraph/internal/players"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// Interrupt kinds raised by ConfirmScouting.
const (
	KindPlayerSelection      = "player_selection_for_scouting"
	KindScoutingConfirmation = "scouting_confirmation"
)

// Confirmation phases saved with each suspend.
const (
	phaseAwaitingSelection    = "awaiting_selection"
	phaseAwaitingConfirmation = "awaiting_confirmation"
)

// confirmStep is ConfirmScouting's progress, persisted with the pending
// interrupt so a resume never repeats the search.
type confirmStep struct {
	Phase      string              `json:"phase"`
	Candidates []players.Candidate `json:"candidates,omitempty"`
	Selected   *players.Candidate  `json:"selected,omitempty"`
}

// SelectionPrompt is the payload of the player selection interrupt.
type SelectionPrompt struct {
	Type          string              `json:"type"`
	Message       string              `json:"message"`
	SearchResults []players.Candidate `json:"search_results"`
}

// ConfirmationPrompt is the payload of the final yes/no interrupt.
type ConfirmationPrompt struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name"`
	PlayerID   string `json:"player_id"`
	League     string `json:"league"`
	Message    string `json:"message"`
}

// ConfirmScouting resolves the requested player and asks for confirmation
// before the scout runs. It suspends twice: once for the user to pick a
// candidate by index and once for a yes/no answer. Only an int index in
// range and the bool true lead to the scout.
func (a *Agent) ConfirmScouting(ctx flowgraph.Context, s State) (Update, error) {
	r := ctx.Resumption()
	if r == nil {
		return a.searchPlayers(ctx, s)
	}

	var step confirmStep
	if err := r.Step(&step); err != nil {
		return Update{}, fmt.Errorf("restore confirmation: %w", err)
	}
	switch step.Phase {
	case phaseAwaitingSelection:
		return selectPlayer(ctx, step, r.Value)
	case phaseAwaitingConfirmation:
		return confirmPlayer(ctx, step, r.Value)
	default:
		return Update{}, fmt.Errorf("restore confirmation: unknown phase %q", step.Phase)
	}
}

func (a *Agent) searchPlayers(ctx flowgraph.Context, s State) (Update, error) {
	name := s.PlayerName
	if name == "" {
		name = value(s.Entities.PlayerName)
	}
	if name == "" {
		return rejected("No player name provided"), nil
	}

	var leagues []string
	if league := knownLeague(s); league != "" {
		leagues = []string{leaguedb.IDForLeague(league)}
	}

	candidates, err := a.cfg.Searcher.Search(ctx, name, leagues, a.cfg.SearchLimit, a.cfg.MinScore)
	if err != nil {
		ctx.Logger().Warn("player search failed", "player_name", name, "error", err)
		return rejected("Search failed: " + flowerrors.UserMessage(err)), nil
	}
	if len(candidates) == 0 {
		return rejected(fmt.Sprintf("No players found matching '%s'", name)), nil
	}

	ctx.Logger().Info("awaiting player selection", "player_name", name, "candidates", len(candidates))
	return Update{}, flowgraph.Suspend(KindPlayerSelection,
		SelectionPrompt{
			Type:          KindPlayerSelection,
			Message:       fmt.Sprintf("Found %d player(s). Select one:", len(candidates)),
			SearchResults: candidates,
		},
		confirmStep{Phase: phaseAwaitingSelection, Candidates: candidates},
	)
}

func selectPlayer(ctx flowgraph.Context, step confirmStep, answer any) (Update, error) {
	idx, ok := selectionIndex(answer)
	if !ok || idx < 0 || idx >= len(step.Candidates) {
		ctx.Logger().Info("invalid player selection", "value", answer, "candidates", len(step.Candidates))
		return rejected("Invalid player selection"), nil
	}

	chosen := step.Candidates[idx]
	league := leaguedb.DisplayName(chosen.League)
	return Update{}, flowgraph.Suspend(KindScoutingConfirmation,
		ConfirmationPrompt{
			Type:       KindScoutingConfirmation,
			PlayerName: chosen.FullName,
			PlayerID:   chosen.PlayerID,
			League:     league,
			Message: fmt.Sprintf("Generate scouting report for %s (%s)? This will analyze stats and generate a PDF.",
				chosen.FullName, league),
		},
		confirmStep{Phase: phaseAwaitingConfirmation, Selected: &chosen},
	)
}

func confirmPlayer(ctx flowgraph.Context, step confirmStep, answer any) (Update, error) {
	if step.Selected == nil {
		return Update{}, fmt.Errorf("restore confirmation: no selected player")
	}
	chosen := step.Selected
	u := Update{
		PlayerID:   ptr(chosen.PlayerID),
		PlayerName: ptr(chosen.FullName),
		League:     ptr(leaguedb.DisplayName(chosen.League)),
	}

	yes, ok := answer.(bool)
	switch {
	case !ok:
		ctx.Logger().Info("invalid scouting confirmation", "value", answer)
		u.ScoutingReportConfirmed = ptr(false)
		u.Error = ptr("Invalid confirmation")
	case !yes:
		u.ScoutingReportConfirmed = ptr(false)
		u.Error = ptr("Scouting report cancelled by user")
	default:
		u.ScoutingReportConfirmed = ptr(true)
		u.ClearError = true
	}
	return u, nil
}

// selectionIndex accepts integer types only. Numeric strings, fractional
// numbers and bools are not indices.
func selectionIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// knownLeague returns the conversation's league when it names one of the
// known leagues, and "" otherwise so the search covers every league.
func knownLeague(s State) string {
	league := s.League
	if league == "" {
		league = value(s.Entities.League)
	}
	for _, name := range leaguedb.Leagues() {
		if strings.EqualFold(name, league) {
			return name
		}
	}
	return ""
}

func rejected(msg string) Update {
	u := failure(msg)
	u.ScoutingReportConfirmed = ptr(false)
	return u
}
