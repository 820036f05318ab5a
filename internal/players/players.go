// Package players finds players across the league databases and fetches
// their detail records from the stats API.
package players

import (
	"context"
	"encoding/json"
	"strconv"
)

// League categories.
const (
	MensLeague   = "men's"
	WomensLeague = "women's"
)

// Candidate is one aggregated search hit.
type Candidate struct {
	PlayerID       string   `json:"player_id"`
	FullName       string   `json:"full_name"`
	League         string   `json:"league"`
	LeagueCategory string   `json:"league_category,omitempty"`
	Teams          []string `json:"teams"`
	Seasons        []string `json:"seasons"`
	Positions      []string `json:"positions"`
	Nationality    string   `json:"nationality,omitempty"`
	Age            *int     `json:"age,omitempty"`
	PhotoURL       string   `json:"photo_url,omitempty"`
	Score          int      `json:"score"`
}

// Searcher finds players by name. leagues holds database ids; empty means
// every league. limit caps the merged, score-ordered result.
type Searcher interface {
	Search(ctx context.Context, query string, leagues []string, limit, minScore int) ([]Candidate, error)
}

// ID is a player identifier that may arrive as a JSON string or number.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Detail is the stats API record for one player.
type Detail struct {
	PlayerID       ID               `json:"player_id"`
	FullName       string           `json:"full_name"`
	League         string           `json:"league"`
	Position       string           `json:"position,omitempty"`
	Seasons        []map[string]any `json:"seasons"`
	CareerStats    []map[string]any `json:"career_stats"`
	AdditionalInfo map[string]any   `json:"additional_info,omitempty"`
	Nationality    string           `json:"nationality,omitempty"`
	BirthDate      string           `json:"birth_date,omitempty"`
	Age            *int             `json:"age,omitempty"`
	PhotoURL       string           `json:"photo_url,omitempty"`
	CurrentTeam    string           `json:"current_team,omitempty"`
	Height         string           `json:"height,omitempty"`
}

// JerseyNumber reads additional_info.jersey_number as text.
func (d *Detail) JerseyNumber() string {
	switch v := d.AdditionalInfo["jersey_number"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}
