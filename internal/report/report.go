// Package report holds scouting report types and turns reports into
// downloadable documents.
package report

import (
	"strings"
	"time"
	"unicode"

	"github.com/courtvision/scoutgraph/internal/players"
)

// Archetype classifies a player's style.
type Archetype string

// Archetypes.
const (
	ScoringPlaymaker Archetype = "Scoring Playmaker"
	ThreeAndD        Archetype = "3&D Wing"
	RimProtector     Archetype = "Rim Protector"
	FloorGeneral     Archetype = "Floor General"
	Slasher          Archetype = "Slasher"
	SpotUpShooter    Archetype = "Spot-Up Shooter"
	StretchBig       Archetype = "Stretch Big"
	TwoWayWing       Archetype = "Two-Way Wing"
	AthleticFinisher Archetype = "Athletic Finisher"
	PostScorer       Archetype = "Post Scorer"
)

// Fit rates a player for a national team program.
type Fit string

// Fit ratings.
const (
	StrongFit          Fit = "Strong Fit"
	GoodFit            Fit = "Good Fit"
	DepthConsideration Fit = "Depth Consideration"
	Developmental      Fit = "Developmental"
	NotRecommended     Fit = "Not Recommended"
)

// Point is a titled observation.
type Point struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TrajectoryPoint is one season of progression.
type TrajectoryPoint struct {
	Season           string   `json:"season"`
	PPG              float64  `json:"ppg"`
	TrendDescription string   `json:"trend_description"`
	PercentageChange *float64 `json:"percentage_change,omitempty"`
}

// Assessment rates fit for one team type, such as "Senior 5v5" or "U19".
type Assessment struct {
	TeamType  string `json:"team_type"`
	FitRating Fit    `json:"fit_rating"`
	Rationale string `json:"rationale"`
}

// Recommendation is the final verdict. Grades are letters such as "A-".
type Recommendation struct {
	VerdictTitle         string   `json:"verdict_title"`
	Summary              string   `json:"summary"`
	BestUseCases         []string `json:"best_use_cases"`
	OverallGradeDomestic string   `json:"overall_grade_domestic"`
	OverallGradeNational string   `json:"overall_grade_national"`
}

// Analysis is the model-generated part of a report.
type Analysis struct {
	Archetype               Archetype         `json:"archetype"`
	ArchetypeDescription    string            `json:"archetype_description"`
	Strengths               []Point           `json:"strengths"`
	Weaknesses              []Point           `json:"weaknesses"`
	TrajectoryAnalysis      []TrajectoryPoint `json:"trajectory_analysis"`
	TrajectorySummary       string            `json:"trajectory_summary"`
	NationalTeamAssessments []Assessment      `json:"national_team_assessments"`
	FinalRecommendation     Recommendation    `json:"final_recommendation"`
}

// Profile is the report header.
type Profile struct {
	Name         string `json:"name"`
	Position     string `json:"position,omitempty"`
	JerseyNumber string `json:"jersey_number,omitempty"`
	Height       string `json:"height,omitempty"`
	Age          *int   `json:"age,omitempty"`
	CurrentTeam  string `json:"current_team"`
	League       string `json:"league"`
	PhotoURL     string `json:"player_photo_url,omitempty"`
}

// Report is a complete scouting report.
type Report struct {
	ReportID    string          `json:"report_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Profile     Profile         `json:"player_profile"`
	Detail      *players.Detail `json:"player_detail,omitempty"`
	Analysis
}

// ProfileFromDetail builds the header from a detail record.
func ProfileFromDetail(d *players.Detail, league string) Profile {
	p := Profile{
		Name:        "Unknown Player",
		CurrentTeam: "Unknown Team",
		League:      league,
	}
	if d == nil {
		return p
	}
	if name := strings.TrimSpace(d.FullName); name != "" {
		p.Name = name
	}
	if team := strings.TrimSpace(d.CurrentTeam); team != "" {
		p.CurrentTeam = team
	}
	p.Position = d.Position
	p.JerseyNumber = d.JerseyNumber()
	p.Height = d.Height
	p.Age = d.Age
	p.PhotoURL = d.PhotoURL
	return p
}

// SafeFilename keeps letters, digits, spaces and dashes, replacing anything
// else with an underscore.
func SafeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ' || r == '-' || isAlnum(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "Unknown_Player"
	}
	return out
}

// Slug is the lower-case, dash-separated form of SafeFilename.
func Slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(SafeFilename(name), " ", "-"))
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
