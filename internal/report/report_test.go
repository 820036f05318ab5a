package report

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/internal/players"
	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

func sampleAnalysis() Analysis {
	change := 12.5
	return Analysis{
		Archetype:            TwoWayWing,
		ArchetypeDescription: "Defends multiple positions and scores in transition.",
		Strengths:            []Point{{Title: "Transition scoring", Description: "Elite in the open floor."}},
		Weaknesses:           []Point{{Title: "Free throws", Description: "Below 70% for two seasons."}},
		TrajectoryAnalysis: []TrajectoryPoint{
			{Season: "2024", PPG: 21.4, TrendDescription: "Steady"},
			{Season: "2025", PPG: 24.1, TrendDescription: "Up", PercentageChange: &change},
		},
		TrajectorySummary: "Improving every season.",
		NationalTeamAssessments: []Assessment{
			{TeamType: "Senior 5v5", FitRating: GoodFit, Rationale: "Rotation wing."},
		},
		FinalRecommendation: Recommendation{
			VerdictTitle:         "Priority target",
			Summary:              "Ready now.",
			BestUseCases:         []string{"Secondary ball handler"},
			OverallGradeDomestic: "A-",
			OverallGradeNational: "B+",
		},
	}
}

func sampleReport() *Report {
	age := 32
	return &Report{
		ReportID:    "r-1",
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Profile: Profile{
			Name:        "Mitch Creek",
			CurrentTeam: "Saskatchewan Rattlers",
			League:      "CEBL",
			Age:         &age,
		},
		Analysis: sampleAnalysis(),
	}
}

func TestSafeFilename(t *testing.T) {
	tests := map[string]string{
		"Mitch Creek":    "Mitch Creek",
		"D'Andre O'Neil": "D_Andre O_Neil",
		"  Jean-Luc  ":   "Jean-Luc",
		"":               "Unknown_Player",
		"Zoë Ånström":    "Zoë Ånström",
		"a/b\\c":         "a_b_c",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeFilename(in), in)
	}
	assert.Equal(t, "mitch-creek", Slug("Mitch Creek"))
	assert.Equal(t, "d_andre-o_neil", Slug("D'Andre O'Neil"))
}

func TestProfileFromDetail(t *testing.T) {
	p := ProfileFromDetail(nil, "CEBL")
	assert.Equal(t, "Unknown Player", p.Name)
	assert.Equal(t, "Unknown Team", p.CurrentTeam)

	var d players.Detail
	require.NoError(t, json.Unmarshal([]byte(`{
		"player_id": "7", "full_name": "Mitch Creek", "position": "F",
		"additional_info": {"jersey_number": "55"}, "current_team": "Rattlers",
		"height": "6-5", "photo_url": "https://img.example/7.png"
	}`), &d))
	p = ProfileFromDetail(&d, "CEBL")
	assert.Equal(t, "Mitch Creek", p.Name)
	assert.Equal(t, "F", p.Position)
	assert.Equal(t, "55", p.JerseyNumber)
	assert.Equal(t, "6-5", p.Height)
	assert.Equal(t, "Rattlers", p.CurrentTeam)
	assert.Equal(t, "CEBL", p.League)
	assert.Equal(t, "https://img.example/7.png", p.PhotoURL)
}

func TestReport_FlatJSON(t *testing.T) {
	data, err := json.Marshal(sampleReport())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "Two-Way Wing", m["archetype"])
	assert.Contains(t, m, "player_profile")
	assert.Contains(t, m, "final_recommendation")
	assert.NotContains(t, m, "Analysis")
}

func TestAnalysisSchema(t *testing.T) {
	schema, err := llm.CompileSchema(AnalysisSchemaName, AnalysisSchema)
	require.NoError(t, err)

	good, err := json.Marshal(sampleAnalysis())
	require.NoError(t, err)
	var a Analysis
	require.NoError(t, schema.Decode(string(good), &a))
	assert.Equal(t, TwoWayWing, a.Archetype)

	t.Run("unknown archetype", func(t *testing.T) {
		bad := strings.Replace(string(good), "Two-Way Wing", "Sixth Man", 1)
		err := schema.Decode(bad, &a)
		var ve *flowerrors.ValidationError
		require.True(t, errors.As(err, &ve), "got %v", err)
	})

	t.Run("bad grade", func(t *testing.T) {
		bad := strings.Replace(string(good), `"A-"`, `"excellent"`, 1)
		err := schema.Decode(bad, &a)
		var ve *flowerrors.ValidationError
		require.True(t, errors.As(err, &ve), "got %v", err)
	})

	t.Run("not json", func(t *testing.T) {
		err := schema.Decode("the player is good", &a)
		var pe *flowerrors.JSONParseError
		require.True(t, errors.As(err, &pe), "got %v", err)
	})
}

func TestHTMLRenderer(t *testing.T) {
	r, err := NewHTMLRenderer()
	require.NoError(t, err)

	rep := sampleReport()
	rep.Strengths[0].Title = "<script>alert(1)</script>"
	doc, err := r.Render(context.Background(), rep)
	require.NoError(t, err)

	body := string(doc.Body)
	assert.Equal(t, ".html", doc.Ext)
	assert.Contains(t, doc.ContentType, "text/html")
	assert.Contains(t, body, "Mitch Creek")
	assert.Contains(t, body, "Two-Way Wing")
	assert.Contains(t, body, "&#43;12.5%")
	assert.Contains(t, body, "Age 32")
	assert.NotContains(t, body, "<script>alert(1)</script>")

	_, err = r.Render(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilReport)
}
