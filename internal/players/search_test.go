package players

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/internal/leaguedb"
)

func seedDB(t *testing.T, dir, id, ddl string) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, id+".db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(ddl)
	require.NoError(t, err)
}

func newSearcher(t *testing.T) *DBSearcher {
	t.Helper()
	dir := t.TempDir()
	seedDB(t, dir, leaguedb.CEBL, `
		CREATE TABLE players (
			player_id INTEGER, full_name TEXT, team_name_en TEXT, position TEXT,
			season TEXT, nationality TEXT, photo_url TEXT, age INTEGER
		);
		INSERT INTO players VALUES
			(1, 'Mitch Creek', 'Saskatchewan Rattlers', 'F', '2024', 'AUS', 'https://img.example/1.png', 32),
			(1, 'Mitch Creek', 'Saskatchewan Rattlers', 'F', '2025', 'AUS', 'https://img.example/1.png', 32),
			(2, 'Jordan Baker', 'Calgary Surge', 'G', '2025', 'CAN', 'not-a-url', NULL);
	`)
	seedDB(t, dir, leaguedb.USports, `
		CREATE TABLE player_stats (
			firstname_initial TEXT, last_name TEXT, school TEXT, season TEXT, league TEXT
		);
		INSERT INTO player_stats VALUES
			('M', 'Creek', 'Carleton', '2023', 'mens'),
			('M', 'Creek', 'Ottawa U', '2024', 'mens');
	`)
	seedDB(t, dir, leaguedb.HoopQueens, `
		CREATE TABLE team (id INTEGER, name TEXT);
		CREATE TABLE player (
			id INTEGER, first_name TEXT, last_name TEXT, team_id INTEGER,
			position TEXT, season INTEGER, nationality TEXT, birth_date TEXT
		);
		INSERT INTO team VALUES (7, 'Hamilton Harlots');
		INSERT INTO player VALUES (55, 'Aaliyah', 'Edwards', 7, 'F', 2025, 'CAN', '2002-08-30');
	`)

	pool := leaguedb.NewPool(dir)
	t.Cleanup(func() { _ = pool.Close() })
	s := NewDBSearcher(pool, nil)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100, Ratio("abc", "abc"))
	assert.Equal(t, 100, Ratio("", ""))
	assert.Equal(t, 100, PartialRatio("creek", "mitch creek"))
	assert.Equal(t, 100, PartialRatio("mitch creek", "creek"))
	assert.Equal(t, 0, PartialRatio("", "creek"))
	assert.Less(t, PartialRatio("creek", "jordan baker"), 80)
}

func TestMatchScore(t *testing.T) {
	assert.Equal(t, 100, MatchScore("Mitch Creek", "mitch creek"))
	// Each word is tried on its own.
	assert.Equal(t, 100, MatchScore("mitch creek", "M. Creek"))
	// Single letters are not scored alone.
	assert.Less(t, MatchScore("j x", "Mitch Creek"), 80)
}

func TestSearch_AcrossLeagues(t *testing.T) {
	s := newSearcher(t)

	got, err := s.Search(context.Background(), "creek", nil, 20, 80)
	require.NoError(t, err)
	require.Len(t, got, 2)

	cebl := got[0]
	assert.Equal(t, "1", cebl.PlayerID)
	assert.Equal(t, "Mitch Creek", cebl.FullName)
	assert.Equal(t, leaguedb.CEBL, cebl.League)
	assert.Equal(t, MensLeague, cebl.LeagueCategory)
	assert.Equal(t, []string{"Saskatchewan Rattlers"}, cebl.Teams)
	assert.Equal(t, []string{"2025", "2024"}, cebl.Seasons)
	assert.Equal(t, []string{"F"}, cebl.Positions)
	assert.Equal(t, "https://img.example/1.png", cebl.PhotoURL)
	require.NotNil(t, cebl.Age)
	assert.Equal(t, 32, *cebl.Age)
	assert.Equal(t, 100, cebl.Score)

	us := got[1]
	assert.Equal(t, "M.Creek_Carleton_OttawaU_usports", us.PlayerID)
	assert.Equal(t, "M. Creek", us.FullName)
	assert.Equal(t, []string{"Carleton", "Ottawa U"}, us.Teams)
	assert.Equal(t, []string{"2024", "2023"}, us.Seasons)
	assert.Equal(t, MensLeague, us.LeagueCategory)
}

func TestSearch_ScopedToLeague(t *testing.T) {
	s := newSearcher(t)

	got, err := s.Search(context.Background(), "Jordan", []string{leaguedb.CEBL}, 20, 80)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].PlayerID)
	assert.Empty(t, got[0].PhotoURL, "non-http photo urls are dropped")
	assert.Nil(t, got[0].Age)
}

func TestSearch_AgeFromBirthDate(t *testing.T) {
	s := newSearcher(t)

	got, err := s.Search(context.Background(), "aaliyah edwards", []string{leaguedb.HoopQueens}, 20, 80)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "55", got[0].PlayerID)
	assert.Equal(t, WomensLeague, got[0].LeagueCategory)
	assert.Equal(t, []string{"Hamilton Harlots"}, got[0].Teams)
	require.NotNil(t, got[0].Age)
	assert.Equal(t, 22, *got[0].Age)
}

func TestSearch_NoMatches(t *testing.T) {
	s := newSearcher(t)

	got, err := s.Search(context.Background(), "zzzzzz", []string{leaguedb.CEBL}, 20, 80)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = s.Search(context.Background(), "   ", nil, 20, 80)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_LimitPerLeague(t *testing.T) {
	s := newSearcher(t)

	got, err := s.Search(context.Background(), "a", []string{leaguedb.CEBL}, 1, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSearch_LimitAcrossLeagues(t *testing.T) {
	dir := t.TempDir()
	var cebl, usports strings.Builder
	for i := 1; i <= 15; i++ {
		fmt.Fprintf(&cebl, "INSERT INTO players VALUES (%d, 'Creek %d', 'Calgary Surge', 'G', '2025', 'CAN', '', 24);\n", i, i)
		fmt.Fprintf(&usports, "INSERT INTO player_stats VALUES ('M', 'Creek%d', 'Carleton', '2024', 'mens');\n", i)
	}
	seedDB(t, dir, leaguedb.CEBL, `CREATE TABLE players (
		player_id INTEGER, full_name TEXT, team_name_en TEXT, position TEXT,
		season TEXT, nationality TEXT, photo_url TEXT, age INTEGER
	);`+cebl.String())
	seedDB(t, dir, leaguedb.USports, `CREATE TABLE player_stats (
		firstname_initial TEXT, last_name TEXT, school TEXT, season TEXT, league TEXT
	);`+usports.String())
	pool := leaguedb.NewPool(dir)
	t.Cleanup(func() { _ = pool.Close() })
	s := NewDBSearcher(pool, nil)

	got, err := s.Search(context.Background(), "creek", []string{leaguedb.CEBL, leaguedb.USports}, 20, 0)
	require.NoError(t, err)
	require.Len(t, got, 20)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestSearch_AllLeaguesFail(t *testing.T) {
	pool := leaguedb.NewPool(t.TempDir())
	t.Cleanup(func() { _ = pool.Close() })
	s := NewDBSearcher(pool, nil)

	_, err := s.Search(context.Background(), "creek", nil, 20, 80)
	require.Error(t, err)
	assert.ErrorIs(t, err, leaguedb.ErrUnknownDatabase)
}
