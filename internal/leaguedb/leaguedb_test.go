package leaguedb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed writes a small CEBL database into dir.
func seed(t *testing.T, dir string) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, CEBL+".db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE player_stats (
			full_name TEXT NOT NULL,
			team TEXT NOT NULL,
			season TEXT NOT NULL,
			points_per_game REAL NOT NULL
		);
		INSERT INTO player_stats VALUES
			('Mitch Creek', 'Saskatchewan Rattlers', '2025', 24.1),
			('Jordan Baker', 'Calgary Surge', '2025', 19.4),
			('Sam Lopez', 'Ottawa BlackJacks', '2025', 17.0);
	`)
	require.NoError(t, err)
}

func newSeededPool(t *testing.T) *Pool {
	t.Helper()
	dir := t.TempDir()
	seed(t, dir)
	p := NewPool(dir)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestIDForLeague(t *testing.T) {
	tests := map[string]string{
		"CEBL":       CEBL,
		"U SPORTS":   USports,
		"u sports":   USports,
		"CCAA":       CCAA,
		"HoopQueens": HoopQueens,
		"usports":    USports,
		"":           CEBL,
		"NBA":        CEBL,
	}
	for in, want := range tests {
		assert.Equal(t, want, IDForLeague(in), in)
	}
	assert.Len(t, Leagues(), 4)
	assert.Equal(t, "U SPORTS", DisplayName(USports))
	assert.Equal(t, "HoopQueens", DisplayName("hoopqueens"))
	assert.Equal(t, "CEBL", DisplayName("unknown"))
}

func TestCheckReadOnly(t *testing.T) {
	ok := []string{
		"SELECT * FROM player_stats",
		"select full_name from player_stats;",
		"  -- top scorers\nSELECT full_name FROM player_stats",
		"/* c */ WITH t AS (SELECT 1) SELECT * FROM t",
		"SELECT full_name FROM player_stats WHERE team = 'Drop Zone'",
		"SELECT created_at FROM games",
	}
	for _, q := range ok {
		assert.NoError(t, CheckReadOnly(q), q)
	}

	bad := []string{
		"DELETE FROM player_stats",
		"UPDATE player_stats SET team = 'x'",
		"SELECT 1; DROP TABLE player_stats",
		"WITH x AS (DELETE FROM player_stats RETURNING *) SELECT * FROM x",
		"PRAGMA table_info(player_stats)",
		"ATTACH DATABASE 'other.db' AS o",
		"",
	}
	for _, q := range bad {
		assert.ErrorIs(t, CheckReadOnly(q), ErrNotReadOnly, q)
	}
}

func TestPool_Query(t *testing.T) {
	p := newSeededPool(t)
	ctx := context.Background()

	rows, err := p.Query(ctx, CEBL,
		"SELECT full_name, points_per_game FROM player_stats ORDER BY points_per_game DESC", 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Mitch Creek", rows[0]["full_name"])
	assert.InDelta(t, 24.1, rows[0]["points_per_game"], 1e-9)

	rows, err = p.Query(ctx, CEBL, "SELECT full_name FROM player_stats", 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = p.Query(ctx, CEBL, "SELECT full_name FROM player_stats WHERE season = '1999'", 0)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestPool_RejectsWrites(t *testing.T) {
	p := newSeededPool(t)
	_, err := p.Query(context.Background(), CEBL, "DELETE FROM player_stats", 0)
	require.ErrorIs(t, err, ErrNotReadOnly)
}

func TestPool_HandleIsReadOnly(t *testing.T) {
	p := newSeededPool(t)
	db, err := p.DB(context.Background(), CEBL)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM player_stats")
	require.Error(t, err)
}

func TestPool_ReusesHandle(t *testing.T) {
	p := newSeededPool(t)
	ctx := context.Background()

	a, err := p.DB(ctx, CEBL)
	require.NoError(t, err)
	b, err := p.DB(ctx, CEBL)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestPool_UnknownDatabase(t *testing.T) {
	p := newSeededPool(t)
	_, err := p.Query(context.Background(), CCAA, "SELECT 1", 0)
	require.ErrorIs(t, err, ErrUnknownDatabase)
}

func TestPool_TablesAndDescribe(t *testing.T) {
	p := newSeededPool(t)
	ctx := context.Background()

	tables, err := p.Tables(ctx, CEBL)
	require.NoError(t, err)
	assert.Equal(t, []string{"player_stats"}, tables)

	cols, err := p.Describe(ctx, CEBL, "player_stats")
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, Column{Name: "full_name", Type: "TEXT"}, cols[0])

	_, err = p.Describe(ctx, CEBL, "missing")
	require.Error(t, err)
	_, err = p.Describe(ctx, CEBL, "x; DROP TABLE y")
	require.Error(t, err)
}

func TestPool_Close(t *testing.T) {
	p := newSeededPool(t)
	_, err := p.DB(context.Background(), CEBL)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.DB(context.Background(), CEBL)
	require.ErrorIs(t, err, ErrPoolClosed)
}
