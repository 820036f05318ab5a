// Package leaguedb serves read-only access to the per-league statistics
// databases.
package leaguedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Database identifiers.
const (
	CEBL       = "cebl"
	USports    = "usports"
	CCAA       = "ccaa"
	HoopQueens = "hoopqueens"
)

// leagueIDs maps display names to database identifiers.
var leagueIDs = map[string]string{
	"CEBL":       CEBL,
	"U SPORTS":   USports,
	"CCAA":       CCAA,
	"HoopQueens": HoopQueens,
}

// IDForLeague returns the database identifier for a league display name.
// Unknown or empty names map to CEBL.
func IDForLeague(league string) string {
	if id, ok := leagueIDs[league]; ok {
		return id
	}
	for name, id := range leagueIDs {
		if strings.EqualFold(name, league) || strings.EqualFold(id, league) {
			return id
		}
	}
	return CEBL
}

// DisplayName returns the display name for a league id or name. Unknown
// values map to CEBL.
func DisplayName(league string) string {
	id := IDForLeague(league)
	for name, v := range leagueIDs {
		if v == id {
			return name
		}
	}
	return "CEBL"
}

// Leagues returns the known display names in a stable order.
func Leagues() []string {
	return []string{"CEBL", "U SPORTS", "CCAA", "HoopQueens"}
}

// Sentinel errors.
var (
	ErrUnknownDatabase = errors.New("leaguedb: unknown database")
	ErrNotReadOnly     = errors.New("leaguedb: only SELECT statements are allowed")
	ErrPoolClosed      = errors.New("leaguedb: pool closed")
)

// Pool opens one read-only handle per league database on first use and
// closes them all on Close.
type Pool struct {
	dir string

	mu     sync.Mutex
	dbs    map[string]*sql.DB
	closed bool
}

// NewPool creates a Pool over the directory holding <id>.db files.
func NewPool(dir string) *Pool {
	return &Pool{dir: dir, dbs: make(map[string]*sql.DB)}
}

// Path returns the file path for database id.
func (p *Pool) Path(id string) string {
	return filepath.Join(p.dir, id+".db")
}

// DB returns the handle for id, opening it if needed.
func (p *Pool) DB(ctx context.Context, id string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if db, ok := p.dbs[id]; ok {
		return db, nil
	}

	path := p.Path(id)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownDatabase, id, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	p.dbs[id] = db
	return db, nil
}

// Close closes every open handle.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for id, db := range p.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	p.dbs = nil
	return errors.Join(errs...)
}

// Row is one result row keyed by column name.
type Row map[string]any

var (
	leadingComments = regexp.MustCompile(`(?s)^\s*(--[^\n]*\n\s*|/\*.*?\*/\s*)*`)
	writeKeywords   = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|attach|detach|pragma|vacuum|reindex)\b`)
)

// CheckReadOnly rejects anything but a single SELECT (or WITH ... SELECT)
// statement.
func CheckReadOnly(query string) error {
	q := strings.TrimSpace(leadingComments.ReplaceAllString(query, ""))
	q = strings.TrimSuffix(q, ";")
	lower := strings.ToLower(q)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return ErrNotReadOnly
	}
	if strings.Contains(q, ";") {
		return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	if writeKeywords.MatchString(stripStrings(q)) {
		return ErrNotReadOnly
	}
	return nil
}

// stripStrings blanks quoted literals so keywords inside them are ignored.
func stripStrings(q string) string {
	var b strings.Builder
	var quote rune
	for _, r := range q {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
		case r == '\'' || r == '"':
			quote = r
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Query runs a read-only query against database id and returns at most
// limit rows. A limit of zero returns every row.
func (p *Pool) Query(ctx context.Context, id, query string, limit int) ([]Row, error) {
	if err := CheckReadOnly(query); err != nil {
		return nil, err
	}
	db, err := p.DB(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", id, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// Tables lists the user tables in database id.
func (p *Pool) Tables(ctx context.Context, id string) ([]string, error) {
	rows, err := p.Query(ctx, id,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name", 0)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if s, ok := r["name"].(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

// Column describes one table column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Describe returns the columns of table in database id.
func (p *Pool) Describe(ctx context.Context, id, table string) ([]Column, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := p.DB(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return cols, nil
}
