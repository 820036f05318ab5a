package players

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agext/levenshtein"

	"github.com/courtvision/scoutgraph/internal/leaguedb"
)

// rosterQueries selects one row per player appearance for each league.
// Column names differ per database; every query yields full_name plus
// whichever of the optional columns the league has.
var rosterQueries = map[string]string{
	leaguedb.CEBL: `
		SELECT DISTINCT player_id, full_name, team_name_en AS team_name,
			position, season, nationality, photo_url, age
		FROM players`,
	leaguedb.USports: `
		SELECT DISTINCT firstname_initial, last_name,
			firstname_initial || '. ' || last_name AS full_name,
			school AS team_name, season, league AS gender
		FROM player_stats`,
	leaguedb.CCAA: `
		SELECT DISTINCT firstname_initial, last_name,
			firstname_initial || '. ' || last_name AS full_name,
			school AS team_name, season, league AS gender
		FROM player_stats`,
	leaguedb.HoopQueens: `
		SELECT DISTINCT p.id AS player_id,
			p.first_name || ' ' || p.last_name AS full_name,
			t.name AS team_name, p.position, p.season, p.nationality, p.birth_date
		FROM player p
		LEFT JOIN team t ON p.team_id = t.id`,
}

// Roster is the database access DBSearcher needs.
type Roster interface {
	Query(ctx context.Context, id, query string, limit int) ([]leaguedb.Row, error)
}

// DBSearcher matches names against the league databases with a fuzzy
// partial ratio.
type DBSearcher struct {
	db     Roster
	logger *slog.Logger
	now    func() time.Time
}

// NewDBSearcher creates a searcher over db.
func NewDBSearcher(db Roster, logger *slog.Logger) *DBSearcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DBSearcher{db: db, logger: logger, now: time.Now}
}

type aggregate struct {
	fullName    string
	playerID    string
	initial     string
	lastName    string
	gender      string
	nationality string
	photoURL    string
	age         *int
	teams       map[string]struct{}
	seasons     map[string]struct{}
	positions   map[string]struct{}
	score       int
}

// Search implements Searcher. A league that fails to load is logged and
// skipped; the search fails only when every league failed.
func (s *DBSearcher) Search(ctx context.Context, query string, leagues []string, limit, minScore int) ([]Candidate, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []Candidate{}, nil
	}
	if len(leagues) == 0 {
		leagues = []string{leaguedb.CEBL, leaguedb.USports, leaguedb.CCAA, leaguedb.HoopQueens}
	}

	var out []Candidate
	var failures []error
	for _, league := range leagues {
		found, err := s.searchLeague(ctx, query, league, limit, minScore)
		if err != nil {
			s.logger.Warn("player search failed for league", "league", league, "error", err)
			failures = append(failures, err)
			continue
		}
		out = append(out, found...)
	}
	if len(failures) == len(leagues) {
		return nil, fmt.Errorf("search players: %w", failures[0])
	}

	slices.SortStableFunc(out, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Candidate{}
	}
	return out, nil
}

func (s *DBSearcher) searchLeague(ctx context.Context, query, league string, limit, minScore int) ([]Candidate, error) {
	sqlText, ok := rosterQueries[league]
	if !ok {
		return nil, fmt.Errorf("%w: %s", leaguedb.ErrUnknownDatabase, league)
	}
	rows, err := s.db.Query(ctx, league, sqlText, 0)
	if err != nil {
		return nil, err
	}

	byName := map[string]*aggregate{}
	var order []*aggregate
	for _, row := range rows {
		name := text(row["full_name"])
		if name == "" {
			continue
		}
		score := MatchScore(query, name)
		if score < minScore {
			continue
		}
		agg, ok := byName[name]
		if !ok {
			agg = &aggregate{
				fullName:    name,
				playerID:    text(row["player_id"]),
				initial:     text(row["firstname_initial"]),
				lastName:    text(row["last_name"]),
				gender:      text(row["gender"]),
				nationality: text(row["nationality"]),
				photoURL:    text(row["photo_url"]),
				age:         s.age(row),
				teams:       map[string]struct{}{},
				seasons:     map[string]struct{}{},
				positions:   map[string]struct{}{},
				score:       score,
			}
			byName[name] = agg
			order = append(order, agg)
		}
		if team := text(row["team_name"]); team != "" {
			agg.teams[team] = struct{}{}
		}
		if season := text(row["season"]); season != "" {
			agg.seasons[season] = struct{}{}
		}
		if pos := text(row["position"]); pos != "" {
			agg.positions[pos] = struct{}{}
		}
	}

	slices.SortStableFunc(order, func(a, b *aggregate) int {
		return cmp.Compare(b.score, a.score)
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	out := make([]Candidate, 0, len(order))
	for _, agg := range order {
		out = append(out, agg.candidate(league))
	}
	return out, nil
}

func (a *aggregate) candidate(league string) Candidate {
	teams := sortedKeys(a.teams)
	seasons := sortedKeys(a.seasons)
	slices.Reverse(seasons)

	c := Candidate{
		PlayerID:    a.playerID,
		FullName:    a.fullName,
		League:      league,
		Teams:       teams,
		Seasons:     seasons,
		Positions:   sortedKeys(a.positions),
		Nationality: a.nationality,
		Age:         a.age,
		Score:       a.score,
	}

	switch league {
	case leaguedb.USports, leaguedb.CCAA:
		schools := make([]string, len(teams))
		for i, t := range teams {
			schools[i] = strings.ReplaceAll(t, " ", "")
		}
		c.PlayerID = fmt.Sprintf("%s.%s_%s_%s", a.initial, a.lastName, strings.Join(schools, "_"), league)
		if a.gender != "" {
			c.LeagueCategory = WomensLeague
			if a.gender == "mens" {
				c.LeagueCategory = MensLeague
			}
		}
	case leaguedb.CEBL:
		c.LeagueCategory = MensLeague
	case leaguedb.HoopQueens:
		c.LeagueCategory = WomensLeague
	}
	if c.PlayerID == "" {
		c.PlayerID = a.fullName
	}

	photo := strings.TrimSpace(a.photoURL)
	if strings.HasPrefix(photo, "http://") || strings.HasPrefix(photo, "https://") {
		c.PhotoURL = photo
	}
	return c
}

// age reads the age column, falling back to birth_date.
func (s *DBSearcher) age(row leaguedb.Row) *int {
	if v := text(row["age"]); v != "" {
		if n, err := strconv.Atoi(strings.TrimSuffix(v, ".0")); err == nil && n > 0 {
			return &n
		}
	}
	born, err := time.Parse("2006-01-02", text(row["birth_date"]))
	if err != nil {
		return nil
	}
	now := s.now()
	n := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		n--
	}
	return &n
}

// MatchScore scores query against a player name from 0 to 100. Multi-word
// queries also score each word longer than one letter and keep the best.
func MatchScore(query, name string) int {
	query = strings.ToLower(query)
	name = strings.ToLower(name)
	score := PartialRatio(query, name)
	parts := strings.Fields(query)
	if len(parts) > 1 {
		for _, p := range parts {
			if len([]rune(p)) <= 1 {
				continue
			}
			score = max(score, PartialRatio(p, name))
		}
	}
	return score
}

var indel = levenshtein.NewParams().SubCost(2)

// Ratio is the normalized insert/delete similarity of a and b, 0 to 100.
func Ratio(a, b string) int {
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 100
	}
	d := levenshtein.Distance(a, b, indel)
	return int(100*(1-float64(d)/float64(total)) + 0.5)
}

// PartialRatio is the best Ratio between the shorter string and any
// equally long window of the longer one, edges included.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}

	s := string(short)
	best := 0
	m := len(short)
	for i := 1; i < m; i++ {
		best = max(best, Ratio(s, string(long[:i])), Ratio(s, string(long[len(long)-i:])))
	}
	for i := 0; i+m <= len(long); i++ {
		best = max(best, Ratio(s, string(long[i:i+m])))
		if best == 100 {
			break
		}
	}
	return best
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
