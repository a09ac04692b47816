package telemetry

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doublecapcrimpin/openpilot/internal/ptypes"
	"gonum.org/v1/gonum/stat"
)

//go:embed schema.sql
var schemaSQL string

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists planner ticks and FCW events for offline review. It wraps
// a database/sql handle (a connection pool) on one SQLite file; the planner
// writes one row per tick from a single goroutine.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the SQLite database at path and
// brings its schema up to date. A fresh database gets schema.sql applied
// directly; an existing one is migrated forward via golang-migrate so
// upgrades from older recordings keep working.
func OpenStore(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{db: sqlDB}

	var hasMigrationsTable bool
	err = sqlDB.QueryRow(`SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name='schema_migrations'`).Scan(&hasMigrationsTable)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("check schema_migrations: %w", err)
	}

	if !hasMigrationsTable {
		var tableCount int
		if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`).Scan(&tableCount); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("count tables: %w", err)
		}
		if tableCount == 0 {
			for _, stmt := range strings.Split(schemaSQL, ";") {
				stmt = strings.TrimSpace(stmt)
				if stmt == "" {
					continue
				}
				if _, err := sqlDB.Exec(stmt); err != nil {
					sqlDB.Close()
					return nil, fmt.Errorf("apply schema.sql: %w", err)
				}
			}
			return s, nil
		}
	}

	if err := migrateUp(s, migrationsFS); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// applyPragmas applies the essential SQLite PRAGMAs for a single-writer,
// WAL-mode database.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("exec %q: %w", p, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTick persists one planner tick for sessionID. events is the list of
// sub-event types, already flattened by the caller; it is stored as one
// comma-joined string since SQLite has no native array column.
func (s *Store) RecordTick(now time.Time, sessionID string, plan ptypes.Plan, events []ptypes.EventType) error {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = string(e)
	}
	_, err := s.db.Exec(
		`INSERT INTO ticks (session_id, ts_unix_nano, v_cruise, a_cruise, v_target, a_target, plan_source, has_lead, fcw, events)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, now.UnixNano(), plan.VCruise, plan.ACruise, plan.VTarget, plan.ATarget,
		plan.LongitudinalPlanSource, boolToInt(plan.HasLead), boolToInt(plan.FCW), strings.Join(parts, ","),
	)
	if err != nil {
		return fmt.Errorf("record tick: %w", err)
	}
	return nil
}

// RecordFCW persists a forward-collision-warning firing, keyed by the
// minimum predicted acceleration that triggered it.
func (s *Store) RecordFCW(now time.Time, sessionID string, minA float64) error {
	_, err := s.db.Exec(
		`INSERT INTO fcw_events (session_id, ts_unix_nano, min_a) VALUES (?, ?, ?)`,
		sessionID, now.UnixNano(), minA,
	)
	if err != nil {
		return fmt.Errorf("record fcw event: %w", err)
	}
	return nil
}

// VCruiseQuantiles reports the p50/p85/p98 of v_cruise recorded for
// sessionID, using gonum/stat's empirical quantile estimator.
func (s *Store) VCruiseQuantiles(sessionID string) (p50, p85, p98 float64, err error) {
	rows, err := s.db.Query(`SELECT v_cruise FROM ticks WHERE session_id = ? ORDER BY v_cruise ASC`, sessionID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("query v_cruise: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return 0, 0, 0, fmt.Errorf("scan v_cruise: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, 0, err
	}
	if len(values) == 0 {
		return 0, 0, 0, nil
	}

	sort.Float64s(values)
	p50 = stat.Quantile(0.50, stat.Empirical, values, nil)
	p85 = stat.Quantile(0.85, stat.Empirical, values, nil)
	p98 = stat.Quantile(0.98, stat.Empirical, values, nil)
	return p50, p85, p98, nil
}

// RecentTicks returns the last limit ticks for sessionID, most recent
// first, for dashboard rendering.
func (s *Store) RecentTicks(sessionID string, limit int) ([]TickRow, error) {
	rows, err := s.db.Query(
		`SELECT ts_unix_nano, v_cruise, a_cruise, v_target, a_target, plan_source, has_lead, fcw
		 FROM ticks WHERE session_id = ? ORDER BY ts_unix_nano DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent ticks: %w", err)
	}
	defer rows.Close()

	var out []TickRow
	for rows.Next() {
		var t TickRow
		var hasLead, fcw int
		if err := rows.Scan(&t.TsUnixNano, &t.VCruise, &t.ACruise, &t.VTarget, &t.ATarget, &t.PlanSource, &hasLead, &fcw); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		t.HasLead = hasLead != 0
		t.FCW = fcw != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// TickRow is one row of recorded tick history, used by RecentTicks and the
// dashboard renderer.
type TickRow struct {
	TsUnixNano int64
	VCruise    float64
	ACruise    float64
	VTarget    float64
	ATarget    float64
	PlanSource string
	HasLead    bool
	FCW        bool
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
