package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/dshills/debugstate/internal/integration/debug"
)

const schema = `
CREATE TABLE IF NOT EXISTS breakpoints (
	id             TEXT PRIMARY KEY,
	file_path      TEXT NOT NULL,
	line           INTEGER NOT NULL,
	enabled        INTEGER NOT NULL DEFAULT 1,
	condition_expr TEXT NOT NULL DEFAULT '',
	hit_condition  TEXT NOT NULL DEFAULT '',
	log_message    TEXT NOT NULL DEFAULT '',
	position       INTEGER NOT NULL,
	UNIQUE (file_path, line)
);
CREATE TABLE IF NOT EXISTS watch_expressions (
	position   INTEGER PRIMARY KEY,
	expression TEXT NOT NULL UNIQUE
);`

// SQLiteStore keeps the state in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// OpenSQLiteStore opens or creates the database at path. ":memory:" opens
// a private in-memory database.
func OpenSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite store path is required")
	}
	o := buildOptions(opts)

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, log: o.log.WithField("store", "sqlite")}, nil
}

// Load reads all rows.
func (s *SQLiteStore) Load(ctx context.Context) (debug.PersistedState, error) {
	st := debug.PersistedState{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, line, enabled, condition_expr, hit_condition, log_message
		FROM breakpoints ORDER BY file_path, position`)
	if err != nil {
		return st, fmt.Errorf("query breakpoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bp debug.Breakpoint
		if err := rows.Scan(&bp.ID, &bp.FilePath, &bp.Line, &bp.Enabled,
			&bp.Condition, &bp.HitCondition, &bp.LogMessage); err != nil {
			return debug.PersistedState{}, fmt.Errorf("scan breakpoint: %w", err)
		}
		if st.Breakpoints == nil {
			st.Breakpoints = make(map[string][]debug.Breakpoint)
		}
		st.Breakpoints[bp.FilePath] = append(st.Breakpoints[bp.FilePath], bp)
	}
	if err := rows.Err(); err != nil {
		return debug.PersistedState{}, fmt.Errorf("read breakpoints: %w", err)
	}

	wrows, err := s.db.QueryContext(ctx, `SELECT expression FROM watch_expressions ORDER BY position`)
	if err != nil {
		return debug.PersistedState{}, fmt.Errorf("query watch expressions: %w", err)
	}
	defer wrows.Close()

	for wrows.Next() {
		var expr string
		if err := wrows.Scan(&expr); err != nil {
			return debug.PersistedState{}, fmt.Errorf("scan watch expression: %w", err)
		}
		st.WatchExpressions = append(st.WatchExpressions, expr)
	}
	if err := wrows.Err(); err != nil {
		return debug.PersistedState{}, fmt.Errorf("read watch expressions: %w", err)
	}
	return st, nil
}

// Save replaces all rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, st debug.PersistedState) (err error) {
	st = normalize(st)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM breakpoints`); err != nil {
		return fmt.Errorf("clear breakpoints: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM watch_expressions`); err != nil {
		return fmt.Errorf("clear watch expressions: %w", err)
	}

	for path, bps := range st.Breakpoints {
		for i, bp := range bps {
			enabled := 0
			if bp.Enabled {
				enabled = 1
			}
			if _, err = tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO breakpoints
				(id, file_path, line, enabled, condition_expr, hit_condition, log_message, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				bp.ID, path, bp.Line, enabled, bp.Condition, bp.HitCondition, bp.LogMessage, i); err != nil {
				return fmt.Errorf("insert breakpoint %s:%d: %w", path, bp.Line, err)
			}
		}
	}
	for i, expr := range st.WatchExpressions {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO watch_expressions (position, expression) VALUES (?, ?)`,
			i, expr); err != nil {
			return fmt.Errorf("insert watch expression: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.WithField("files", len(st.Breakpoints)).Debug("saved debug state")
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
