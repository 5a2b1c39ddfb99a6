package progress

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore keeps the progress state in an embedded SQLite database.
// Each Save runs in one transaction, so a crash mid-save leaves the
// previous snapshot intact, same guarantee as the JSON backend.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	state := DefaultState(s.now())

	var startTime, lastRunTime sql.NullTime
	err := s.db.QueryRowContext(
		ctx,
		`SELECT total_deleted, total_failed, batch_number, remaining_estimate, start_time, last_run_time
		 FROM sweep_meta
		 WHERE id = 1`,
	).Scan(
		&state.TotalDeleted,
		&state.TotalFailed,
		&state.BatchNumber,
		&state.RemainingEstimate,
		&startTime,
		&lastRunTime,
	)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load sweep meta: %w", err)
	}
	if startTime.Valid {
		state.StartTime = startTime.Time
	}
	if lastRunTime.Valid {
		state.LastRunTime = lastRunTime.Time
	}

	state.ProcessedIDs, err = s.loadColumn(ctx, `SELECT id FROM processed_candidates ORDER BY processed_at ASC, id ASC`)
	if err != nil {
		return State{}, fmt.Errorf("load processed candidates: %w", err)
	}
	state.DeletedNoteIDs, err = s.loadColumn(ctx, `SELECT note_id FROM deleted_notes ORDER BY deleted_at ASC, note_id ASC`)
	if err != nil {
		return State{}, fmt.Errorf("load deleted notes: %w", err)
	}
	return state, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state State) error {
	state.LastRunTime = s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(
		ctx,
		`INSERT INTO sweep_meta (
			id, total_deleted, total_failed, batch_number, remaining_estimate, start_time, last_run_time
		) VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_deleted=excluded.total_deleted,
			total_failed=excluded.total_failed,
			batch_number=excluded.batch_number,
			remaining_estimate=excluded.remaining_estimate,
			start_time=excluded.start_time,
			last_run_time=excluded.last_run_time`,
		state.TotalDeleted,
		state.TotalFailed,
		state.BatchNumber,
		state.RemainingEstimate,
		state.StartTime.UTC(),
		state.LastRunTime.UTC(),
	); err != nil {
		return fmt.Errorf("save sweep meta: %w", err)
	}

	for _, id := range state.ProcessedIDs {
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO processed_candidates (id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("save processed candidate %s: %w", id, err)
		}
	}
	for _, noteID := range state.DeletedNoteIDs {
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO deleted_notes (note_id) VALUES (?)`, noteID); err != nil {
			return fmt.Errorf("save deleted note %s: %w", noteID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) loadColumn(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
	return ret, rows.Err()
}
