package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates) the history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases alive across queries.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL UNIQUE,
		package TEXT NOT NULL,
		version TEXT,
		release TEXT,
		status TEXT NOT NULL,
		archive TEXT,
		failed_stage TEXT,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		stages TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_package ON builds(package);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds rec to the store.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stages := make(map[string]int64, len(rec.Stages))
	for name, d := range rec.Stages {
		stages[name] = d.Milliseconds()
	}
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO builds (build_id, package, version, release, status, archive, failed_stage, error, started_at, duration_ms, stages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BuildID, rec.Package, rec.Version, rec.Release, string(rec.Status), rec.Archive,
		rec.FailedStage, rec.Error, rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(), string(stagesJSON),
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

const selectColumns = "SELECT id, build_id, package, version, release, status, archive, failed_stage, error, started_at, duration_ms, stages FROM builds"

// GetByBuildID returns the record of one build.
func (s *SQLiteStore) GetByBuildID(ctx context.Context, buildID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE build_id = ?", buildID)
	if err != nil {
		return Record{}, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, ErrNotFound
	}
	return records[0], nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, pkg string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	var (
		rows *sql.Rows
		err  error
	)
	if pkg == "" {
		rows, err = s.db.QueryContext(ctx, selectColumns+" ORDER BY id DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.QueryContext(ctx, selectColumns+" WHERE package = ? ORDER BY id DESC LIMIT ?", pkg, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec                                      Record
			status                                   string
			version, release, archive, stage, errMsg sql.NullString
			stagesJSON                               sql.NullString
			startedMS, durationMS                    int64
		)
		err := rows.Scan(&rec.ID, &rec.BuildID, &rec.Package, &version, &release, &status,
			&archive, &stage, &errMsg, &startedMS, &durationMS, &stagesJSON)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		rec.Version = version.String
		rec.Release = release.String
		rec.Status = Status(status)
		rec.Archive = archive.String
		rec.FailedStage = stage.String
		rec.Error = errMsg.String
		rec.StartedAt = time.UnixMilli(startedMS).UTC()
		rec.Duration = time.Duration(durationMS) * time.Millisecond

		if stagesJSON.Valid && stagesJSON.String != "" {
			var stages map[string]int64
			if err := json.Unmarshal([]byte(stagesJSON.String), &stages); err != nil {
				return nil, fmt.Errorf("unmarshal stages: %w", err)
			}
			rec.Stages = make(map[string]time.Duration, len(stages))
			for name, ms := range stages {
				rec.Stages[name] = time.Duration(ms) * time.Millisecond
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// IsNotFound reports whether err means no record matched.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
