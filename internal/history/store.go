// Package history persists one record per build so past runs can be listed.
package history

import (
	"context"
	"time"
)

// Status is the terminal state of a build.
type Status string

const (
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Record summarizes a finished build.
type Record struct {
	ID          int64
	BuildID     string
	Package     string
	Version     string
	Release     string
	Status      Status
	Archive     string
	FailedStage string
	Error       string
	StartedAt   time.Time
	Duration    time.Duration
	Stages      map[string]time.Duration
}

// Store defines how build records are persisted and retrieved.
type Store interface {
	// Append adds a record.
	Append(ctx context.Context, rec Record) error

	// GetByBuildID returns the record of one build, or ErrNotFound.
	GetByBuildID(ctx context.Context, buildID string) (Record, error)

	// Recent returns up to limit records, newest first. pkg filters by package when non-empty.
	Recent(ctx context.Context, pkg string, limit int) ([]Record, error)

	// Close releases resources.
	Close() error
}

// NoopStore discards every record (default when no history path is configured).
type NoopStore struct{}

func (NoopStore) Append(context.Context, Record) error { return nil }
func (NoopStore) GetByBuildID(context.Context, string) (Record, error) {
	return Record{}, ErrNotFound
}
func (NoopStore) Recent(context.Context, string, int) ([]Record, error) { return nil, nil }
func (NoopStore) Close() error                                          { return nil }
