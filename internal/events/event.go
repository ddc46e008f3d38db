// Package events publishes build lifecycle events to NATS.
package events

import "time"

// Type names a build lifecycle event.
type Type string

const (
	TypeStarted  Type = "started"
	TypeFinished Type = "finished"
)

// BuildEvent is the JSON payload published for each lifecycle event.
type BuildEvent struct {
	Type        Type             `json:"type"`
	BuildID     string           `json:"build_id"`
	Package     string           `json:"package"`
	Version     string           `json:"version,omitempty"`
	Release     string           `json:"release,omitempty"`
	Status      string           `json:"status,omitempty"`
	Archive     string           `json:"archive,omitempty"`
	FailedStage string           `json:"failed_stage,omitempty"`
	Error       string           `json:"error,omitempty"`
	DurationMS  int64            `json:"duration_ms,omitempty"`
	Stages      map[string]int64 `json:"stages_ms,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}
