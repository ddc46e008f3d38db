package build

import (
	"time"

	"git.home.luguber.info/inful/pkgbuilder/internal/source"
)

// StageTiming is the duration of one executed stage.
type StageTiming struct {
	Stage    StageName     `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Report collects what happened during one build.
type Report struct {
	BuildID         string            `json:"build_id"`
	Package         string            `json:"package,omitempty"`
	Start           time.Time         `json:"start"`
	End             time.Time         `json:"end"`
	Stages          []StageTiming     `json:"stages"`
	FailedStage     StageName         `json:"failed_stage,omitempty"`
	ErrorKind       StageErrorKind    `json:"error_kind,omitempty"`
	Error           string            `json:"error,omitempty"`
	Sources         []source.Resolved `json:"-"`
	FailedSource    *source.Error     `json:"-"`
	Size            int64             `json:"size"`
	ManifestEntries int               `json:"manifest_entries"`
	ArchiveEntries  int               `json:"archive_entries"`
	Archive         string            `json:"archive,omitempty"`
}

func newReport(buildID string, start time.Time) *Report {
	return &Report{BuildID: buildID, Start: start}
}

func (r *Report) recordStage(name StageName, d time.Duration) {
	r.Stages = append(r.Stages, StageTiming{Stage: name, Duration: d})
}

func (r *Report) fail(se *StageError) {
	r.FailedStage = se.Stage
	r.ErrorKind = se.Kind
	r.Error = se.Err.Error()
}

func (r *Report) finish(end time.Time) { r.End = end }

// StageDurations returns the stage timings keyed by stage name.
func (r *Report) StageDurations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(r.Stages))
	for _, st := range r.Stages {
		out[string(st.Stage)] = st.Duration
	}
	return out
}

// Duration is the wall time between start and finish.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }
