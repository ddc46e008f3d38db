package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for build, stage and source metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome string) // outcome: done|failed|canceled
	ObserveSourceDuration(kind string, d time.Duration, success bool)
	SetPackageSize(pkg string, bytes int64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)        {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                {}
func (NoopRecorder) IncBuildOutcome(string)                            {}
func (NoopRecorder) ObserveSourceDuration(string, time.Duration, bool) {}
func (NoopRecorder) SetPackageSize(string, int64)                      {}
