package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/pkgbuilder/internal/events"
	"git.home.luguber.info/inful/pkgbuilder/internal/history"
	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
	"git.home.luguber.info/inful/pkgbuilder/internal/metrics"
	"git.home.luguber.info/inful/pkgbuilder/internal/observability"
)

// BuildObserver receives callbacks around stage execution and build lifecycle. Observers
// cannot change the outcome of a build; their failures are logged.
type BuildObserver interface {
	OnBuildStart(ctx context.Context, bs *BuildState)
	OnStageStart(stage StageName)
	OnStageComplete(stage StageName, duration time.Duration, result StageResult)
	OnBuildComplete(ctx context.Context, result *Result)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnBuildStart(context.Context, *BuildState)             {}
func (NoopObserver) OnStageStart(StageName)                                {}
func (NoopObserver) OnStageComplete(StageName, time.Duration, StageResult) {}
func (NoopObserver) OnBuildComplete(context.Context, *Result)              {}

type observers []BuildObserver

func (o observers) OnBuildStart(ctx context.Context, bs *BuildState) {
	for _, obs := range o {
		obs.OnBuildStart(ctx, bs)
	}
}

func (o observers) OnStageStart(stage StageName) {
	for _, obs := range o {
		obs.OnStageStart(stage)
	}
}

func (o observers) OnStageComplete(stage StageName, d time.Duration, r StageResult) {
	for _, obs := range o {
		obs.OnStageComplete(stage, d, r)
	}
}

func (o observers) OnBuildComplete(ctx context.Context, result *Result) {
	for _, obs := range o {
		obs.OnBuildComplete(ctx, result)
	}
}

// recorderObserver adapts metrics.Recorder into a BuildObserver.
type recorderObserver struct{ rec metrics.Recorder }

func (recorderObserver) OnBuildStart(context.Context, *BuildState) {}
func (recorderObserver) OnStageStart(StageName)                    {}

func (r recorderObserver) OnStageComplete(stage StageName, d time.Duration, res StageResult) {
	r.rec.ObserveStageDuration(string(stage), d)
	r.rec.IncStageResult(string(stage), metrics.ResultLabel(res))
}

func (r recorderObserver) OnBuildComplete(_ context.Context, result *Result) {
	r.rec.ObserveBuildDuration(result.Duration)
	r.rec.IncBuildOutcome(string(result.Status))
	for _, src := range result.Report.Sources {
		r.rec.ObserveSourceDuration(string(src.Kind), src.Duration, true)
	}
	if failed := result.Report.FailedSource; failed != nil {
		r.rec.ObserveSourceDuration(string(failed.Kind), failed.Duration, false)
	}
	if result.Status == StatusDone {
		r.rec.SetPackageSize(result.Package, result.Report.Size)
	}
}

// historyObserver appends one record per finished build.
type historyObserver struct{ store history.Store }

func (historyObserver) OnBuildStart(context.Context, *BuildState)             {}
func (historyObserver) OnStageStart(StageName)                                {}
func (historyObserver) OnStageComplete(StageName, time.Duration, StageResult) {}

func (h historyObserver) OnBuildComplete(ctx context.Context, result *Result) {
	rep := result.Report
	rec := history.Record{
		BuildID:     result.BuildID,
		Package:     result.Package,
		Version:     result.Version,
		Release:     result.Release,
		Status:      history.Status(result.Status),
		Archive:     result.Archive,
		FailedStage: string(rep.FailedStage),
		Error:       rep.Error,
		StartedAt:   rep.Start,
		Duration:    result.Duration,
		Stages:      rep.StageDurations(),
	}
	if err := h.store.Append(ctx, rec); err != nil {
		observability.WarnContext(ctx, "Failed to record build history", logfields.Error(err))
	}
}

// eventObserver publishes started and finished events.
type eventObserver struct{ pub events.Publisher }

func (e eventObserver) OnBuildStart(ctx context.Context, bs *BuildState) {
	err := e.pub.Publish(ctx, events.BuildEvent{
		Type:    events.TypeStarted,
		BuildID: bs.Context.BuildID,
		Package: bs.Descriptor.Name,
		Version: bs.Descriptor.Version,
		Release: bs.Descriptor.Release,
	})
	if err != nil {
		observability.WarnContext(ctx, "Failed to publish build event", logfields.Error(err))
	}
}

func (eventObserver) OnStageStart(StageName)                                {}
func (eventObserver) OnStageComplete(StageName, time.Duration, StageResult) {}

func (e eventObserver) OnBuildComplete(ctx context.Context, result *Result) {
	stages := make(map[string]int64, len(result.Report.Stages))
	for name, d := range result.Report.StageDurations() {
		stages[name] = d.Milliseconds()
	}
	err := e.pub.Publish(ctx, events.BuildEvent{
		Type:        events.TypeFinished,
		BuildID:     result.BuildID,
		Package:     result.Package,
		Version:     result.Version,
		Release:     result.Release,
		Status:      string(result.Status),
		Archive:     result.Archive,
		FailedStage: string(result.Report.FailedStage),
		Error:       result.Report.Error,
		DurationMS:  result.Duration.Milliseconds(),
		Stages:      stages,
	})
	if err != nil {
		observability.WarnContext(ctx, "Failed to publish build event", logfields.Error(err))
	}
}
