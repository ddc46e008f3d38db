package build

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
	"git.home.luguber.info/inful/pkgbuilder/internal/observability"
)

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageSetEnv            StageName = "set_env"
	StageCreateDirs        StageName = "create_dirs"
	StageHandleSource      StageName = "handle_source"
	StageBuild             StageName = "build"
	StagePackage           StageName = "package"
	StageSetBuildDate      StageName = "set_build_date"
	StageRestoreWorkingDir StageName = "restore_working_directory"
	StageWriteMetadata     StageName = "write_metadata"
	StageWriteManifest     StageName = "write_manifest"
	StageArchive           StageName = "archive"
)

// StageOrder lists every stage in execution order.
var StageOrder = []StageName{
	StageSetEnv, StageCreateDirs, StageHandleSource, StageBuild, StagePackage,
	StageSetBuildDate, StageRestoreWorkingDir, StageWriteMetadata, StageWriteManifest, StageArchive,
}

// Stage is one step of the pipeline.
type Stage func(ctx context.Context, bs *BuildState) error

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"
	StageErrorCanceled StageErrorKind = "canceled"
)

// StageError records which stage ended the build and why.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// StageResult is the outcome label of one stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)

// runStages executes stages in order, recording timing and stopping at the first error.
func runStages(ctx context.Context, bs *BuildState, stages []StageDef, observer BuildObserver) error {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			se := &StageError{Kind: StageErrorCanceled, Stage: st.Name, Err: err}
			bs.Report.fail(se)
			observer.OnStageComplete(st.Name, 0, StageResultCanceled)
			return se
		}

		stageCtx := observability.WithStage(ctx, string(st.Name))
		observer.OnStageStart(st.Name)
		t0 := time.Now()
		err := st.Fn(stageCtx, bs)
		dur := time.Since(t0)
		bs.Report.recordStage(st.Name, dur)

		if err != nil {
			se := &StageError{Kind: StageErrorFatal, Stage: st.Name, Err: err}
			if ctx.Err() != nil {
				se.Kind = StageErrorCanceled
			}
			bs.Report.fail(se)
			observer.OnStageComplete(st.Name, dur, resultFor(se.Kind))
			observability.ErrorContext(stageCtx, "Stage failed",
				logfields.DurationMS(float64(dur.Milliseconds())), logfields.Error(err))
			return se
		}
		observer.OnStageComplete(st.Name, dur, StageResultSuccess)
		observability.DebugContext(stageCtx, "Stage complete", logfields.DurationMS(float64(dur.Milliseconds())))
	}
	return nil
}

func resultFor(k StageErrorKind) StageResult {
	if k == StageErrorCanceled {
		return StageResultCanceled
	}
	return StageResultFatal
}
