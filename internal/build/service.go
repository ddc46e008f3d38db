package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pkgbuilder/internal/archive"
	"git.home.luguber.info/inful/pkgbuilder/internal/config"
	"git.home.luguber.info/inful/pkgbuilder/internal/descriptor"
	"git.home.luguber.info/inful/pkgbuilder/internal/events"
	"git.home.luguber.info/inful/pkgbuilder/internal/fetch"
	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgbuilder/internal/git"
	"git.home.luguber.info/inful/pkgbuilder/internal/history"
	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
	"git.home.luguber.info/inful/pkgbuilder/internal/metrics"
	"git.home.luguber.info/inful/pkgbuilder/internal/observability"
	"git.home.luguber.info/inful/pkgbuilder/internal/script"
	"git.home.luguber.info/inful/pkgbuilder/internal/source"
	"git.home.luguber.info/inful/pkgbuilder/internal/workspace"
)

// BuildService is the interface the CLI drives.
type BuildService interface {
	Run(ctx context.Context, req Request) (*Result, error)
	Clean(ctx context.Context, req CleanRequest) error
}

// Request contains the inputs of one build.
type Request struct {
	// Root is the invocation directory. Empty means the process working directory.
	Root string
	// Descriptor is the descriptor path, relative to Root unless absolute. Empty uses the
	// configured descriptor.
	Descriptor string
}

// CleanRequest contains the inputs of a clean run.
type CleanRequest struct {
	Root       string
	Descriptor string
	// Purge also removes the package and source trees.
	Purge bool
}

// Status represents the outcome of a build.
type Status string

const (
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Result contains the outcome of a build.
type Result struct {
	Status   Status
	BuildID  string
	Package  string
	Version  string
	Release  string
	Archive  string
	Report   *Report
	Duration time.Duration
}

// ScriptRunner runs one descriptor script.
type ScriptRunner interface {
	Run(ctx context.Context, s script.Script) error
}

// SourceResolver stages descriptor sources into the source tree.
type SourceResolver interface {
	Resolve(ctx context.Context, req source.Request) ([]source.Resolved, error)
}

// Service is the standard BuildService.
type Service struct {
	cfg       *config.Config
	scripts   ScriptRunner
	resolver  SourceResolver
	recorder  metrics.Recorder
	history   history.Store
	publisher events.Publisher
	extra     []BuildObserver
	now       func() time.Time
	newID     func() string
	hostArch  string
}

// NewService creates a Service from cfg with the default script executor and source resolver.
func NewService(cfg *config.Config) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Service{
		cfg: cfg,
		scripts: script.NewExecutor(
			script.WithShell(cfg.Scripts.Shell),
			script.WithContinueOnError(cfg.Scripts.ContinueOnError),
		),
		resolver:  DefaultResolver(cfg),
		recorder:  metrics.NoopRecorder{},
		history:   history.NoopStore{},
		publisher: events.NoopPublisher{},
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		hostArch:  archive.HostArch(),
	}
}

// DefaultResolver builds the go-git and HTTP backed resolver configured by cfg.
func DefaultResolver(cfg *config.Config, opts ...source.Option) *source.Resolver {
	fetcher := fetch.NewFetcher(
		fetch.WithTimeout(cfg.HTTP.Timeout),
		fetch.WithUserAgent(cfg.HTTP.UserAgent),
	)
	return source.NewResolver(git.NewClient(), fetcher, opts...)
}

// WithScriptRunner replaces the script executor.
func (s *Service) WithScriptRunner(r ScriptRunner) *Service {
	s.scripts = r
	return s
}

// WithResolver replaces the source resolver.
func (s *Service) WithResolver(r SourceResolver) *Service {
	s.resolver = r
	return s
}

// WithRecorder sets the metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	s.recorder = r
	return s
}

// WithHistory sets the build history store.
func (s *Service) WithHistory(h history.Store) *Service {
	s.history = h
	return s
}

// WithPublisher sets the build event publisher.
func (s *Service) WithPublisher(p events.Publisher) *Service {
	s.publisher = p
	return s
}

// WithObserver adds an observer notified after the built-in ones.
func (s *Service) WithObserver(o BuildObserver) *Service {
	s.extra = append(s.extra, o)
	return s
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithHostArch overrides the detected host architecture.
func (s *Service) WithHostArch(arch string) *Service {
	s.hostArch = arch
	return s
}

func (s *Service) observer() BuildObserver {
	obs := observers{
		recorderObserver{rec: s.recorder},
		historyObserver{store: s.history},
		eventObserver{pub: s.publisher},
	}
	return append(obs, s.extra...)
}

func (s *Service) resolvePaths(root, descriptorPath string) (workspace.Layout, string, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return workspace.Layout{}, "", foundationerrors.IOError("failed to determine working directory").WithCause(err).Build()
		}
		root = wd
	}
	layout, err := workspace.NewLayout(root, s.cfg.Paths.PkgDir, s.cfg.Paths.SrcDir)
	if err != nil {
		return workspace.Layout{}, "", foundationerrors.ConfigError("invalid build layout").WithCause(err).Build()
	}
	if descriptorPath == "" {
		descriptorPath = s.cfg.Paths.Descriptor
	}
	if !filepath.IsAbs(descriptorPath) {
		descriptorPath = filepath.Join(layout.Root, descriptorPath)
	}
	return layout, descriptorPath, nil
}

// Run loads the descriptor and executes the pipeline. The returned Result is never nil; on
// failure it is returned together with the first error.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	buildID := s.newID()
	ctx = observability.WithBuildID(ctx, buildID)

	report := newReport(buildID, start)
	result := &Result{BuildID: buildID, Report: report}
	obs := s.observer()

	bs, err := s.prepare(ctx, req, buildID, report)
	if err != nil {
		return s.finish(ctx, obs, result, err)
	}
	result.Package = bs.Descriptor.Name
	result.Version = bs.Descriptor.Version
	result.Release = bs.Descriptor.Release
	report.Package = bs.Descriptor.Name
	ctx = observability.WithPackage(ctx, bs.Descriptor.Name)

	obs.OnBuildStart(ctx, bs)
	observability.InfoContext(ctx, "Build started", logfields.Version(bs.Descriptor.Version))

	err = func() error {
		defer bs.Context.RestoreWorkDir()
		return runStages(ctx, bs, s.stages(), obs)
	}()
	result.Archive = bs.ArchivePath
	return s.finish(ctx, obs, result, err)
}

func (s *Service) prepare(ctx context.Context, req Request, buildID string, report *Report) (*BuildState, error) {
	layout, path, err := s.resolvePaths(req.Root, req.Descriptor)
	if err != nil {
		return nil, err
	}
	doc, err := descriptor.Load(path)
	if err != nil {
		return nil, err
	}
	desc, err := doc.Package()
	if err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if invalid := desc.InvalidLicenses(); len(invalid) > 0 {
		observability.WarnContext(ctx, "License is not a valid SPDX expression",
			logfields.Package(desc.Name))
	}
	return &BuildState{
		Layout:     layout,
		Context:    NewBuildContext(layout, desc.Version, desc.Release, buildID),
		Descriptor: desc,
		Report:     report,
		Arch:       desc.PrimaryArch(s.hostArch),
	}, nil
}

func (s *Service) finish(ctx context.Context, obs BuildObserver, result *Result, err error) (*Result, error) {
	result.Report.finish(s.now())
	result.Duration = result.Report.Duration()
	switch {
	case err == nil:
		result.Status = StatusDone
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Status = StatusCanceled
	default:
		result.Status = StatusFailed
	}
	if err != nil && result.Report.Error == "" {
		result.Report.Error = err.Error()
	}

	obs.OnBuildComplete(context.WithoutCancel(ctx), result)

	if err != nil {
		observability.ErrorContext(ctx, "Build failed",
			logfields.Outcome(string(result.Status)),
			logfields.DurationMS(float64(result.Duration.Milliseconds())),
			logfields.Error(err))
		return result, err
	}
	observability.InfoContext(ctx, "Build finished",
		logfields.Archive(result.Archive),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

// Clean exports the build variables and runs the descriptor's clean script from the
// invocation root. The package section is optional; without it pkg_vers and pkg_rel are
// empty. A descriptor without a clean section only purges, when asked to.
func (s *Service) Clean(ctx context.Context, req CleanRequest) error {
	layout, path, err := s.resolvePaths(req.Root, req.Descriptor)
	if err != nil {
		return err
	}
	doc, err := descriptor.Load(path)
	if err != nil {
		return err
	}
	var version, release string
	if doc.Has(descriptor.SectionPackage) {
		desc, err := doc.Package()
		if err != nil {
			return err
		}
		ctx = observability.WithPackage(ctx, desc.Name)
		version, release = desc.Version, desc.Release
	}

	bc := NewBuildContext(layout, version, release, "")
	bc.ExportEnv(os.Environ())

	if doc.Has(descriptor.SectionClean) {
		clean, err := doc.Clean()
		if err != nil {
			return err
		}
		observability.InfoContext(ctx, "Cleaning build environment")
		if err := s.scripts.Run(ctx, script.Script{
			Name:  "clean",
			Lines: clean.Script,
			Dir:   bc.WorkDir,
			Env:   bc.Env,
		}); err != nil {
			return err
		}
	}
	if req.Purge {
		if err := layout.Purge(); err != nil {
			return err
		}
	}
	observability.InfoContext(ctx, "Clean succeeded")
	return nil
}
