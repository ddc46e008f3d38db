package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pkgbuilder/internal/build"
	"git.home.luguber.info/inful/pkgbuilder/internal/config"
	"git.home.luguber.info/inful/pkgbuilder/internal/events"
	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgbuilder/internal/history"
	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
	"git.home.luguber.info/inful/pkgbuilder/internal/metrics"
	"git.home.luguber.info/inful/pkgbuilder/internal/script"
	"git.home.luguber.info/inful/pkgbuilder/internal/version"
)

// Global is the state shared by subcommands once flags have been applied.
type Global struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer

	// Root is the absolute invocation directory.
	Root   string
	Config *config.Config
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path (default: pkgbuilder.yaml in the root)" placeholder:"PATH"`
	Root      string           `short:"C" help:"Invocation directory holding the descriptor" placeholder:"DIR"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogLevel  string           `name:"log-level" help:"Override log.level (debug|info|warn|error)"`
	LogFormat string           `name:"log-format" help:"Override log.format (text|json)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build      BuildCmd   `cmd:"" help:"Build the package described by the descriptor"`
	Print      PrintCmd   `cmd:"" help:"Print the descriptor sections as JSON"`
	Clean      CleanCmd   `cmd:"" help:"Run the descriptor clean script"`
	History    HistoryCmd `cmd:"" help:"List recorded builds"`
	VersionCmd VersionCmd `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing: it loads .env files and the configuration, then sets up
// logging once for every subcommand.
func (c *CLI) AfterApply(g *Global) error {
	root, err := resolveRoot(c.Root)
	if err != nil {
		return err
	}
	g.Root = root

	loaded, err := config.LoadEnvFiles(root)
	if err != nil {
		return foundationerrors.ConfigError("failed to load .env file").
			WithContext("dir", root).
			WithCause(err).
			Build()
	}

	path, required := c.Config, true
	if path == "" {
		path, required = filepath.Join(root, config.DefaultFile), false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	if c.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return foundationerrors.ValidationError("invalid logging flags").WithCause(err).Build()
	}
	g.Config = cfg

	g.Logger = newLogger(g.Stderr, cfg.Log)
	slog.SetDefault(g.Logger)
	for _, f := range loaded {
		slog.Debug("Loaded environment file", logfields.File(f))
	}
	slog.Debug("Configuration loaded", logfields.Path(path), slog.Bool("required", required))
	return nil
}

func resolveRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", foundationerrors.IOError("failed to determine working directory").WithCause(err).Build()
		}
		return wd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", foundationerrors.ValidationError("invalid root directory").
			WithContext("root", dir).
			WithCause(err).
			Build()
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", foundationerrors.ValidationError(fmt.Sprintf("root %q is not a directory", dir)).
			WithContext("root", dir).
			Build()
	}
	return abs, nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(lc.Level)}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// descriptorPath resolves a --descriptor flag against the root and the configured default.
func (g *Global) descriptorPath(flag string) string {
	path := flag
	if path == "" {
		path = g.Config.Paths.Descriptor
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.Root, path)
	}
	return path
}

// rootPath makes a configured path absolute relative to the root.
func (g *Global) rootPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(g.Root, path)
}

// newService creates a build service whose scripts write to the command's output streams.
func (g *Global) newService() *build.Service {
	return build.NewService(g.Config).WithScriptRunner(script.NewExecutor(
		script.WithShell(g.Config.Scripts.Shell),
		script.WithContinueOnError(g.Config.Scripts.ContinueOnError),
		script.WithOutput(g.Stdout, g.Stderr),
	))
}

// session holds a configured build service and the sinks it reports to.
type session struct {
	service   *build.Service
	recorder  *metrics.PrometheusRecorder
	history   history.Store
	publisher events.Publisher
	textfile  string
}

// newSession wires the build service with the history ledger, the metrics recorder and the
// event publisher enabled in the configuration.
func (g *Global) newSession() (*session, error) {
	cfg := g.Config
	s := &session{
		service:   g.newService(),
		history:   history.NoopStore{},
		publisher: events.NoopPublisher{},
		textfile:  g.rootPath(cfg.Metrics.Textfile),
	}

	if cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(g.rootPath(cfg.History.Path))
		if err != nil {
			return nil, foundationerrors.IOError("failed to open build history").
				WithContext("path", cfg.History.Path).
				WithCause(err).
				Build()
		}
		s.history = store
		s.service.WithHistory(store)
	}

	if s.textfile != "" {
		s.recorder = metrics.NewPrometheusRecorder(nil, cfg.Metrics.Namespace)
		s.service.WithRecorder(s.recorder)
	}

	if cfg.Events.URL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.URL, cfg.Events.Subject)
		if err != nil {
			// Notifications never decide a build outcome.
			slog.Warn("Build events disabled", logfields.URL(cfg.Events.URL), logfields.Error(err))
		} else {
			s.publisher = pub
			s.service.WithPublisher(pub)
		}
	}
	return s, nil
}

// flushMetrics rewrites the textfile after a build when metrics are enabled.
func (s *session) flushMetrics() {
	if s.recorder == nil {
		return
	}
	if err := metrics.WriteTextfile(s.textfile, s.recorder.Registry()); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(s.textfile), logfields.Error(err))
	}
}

func (s *session) Close() {
	if err := s.publisher.Close(); err != nil {
		slog.Warn("Failed to close event publisher", logfields.Error(err))
	}
	if err := s.history.Close(); err != nil {
		slog.Warn("Failed to close build history", logfields.Error(err))
	}
}

// Execute parses args, runs the selected command and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, exit func(int)) int {
	cli := &CLI{}
	g := &Global{Ctx: ctx, Stdout: stdout, Stderr: stderr}

	parser, err := kong.New(cli,
		kong.Name("pkgbuilder"),
		kong.Description("Build packages from source descriptors."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
		kong.Vars{"version": version.String()},
		kong.Bind(g),
	)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return foundationerrors.ExitInternal
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		if _, ok := foundationerrors.AsClassified(err); ok {
			return report(g, stderr, err)
		}
		parser.Errorf("%s", err)
		return foundationerrors.ExitUsage
	}
	return report(g, stderr, kctx.Run())
}

func report(g *Global, stderr io.Writer, err error) int {
	verbose := g.Config != nil && g.Config.Log.Level == "debug"
	return foundationerrors.NewCLIErrorAdapter(verbose, g.Logger).Report(stderr, err)
}
