package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/pkgbuilder/internal/build"
	"git.home.luguber.info/inful/pkgbuilder/internal/descriptor"
	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
	"git.home.luguber.info/inful/pkgbuilder/internal/progress"
	"git.home.luguber.info/inful/pkgbuilder/internal/source"
	"git.home.luguber.info/inful/pkgbuilder/internal/watch"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Descriptor string        `short:"f" help:"Descriptor path relative to the root (default: paths.descriptor)" placeholder:"PATH"`
	Watch      bool          `short:"w" help:"Rebuild whenever the descriptor or a local source changes"`
	Debounce   time.Duration `help:"Quiet period before a watched change triggers a rebuild" default:"500ms"`
	Progress   bool          `help:"Render VCS transfer progress" default:"true" negatable:""`
}

func (b *BuildCmd) Run(g *Global) error {
	s, err := g.newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	var renderer *progress.Renderer
	if b.Progress {
		renderer = progress.NewRenderer(g.Stderr, 100*time.Millisecond)
		s.service.WithResolver(build.DefaultResolver(g.Config, source.WithProgress(renderer)))
	}

	run := func(ctx context.Context) error {
		result, err := s.service.Run(ctx, build.Request{Root: g.Root, Descriptor: b.Descriptor})
		if renderer != nil {
			renderer.Finish()
		}
		s.flushMetrics()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(g.Stdout, "Created %s\n", result.Archive)
		return nil
	}

	if !b.Watch {
		return run(g.Ctx)
	}
	return b.watch(g, run)
}

// watch builds once, then rebuilds after every debounced change until the context ends.
// Failed builds are logged and do not stop watching.
func (b *BuildCmd) watch(g *Global, run func(context.Context) error) error {
	if err := run(g.Ctx); err != nil {
		slog.Error("Build failed; waiting for changes", logfields.Error(err))
	}

	files := watchedFiles(g.Root, g.descriptorPath(b.Descriptor))
	w, err := watch.New(files, b.Debounce)
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Close()
	}()

	slog.Info("Watching for changes", slog.Int("files", len(files)))
	return w.Run(g.Ctx, func(ctx context.Context) {
		slog.Info("Change detected, rebuilding")
		if err := run(ctx); err != nil {
			slog.Error("Build failed; waiting for changes", logfields.Error(err))
		}
	})
}

// watchedFiles returns the descriptor plus every local source it names. A descriptor that
// cannot be read is still watched so that fixing it triggers a build.
func watchedFiles(root, descriptorPath string) []string {
	files := []string{descriptorPath}
	doc, err := descriptor.Load(descriptorPath)
	if err != nil {
		return files
	}
	pkg, err := doc.Package()
	if err != nil {
		return files
	}
	for _, spec := range pkg.Source {
		kind, location := source.Classify(spec)
		if kind != source.KindLocal {
			continue
		}
		if !filepath.IsAbs(location) {
			location = filepath.Join(root, location)
		}
		files = append(files, location)
	}
	return files
}
