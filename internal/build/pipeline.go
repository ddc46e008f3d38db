package build

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/pkgbuilder/internal/archive"
	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgbuilder/internal/integrity"
	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
	"git.home.luguber.info/inful/pkgbuilder/internal/manifest"
	"git.home.luguber.info/inful/pkgbuilder/internal/observability"
	"git.home.luguber.info/inful/pkgbuilder/internal/pkginfo"
	"git.home.luguber.info/inful/pkgbuilder/internal/script"
	"git.home.luguber.info/inful/pkgbuilder/internal/source"
)

func (s *Service) stages() []StageDef {
	return []StageDef{
		{StageSetEnv, s.stageSetEnv},
		{StageCreateDirs, s.stageCreateDirs},
		{StageHandleSource, s.stageHandleSource},
		{StageBuild, s.stageBuild},
		{StagePackage, s.stagePackage},
		{StageSetBuildDate, s.stageSetBuildDate},
		{StageRestoreWorkingDir, s.stageRestoreWorkingDir},
		{StageWriteMetadata, s.stageWriteMetadata},
		{StageWriteManifest, s.stageWriteManifest},
		{StageArchive, s.stageArchive},
	}
}

func (s *Service) stageSetEnv(_ context.Context, bs *BuildState) error {
	bs.Context.ExportEnv(os.Environ())
	return nil
}

func (s *Service) stageCreateDirs(_ context.Context, bs *BuildState) error {
	if err := bs.Layout.CreatePkgDir(); err != nil {
		return foundationerrors.IOError("failed to create package directory").
			WithContext("path", bs.Layout.PkgDir).
			WithCause(err).
			Build()
	}
	return nil
}

func (s *Service) stageHandleSource(ctx context.Context, bs *BuildState) error {
	resolved, err := s.resolver.Resolve(ctx, source.Request{
		Root:    bs.Context.Root,
		SrcDir:  bs.Context.SrcDir,
		Sources: bs.Descriptor.Source,
		Verifier: integrity.Verifier{
			SHA256Sums: bs.Descriptor.SHA256Sums,
			SHA512Sums: bs.Descriptor.SHA512Sums,
		},
	})
	bs.Report.Sources = resolved
	var srcErr *source.Error
	if errors.As(err, &srcErr) {
		bs.Report.FailedSource = srcErr
	}
	return err
}

func (s *Service) stageBuild(ctx context.Context, bs *BuildState) error {
	bs.Context.EnterSrcDir()
	if len(bs.Descriptor.Build) == 0 {
		return nil
	}
	if _, err := os.Stat(bs.Context.WorkDir); err != nil {
		return foundationerrors.IOError("source directory is not available").
			WithContext("path", bs.Context.WorkDir).
			WithCause(err).
			Build()
	}
	return s.runScript(ctx, bs, "build", bs.Descriptor.Build)
}

func (s *Service) stagePackage(ctx context.Context, bs *BuildState) error {
	if len(bs.Descriptor.Package) == 0 {
		return nil
	}
	if _, err := os.Stat(bs.Context.WorkDir); err != nil {
		// Nothing was staged into the source tree; package from the root.
		observability.DebugContext(ctx, "Source directory absent, packaging from root", logfields.Path(bs.Context.WorkDir))
		bs.Context.RestoreWorkDir()
	}
	return s.runScript(ctx, bs, "package", bs.Descriptor.Package)
}

func (s *Service) runScript(ctx context.Context, bs *BuildState, name string, lines []string) error {
	observability.InfoContext(ctx, "Running script", logfields.Path(bs.Context.WorkDir))
	return s.scripts.Run(ctx, script.Script{
		Name:  name,
		Lines: lines,
		Dir:   bs.Context.WorkDir,
		Env:   bs.Context.Env,
	})
}

func (s *Service) stageSetBuildDate(ctx context.Context, bs *BuildState) error {
	bs.Stamped = s.now().UTC()
	date := bs.Descriptor.StampBuildDate(bs.Stamped)
	observability.DebugContext(ctx, "Build date stamped", slog.String("builddate", date))
	return nil
}

func (s *Service) stageRestoreWorkingDir(_ context.Context, bs *BuildState) error {
	bs.Context.RestoreWorkDir()
	return nil
}

func (s *Service) stageWriteMetadata(ctx context.Context, bs *BuildState) error {
	size, err := pkginfo.TreeSize(bs.Layout.PkgDir)
	if err != nil {
		return err
	}
	info := pkginfo.New(bs.Descriptor, bs.Arch, size, bs.Context.BuildID)
	if err := info.Write(filepath.Join(bs.Layout.PkgDir, pkginfo.FileName)); err != nil {
		return err
	}
	bs.Report.Size = size
	observability.InfoContext(ctx, "Metadata written", logfields.Bytes(size))
	return nil
}

func (s *Service) stageWriteManifest(ctx context.Context, bs *BuildState) error {
	m, err := manifest.Build(bs.Layout.PkgDir, bs.Stamped)
	if err != nil {
		return err
	}
	if err := m.Write(filepath.Join(bs.Layout.PkgDir, manifest.FileName)); err != nil {
		return err
	}
	bs.Report.ManifestEntries = len(m.Entries)
	observability.InfoContext(ctx, "Manifest written", logfields.Entries(len(m.Entries)))
	return nil
}

func (s *Service) stageArchive(ctx context.Context, bs *BuildState) error {
	d := bs.Descriptor
	name := archive.FileName(d.Name, d.Version, d.Release, bs.Arch)
	out := bs.Layout.OutputPath(s.cfg.Paths.OutputDir, name)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return foundationerrors.IOError("failed to create output directory").
			WithContext("path", filepath.Dir(out)).
			WithCause(err).
			Build()
	}
	n, err := archive.Create(bs.Layout.PkgDir, out)
	bs.ArchivePath = out
	if err != nil {
		return err
	}
	bs.Report.Archive = out
	bs.Report.ArchiveEntries = n
	observability.InfoContext(ctx, "Archive written", logfields.Archive(out), logfields.Entries(n))
	return nil
}
