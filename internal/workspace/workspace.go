package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
)

// Layout holds the absolute directories of one build.
type Layout struct {
	// Root is the invocation directory: descriptors, local sources and downloads live here.
	Root   string
	PkgDir string
	SrcDir string
}

// NewLayout resolves pkgDir and srcDir against root. Absolute paths are kept as given.
func NewLayout(root, pkgDir, srcDir string) (Layout, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to resolve build root: %w", err)
	}
	l := Layout{
		Root:   absRoot,
		PkgDir: resolve(absRoot, pkgDir),
		SrcDir: resolve(absRoot, srcDir),
	}
	if l.PkgDir == l.Root || l.SrcDir == l.Root {
		return Layout{}, fmt.Errorf("package and source directories must differ from the build root %s", l.Root)
	}
	if l.PkgDir == l.SrcDir {
		return Layout{}, fmt.Errorf("package and source directories must differ: %s", l.PkgDir)
	}
	return l, nil
}

func resolve(root, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

// CreatePkgDir creates the package tree if absent. The source tree is left to source resolution.
func (l Layout) CreatePkgDir() error {
	if err := os.MkdirAll(l.PkgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create package directory: %w", err)
	}
	slog.Debug("Package directory ready", logfields.Path(l.PkgDir))
	return nil
}

// Purge removes the package and source trees. Missing directories are not an error.
func (l Layout) Purge() error {
	for _, dir := range []string{l.PkgDir, l.SrcDir} {
		if dir == "" || dir == l.Root || dir == string(filepath.Separator) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
		slog.Info("Removed directory", logfields.Path(dir))
	}
	return nil
}

// OutputPath returns where an archive named name is written inside outputDir; a relative
// outputDir is resolved against the root.
func (l Layout) OutputPath(outputDir, name string) string {
	if outputDir == "" {
		outputDir = "."
	}
	return filepath.Join(resolve(l.Root, outputDir), name)
}
