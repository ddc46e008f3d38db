package build

import (
	"strings"

	"git.home.luguber.info/inful/pkgbuilder/internal/workspace"
)

// Variables exported to build, package and clean scripts.
const (
	EnvPkgDir  = "pkg_dir"
	EnvSrcDir  = "src_dir"
	EnvPkgVers = "pkg_vers"
	EnvPkgRel  = "pkg_rel"
)

// BuildContext is the per-build state threaded through every stage in place of the process
// working directory and environment.
type BuildContext struct {
	Root    string
	PkgDir  string
	SrcDir  string
	WorkDir string
	Version string
	Release string
	BuildID string
	// Env is the complete child environment, set by the set_env stage.
	Env []string
}

// NewBuildContext starts a context in the invocation root.
func NewBuildContext(layout workspace.Layout, version, release, buildID string) BuildContext {
	return BuildContext{
		Root:    layout.Root,
		PkgDir:  layout.PkgDir,
		SrcDir:  layout.SrcDir,
		WorkDir: layout.Root,
		Version: version,
		Release: release,
		BuildID: buildID,
	}
}

// Variables returns the four build variables as KEY=value pairs.
func (bc BuildContext) Variables() []string {
	return []string{
		EnvPkgDir + "=" + bc.PkgDir,
		EnvSrcDir + "=" + bc.SrcDir,
		EnvPkgVers + "=" + bc.Version,
		EnvPkgRel + "=" + bc.Release,
	}
}

// ExportEnv sets Env to base with the build variables replacing any inherited values.
func (bc *BuildContext) ExportEnv(base []string) {
	vars := bc.Variables()
	env := make([]string, 0, len(base)+len(vars))
	for _, kv := range base {
		if !overridden(kv) {
			env = append(env, kv)
		}
	}
	bc.Env = append(env, vars...)
}

func overridden(kv string) bool {
	key, _, _ := strings.Cut(kv, "=")
	switch key {
	case EnvPkgDir, EnvSrcDir, EnvPkgVers, EnvPkgRel:
		return true
	}
	return false
}

// EnterSrcDir makes the source tree the working directory of later scripts.
func (bc *BuildContext) EnterSrcDir() { bc.WorkDir = bc.SrcDir }

// RestoreWorkDir returns to the invocation root.
func (bc *BuildContext) RestoreWorkDir() { bc.WorkDir = bc.Root }
