package version

import "fmt"

// Version is stamped at link time:
// go build -ldflags "-X git.home.luguber.info/inful/pkgbuilder/internal/version.Version=v0.3.0".
var Version = "unknown"

// Build metadata, also stamped at link time.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by `pkgbuilder version`.
func String() string {
	return fmt.Sprintf("pkgbuilder %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
