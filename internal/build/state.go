package build

import (
	"time"

	"git.home.luguber.info/inful/pkgbuilder/internal/descriptor"
	"git.home.luguber.info/inful/pkgbuilder/internal/workspace"
)

// BuildState is the mutable state shared by the stages of one build.
type BuildState struct {
	Layout     workspace.Layout
	Context    BuildContext
	Descriptor *descriptor.PackageDescriptor
	Report     *Report
	// Arch is the architecture used for the archive name and metadata fallback.
	Arch string
	// Stamped is the build timestamp, set by set_build_date.
	Stamped time.Time
	// ArchivePath is set by the archive stage.
	ArchivePath string
}
