package descriptor

import (
	"fmt"
	"slices"
	"time"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// BuildDateLayout renders build timestamps as MMDDYYYYhhmmss.
const BuildDateLayout = "01022006150405"

// SkipDigest disables verification for the source at the same index.
const SkipDigest = "SKIP"

// KnownArchitectures lists the values accepted in the arch field.
var KnownArchitectures = []string{"x86_64", "i686", "arm", "aarch64", "powerpc", "any"}

// PackageDescriptor is the [package] section of a descriptor.
type PackageDescriptor struct {
	Name        string   `toml:"name" yaml:"name" json:"name,omitempty"`
	Version     string   `toml:"vers" yaml:"vers" json:"vers,omitempty"`
	Release     string   `toml:"rel" yaml:"rel" json:"rel,omitempty"`
	Description string   `toml:"desc" yaml:"desc" json:"desc,omitempty"`
	URL         string   `toml:"url" yaml:"url" json:"url,omitempty"`
	License     string   `toml:"license" yaml:"license" json:"license,omitempty"`
	Prefix      string   `toml:"prefix" yaml:"prefix" json:"prefix,omitempty"`
	Arch        []string `toml:"arch" yaml:"arch" json:"arch,omitempty"`
	Build       []string `toml:"build" yaml:"build" json:"build,omitempty"`
	Package     []string `toml:"package" yaml:"package" json:"package,omitempty"`
	MakeDeps    []string `toml:"makedeps" yaml:"makedeps" json:"makedeps,omitempty"`
	Deps        []string `toml:"deps" yaml:"deps" json:"deps,omitempty"`
	Provides    []string `toml:"provides" yaml:"provides" json:"provides,omitempty"`
	Conflicts   []string `toml:"conflicts" yaml:"conflicts" json:"conflicts,omitempty"`
	Maintainers []string `toml:"maintainers" yaml:"maintainers" json:"maintainers,omitempty"`
	Source      []string `toml:"source" yaml:"source" json:"source,omitempty"`
	SHA256Sums  []string `toml:"sha256sums" yaml:"sha256sums" json:"sha256sums,omitempty"`
	SHA512Sums  []string `toml:"sha512sums" yaml:"sha512sums" json:"sha512sums,omitempty"`

	// BuildDate is stamped by the build; values present in the file are ignored.
	BuildDate string `toml:"-" yaml:"-" json:"builddate,omitempty"`
}

// CleanDescriptor is the optional [clean] section of a descriptor.
type CleanDescriptor struct {
	Script []string `toml:"script" yaml:"script" json:"script,omitempty"`
}

// StampBuildDate records now, in UTC, as the build date and returns the stamped value.
func (d *PackageDescriptor) StampBuildDate(now time.Time) string {
	d.BuildDate = now.UTC().Format(BuildDateLayout)
	return d.BuildDate
}

// HasVersion reports whether both version and release are set.
func (d *PackageDescriptor) HasVersion() bool {
	return d.Version != "" && d.Release != ""
}

// PrimaryArch returns the first declared architecture, or fallback when none is declared.
func (d *PackageDescriptor) PrimaryArch(fallback string) string {
	if len(d.Arch) == 0 || d.Arch[0] == "" {
		return fallback
	}
	return d.Arch[0]
}

// Validate checks the fields a build cannot proceed without.
func (d *PackageDescriptor) Validate() error {
	if d.Name == "" {
		return foundationerrors.DecodeError("descriptor has no package name").Build()
	}
	for _, arch := range d.Arch {
		if !slices.Contains(KnownArchitectures, arch) {
			return foundationerrors.DecodeError(fmt.Sprintf("unsupported architecture %q", arch)).
				WithContext("package", d.Name).
				Build()
		}
	}
	return nil
}
