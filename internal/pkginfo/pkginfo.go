// Package pkginfo builds the PKGINFO metadata record stored at the top of every package.
package pkginfo

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	packageurl "github.com/package-url/packageurl-go"

	"git.home.luguber.info/inful/pkgbuilder/internal/descriptor"
	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// FileName is the metadata record's name inside the package tree.
const FileName = "PKGINFO"

// Unknown replaces absent optional string fields.
const Unknown = "unknown"

// Info is an immutable snapshot of package identity and build facts.
type Info struct {
	Name        string   `json:"name"`
	Version     string   `json:"vers"`
	Release     string   `json:"rel"`
	Description string   `json:"desc"`
	BuildDate   string   `json:"builddate"`
	URL         string   `json:"url"`
	Size        int64    `json:"size"`
	Arch        []string `json:"arch"`
	License     string   `json:"license"`
	Provides    []string `json:"provides"`
	Conflicts   []string `json:"conflicts"`
	Deps        []string `json:"deps"`
	MakeDeps    []string `json:"makedeps"`
	Maintainers []string `json:"maintainers"`
	PURL        string   `json:"purl"`
	BuildID     string   `json:"build_id,omitempty"`
}

// New snapshots desc. arch is used when the descriptor declares no architecture.
func New(desc *descriptor.PackageDescriptor, arch string, size int64, buildID string) Info {
	archs := desc.Arch
	if len(archs) == 0 {
		archs = []string{arch}
	}
	return Info{
		Name:        orUnknown(desc.Name),
		Version:     orUnknown(desc.Version),
		Release:     orUnknown(desc.Release),
		Description: orUnknown(desc.Description),
		BuildDate:   orUnknown(desc.BuildDate),
		URL:         orUnknown(desc.URL),
		Size:        size,
		Arch:        clone(archs),
		License:     orUnknown(desc.License),
		Provides:    clone(desc.Provides),
		Conflicts:   clone(desc.Conflicts),
		Deps:        clone(desc.Deps),
		MakeDeps:    clone(desc.MakeDeps),
		Maintainers: clone(desc.Maintainers),
		PURL:        PackageURL(desc, archs[0]),
		BuildID:     buildID,
	}
}

// PackageURL renders pkg:generic/<name>@<vers>-<rel>?arch=<arch>. The version is omitted
// when the descriptor has none.
func PackageURL(desc *descriptor.PackageDescriptor, arch string) string {
	version := desc.Version
	if version != "" && desc.Release != "" {
		version += "-" + desc.Release
	}
	var qualifiers packageurl.Qualifiers
	if arch != "" {
		qualifiers = packageurl.QualifiersFromMap(map[string]string{"arch": arch})
	}
	name := desc.Name
	if name == "" {
		name = Unknown
	}
	return packageurl.NewPackageURL(packageurl.TypeGeneric, "", name, version, qualifiers, "").ToString()
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// TreeSize sums the sizes of all regular files below root.
func TreeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, foundationerrors.WalkError("failed to size package tree").
			WithContext("path", root).
			WithCause(err).
			Build()
	}
	return total, nil
}

// Write stores the record as JSON at path.
func (i Info) Write(path string) error {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return foundationerrors.NewError(foundationerrors.CategoryEncode, "failed to encode PKGINFO").
			Fatal().
			WithCause(err).
			Build()
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return foundationerrors.IOError("failed to write PKGINFO").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	return nil
}

// Read loads a record written by Write.
func Read(path string) (Info, error) {
	var info Info
	data, err := os.ReadFile(path)
	if err != nil {
		return info, foundationerrors.IOError("failed to read PKGINFO").WithContext("path", path).WithCause(err).Build()
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, foundationerrors.DecodeError(fmt.Sprintf("invalid PKGINFO at %s", path)).WithCause(err).Build()
	}
	return info, nil
}
