package descriptor

import (
	"encoding/json"
	"fmt"
	"io"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// Print writes both sections as indented JSON under [package] and [clean] headings.
// Absent sections print as empty objects.
func (d *Document) Print(w io.Writer) error {
	pkg, err := d.Package()
	if err != nil {
		if !foundationerrors.HasCategory(err, foundationerrors.CategoryMissingSection) {
			return err
		}
		pkg = &PackageDescriptor{}
	}
	clean, err := d.Clean()
	if err != nil {
		if !foundationerrors.HasCategory(err, foundationerrors.CategoryMissingSection) {
			return err
		}
		clean = &CleanDescriptor{}
	}

	for _, part := range []struct {
		heading string
		value   any
	}{{"[package]", pkg}, {"[clean]", clean}} {
		data, err := json.MarshalIndent(part.value, "", "  ")
		if err != nil {
			return foundationerrors.NewError(foundationerrors.CategoryEncode, "failed to encode descriptor").
				Fatal().
				WithCause(err).
				Build()
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", part.heading, data); err != nil {
			return foundationerrors.IOError("failed to print descriptor").WithCause(err).Build()
		}
	}
	return nil
}
