package descriptor

import "github.com/github/go-spdx/v2/spdxexp"

// InvalidLicenses returns the parts of the license field that are not valid SPDX
// expressions. An empty license is not reported.
func (d *PackageDescriptor) InvalidLicenses() []string {
	if d.License == "" {
		return nil
	}
	valid, invalid := spdxexp.ValidateLicenses([]string{d.License})
	if valid {
		return nil
	}
	return invalid
}
