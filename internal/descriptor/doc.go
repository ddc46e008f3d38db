// Package descriptor loads package descriptors (PKG.toml or PKG.yaml) into typed values.
//
// A descriptor file is a set of named sections. The [package] section becomes a
// PackageDescriptor and the optional [clean] section a CleanDescriptor; both are decoded
// by the same generic DecodeSection function.
package descriptor
