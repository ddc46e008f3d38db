package descriptor

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

func writeDescriptor(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTOML(t *testing.T) {
	doc, err := Load(filepath.Join("testdata", "PKG.toml"))
	require.NoError(t, err)

	pkg, err := doc.Package()
	require.NoError(t, err)
	assert.Equal(t, "hello", pkg.Name)
	assert.Equal(t, "2.12", pkg.Version)
	assert.Equal(t, "1", pkg.Release)
	assert.Equal(t, []string{"x86_64"}, pkg.Arch)
	assert.Len(t, pkg.Source, 2)
	assert.Equal(t, "SKIP", pkg.SHA256Sums[1])
	assert.Nil(t, pkg.SHA512Sums)
	assert.Equal(t, []string{"cd hello-2.12", "./configure --prefix=/usr", "make"}, pkg.Build)
	assert.Empty(t, pkg.BuildDate, "build date comes from the build, never the file")
	require.NoError(t, pkg.Validate())

	clean, err := doc.Clean()
	require.NoError(t, err)
	assert.Equal(t, []string{"rm -rf src pkg"}, clean.Script)
}

func TestLoadYAML(t *testing.T) {
	doc, err := Load(filepath.Join("testdata", "PKG.yaml"))
	require.NoError(t, err)

	pkg, err := doc.Package()
	require.NoError(t, err)
	assert.Equal(t, "hello", pkg.Name)
	assert.Equal(t, []string{"git+https://example.org/hello.git"}, pkg.Source)
	assert.Equal(t, "aarch64", pkg.PrimaryArch("x86_64"))

	clean, err := doc.Clean()
	require.NoError(t, err)
	assert.Equal(t, []string{"make clean"}, clean.Script)
}

func TestLoadErrors(t *testing.T) {
	t.Run("not a config file", func(t *testing.T) {
		_, err := Load(writeDescriptor(t, "PKG.txt", "name = 1"))
		require.Error(t, err)
		assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotConfig))
		assert.Contains(t, err.Error(), "is not a recognized config file")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "PKG.toml"))
		require.Error(t, err)
		assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryIO))
	})

	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeDescriptor(t, "PKG.toml", "[package\nname="))
		require.Error(t, err)
		assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryDecode))
	})
}

func TestDecodeSection(t *testing.T) {
	doc, err := Load(writeDescriptor(t, "PKG.toml", "[clean]\nscript = [\"true\"]\n"))
	require.NoError(t, err)
	assert.True(t, doc.Has(SectionClean))
	assert.False(t, doc.Has(SectionPackage))

	_, err = doc.Package()
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryMissingSection))

	type custom struct {
		Script []string `toml:"script"`
	}
	got, err := DecodeSection[custom](doc, SectionClean)
	require.NoError(t, err)
	assert.Equal(t, []string{"true"}, got.Script)
}

func TestDecodeSectionTypeMismatch(t *testing.T) {
	doc, err := Load(writeDescriptor(t, "PKG.toml", "[package]\nname = 42\n"))
	require.NoError(t, err)

	_, err = doc.Package()
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryDecode))
}

func TestStampBuildDate(t *testing.T) {
	var pkg PackageDescriptor
	local := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.FixedZone("CET", 3600))

	got := pkg.StampBuildDate(local)
	assert.Equal(t, "03052024060809", got)
	assert.Equal(t, got, pkg.BuildDate)
}

func TestValidate(t *testing.T) {
	err := (&PackageDescriptor{}).Validate()
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryDecode))
	assert.Error(t, (&PackageDescriptor{Name: "x", Arch: []string{"sparc"}}).Validate())
	assert.NoError(t, (&PackageDescriptor{Name: "x", Arch: []string{"any"}}).Validate())
}

func TestHasVersion(t *testing.T) {
	assert.True(t, (&PackageDescriptor{Version: "1.0", Release: "1"}).HasVersion())
	assert.False(t, (&PackageDescriptor{Version: "1.0"}).HasVersion())
	assert.False(t, (&PackageDescriptor{Release: "1"}).HasVersion())
}

func TestInvalidLicenses(t *testing.T) {
	assert.Empty(t, (&PackageDescriptor{}).InvalidLicenses())
	assert.Empty(t, (&PackageDescriptor{License: "MIT"}).InvalidLicenses())
	assert.NotEmpty(t, (&PackageDescriptor{License: "not a license"}).InvalidLicenses())
}

func TestPrint(t *testing.T) {
	doc, err := Load(writeDescriptor(t, "PKG.toml", "[package]\nname = \"foo\"\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.Print(&buf))
	out := buf.String()
	assert.Contains(t, out, "[package]")
	assert.Contains(t, out, `"name": "foo"`)
	assert.Contains(t, out, "[clean]\n{}")
}
