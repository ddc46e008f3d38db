package archive

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pkgbuilder/internal/extract"
	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
	helpers "git.home.luguber.info/inful/pkgbuilder/internal/testutil/testutils"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "foo-1.0-1-x86_64.pkg.tar", FileName("foo", "1.0", "1", "x86_64"))
	assert.Equal(t, "foo-x86_64.pkg.tar", FileName("foo", "", "", "x86_64"))
	assert.Equal(t, "foo-any.pkg.tar", FileName("foo", "1.0", "", "any"))
	assert.Equal(t, "foo-aarch64.pkg.tar", FileName("foo", "", "3", "aarch64"))
}

func TestArchFor(t *testing.T) {
	assert.Equal(t, "x86_64", archFor("amd64"))
	assert.Equal(t, "i686", archFor("386"))
	assert.Equal(t, "aarch64", archFor("arm64"))
	assert.Equal(t, "powerpc", archFor("ppc64le"))
	assert.Equal(t, "any", archFor("riscv64"))
	assert.NotEmpty(t, HostArch())
}

func tarNames(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var names []string
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	return names
}

func TestCreateStripsRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "pkg")
	helpers.WriteTree(t, root, map[string]string{
		"PKGINFO":       "{}",
		"MANIFEST":      "[]",
		"usr/bin/hello": "bin",
	})
	out := filepath.Join(t.TempDir(), "foo-x86_64.pkg.tar")

	n, err := Create(root, out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	names := tarNames(t, out)
	assert.Equal(t, []string{"MANIFEST", "PKGINFO", "usr/", "usr/bin/", "usr/bin/hello"}, names)
	for _, name := range names {
		assert.False(t, strings.HasPrefix(name, "pkg/"), name)
	}
}

func TestRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "pkg")
	want := map[string]string{
		"PKGINFO":                "{\"name\":\"foo\"}",
		"MANIFEST":               "[]",
		"usr/bin/foo":            "\x7fELF binary",
		"usr/share/foo/data.txt": strings.Repeat("data\n", 1000),
		"etc/foo.conf":           "",
	}
	helpers.WriteTree(t, root, want)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "var", "empty"), 0o755))
	require.NoError(t, os.Symlink("foo", filepath.Join(root, "usr", "bin", "foo-link")))

	out := filepath.Join(t.TempDir(), "foo.pkg.tar")
	_, err := Create(root, out)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "unpacked")
	_, err = extract.Extract(out, dest)
	require.NoError(t, err)

	assert.Equal(t, want, helpers.ReadTree(t, dest))
	helpers.NewFileAssertions(t, dest).AssertDirExists("var/empty")
	link, err := os.Readlink(filepath.Join(dest, "usr", "bin", "foo-link"))
	require.NoError(t, err)
	assert.Equal(t, "foo", link)
}

func TestCreateMissingRoot(t *testing.T) {
	out := filepath.Join(t.TempDir(), "x.pkg.tar")
	_, err := Create(filepath.Join(t.TempDir(), "absent"), out)
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryIO))
}

func TestCreateUnwritableOutput(t *testing.T) {
	root := t.TempDir()
	_, err := Create(root, filepath.Join(t.TempDir(), "no", "such", "dir", "x.pkg.tar"))
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryIO))
}
