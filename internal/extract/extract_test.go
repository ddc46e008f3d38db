package extract

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

type entry struct {
	name string
	body string
	mode int64
	dir  bool
}

var sampleEntries = []entry{
	{name: "foo-1.0/", dir: true, mode: 0o755},
	{name: "foo-1.0/configure", body: "#!/bin/sh\necho ok\n", mode: 0o755},
	{name: "foo-1.0/src/main.c", body: "int main(void) { return 0; }\n", mode: 0o644},
}

func tarBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Size = 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func compress(t *testing.T, format Format, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch format {
	case FormatGzip:
		w = gzip.NewWriter(&buf)
	case FormatXZ:
		w, err = xz.NewWriter(&buf)
	case FormatZstd:
		w, err = zstd.NewWriter(&buf)
	default:
		return data
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeArchive(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestExtractFormats(t *testing.T) {
	for _, format := range []Format{FormatGzip, FormatXZ, FormatZstd, FormatTar} {
		t.Run(string(format), func(t *testing.T) {
			path := writeArchive(t, "foo.archive", compress(t, format, tarBytes(t, sampleEntries)))

			detected, err := Detect(path)
			require.NoError(t, err)
			assert.Equal(t, format, detected)

			dest := filepath.Join(t.TempDir(), "src")
			n, err := Extract(path, dest)
			require.NoError(t, err)
			assert.Equal(t, len(sampleEntries), n)

			data, err := os.ReadFile(filepath.Join(dest, "foo-1.0", "src", "main.c"))
			require.NoError(t, err)
			assert.Equal(t, sampleEntries[2].body, string(data))

			info, err := os.Stat(filepath.Join(dest, "foo-1.0", "configure"))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
		})
	}
}

func TestExtractKeepsSpecialModeBits(t *testing.T) {
	path := writeArchive(t, "modes.tar", tarBytes(t, []entry{
		{name: "shared/", dir: true, mode: 0o1777},
		{name: "bin/helper", body: "#!/bin/sh\n", mode: 0o4755},
	}))

	dest := filepath.Join(t.TempDir(), "src")
	_, err := Extract(path, dest)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dest, "bin", "helper"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.NotZero(t, info.Mode()&os.ModeSetuid)

	info, err = os.Stat(filepath.Join(dest, "shared"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o777), info.Mode().Perm())
	assert.NotZero(t, info.Mode()&os.ModeSticky)
}

func TestExtractRejectsGarbage(t *testing.T) {
	path := writeArchive(t, "notes.txt", bytes.Repeat([]byte("not an archive at all\n"), 40))

	detected, err := Detect(path)
	require.NoError(t, err)
	assert.False(t, detected.IsArchive())

	_, err = Extract(path, filepath.Join(t.TempDir(), "src"))
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryExtract))
}

func TestExtractCorruptGzip(t *testing.T) {
	data := compress(t, FormatGzip, tarBytes(t, sampleEntries))
	path := writeArchive(t, "foo.tar.gz", data[:len(data)/2])

	_, err := Extract(path, filepath.Join(t.TempDir(), "src"))
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryExtract))
}

func TestExtractStaysInsideDestination(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "src")
	path := writeArchive(t, "evil.tar", tarBytes(t, []entry{
		{name: "../escaped.txt", body: "x", mode: 0o644},
	}))

	_, err := Extract(path, dest)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "escaped.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dest, "escaped.txt"))
	assert.NoError(t, err)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "nope.tar"), t.TempDir())
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryIO))
}
