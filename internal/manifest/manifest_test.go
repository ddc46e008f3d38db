package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
	helpers "git.home.luguber.info/inful/pkgbuilder/internal/testutil/testutils"
)

func buildTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "pkg")
	helpers.WriteTree(t, root, map[string]string{
		"usr/bin/hello":              "#!/bin/sh\necho hello\n",
		"usr/share/doc/hello/README": "hello docs",
		"PKGINFO":                    "{}",
		"empty":                      "",
	})
	require.NoError(t, os.Chmod(filepath.Join(root, "usr", "bin", "hello"), 0o755))
	require.NoError(t, os.Symlink("hello", filepath.Join(root, "usr", "bin", "hi")))
	return root
}

func TestBuildRecordsEveryNodeBelowRoot(t *testing.T) {
	root := buildTree(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	m, err := Build(root, now)
	require.NoError(t, err)

	var paths []string
	for _, e := range m.Entries {
		paths = append(paths, e.Path)
		assert.True(t, strings.HasPrefix(e.Path, "./"), e.Path)
		assert.NotEqual(t, "./.", e.Path)
		assert.NotContains(t, e.Path, filepath.Base(root)+"/")
	}
	assert.Equal(t, []string{
		"./PKGINFO",
		"./empty",
		"./usr",
		"./usr/bin",
		"./usr/bin/hello",
		"./usr/bin/hi",
		"./usr/share",
		"./usr/share/doc",
		"./usr/share/doc/hello",
		"./usr/share/doc/hello/README",
	}, paths, "walk order is lexical per directory")
}

func TestFileEntriesMatchContent(t *testing.T) {
	root := buildTree(t)
	now := time.Now()

	m, err := Build(root, now)
	require.NoError(t, err)

	files := m.Files()
	require.Len(t, files, 4)
	for rel, e := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(rel, "./"))))
		require.NoError(t, err)
		sum := sha256.Sum256(data)

		require.NotNil(t, e.Size)
		assert.Equal(t, int64(len(data)), *e.Size, rel)
		assert.Equal(t, hex.EncodeToString(sum[:]), e.SHA256, rel)
		require.NotNil(t, e.Timestamp)
		assert.True(t, e.Timestamp.Equal(now.UTC()), "timestamp is shared generation time")
	}
	if runtime.GOOS != "windows" {
		assert.Equal(t, "0755", files["./usr/bin/hello"].Mode)
	}
}

func TestDirectoryEntriesHaveOnlyPathAndMode(t *testing.T) {
	m, err := Build(buildTree(t), time.Now())
	require.NoError(t, err)

	for _, e := range m.Entries {
		if e.Type != TypeDir && e.Type != TypeSymlink {
			continue
		}
		assert.Nil(t, e.Size, e.Path)
		assert.Empty(t, e.SHA256, e.Path)
		assert.Nil(t, e.Timestamp, e.Path)
		assert.NotEmpty(t, e.Mode, e.Path)
	}
}

func TestModeKeepsSpecialBits(t *testing.T) {
	root := filepath.Join(t.TempDir(), "pkg")
	helpers.WriteTree(t, root, map[string]string{"usr/bin/su": "#!/bin/sh\n", "tmp/.keep": ""})
	require.NoError(t, os.Chmod(filepath.Join(root, "usr", "bin", "su"), 0o755|os.ModeSetuid))
	require.NoError(t, os.Chmod(filepath.Join(root, "tmp"), 0o777|os.ModeSticky))

	m, err := Build(root, time.Now())
	require.NoError(t, err)

	modes := map[string]string{}
	for _, e := range m.Entries {
		modes[e.Path] = e.Mode
	}
	assert.Equal(t, "4755", modes["./usr/bin/su"])
	assert.Equal(t, "1777", modes["./tmp"])
}

func TestPosixMode(t *testing.T) {
	assert.Equal(t, uint32(0o644), PosixMode(0o644))
	assert.Equal(t, uint32(0o2755), PosixMode(0o755|os.ModeSetgid))
	assert.Equal(t, uint32(0o7777), PosixMode(0o777|os.ModeSetuid|os.ModeSetgid|os.ModeSticky))
	assert.Equal(t, uint32(0o755), PosixMode(0o755|os.ModeDir))
}

func TestWriteAndRead(t *testing.T) {
	root := buildTree(t)
	m, err := Build(root, time.Now())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, m.Write(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Len(t, back.Entries, len(m.Entries))
	assert.Equal(t, m.Entries[0].Path, back.Entries[0].Path)
}

func TestBuildMissingRoot(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "absent"), time.Now())
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryWalk))
}

func TestEmptyTree(t *testing.T) {
	m, err := Build(t.TempDir(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, m.Entries)
}
