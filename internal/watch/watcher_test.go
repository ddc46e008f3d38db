package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresFiles(t *testing.T) {
	_, err := New(nil, 0)
	require.Error(t, err)
}

func TestRunTriggersOnTrackedChange(t *testing.T) {
	dir := t.TempDir()
	descriptor := filepath.Join(dir, "PKG.toml")
	require.NoError(t, os.WriteFile(descriptor, []byte("[package]\n"), 0o644))

	w, err := New([]string{descriptor}, 20*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) {
			calls.Add(1)
			cancel()
		})
	}()

	// Untracked files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.tar.gz"), []byte("x"), 0o644))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(descriptor, []byte("[package]\nname = \"foo\"\n"), 0o644))
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not trigger")
	}
	assert.Equal(t, int32(1), calls.Load())
}
