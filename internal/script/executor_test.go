package script

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

func newTestExecutor(opts ...Option) (*Executor, *bytes.Buffer) {
	var out bytes.Buffer
	return NewExecutor(append([]Option{WithOutput(&out, &out)}, opts...)...), &out
}

func TestRunSharesShellStateAcrossLines(t *testing.T) {
	exec, out := newTestExecutor()

	err := exec.Run(t.Context(), Script{Name: "build", Lines: []string{"export X=1", "echo $X"}, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "1\n", out.String())
}

func TestSeparateScriptsDoNotShareState(t *testing.T) {
	exec, out := newTestExecutor()
	dir := t.TempDir()

	require.NoError(t, exec.Run(t.Context(), Script{Name: "a", Lines: []string{"export X=1"}, Dir: dir}))
	require.NoError(t, exec.Run(t.Context(), Script{Name: "b", Lines: []string{"echo \"[$X]\""}, Dir: dir}))
	assert.Equal(t, "[]\n", out.String())
}

func TestRunDirectoryAndEnvironment(t *testing.T) {
	exec, out := newTestExecutor()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	err := exec.Run(t.Context(), Script{
		Name:  "package",
		Lines: []string{"cd sub", "pwd", "echo $pkg_vers-$pkg_rel"},
		Dir:   dir,
		Env:   []string{"PATH=" + os.Getenv("PATH"), "pkg_vers=1.0", "pkg_rel=2"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	resolved, err := filepath.EvalSymlinks(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	gotDir, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)
	assert.Equal(t, resolved, gotDir)
	assert.Equal(t, "1.0-2", lines[1])
}

func TestRunFailureStopsScript(t *testing.T) {
	exec, out := newTestExecutor()

	err := exec.Run(t.Context(), Script{Name: "build", Lines: []string{"echo before", "exit 3", "echo after"}, Dir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryScript))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "build", exitErr.Script)
	assert.Equal(t, "before\n", out.String())
}

func TestRunFailingCommandUnderErrexit(t *testing.T) {
	exec, out := newTestExecutor()

	err := exec.Run(t.Context(), Script{Name: "build", Lines: []string{"false", "echo after"}, Dir: t.TempDir()})
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRunContinueOnError(t *testing.T) {
	exec, out := newTestExecutor(WithContinueOnError(true))

	err := exec.Run(t.Context(), Script{Name: "build", Lines: []string{"false", "echo after", "exit 1"}, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "after\n", out.String())
}

func TestRunEmptyScript(t *testing.T) {
	exec := NewExecutor(WithShell("/definitely/not/a/shell"))
	assert.NoError(t, exec.Run(t.Context(), Script{Name: "clean"}))
}

func TestRunMissingShell(t *testing.T) {
	exec := NewExecutor(WithShell("/definitely/not/a/shell"))
	err := exec.Run(t.Context(), Script{Name: "build", Lines: []string{"true"}, Dir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryScript))
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a\nb", Join([]string{"a", "b"}))
}
