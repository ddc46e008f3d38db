package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressWriterParsesSideband(t *testing.T) {
	var got []Progress
	w := newProgressWriter(ProgressFunc(func(p Progress) { got = append(got, p) }))

	chunks := []string{
		"Enumerating objects: 22, done.\n",
		"Counting objects: 100% (3/3), done.\n",
		"remote: Compressing objects:  50% (1/2)\rremote: Compress",
		"ing objects: 100% (2/2), done.\n",
		"Resolving deltas:   0% (0/4)\r",
		"Total 22 (delta 4), reused 0 (delta 0)\n",
	}
	for _, c := range chunks {
		n, err := w.Write([]byte(c))
		assert.NoError(t, err)
		assert.Equal(t, len(c), n)
	}

	assert.Equal(t, []Progress{
		{Phase: PhaseCounting, Current: 3, Total: 3},
		{Phase: PhaseCompressing, Current: 1, Total: 2},
		{Phase: PhaseCompressing, Current: 2, Total: 2},
	}, got)
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 45, Progress{Current: 10, Total: 22}.Percent())
	assert.Equal(t, 100, Progress{Current: 5, Total: 5}.Percent())
	assert.Equal(t, 0, Progress{Current: 5}.Percent())
}
