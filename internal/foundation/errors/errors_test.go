package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryDecode, "invalid descriptor").
			WithSeverity(SeverityFatal).
			WithContext("file", "PKG.toml").
			Build()

		assert.Equal(t, CategoryDecode, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid descriptor", err.Message())

		file, exists := err.Context().GetString("file")
		require.True(t, exists)
		assert.Equal(t, "PKG.toml", file)
	})

	t.Run("Wrapped cause is reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NetworkError("download failed").WithCause(cause).Build()

		require.ErrorIs(t, err, cause)
		assert.Equal(t, "download failed: connection refused", err.Error())
		assert.True(t, err.IsFatal())
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := VCSError("fetch failed").Build()
		wrapped := fmt.Errorf("stage handle_source: %w", inner)

		assert.True(t, IsClassified(wrapped))
		assert.True(t, HasCategory(wrapped, CategoryVCS))
		assert.Equal(t, CategoryVCS, GetCategory(wrapped))
		assert.Equal(t, SeverityFatal, GetSeverity(wrapped))
	})

	t.Run("Unclassified defaults", func(t *testing.T) {
		err := errors.New("plain")
		assert.False(t, IsClassified(err))
		assert.Equal(t, CategoryInternal, GetCategory(err))
		assert.Equal(t, SeverityError, GetSeverity(err))
	})
}

func TestClassifiedError_WithContextCopies(t *testing.T) {
	base := IOError("write failed").WithContext("path", "a").Build()
	derived := base.WithContext("path", "b")

	p, _ := base.Context().GetString("path")
	assert.Equal(t, "a", p)
	p, _ = derived.Context().GetString("path")
	assert.Equal(t, "b", p)
}

func TestClassifiedError_Is(t *testing.T) {
	a := NewError(CategoryMissingDigest, "missing digest").Build()
	b := NewError(CategoryMissingDigest, "missing digest").Build()
	c := NewError(CategoryDigestMismatch, "missing digest").Build()

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestErrorContext_Merge(t *testing.T) {
	var empty ErrorContext
	other := ErrorContext{"k": 1}
	assert.Equal(t, other, empty.Merge(other))

	merged := ErrorContext{"k": 0, "x": true}.Merge(other)
	assert.Equal(t, 1, merged["k"])
	assert.Equal(t, true, merged["x"])
}
