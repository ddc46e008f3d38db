package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAccumulates(t *testing.T) {
	ctx := WithBuildID(t.Context(), "build-123")
	ctx = WithPackage(ctx, "foo")
	ctx = WithStage(ctx, "handle_source")

	lc := GetContext(ctx)
	assert.Equal(t, "build-123", lc.BuildID)
	assert.Equal(t, "foo", lc.Package)
	assert.Equal(t, "handle_source", lc.Stage)
}

func TestEmptyContext(t *testing.T) {
	assert.Equal(t, LogContext{}, GetContext(t.Context()))
	assert.Empty(t, getLogAttrs(t.Context()))
}

func TestInfoContextWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithStage(WithBuildID(t.Context(), "b-1"), "archive")
	InfoContext(ctx, "archive written", slog.String("archive", "foo-x86_64.pkg.tar"))
	DebugContext(ctx, "debug line")

	out := buf.String()
	assert.Contains(t, out, "build_id=b-1")
	assert.Contains(t, out, "stage=archive")
	assert.Contains(t, out, "archive=foo-x86_64.pkg.tar")
	assert.Contains(t, out, "debug line")
}
