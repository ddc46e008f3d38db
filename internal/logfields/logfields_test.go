package logfields

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
		{"Package", KeyPackage, "foo", Package("foo")},
		{"Version", KeyVersion, "1.0", Version("1.0")},
		{"Stage", KeyStage, "build", Stage("build")},
		{"Source", KeySource, "git+https://x", Source("git+https://x")},
		{"URL", KeyURL, "http://example", URL("http://example")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"File", KeyFile, "foo.tar.gz", File("foo.tar.gz")},
		{"Digest", KeyDigest, "abc", Digest("abc")},
		{"Algorithm", KeyAlgorithm, "sha512", Algorithm("sha512")},
		{"Operation", KeyOperation, "clone", Operation("clone")},
		{"Outcome", KeyOutcome, "failed", Outcome("failed")},
		{"Archive", KeyArchive, "foo-x86_64.pkg.tar", Archive("foo-x86_64.pkg.tar")},
	}

	for _, tc := range cases {
		// Key drift would break log ingestion schemas.
		assert.Equal(t, tc.attrKey, tc.attr.Key, tc.name)
		assert.Equal(t, tc.attrVal, tc.attr.Value.String(), tc.name)
	}
}

func TestNumericHelpers(t *testing.T) {
	assert.Equal(t, KeyIndex, Index(2).Key)
	assert.Equal(t, KeyStatus, Status(404).Key)
	assert.Equal(t, KeyBytes, Bytes(42).Key)
	assert.Equal(t, KeyExitCode, ExitCode(1).Key)
	assert.Equal(t, KeyEntries, Entries(3).Key)
	assert.Equal(t, KeyDurationMS, DurationMS(12.5).Key)
	assert.InDelta(t, 12.5, DurationMS(12.5).Value.Float64(), 0.0001)
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	assert.Equal(t, KeyError, attr.Key)
	assert.Empty(t, attr.Value.String())

	attr = Error(errors.New("boom"))
	assert.Equal(t, "boom", attr.Value.String())
}
