package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyPackage    = "package"
	KeyVersion    = "version"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeySource     = "source"
	KeyIndex      = "index"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyDigest     = "digest"
	KeyAlgorithm  = "algorithm"
	KeyStatus     = "status"
	KeyOutcome    = "outcome"
	KeyBytes      = "bytes"
	KeyOperation  = "operation"
	KeyExitCode   = "exit_code"
	KeyArchive    = "archive"
	KeyEntries    = "entries"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Package(name string) slog.Attr   { return slog.String(KeyPackage, name) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Source(spec string) slog.Attr    { return slog.String(KeySource, spec) }
func Index(i int) slog.Attr           { return slog.Int(KeyIndex, i) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Digest(d string) slog.Attr       { return slog.String(KeyDigest, d) }
func Algorithm(a string) slog.Attr    { return slog.String(KeyAlgorithm, a) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Bytes(n int64) slog.Attr         { return slog.Int64(KeyBytes, n) }
func Operation(op string) slog.Attr   { return slog.String(KeyOperation, op) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Archive(name string) slog.Attr   { return slog.String(KeyArchive, name) }
func Entries(n int) slog.Attr         { return slog.Int(KeyEntries, n) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
