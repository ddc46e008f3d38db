package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/pkgbuilder/internal/extract"
	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgbuilder/internal/git"
	"git.home.luguber.info/inful/pkgbuilder/internal/integrity"
	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
	"git.home.luguber.info/inful/pkgbuilder/internal/observability"
)

// VCSPrefix marks a version-controlled source.
const VCSPrefix = "git+"

// Kind classifies a source specifier.
type Kind string

const (
	KindVCS    Kind = "vcs"
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

// Classify returns the kind of a source specifier and its location with any scheme prefix removed.
func Classify(spec string) (Kind, string) {
	switch {
	case strings.HasPrefix(spec, VCSPrefix):
		return KindVCS, strings.TrimPrefix(spec, VCSPrefix)
	case strings.Contains(spec, "://"):
		return KindRemote, spec
	default:
		return KindLocal, spec
	}
}

// VCS synchronizes a repository into a directory.
type VCS interface {
	Sync(ctx context.Context, url, dest string, sink git.ProgressSink) (git.Result, error)
}

// Downloader fetches a URL into a directory.
type Downloader interface {
	Download(ctx context.Context, rawURL, dir string) (string, int64, error)
}

// Resolved describes one source after it has been staged.
type Resolved struct {
	Index    int
	Spec     string
	Kind     Kind
	Path     string
	VCS      *git.Result
	Check    *integrity.Result
	Format   extract.Format
	Entries  int
	Duration time.Duration
}

// Resolver stages sources into a source tree.
type Resolver struct {
	vcs        VCS
	downloader Downloader
	sink       git.ProgressSink
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProgress sets the sink receiving VCS transfer progress.
func WithProgress(sink git.ProgressSink) Option {
	return func(r *Resolver) { r.sink = sink }
}

// NewResolver creates a Resolver using vcs for git+ sources and downloader for URLs.
func NewResolver(vcs VCS, downloader Downloader, opts ...Option) *Resolver {
	r := &Resolver{vcs: vcs, downloader: downloader}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request carries the inputs of one resolution run.
type Request struct {
	// Root is the invocation directory; downloads land here and local files are read from here.
	Root     string
	SrcDir   string
	Sources  []string
	Verifier integrity.Verifier
}

// Error reports the source that stopped a resolution run. Its message is the underlying
// error's.
type Error struct {
	Index    int
	Spec     string
	Kind     Kind
	Duration time.Duration
	Err      error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Resolve stages every source in order. Entry i completes or fails before entry i+1 starts.
// A failure is returned as *Error.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]Resolved, error) {
	resolved := make([]Resolved, 0, len(req.Sources))
	for i, spec := range req.Sources {
		start := time.Now()
		res, err := r.resolveOne(ctx, req, i, spec)
		if err != nil {
			observability.ErrorContext(ctx, "Source resolution failed",
				logfields.Index(i), logfields.Source(spec), logfields.Error(err))
			return resolved, &Error{Index: i, Spec: spec, Kind: res.Kind, Duration: time.Since(start), Err: err}
		}
		res.Duration = time.Since(start)
		observability.InfoContext(ctx, "Source ready",
			logfields.Index(i),
			logfields.Source(spec),
			logfields.Path(res.Path),
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
		resolved = append(resolved, res)
	}
	return resolved, nil
}

func (r *Resolver) resolveOne(ctx context.Context, req Request, index int, spec string) (Resolved, error) {
	kind, location := Classify(spec)
	res := Resolved{Index: index, Spec: spec, Kind: kind}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	switch kind {
	case KindVCS:
		if r.vcs == nil {
			return res, foundationerrors.InternalError("no VCS client configured").Build()
		}
		out, err := r.vcs.Sync(ctx, location, req.SrcDir, r.sink)
		if err != nil {
			return res, err
		}
		res.Path = out.Path
		res.VCS = &out
		return res, nil

	case KindRemote:
		if r.downloader == nil {
			return res, foundationerrors.InternalError("no downloader configured").Build()
		}
		path, size, err := r.downloader.Download(ctx, location, req.Root)
		if err != nil {
			return res, err
		}
		observability.DebugContext(ctx, "Downloaded source", logfields.URL(location), logfields.Bytes(size))
		res.Path = path

	default:
		path := location
		if !filepath.IsAbs(path) {
			path = filepath.Join(req.Root, path)
		}
		res.Path = path
	}

	check, err := req.Verifier.Verify(res.Path, index)
	if err != nil {
		return res, err
	}
	res.Check = &check
	if !check.Skipped {
		observability.DebugContext(ctx, "Source verified",
			logfields.File(res.Path), logfields.Algorithm(string(check.Algorithm)), logfields.Digest(check.Digest))
	}

	return r.stage(ctx, res, req.SrcDir)
}

// stage unpacks res into srcDir. Remote sources are always extracted; local files that are not
// a recognized archive are copied verbatim.
func (r *Resolver) stage(ctx context.Context, res Resolved, srcDir string) (Resolved, error) {
	format, err := extract.Detect(res.Path)
	if err != nil {
		return res, err
	}
	res.Format = format

	if res.Kind == KindLocal && !format.IsArchive() {
		dst := filepath.Join(srcDir, filepath.Base(res.Path))
		if sameFile(res.Path, dst) {
			observability.DebugContext(ctx, "Source already in source tree", logfields.File(res.Path))
		} else if err := copyFile(res.Path, dst); err != nil {
			return res, err
		}
		res.Entries = 1
		return res, nil
	}

	n, err := extract.Extract(res.Path, srcDir)
	if err != nil {
		return res, err
	}
	res.Entries = n
	observability.DebugContext(ctx, "Extracted source",
		logfields.Archive(res.Path), logfields.Entries(n))
	return res, nil
}

// sameFile reports whether a and b name the same existing file.
func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return copyError(src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return copyError(src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return copyError(dst, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return copyError(dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return copyError(dst, err)
	}
	if err := out.Close(); err != nil {
		return copyError(dst, err)
	}
	return nil
}

func copyError(path string, err error) error {
	return foundationerrors.IOError("failed to stage local source").
		WithContext("path", path).
		WithCause(err).
		Build()
}
