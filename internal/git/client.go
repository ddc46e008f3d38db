package git

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
)

// Operation is the kind of sync that ran.
type Operation string

const (
	OpClone Operation = "clone"
	OpFetch Operation = "fetch"
)

// Result summarizes a Sync.
type Result struct {
	Op       Operation
	Path     string
	Head     string
	UpToDate bool
}

// Client syncs remote repositories into local working copies.
type Client struct{}

// NewClient creates a Client.
func NewClient() *Client { return &Client{} }

// IsRepository reports whether path holds a repository go-git can open.
func IsRepository(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	_, err := git.PlainOpen(path)
	return err == nil
}

// Sync clones url into dest, or fetches origin when dest already is a repository.
// There is no retry; the first failure is returned.
func (c *Client) Sync(ctx context.Context, url, dest string, sink ProgressSink) (Result, error) {
	if sink == nil {
		sink = discardSink{}
	}
	sink = &lockedSink{sink: sink}
	if IsRepository(dest) {
		return c.fetch(ctx, url, dest, sink)
	}
	return c.clone(ctx, url, dest, sink)
}

func (c *Client) clone(ctx context.Context, url, dest string, sink ProgressSink) (Result, error) {
	slog.Debug("Cloning repository", logfields.URL(url), logfields.Path(dest))
	storage, root, err := openStorage(dest, sink)
	if err != nil {
		return Result{}, ClassifyGitError(err, OpClone, url)
	}
	repository, err := git.CloneContext(ctx, storage, osfs.New(root, osfs.WithBoundOS()), &git.CloneOptions{
		URL:      url,
		Progress: newProgressWriter(sink),
	})
	if err != nil {
		// Remove the partial repository so the next sync clones again.
		_ = os.RemoveAll(filepath.Join(root, git.GitDirName))
		return Result{}, ClassifyGitError(err, OpClone, url)
	}
	reportCheckout(repository, sink)

	res := Result{Op: OpClone, Path: dest}
	if ref, herr := repository.Head(); herr == nil {
		res.Head = ref.Hash().String()
	}
	slog.Info("Repository cloned", logfields.URL(url), logfields.Path(dest), slog.String("commit", shortHash(res.Head)))
	return res, nil
}

// reportCheckout emits a single checkout snapshot sized by the index.
func reportCheckout(repository *git.Repository, sink ProgressSink) {
	idx, err := repository.Storer.Index()
	if err != nil {
		return
	}
	n := len(idx.Entries)
	sink.OnProgress(Progress{Phase: PhaseCheckout, Current: n, Total: n})
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
