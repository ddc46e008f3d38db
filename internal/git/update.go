package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
)

func (c *Client) fetch(ctx context.Context, url, dest string, sink ProgressSink) (Result, error) {
	storage, root, err := openStorage(dest, sink)
	if err != nil {
		return Result{}, ClassifyGitError(err, OpFetch, url)
	}
	repository, err := git.Open(storage, osfs.New(root, osfs.WithBoundOS()))
	if err != nil {
		return Result{}, ClassifyGitError(err, OpFetch, url)
	}
	if remote, rerr := repository.Remote("origin"); rerr == nil {
		if urls := remote.Config().URLs; len(urls) > 0 && urls[0] != url {
			slog.Warn("Existing repository has a different origin", logfields.Path(dest),
				logfields.URL(url), slog.String("origin", urls[0]))
		}
	}

	slog.Debug("Fetching repository", logfields.URL(url), logfields.Path(dest))
	err = repository.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Progress:   newProgressWriter(sink),
	})
	upToDate := errors.Is(err, git.NoErrAlreadyUpToDate)
	if err != nil && !upToDate {
		return Result{}, ClassifyGitError(err, OpFetch, url)
	}

	if err := fastForward(repository, sink); err != nil {
		if errors.Is(err, errNoBranch) {
			slog.Warn("Detached HEAD, leaving working copy as is", logfields.Path(dest))
		} else {
			return Result{}, ClassifyGitError(err, OpFetch, url)
		}
	}

	res := Result{Op: OpFetch, Path: dest, UpToDate: upToDate}
	if ref, herr := repository.Head(); herr == nil {
		res.Head = ref.Hash().String()
	}
	slog.Info("Repository fetched", logfields.URL(url), logfields.Path(dest),
		slog.String("commit", shortHash(res.Head)), slog.Bool("up_to_date", upToDate))
	return res, nil
}

var errNoBranch = errors.New("HEAD is not on a branch")

// fastForward moves the checked-out branch to its remote-tracking ref when the local
// branch is an ancestor of it. A diverged branch is left alone.
func fastForward(repository *git.Repository, sink ProgressSink) error {
	head, err := repository.Head()
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}
	if !head.Name().IsBranch() {
		return errNoBranch
	}
	branch := head.Name().Short()
	remoteRef, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		slog.Warn("No remote-tracking ref for branch", slog.String("branch", branch))
		return nil
	}
	if remoteRef.Hash() == head.Hash() {
		return nil
	}

	ok, err := isAncestor(repository, head.Hash(), remoteRef.Hash())
	if err != nil {
		return fmt.Errorf("ancestor check: %w", err)
	}
	if !ok {
		slog.Warn("Local branch diverged from origin, not updating", slog.String("branch", branch),
			slog.String("local", shortHash(head.Hash().String())),
			slog.String("remote", shortHash(remoteRef.Hash().String())))
		return nil
	}

	wt, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	dirty, err := hasLocalChanges(wt)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if dirty {
		slog.Warn("Working copy has local changes, not updating", slog.String("branch", branch),
			slog.String("remote", shortHash(remoteRef.Hash().String())))
		return nil
	}
	paths, err := changedPaths(repository, head.Hash(), remoteRef.Hash())
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	// An empty file list resets every path, untracked ones included.
	opts := &git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.MergeReset, Files: paths}
	if len(paths) == 0 {
		opts.Mode = git.SoftReset
	}
	if err := wt.Reset(opts); err != nil {
		return fmt.Errorf("fast-forward reset: %w", err)
	}
	reportCheckout(repository, sink)
	slog.Info("Fast-forwarded working copy", slog.String("branch", branch),
		slog.String("from", shortHash(head.Hash().String())),
		slog.String("to", shortHash(remoteRef.Hash().String())))
	return nil
}

// hasLocalChanges reports whether a tracked file is modified, staged or deleted. Untracked
// files, such as build outputs, do not count.
func hasLocalChanges(wt *git.Worktree) (bool, error) {
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	for _, st := range status {
		if st.Worktree == git.Untracked && st.Staging == git.Untracked {
			continue
		}
		if st.Worktree != git.Unmodified || st.Staging != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

// changedPaths lists the paths that differ between the trees of two commits.
func changedPaths(repo *git.Repository, from, to plumbing.Hash) ([]string, error) {
	trees := make([]*object.Tree, 0, 2)
	for _, h := range []plumbing.Hash{from, to} {
		commit, err := repo.CommitObject(h)
		if err != nil {
			return nil, err
		}
		tree, err := commit.Tree()
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	changes, err := object.DiffTree(trees[0], trees[1])
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, ch := range changes {
		if ch.From.Name != "" {
			paths = append(paths, ch.From.Name)
		}
		if ch.To.Name != "" && ch.To.Name != ch.From.Name {
			paths = append(paths, ch.To.Name)
		}
	}
	return paths, nil
}

// isAncestor reports whether a is reachable from b by walking parents.
func isAncestor(repo *git.Repository, a, b plumbing.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == a {
			return true, nil
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repo.CommitObject(h)
		if err != nil {
			return false, err
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return false, nil
}
