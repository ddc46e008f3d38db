package git

import (
	"io"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/format/packfile"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// progressStorage is the on-disk object storage of a working copy. Packfiles written to it
// are scanned as they arrive so receive and index progress reach the sink.
type progressStorage struct {
	*filesystem.Storage
	sink ProgressSink
}

// openStorage returns the worktree rooted at dest and the storage of its .git directory.
func openStorage(dest string, sink ProgressSink) (*progressStorage, string, error) {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return nil, "", err
	}
	dot := osfs.New(filepath.Join(abs, git.GitDirName), osfs.WithBoundOS())
	return &progressStorage{
		Storage: filesystem.NewStorage(dot, cache.NewObjectLRUDefault()),
		sink:    sink,
	}, abs, nil
}

// PackfileWriter implements storer.PackfileWriter.
func (s *progressStorage) PackfileWriter() (io.WriteCloser, error) {
	w, err := s.Storage.PackfileWriter()
	if err != nil {
		return nil, err
	}
	return newPackProgress(w, s.sink), nil
}

// packProgress forwards a packfile to the object storage and scans a copy of the stream
// for object headers. Each header is one received object.
type packProgress struct {
	w     io.WriteCloser
	pw    *io.PipeWriter
	sink  ProgressSink
	done  chan struct{}
	total int
}

func newPackProgress(w io.WriteCloser, sink ProgressSink) *packProgress {
	pr, pw := io.Pipe()
	p := &packProgress{w: w, pw: pw, sink: sink, done: make(chan struct{})}
	go p.scan(pr)
	return p
}

func (p *packProgress) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		_, _ = p.pw.Write(b[:n])
	}
	return n, err
}

// Close finishes the scan, then closes the storage writer, which indexes the pack.
func (p *packProgress) Close() error {
	_ = p.pw.Close()
	<-p.done
	if err := p.w.Close(); err != nil {
		return err
	}
	if p.total > 0 {
		p.sink.OnProgress(Progress{Phase: PhaseIndexing, Current: p.total, Total: p.total})
	}
	return nil
}

func (p *packProgress) scan(pr *io.PipeReader) {
	defer close(p.done)
	// The writer side blocks until every byte is consumed.
	defer func() { _, _ = io.Copy(io.Discard, pr) }()

	s := packfile.NewScanner(pr)
	_, objects, err := s.Header()
	if err != nil {
		return
	}
	p.total = int(objects)
	for i := 1; i <= p.total; i++ {
		if _, err := s.NextObjectHeader(); err != nil {
			return
		}
		if _, _, err := s.NextObject(io.Discard); err != nil {
			return
		}
		p.sink.OnProgress(Progress{Phase: PhaseReceiving, Current: i, Total: p.total})
	}
}

// lockedSink serializes snapshots from the sideband reader and the pack scanner.
type lockedSink struct {
	mu   sync.Mutex
	sink ProgressSink
}

func (l *lockedSink) OnProgress(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink.OnProgress(p)
}
