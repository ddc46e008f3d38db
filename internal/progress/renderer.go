// Package progress renders VCS transfer progress as terminal progress bars.
package progress

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"git.home.luguber.info/inful/pkgbuilder/internal/git"
)

// Renderer is a git.ProgressSink drawing one bar per transfer phase. It only updates
// in-memory bar state and writes to w, so it is cheap enough to run inline with a transfer.
type Renderer struct {
	w        io.Writer
	throttle time.Duration
	phase    git.Phase
	total    int
	bar      *progressbar.ProgressBar
}

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer, throttle time.Duration) *Renderer {
	return &Renderer{w: w, throttle: throttle}
}

// OnProgress implements git.ProgressSink.
func (r *Renderer) OnProgress(p git.Progress) {
	if p.Total <= 0 {
		return
	}
	if r.bar == nil || p.Phase != r.phase || p.Total != r.total {
		r.Finish()
		r.phase = p.Phase
		r.total = p.Total
		r.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetDescription(string(p.Phase)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(r.throttle),
		)
	}
	_ = r.bar.Set(p.Current)
	if p.Current >= p.Total {
		r.Finish()
	}
}

// Finish completes the active bar, if any.
func (r *Renderer) Finish() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	_, _ = io.WriteString(r.w, "\n")
	r.bar = nil
}

var _ git.ProgressSink = (*Renderer)(nil)
