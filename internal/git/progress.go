package git

import (
	"bytes"
	"regexp"
	"strconv"
)

// Phase identifies the part of a transfer a Progress snapshot belongs to.
type Phase string

// Counting and compressing come from the remote's sideband messages. Receiving and indexing
// are measured locally from the packfile.
const (
	PhaseCounting    Phase = "counting"
	PhaseCompressing Phase = "compressing"
	PhaseReceiving   Phase = "receiving"
	PhaseIndexing    Phase = "indexing"
	PhaseCheckout    Phase = "checkout"
)

// Progress is a point-in-time view of one transfer phase.
type Progress struct {
	Phase   Phase
	Current int
	Total   int
}

// Percent returns the completed share of the phase, 0..100.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Current * 100 / p.Total
}

// ProgressSink receives progress snapshots. OnProgress runs on the transferring goroutine
// and must return quickly.
type ProgressSink interface {
	OnProgress(Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Progress)

func (f ProgressFunc) OnProgress(p Progress) { f(p) }

type discardSink struct{}

func (discardSink) OnProgress(Progress) {}

var progressLine = regexp.MustCompile(`^(?:remote: )?(Counting|Compressing) objects:\s+\d+% \((\d+)/(\d+)\)`)

var phaseByVerb = map[string]Phase{
	"Counting":    PhaseCounting,
	"Compressing": PhaseCompressing,
}

// progressWriter turns the sideband text stream of a transfer into Progress snapshots.
// Other sideband lines are ignored.
type progressWriter struct {
	sink ProgressSink
	buf  []byte
}

func newProgressWriter(sink ProgressSink) *progressWriter {
	return &progressWriter{sink: sink}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *progressWriter) emit(line []byte) {
	m := progressLine.FindSubmatch(line)
	if m == nil {
		return
	}
	current, err := strconv.Atoi(string(m[2]))
	if err != nil {
		return
	}
	total, err := strconv.Atoi(string(m[3]))
	if err != nil {
		return
	}
	w.sink.OnProgress(Progress{Phase: phaseByVerb[string(m[1])], Current: current, Total: total})
}
