package task

import (
	"errors"
	"math"
	"os"
	"regexp"
	"strconv"
	"time"

	"lyricsync/transcript"
)

var (
	// "processing 'a.wav' (176000 samples, 11.0 sec), 4 threads, ..."
	durationLineRe = regexp.MustCompile(`\([^()]*?(\d+(?:\.\d+)?)\s*sec\)`)
	// "[00:00:00.000 --> 00:00:02.340]   hola"
	boundaryLineRe = regexp.MustCompile(`\[\s*(\d+:\d+:\d+(?:[.,]\d+)?)\s*-->\s*(\d+:\d+:\d+(?:[.,]\d+)?)\s*\]`)
	// "whisper_print_progress_callback: progress =  45%"
	percentLineRe = regexp.MustCompile(`progress\s*=\s*(\d+(?:\.\d+)?)%`)
)

// ProgressParser turns whisper's console output into a percentage.
// The zero value is ready to use. It is not safe for concurrent use.
type ProgressParser struct {
	duration float64
	progress float64
}

// Feed consumes one output line. It returns the new progress and true only
// when the line moved progress forward; anything unrecognized is ignored.
func (p *ProgressParser) Feed(line string) (float64, bool) {
	if m := boundaryLineRe.FindStringSubmatch(line); m != nil {
		if p.duration <= 0 {
			return p.progress, false
		}
		end, err := transcript.ParseClock(m[2])
		if err != nil {
			return p.progress, false
		}
		return p.advance(end / p.duration * 100)
	}

	if m := durationLineRe.FindStringSubmatch(line); m != nil {
		if d, err := strconv.ParseFloat(m[1], 64); err == nil && d > 0 {
			p.duration = d
		}
		return p.progress, false
	}

	if m := percentLineRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return p.advance(v)
		}
	}
	return p.progress, false
}

func (p *ProgressParser) advance(v float64) (float64, bool) {
	v = math.Min(100, v)
	if v <= p.progress {
		return p.progress, false
	}
	p.progress = v
	return v, true
}

func (p *ProgressParser) Progress() float64 { return p.progress }

// Duration is the declared audio length in seconds, 0 until announced.
func (p *ProgressParser) Duration() float64 { return p.duration }

// Tracker owns the writes to a single task record while its whisper process
// runs.
type Tracker struct {
	store  *Store
	id     string
	parser ProgressParser
}

func NewTracker(store *Store, id string) *Tracker {
	return &Tracker{store: store, id: id}
}

// Observe is the line callback handed to the Runner.
func (tr *Tracker) Observe(line string) {
	v, ok := tr.parser.Feed(line)
	if !ok {
		return
	}
	tr.store.Update(tr.id, func(t Task) Task {
		if v > t.Progress {
			t.Progress = v
		}
		return t
	})
}

// Finish moves the task to its terminal state. The task is done only when
// the process succeeded and the artifact exists; otherwise it is marked as
// failed and keeps its last progress.
func (tr *Tracker) Finish(runErr error, artifactPath string) Task {
	if runErr == nil {
		if _, err := os.Stat(artifactPath); err != nil {
			runErr = errors.New("transcription artifact missing: " + artifactPath)
		}
	}

	t, _ := tr.store.Update(tr.id, func(t Task) Task {
		t.CompletedAt = time.Now()
		if runErr != nil {
			t.Status = StatusError
			t.Error = runErr.Error()
			return t
		}
		t.Status = StatusDone
		t.Progress = 100
		return t
	})
	return t
}
