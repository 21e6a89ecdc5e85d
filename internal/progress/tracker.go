// Package progress renders byte progress for long conversions on stderr.
package progress

import (
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Tracker tracks how much of a source file has been read.
type Tracker struct {
	bar *progressbar.ProgressBar
}

// NewBytes creates a tracker for total bytes, labelled with description.
func NewBytes(total int64, description string) *Tracker {
	return newTracker(os.Stderr, total, description)
}

func newTracker(w io.Writer, total int64, description string) *Tracker {
	return &Tracker{
		bar: progressbar.NewOptions64(
			total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// Wrap returns a reader that advances the bar as r is consumed.
func (t *Tracker) Wrap(r io.Reader) io.Reader {
	return io.TeeReader(r, t.bar)
}

// Finish completes the bar.
func (t *Tracker) Finish() {
	_ = t.bar.Finish()
}
