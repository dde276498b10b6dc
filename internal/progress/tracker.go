// Package progress renders a terminal progress bar over the pipeline
// stages.
package progress

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Tracker drives a single progress bar through the named pipeline stages.
// A disabled tracker is a no-op, for CI logs and piped output.
type Tracker struct {
	mu      sync.Mutex
	enabled bool
	bar     *progressbar.ProgressBar
}

// NewTracker creates a tracker for a fixed number of stages.
func NewTracker(totalStages int, enabled bool) *Tracker {
	t := &Tracker{enabled: enabled}
	if !enabled {
		return t
	}

	t.bar = progressbar.NewOptions(totalStages,
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "|",
			BarEnd:        "|",
		}),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	return t
}

// StartStage labels the bar with the stage about to run.
func (t *Tracker) StartStage(name string) {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bar.Describe(name)
}

// CompleteStage advances the bar by one stage.
func (t *Tracker) CompleteStage() {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.bar.Add(1)
}

// Finish completes the bar regardless of how many stages ran.
func (t *Tracker) Finish() {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.bar.Finish()
}

// IsEnabled returns whether the bar renders.
func (t *Tracker) IsEnabled() bool {
	return t.enabled
}
