// Package task drives a materialized chain to completion: it activates and
// starts each stage, pumps progress ticks, routes cancellation, and
// collects the final status. The scheduler itself is single threaded;
// stages may spawn helpers internally and report back only through the
// context.
package task

import (
	"sync"

	"discburn-agent/internal/burn"
)

// Progress is a snapshot of the run published on every tick.
type Progress struct {
	Fraction float64
	Action   string
	Rate     int64
	Written  int64
	Sectors  int64
	Size     int64
	Track    int
	Tracks   int
}

// ProgressFunc receives progress publications. Calls are totally ordered on
// the scheduler goroutine.
type ProgressFunc func(Progress)

// Ctx carries the mutable state of one run. Stages update it; the scheduler
// reads and publishes it.
type Ctx struct {
	mu sync.Mutex

	progress Progress

	fake      bool
	dangerous bool

	finished chan outcome
}

type outcome struct {
	result burn.Result
	err    error
}

func newCtx() *Ctx {
	return &Ctx{
		// buffered so a stage finishing between ticks never blocks
		finished: make(chan outcome, 8),
	}
}

// Fake reports whether the run is a dry size-check run: stages must not
// produce side effects and only the last running stage's reported size is
// authoritative.
func (c *Ctx) Fake() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fake
}

func (c *Ctx) setFake(fake bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fake = fake
}

// SetDangerous marks the run as unsafe to interrupt (the laser is writing).
func (c *Ctx) SetDangerous(dangerous bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dangerous = dangerous
}

// Dangerous reports whether interrupting now could ruin the medium.
func (c *Ctx) Dangerous() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dangerous
}

// SetProgress updates the completion fraction, clamped to [0, 1].
func (c *Ctx) SetProgress(fraction float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	c.progress.Fraction = fraction
}

// SetAction names what the run is currently doing.
func (c *Ctx) SetAction(action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress.Action = action
}

// SetRate reports the current transfer rate in bytes per second.
func (c *Ctx) SetRate(rate int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress.Rate = rate
}

// SetWritten reports the bytes written so far.
func (c *Ctx) SetWritten(written int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress.Written = written
}

// SetOutputSize records the expected output size. During a fake run the
// last running stage is the one whose value survives.
func (c *Ctx) SetOutputSize(sectors, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress.Sectors = sectors
	c.progress.Size = size
}

// OutputSize returns the recorded output size.
func (c *Ctx) OutputSize() (sectors, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress.Sectors, c.progress.Size
}

// SetTracks sets the source track counters.
func (c *Ctx) SetTracks(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress.Track = current
	c.progress.Tracks = total
}

// Snapshot returns a copy of the current progress.
func (c *Ctx) Snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Finished tells the scheduler the chain is done: Ok for success, Retry
// when another source track remains and the chain must restart, anything
// else for failure. Safe to call from stage goroutines.
func (c *Ctx) Finished(result burn.Result, err error) {
	select {
	case c.finished <- outcome{result: result, err: err}:
	default:
		// a second completion in the same window loses; first wins
	}
}
