package task

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"discburn-agent/internal/burn"
)

// Item is the behavioral contract of one chain stage. Activate admits the
// stage for this run (NotRunning means "nothing for me to do, skip me
// silently"); Start begins the work (NotSupported means the stage declines
// this particular job); Stop terminates gracefully. ClockTick is called
// periodically so long-lived stages can refresh their reported progress.
type Item interface {
	Name() string
	Activate(ctx *Ctx) (burn.Result, error)
	Start(ctx *Ctx) (burn.Result, error)
	Stop(ctx *Ctx) (burn.Result, error)
	ClockTick(ctx *Ctx)
}

const defaultTickInterval = 500 * time.Millisecond

// Task owns a chain for one run. Stages are held input-first; the leader is
// the last stage.
type Task struct {
	items  []Item
	active []bool

	ctx    *Ctx
	logger *slog.Logger

	// TickInterval is the progress cadence; tests shorten it.
	TickInterval time.Duration

	// OnProgress receives progress publications.
	OnProgress ProgressFunc

	// FallbackSize, when set, provides the default output size estimation
	// used when every stage declines a size-check run.
	FallbackSize func(ctx *Ctx) error

	cancel chan cancelRequest

	runMu     sync.Mutex
	runningCh chan struct{}
}

type cancelRequest struct {
	protect bool
	reply   chan burn.Result
}

func New(logger *slog.Logger) *Task {
	return &Task{
		ctx:          newCtx(),
		logger:       logger,
		TickInterval: defaultTickInterval,
		cancel:       make(chan cancelRequest),
	}
}

// Add appends an item to the chain; the last added item is the leader.
func (t *Task) Add(item Item) {
	t.items = append(t.items, item)
	t.active = append(t.active, false)
}

// Ctx exposes the run context to stage constructors.
func (t *Task) Ctx() *Ctx { return t.ctx }

func (t *Task) running() chan struct{} {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return t.runningCh
}

// Running reports whether a run loop is in flight.
func (t *Task) Running() bool {
	ch := t.running()
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return false
	default:
		return true
	}
}

// Cancel asks a running task to stop. With protect set, a run flagged
// dangerous refuses and returns Dangerous. Cancellation is cooperative:
// stages observe it at their own tick boundaries.
func (t *Task) Cancel(protect bool) burn.Result {
	if !t.Running() {
		return burn.Ok
	}
	ch := t.running()
	if ch == nil {
		return burn.Ok
	}
	req := cancelRequest{protect: protect, reply: make(chan burn.Result, 1)}
	select {
	case t.cancel <- req:
		return <-req.reply
	case <-ch:
		return burn.Ok
	}
}

// Run executes the chain for real.
func (t *Task) Run() error {
	return t.start(false)
}

// Check executes the chain in fake mode to gather the final output size
// without side effects.
func (t *Task) Check() error {
	return t.start(true)
}

func (t *Task) start(fake bool) error {
	if t.Running() {
		return burn.ErrRunning
	}
	if len(t.items) == 0 {
		t.logger.Debug("no stages")
		return burn.ErrRunning
	}

	t.ctx.setFake(fake)

	result, err := t.activateItems()
	if result == burn.NotRunning {
		t.logger.Debug("task skipped, no stage activated")
		return nil
	}
	if err != nil {
		return err
	}

	result, err = t.startItems()
	for result == burn.NotRunning {
		// the current source track was skipped without entering the loop;
		// if more tracks remain, start over
		t.logger.Debug("current track skipped")
		if !t.nextTrack() {
			t.sendStopSignal(nil)
			return nil
		}
		result, err = t.startItems()
	}

	if err != nil {
		stopErr := t.sendStopSignal(nil)
		return errors.Join(err, stopErr)
	}
	return nil
}

// activateItems walks the chain input-first. A stage answering NotRunning
// is inactive for this run; if nothing activates the run is a no-op.
func (t *Task) activateItems() (burn.Result, error) {
	retval := burn.NotRunning
	for i, item := range t.items {
		result, err := item.Activate(t.ctx)
		if result == burn.NotRunning {
			t.logger.Debug("stage skipped", "stage", item.Name())
			t.active[i] = false
			continue
		}
		if err != nil {
			return result, &burn.StageError{Stage: item.Name(), Err: err}
		}
		if result != burn.Ok {
			return result, &burn.StageError{Stage: item.Name(), Err: errors.New(result.String())}
		}
		t.active[i] = true
		retval = burn.Ok
	}
	return retval, nil
}

// startItems walks the chain leader-first. NotSupported deactivates the
// declining stage and goes on; when every stage declines, a size-check run
// falls back to the default estimation and reports NotRunning, while a real
// run fails with NotSupported.
func (t *Task) startItems() (burn.Result, error) {
	retval := burn.NotSupported
	for i := len(t.items) - 1; i >= 0; i-- {
		if !t.active[i] {
			continue
		}
		item := t.items[i]

		result, err := item.Start(t.ctx)
		if result == burn.NotSupported {
			t.logger.Debug("stage does not support action", "stage", item.Name())
			t.active[i] = false
			continue
		}
		if result == burn.NotRunning {
			return burn.NotRunning, nil
		}
		if err != nil {
			return result, &burn.StageError{Stage: item.Name(), Err: err}
		}
		if result != burn.Ok {
			return result, &burn.StageError{Stage: item.Name(), Err: errors.New(result.String())}
		}
		retval = burn.Ok
	}

	if retval == burn.NotSupported {
		if !t.ctx.Fake() {
			return burn.NotSupported, burn.ErrNotSupported
		}
		if t.FallbackSize != nil {
			if err := t.FallbackSize(t.ctx); err != nil {
				return burn.Err, err
			}
		}
		return burn.NotRunning, nil
	}

	return t.runLoop()
}

// runLoop is the cooperative scheduler loop: every tick it lets each active
// stage refresh its progress, leader first, then publishes the aggregate.
// It returns when a stage reports completion or a cancel wins.
func (t *Task) runLoop() (burn.Result, error) {
	ch := make(chan struct{})
	t.runMu.Lock()
	t.runningCh = ch
	t.runMu.Unlock()
	defer close(ch)

	t.publishProgress()

	ticker := time.NewTicker(t.TickInterval)
	defer ticker.Stop()

	t.logger.Debug("entering run loop")
	for {
		select {
		case <-ticker.C:
			t.clockTick()
			t.publishProgress()

		case req := <-t.cancel:
			if req.protect && t.ctx.Dangerous() {
				req.reply <- burn.Dangerous
				continue
			}
			req.reply <- burn.Ok
			err := t.sendStopSignal(burn.ErrCancelled)
			t.logger.Debug("run cancelled")
			return burn.Cancel, err

		case out := <-t.ctx.finished:
			if out.result == burn.Retry {
				// another source track: restart the chain from the first
				// stage, keeping the chain structure
				if !t.restartFirst() {
					return burn.Err, t.sendStopSignal(errors.New("restart failed"))
				}
				continue
			}

			t.logger.Debug("run loop finished", "result", out.result.String())

			if out.result == burn.Ok && out.err == nil {
				t.ctx.SetProgress(1.0)
				t.publishProgress()
				stopErr := t.sendStopSignal(nil)
				return burn.Ok, stopErr
			}

			err := out.err
			if err == nil {
				err = errors.New(out.result.String())
			}
			stopErr := t.sendStopSignal(nil)
			return out.result, errors.Join(err, stopErr)
		}
	}
}

// clockTick refreshes stage progress, leader to tail.
func (t *Task) clockTick() {
	for i := len(t.items) - 1; i >= 0; i-- {
		if !t.active[i] {
			continue
		}
		t.items[i].ClockTick(t.ctx)
	}
}

func (t *Task) publishProgress() {
	if t.OnProgress != nil {
		t.OnProgress(t.ctx.Snapshot())
	}
}

// restartFirst restarts the chain head for the next source track.
func (t *Task) restartFirst() bool {
	for i, item := range t.items {
		if !t.active[i] {
			continue
		}
		result, err := item.Start(t.ctx)
		if err != nil || result != burn.Ok {
			t.logger.Error("failed to restart chain head", "stage", item.Name(), "error", err)
			return false
		}
		return true
	}
	return false
}

// nextTrack advances to the next source track during the skip loop.
func (t *Task) nextTrack() bool {
	p := t.ctx.Snapshot()
	if p.Track+1 >= p.Tracks {
		return false
	}
	t.ctx.SetTracks(p.Track+1, p.Tracks)
	return true
}

// sendStopSignal stops every active stage, input to output, exactly once.
// Stop is best effort: errors are chained, the principal error wins.
func (t *Task) sendStopSignal(principal error) error {
	var stopErrs []error
	for i, item := range t.items {
		if !t.active[i] {
			t.logger.Debug("stage already stopped", "stage", item.Name())
			continue
		}
		t.active[i] = false

		t.logger.Debug("stopping stage", "stage", item.Name())
		if _, err := item.Stop(t.ctx); err != nil {
			stopErrs = append(stopErrs, &burn.StageError{Stage: item.Name(), Err: err})
		}
	}

	if principal != nil {
		return errors.Join(append([]error{principal}, stopErrs...)...)
	}
	return errors.Join(stopErrs...)
}
