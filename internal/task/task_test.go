package task

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"

	"discburn-agent/internal/burn"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeItem is a scriptable stage for scheduler tests.
type fakeItem struct {
	name string

	activateResult burn.Result
	startResult    burn.Result
	startErr       error

	onStart func(*fakeItem, *Ctx)
	onTick  func(*fakeItem, *Ctx)

	activations int32
	starts      int32
	stops       int32
	ticks       int32
}

func newFakeItem(name string) *fakeItem {
	return &fakeItem{name: name, activateResult: burn.Ok, startResult: burn.Ok}
}

func (f *fakeItem) Name() string { return f.name }

func (f *fakeItem) Activate(ctx *Ctx) (burn.Result, error) {
	atomic.AddInt32(&f.activations, 1)
	return f.activateResult, nil
}

func (f *fakeItem) Start(ctx *Ctx) (burn.Result, error) {
	atomic.AddInt32(&f.starts, 1)
	if f.onStart != nil {
		f.onStart(f, ctx)
	}
	return f.startResult, f.startErr
}

func (f *fakeItem) Stop(ctx *Ctx) (burn.Result, error) {
	atomic.AddInt32(&f.stops, 1)
	return burn.Ok, nil
}

func (f *fakeItem) ClockTick(ctx *Ctx) {
	atomic.AddInt32(&f.ticks, 1)
	if f.onTick != nil {
		f.onTick(f, ctx)
	}
}

func fastTask() *Task {
	t := New(testLogger())
	t.TickInterval = time.Millisecond
	return t
}

func TestRunSuccessStopsEveryStageOnce(t *testing.T) {
	is := is.New(t)

	source := newFakeItem("source")
	writer := newFakeItem("writer")
	writer.onTick = func(f *fakeItem, ctx *Ctx) {
		if atomic.LoadInt32(&f.ticks) >= 2 {
			ctx.Finished(burn.Ok, nil)
		}
	}

	tk := fastTask()
	tk.Add(source)
	tk.Add(writer)

	var published int32
	tk.OnProgress = func(p Progress) { atomic.AddInt32(&published, 1) }

	is.NoErr(tk.Run())

	is.Equal(atomic.LoadInt32(&source.stops), int32(1))
	is.Equal(atomic.LoadInt32(&writer.stops), int32(1))
	is.Equal(atomic.LoadInt32(&source.activations), int32(1))
	is.True(atomic.LoadInt32(&published) > 0)

	// the final publication reports completion
	is.Equal(tk.Ctx().Snapshot().Fraction, 1.0)
}

func TestStageErrorStopsChainAndKeepsPrincipal(t *testing.T) {
	is := is.New(t)

	source := newFakeItem("source")
	writer := newFakeItem("writer")
	writer.onTick = func(f *fakeItem, ctx *Ctx) {
		ctx.Finished(burn.Err, errors.New("laser jammed"))
	}

	tk := fastTask()
	tk.Add(source)
	tk.Add(writer)

	err := tk.Run()
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "laser jammed"))

	is.Equal(atomic.LoadInt32(&source.stops), int32(1))
	is.Equal(atomic.LoadInt32(&writer.stops), int32(1))
}

func TestNoStageActivatedIsNoOp(t *testing.T) {
	is := is.New(t)

	a := newFakeItem("a")
	a.activateResult = burn.NotRunning
	b := newFakeItem("b")
	b.activateResult = burn.NotRunning

	tk := fastTask()
	tk.Add(a)
	tk.Add(b)

	is.NoErr(tk.Run())
	is.Equal(atomic.LoadInt32(&a.starts), int32(0))
	is.Equal(atomic.LoadInt32(&b.starts), int32(0))
	is.Equal(atomic.LoadInt32(&a.stops), int32(0))
}

func TestAllDeclinedFallsBackToDefaultSize(t *testing.T) {
	is := is.New(t)

	a := newFakeItem("a")
	a.startResult = burn.NotSupported
	b := newFakeItem("b")
	b.startResult = burn.NotSupported

	tk := fastTask()
	tk.Add(a)
	tk.Add(b)
	tk.FallbackSize = func(ctx *Ctx) error {
		ctx.SetOutputSize(1024, 1024*2048)
		return nil
	}

	is.NoErr(tk.Check())

	sectors, size := tk.Ctx().OutputSize()
	is.Equal(sectors, int64(1024))
	is.Equal(size, int64(1024*2048))
}

func TestRetryRestartsChainHead(t *testing.T) {
	is := is.New(t)

	source := newFakeItem("source")
	writer := newFakeItem("writer")
	writer.onTick = func(f *fakeItem, ctx *Ctx) {
		switch atomic.LoadInt32(&f.ticks) {
		case 1:
			ctx.Finished(burn.Retry, nil)
		case 2:
			ctx.Finished(burn.Ok, nil)
		}
	}

	tk := fastTask()
	tk.Add(source)
	tk.Add(writer)

	is.NoErr(tk.Run())

	// the head was started once per track
	is.Equal(atomic.LoadInt32(&source.starts), int32(2))
	is.Equal(atomic.LoadInt32(&source.stops), int32(1))
}

func TestCancelProtectedWhileDangerous(t *testing.T) {
	is := is.New(t)

	writer := newFakeItem("writer")
	writer.onStart = func(f *fakeItem, ctx *Ctx) {
		ctx.SetDangerous(true)
	}

	tk := fastTask()
	tk.Add(writer)

	done := make(chan error, 1)
	go func() { done <- tk.Run() }()

	waitUntil(t, func() bool { return tk.Running() })

	// protected cancel refuses while the laser is writing
	is.Equal(tk.Cancel(true), burn.Dangerous)
	is.True(tk.Running())

	// unprotected cancel goes through
	is.Equal(tk.Cancel(false), burn.Ok)

	err := <-done
	is.True(errors.Is(err, burn.ErrCancelled))
	is.Equal(atomic.LoadInt32(&writer.stops), int32(1))
}

func TestCheckModeMarksContextFake(t *testing.T) {
	is := is.New(t)

	writer := newFakeItem("writer")
	sawFake := false
	writer.onStart = func(f *fakeItem, ctx *Ctx) {
		sawFake = ctx.Fake()
		ctx.SetOutputSize(100, 100*2048)
		ctx.Finished(burn.Ok, nil)
	}

	tk := fastTask()
	tk.Add(writer)

	is.NoErr(tk.Check())
	is.True(sawFake)

	sectors, _ := tk.Ctx().OutputSize()
	is.Equal(sectors, int64(100))
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
