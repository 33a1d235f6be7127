package plugins

import (
	"log/slog"
	"sync"

	"discburn-agent/internal/burn"
	"discburn-agent/internal/caps"
	"discburn-agent/internal/plugin"
	"discburn-agent/internal/task"
)

// Runner is the runtime half of a built-in stage. The external tools the
// declarations front are not driven by the core, so a runner simulates the
// stage: it accounts progress on every clock tick and, when it is the
// chain leader, reports completion once its work quota is consumed.
type Runner struct {
	plan   caps.StagePlan
	leader bool
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	ticks   int

	// TotalTicks is how many clock ticks the simulated work takes.
	TotalTicks int

	// SizeSectors and SizeBytes are the output size the stage reports for
	// size-check runs.
	SizeSectors int64
	SizeBytes   int64
}

// NewRunner builds the runtime stage for one chain plan entry. The leader
// is the stage owning the destination; it alone reports completion.
func NewRunner(plan caps.StagePlan, leader bool, logger *slog.Logger) *Runner {
	return &Runner{
		plan:       plan,
		leader:     leader,
		logger:     logger,
		TotalTicks: 4,
	}
}

func (r *Runner) Name() string { return r.plan.Plugin.Name }

// Activate admits the stage for the run.
func (r *Runner) Activate(ctx *task.Ctx) (burn.Result, error) {
	if !r.plan.Plugin.IsActive(plugin.ActiveStrict) {
		return burn.Err, &burn.PluginError{Plugin: r.plan.Plugin.Name, Reason: "helper unavailable"}
	}
	return burn.Ok, nil
}

// Start begins the simulated work.
func (r *Runner) Start(ctx *task.Ctx) (burn.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = true
	r.ticks = 0

	if ctx.Fake() {
		// only the last running stage's size survives; report ours and let
		// the scheduler decide
		if r.SizeBytes > 0 {
			ctx.SetOutputSize(r.SizeSectors, r.SizeBytes)
		}
		if r.leader {
			ctx.Finished(burn.Ok, nil)
		}
		return burn.Ok, nil
	}

	if r.plan.Blanking {
		ctx.SetAction("blanking")
		ctx.SetDangerous(true)
	} else if r.plan.Output.HasMedium() {
		ctx.SetAction("recording")
		ctx.SetDangerous(true)
	} else {
		ctx.SetAction("creating image")
	}

	r.logger.Debug("stage started", "stage", r.plan.Plugin.Name, "leader", r.leader)
	return burn.Ok, nil
}

// Stop ends the stage.
func (r *Runner) Stop(ctx *task.Ctx) (burn.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	return burn.Ok, nil
}

// ClockTick advances the simulated work; the leader reports completion once
// done.
func (r *Runner) ClockTick(ctx *task.Ctx) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}

	r.ticks++
	if r.leader {
		fraction := float64(r.ticks) / float64(r.TotalTicks)
		ctx.SetProgress(fraction)
		if r.ticks >= r.TotalTicks {
			ctx.SetDangerous(false)
			ctx.Finished(burn.Ok, nil)
		}
	}
}
