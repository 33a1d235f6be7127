package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"discburn-agent/internal/burn"
	"discburn-agent/internal/caps"
	"discburn-agent/internal/drive"
	"discburn-agent/internal/plugins"
	"discburn-agent/internal/session"
	"discburn-agent/internal/task"
	"discburn-agent/internal/tmpfiles"
)

// Executor turns a queued command into a session, plans a chain for it and
// drives the chain with the task scheduler.
type Executor struct {
	registry *caps.Registry
	drives   map[string]*drive.Drive
	tmpBase  string
	logger   *slog.Logger

	// TickInterval overrides the scheduler cadence when non-zero.
	TickInterval time.Duration

	mu      sync.Mutex
	running map[string]*task.Task
}

// NewExecutor creates a job executor over a frozen registry.
func NewExecutor(registry *caps.Registry, drives map[string]*drive.Drive, tmpBase string, logger *slog.Logger) *Executor {
	return &Executor{
		registry: registry,
		drives:   drives,
		tmpBase:  tmpBase,
		logger:   logger,
		running:  make(map[string]*task.Task),
	}
}

// CancelRunning asks the task executing jobID to stop. Dangerous runs are
// protected unless force is set.
func (e *Executor) CancelRunning(jobID string, force bool) burn.Result {
	e.mu.Lock()
	t, ok := e.running[jobID]
	e.mu.Unlock()
	if !ok {
		return burn.NotRunning
	}
	return t.Cancel(!force)
}

// buildSession resolves a command into a session snapshot.
func (e *Executor) buildSession(cmd Command) (*session.Session, error) {
	cfg := session.Config{
		Input:      cmd.InputType(),
		DestFile:   cmd.DestFile,
		DestFormat: cmd.DestFormat,
		Flags:      cmd.Flags,
		Check:      session.DefaultCheckFlags,
	}

	if cmd.DestDrive != "" {
		d, ok := e.drives[cmd.DestDrive]
		if !ok {
			return nil, fmt.Errorf("unknown destination drive %q", cmd.DestDrive)
		}
		cfg.DestDrive = d
	}
	if cmd.SourceDrive != "" {
		d, ok := e.drives[cmd.SourceDrive]
		if !ok {
			return nil, fmt.Errorf("unknown source drive %q", cmd.SourceDrive)
		}
		cfg.SourceDrive = d
	}

	return session.New(cfg), nil
}

// Execute runs one job to completion, posting progress through events.
func (e *Executor) Execute(ctx context.Context, jobID string, cmd Command, events func(Event)) (any, error) {
	sess, err := e.buildSession(cmd)
	if err != nil {
		return nil, err
	}

	var chain *caps.Chain
	switch cmd.Type {
	case CmdBlank:
		chain, err = e.registry.MaterializeBlankChain(sess)
	case CmdBurn, CmdImage, CmdCheck:
		if res := e.registry.SessionSupported(sess); res != burn.Ok {
			return nil, fmt.Errorf("session: %w", burn.ErrNotSupported)
		}
		chain, err = e.registry.MaterializeChain(sess)
	default:
		return nil, fmt.Errorf("unknown command type %q", cmd.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	scope, err := tmpfiles.NewScope(e.tmpBase)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scope.Cleanup(); err != nil {
			e.logger.Warn("temp scope cleanup failed", "job_id", jobID, "error", err)
		}
	}()

	t := task.New(e.logger)
	if e.TickInterval > 0 {
		t.TickInterval = e.TickInterval
	}
	for i, stage := range chain.Stages {
		leader := i == len(chain.Stages)-1
		t.Add(plugins.NewRunner(stage, leader, e.logger))
	}

	t.OnProgress = func(p task.Progress) {
		events(Event{
			Timestamp: time.Now().UTC(),
			Type:      "progress",
			Message:   p.Action,
			Data: map[string]any{
				"fraction": p.Fraction,
				"rate":     p.Rate,
				"written":  p.Written,
			},
		})
	}

	e.mu.Lock()
	e.running[jobID] = t
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, jobID)
		e.mu.Unlock()
	}()

	// observe external cancellation while the task runs
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			t.Cancel(false)
		case <-done:
		}
	}()

	if cmd.Type == CmdCheck {
		err = t.Check()
	} else {
		err = t.Run()
	}
	if err != nil {
		return nil, err
	}

	sectors, size := t.Ctx().OutputSize()
	return map[string]any{
		"stages":  stageNames(chain),
		"sectors": sectors,
		"size":    size,
	}, nil
}

func stageNames(chain *caps.Chain) []string {
	names := make([]string, 0, len(chain.Stages))
	for _, s := range chain.Stages {
		names = append(names, s.Plugin.Name)
	}
	return names
}
