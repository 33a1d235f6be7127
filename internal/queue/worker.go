package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"discburn-agent/internal/burn"
)

// Worker processes queued jobs in topological order, one at a time: the
// destination drive is exclusively owned by a running chain.
type Worker struct {
	manager  *Manager
	executor *Executor
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewWorker creates a new job worker
func NewWorker(manager *Manager, executor *Executor, logger *slog.Logger) *Worker {
	return &Worker{
		manager:  manager,
		executor: executor,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the worker loop in a goroutine
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the worker to stop processing
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			w.logger.Info("worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("worker context cancelled")
			return
		case <-ticker.C:
			w.processNextJob(ctx)
		}
	}
}

func (w *Worker) processNextJob(ctx context.Context) {
	queued, err := w.manager.GetQueued()
	if err != nil {
		w.logger.Error("failed to get queued jobs", "error", err)
		return
	}

	if len(queued) == 0 {
		return
	}

	job := queued[0]

	if !w.dependenciesSatisfied(job) {
		return
	}

	w.executeJob(ctx, job)
}

// dependenciesSatisfied checks if all dependencies of a job completed; a
// failed or cancelled dependency cancels the job in turn.
func (w *Worker) dependenciesSatisfied(job *Job) bool {
	for _, depID := range job.DependsOn {
		depJob, err := w.manager.Get(depID)
		if err != nil {
			w.logger.Error("failed to fetch dependency", "job_id", depID, "error", err)
			return false
		}

		if depJob.Status == StatusFailed || depJob.Status == StatusCancelled {
			w.autoCancel(job.ID, depID, depJob.Status)
			return false
		}

		if depJob.Status != StatusCompleted {
			return false
		}
	}

	return true
}

func (w *Worker) autoCancel(jobID, depID string, depStatus JobStatus) {
	errMsg := fmt.Sprintf("dependency %s has status %s", depID, depStatus)
	now := time.Now().UTC()
	if err := w.manager.UpdateStatus(jobID, StatusCancelled, &now, &now, nil, errMsg); err != nil {
		w.logger.Error("failed to auto-cancel job", "job_id", jobID, "error", err)
		return
	}

	if err := w.manager.AppendEvent(jobID, Event{
		Timestamp: time.Now().UTC(),
		Type:      "info",
		Message:   fmt.Sprintf("Cancelled due to dependency failure: %s", depID),
	}); err != nil {
		w.logger.Error("failed to append event", "job_id", jobID, "error", err)
	}

	w.manager.cascadeCancelDependents(jobID)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) {
	w.logger.Info("executing job", "job_id", job.ID, "command", job.Command.Type)

	now := time.Now().UTC()
	if err := w.manager.UpdateStatus(job.ID, StatusRunning, &now, nil, nil, ""); err != nil {
		w.logger.Error("failed to mark job as running", "job_id", job.ID, "error", err)
		return
	}

	if err := w.manager.AppendEvent(job.ID, Event{
		Timestamp: time.Now().UTC(),
		Type:      "info",
		Message:   "Job execution started",
	}); err != nil {
		w.logger.Error("failed to append event", "job_id", job.ID, "error", err)
	}

	events := func(event Event) {
		if err := w.manager.AppendEvent(job.ID, event); err != nil {
			w.logger.Error("failed to append event", "job_id", job.ID, "error", err)
		}
	}

	result, execErr := w.executor.Execute(ctx, job.ID, job.Command, events)

	completedTime := time.Now().UTC()
	var status JobStatus
	var errMsg string

	if execErr != nil {
		status = StatusFailed
		if errors.Is(execErr, burn.ErrCancelled) {
			status = StatusCancelled
		}
		errMsg = execErr.Error()
		w.logger.Error("job execution failed", "job_id", job.ID, "status", status, "error", execErr)

		events(Event{
			Timestamp: time.Now().UTC(),
			Type:      "error",
			Message:   fmt.Sprintf("Job failed: %v", execErr),
		})

		w.manager.cascadeCancelDependents(job.ID)
	} else {
		status = StatusCompleted
		w.logger.Info("job execution completed", "job_id", job.ID)

		events(Event{
			Timestamp: time.Now().UTC(),
			Type:      "info",
			Message:   "Job execution completed",
		})
	}

	if err := w.manager.UpdateStatus(job.ID, status, &now, &completedTime, result, errMsg); err != nil {
		w.logger.Error("failed to update job status", "job_id", job.ID, "error", err)
	}
}
