package queue

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager tracks authoring jobs on disk: one directory per job holding its
// metadata and an append-only event log.
type Manager struct {
	jobsDir string
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewManager creates a new job manager
func NewManager(jobsDir string, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(jobsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create jobs directory: %w", err)
	}

	return &Manager{
		jobsDir: jobsDir,
		logger:  logger,
	}, nil
}

func (m *Manager) jobFile(jobID string) string {
	return filepath.Join(m.jobsDir, jobID, "job.json")
}

func (m *Manager) eventsFile(jobID string) string {
	return filepath.Join(m.jobsDir, jobID, "events.jsonl")
}

// Enqueue creates a new job and adds it to the queue. A job may depend on
// earlier jobs (typically a blank before a burn); dependency cycles are
// rejected.
func (m *Manager) Enqueue(cmd Command, dependsOn []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobID := uuid.New().String()

	if err := m.validateDependencies(jobID, dependsOn); err != nil {
		return "", err
	}

	job := &Job{
		ID:        jobID,
		Status:    StatusQueued,
		Command:   cmd,
		DependsOn: dependsOn,
		CreatedAt: time.Now().UTC(),
	}

	if err := m.writeJob(job); err != nil {
		return "", err
	}

	if err := m.appendEvent(jobID, Event{
		Timestamp: time.Now().UTC(),
		Type:      "info",
		Message:   "Job enqueued",
	}); err != nil {
		return "", err
	}

	m.logger.Info("job enqueued", "job_id", jobID, "command", cmd.Type, "depends_on", dependsOn)

	return jobID, nil
}

// validateDependencies checks that all dependencies exist and no cycles are created
func (m *Manager) validateDependencies(jobID string, dependsOn []string) error {
	seen := make(map[string]bool)
	for _, depID := range dependsOn {
		if depID == jobID {
			return fmt.Errorf("job cannot depend on itself")
		}

		job, err := m.getJob(depID)
		if err != nil {
			return fmt.Errorf("dependency job '%s' not found: %w", depID, err)
		}

		if err := m.checkCycle(jobID, job.DependsOn); err != nil {
			return err
		}

		if seen[depID] {
			return fmt.Errorf("duplicate dependency: %s", depID)
		}
		seen[depID] = true
	}

	return nil
}

func (m *Manager) checkCycle(jobID string, deps []string) error {
	for _, depID := range deps {
		if depID == jobID {
			return fmt.Errorf("circular dependency detected")
		}

		job, err := m.getJob(depID)
		if err == nil && len(job.DependsOn) > 0 {
			if err := m.checkCycle(jobID, job.DependsOn); err != nil {
				return err
			}
		}
	}

	return nil
}

// Get retrieves a job by ID with its events
func (m *Manager) Get(jobID string) (*JobResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, err := m.getJob(jobID)
	if err != nil {
		return nil, err
	}

	events, err := m.getEvents(jobID)
	if err != nil {
		return nil, err
	}

	resp := response(job, events)
	return &resp, nil
}

func response(job *Job, events []Event) JobResponse {
	return JobResponse{
		ID:          job.ID,
		Status:      job.Status,
		Command:     job.Command,
		DependsOn:   job.DependsOn,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Result:      job.Result,
		Error:       job.Error,
		Events:      events,
	}
}

// getJob reads job metadata without locking (caller must lock)
func (m *Manager) getJob(jobID string) (*Job, error) {
	data, err := os.ReadFile(m.jobFile(jobID))
	if err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (m *Manager) getEvents(jobID string) ([]Event, error) {
	file, err := os.Open(m.eventsFile(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	defer file.Close()

	var events []Event
	dec := json.NewDecoder(file)
	for {
		var event Event
		err := dec.Decode(&event)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, event)
	}

	return events, nil
}

func (m *Manager) readAll() []*Job {
	entries, err := os.ReadDir(m.jobsDir)
	if err != nil {
		m.logger.Error("failed to read jobs directory", "error", err)
		return nil
	}

	var jobs []*Job
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		job, err := m.getJob(entry.Name())
		if err != nil {
			m.logger.Error("failed to read job", "job_id", entry.Name(), "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// ListAll returns all jobs with their events, newest first
func (m *Manager) ListAll() ([]JobResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []JobResponse
	for _, job := range m.readAll() {
		events, err := m.getEvents(job.ID)
		if err != nil {
			m.logger.Error("failed to read job events", "job_id", job.ID, "error", err)
			events = []Event{}
		}
		jobs = append(jobs, response(job, events))
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs, nil
}

// GetQueued returns all queued jobs in topological order
func (m *Manager) GetQueued() ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []*Job
	jobMap := make(map[string]*Job)
	for _, job := range m.readAll() {
		if job.Status == StatusQueued {
			jobs = append(jobs, job)
			jobMap[job.ID] = job
		}
	}

	return topoSort(jobs, jobMap), nil
}

// topoSort orders jobs so dependencies come before dependents; only
// dependencies that are themselves queued count.
func topoSort(jobs []*Job, jobMap map[string]*Job) []*Job {
	inDegree := make(map[string]int)
	for _, job := range jobs {
		if _, exists := inDegree[job.ID]; !exists {
			inDegree[job.ID] = 0
		}
		for _, dep := range job.DependsOn {
			if _, inQueued := jobMap[dep]; inQueued {
				inDegree[job.ID]++
			}
		}
	}

	queue := []*Job{}
	for _, job := range jobs {
		if inDegree[job.ID] == 0 {
			queue = append(queue, job)
		}
	}

	var sorted []*Job
	for len(queue) > 0 {
		job := queue[0]
		queue = queue[1:]
		sorted = append(sorted, job)

		for _, other := range jobs {
			for _, dep := range other.DependsOn {
				if dep == job.ID {
					inDegree[other.ID]--
					if inDegree[other.ID] == 0 {
						queue = append(queue, other)
					}
				}
			}
		}
	}

	return sorted
}

// Cancel cancels a queued job and all its dependents. Running jobs are
// cancelled by the executor, not here.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getJob(jobID)
	if err != nil {
		return fmt.Errorf("job not found: %w", err)
	}

	if job.Status != StatusQueued {
		return fmt.Errorf("can only cancel queued jobs; job status is %s", job.Status)
	}

	job.Status = StatusCancelled
	job.Error = "cancelled by user"
	now := time.Now().UTC()
	job.CompletedAt = &now

	if err := m.writeJob(job); err != nil {
		return err
	}

	if err := m.appendEvent(jobID, Event{
		Timestamp: time.Now().UTC(),
		Type:      "info",
		Message:   "Job cancelled by user",
	}); err != nil {
		return err
	}

	m.cascadeCancelDependents(jobID)

	m.logger.Info("job cancelled", "job_id", jobID)

	return nil
}

// cascadeCancelDependents recursively cancels all queued jobs that depend on jobID
func (m *Manager) cascadeCancelDependents(jobID string) {
	for _, depJob := range m.readAll() {
		for _, dep := range depJob.DependsOn {
			if dep != jobID || depJob.Status != StatusQueued {
				continue
			}

			depJob.Status = StatusCancelled
			depJob.Error = fmt.Sprintf("dependency cancelled: %s", jobID)
			now := time.Now().UTC()
			depJob.CompletedAt = &now

			if err := m.writeJob(depJob); err != nil {
				m.logger.Error("failed to write job during cascade", "job_id", depJob.ID, "error", err)
				continue
			}

			if err := m.appendEvent(depJob.ID, Event{
				Timestamp: time.Now().UTC(),
				Type:      "info",
				Message:   fmt.Sprintf("Job cancelled due to dependency cancellation: %s", jobID),
			}); err != nil {
				m.logger.Error("failed to append event during cascade", "job_id", depJob.ID, "error", err)
			}

			m.logger.Info("job cascade cancelled", "job_id", depJob.ID, "due_to", jobID)

			m.cascadeCancelDependents(depJob.ID)
			break
		}
	}
}

// Delete deletes a job (only if not running)
func (m *Manager) Delete(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getJob(jobID)
	if err != nil {
		return fmt.Errorf("job not found: %w", err)
	}

	if job.Status == StatusRunning {
		return fmt.Errorf("cannot delete a running job")
	}

	if err := os.RemoveAll(filepath.Join(m.jobsDir, jobID)); err != nil {
		return fmt.Errorf("failed to delete job directory: %w", err)
	}

	m.logger.Info("job deleted", "job_id", jobID)

	return nil
}

// UpdateStatus updates a job's status and writes to disk
func (m *Manager) UpdateStatus(jobID string, status JobStatus, startedAt, completedAt *time.Time, result any, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.getJob(jobID)
	if err != nil {
		return err
	}

	job.Status = status
	job.StartedAt = startedAt
	job.CompletedAt = completedAt
	job.Result = result
	job.Error = errMsg

	return m.writeJob(job)
}

// AppendEvent appends an event to a job's event log
func (m *Manager) AppendEvent(jobID string, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.appendEvent(jobID, event)
}

func (m *Manager) appendEvent(jobID string, event Event) error {
	eventsPath := m.eventsFile(jobID)

	if err := os.MkdirAll(filepath.Dir(eventsPath), 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(eventsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = file.Write(append(data, '\n'))
	return err
}

// writeJob writes job metadata to disk atomically (caller must lock)
func (m *Manager) writeJob(job *Job) error {
	jobPath := m.jobFile(job.ID)

	if err := os.MkdirAll(filepath.Dir(jobPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	tmpPath := jobPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write job file: %w", err)
	}

	if err := os.Rename(tmpPath, jobPath); err != nil {
		return fmt.Errorf("failed to rename job file: %w", err)
	}

	return nil
}
