package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"discburn-agent/internal/burn"
	"discburn-agent/internal/queue"

	"github.com/gorilla/mux"
)

// EnqueueRequest is the body for POST /jobs
type EnqueueRequest struct {
	Command   queue.Command `json:"command"`
	DependsOn []string      `json:"depends_on,omitempty"`
}

// EnqueueResponse is returned after a job is queued
type EnqueueResponse struct {
	ID string `json:"id"`
}

// CancelRequest is the body for POST /jobs/{id}/cancel
type CancelRequest struct {
	Force bool `json:"force,omitempty"`
}

// JobHandlers holds HTTP handlers for job endpoints
type JobHandlers struct {
	manager  *queue.Manager
	executor *queue.Executor
	logger   *slog.Logger
}

// NewJobHandlers creates a new job handlers instance
func NewJobHandlers(manager *queue.Manager, executor *queue.Executor, logger *slog.Logger) *JobHandlers {
	return &JobHandlers{
		manager:  manager,
		executor: executor,
		logger:   logger,
	}
}

// Enqueue handles POST /jobs
// @Summary Queue an authoring job
// @Tags jobs
// @Param body body EnqueueRequest true "Job description"
// @Success 202 {object} EnqueueResponse
// @Failure 400 {string} string "Bad request"
// @Router /jobs [post]
func (h *JobHandlers) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Command.Type == "" {
		http.Error(w, "command type is required", http.StatusBadRequest)
		return
	}

	id, err := h.manager.Enqueue(req.Command, req.DependsOn)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, EnqueueResponse{ID: id})
}

// List handles GET /jobs
// @Summary List jobs
// @Tags jobs
// @Success 200 {object} queue.ListJobsResponse
// @Router /jobs [get]
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.manager.ListAll()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, queue.ListJobsResponse{Jobs: jobs})
}

// Get handles GET /jobs/{id}
// @Summary Get a job with its events
// @Tags jobs
// @Param id path string true "Job ID"
// @Success 200 {object} queue.JobResponse
// @Failure 404 {string} string "Not found"
// @Router /jobs/{id} [get]
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.manager.Get(id)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Delete handles DELETE /jobs/{id}
// @Summary Delete a job that is not running
// @Tags jobs
// @Param id path string true "Job ID"
// @Success 204 {string} string "Deleted"
// @Failure 400 {string} string "Bad request"
// @Router /jobs/{id} [delete]
func (h *JobHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.Delete(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /jobs/{id}/cancel
// @Summary Cancel a queued or running job
// @Description A running job flagged dangerous refuses cancellation unless force is set.
// @Tags jobs
// @Param id path string true "Job ID"
// @Param body body CancelRequest false "Cancel options"
// @Success 200 {string} string "Cancelled"
// @Failure 409 {string} string "Refused: dangerous"
// @Router /jobs/{id}/cancel [post]
func (h *JobHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req CancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	// running jobs are owned by the executor, queued ones by the manager
	switch h.executor.CancelRunning(id, req.Force) {
	case burn.Ok:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
		return
	case burn.Dangerous:
		http.Error(w, "job is at a dangerous point; use force to override", http.StatusConflict)
		return
	}

	if err := h.manager.Cancel(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
