package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"discburn-agent/internal/caps"
	"discburn-agent/internal/drive"
	"discburn-agent/internal/queue"

	"github.com/gorilla/mux"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// NewRouter wires the REST surface over the planner, the drive catalog and
// the job queue.
func NewRouter(registry *caps.Registry, drives map[string]*drive.Drive, store *drive.Store, manager *queue.Manager, executor *queue.Executor, logger *slog.Logger) http.Handler {
	sessions := NewSessionHandlers(registry, drives, logger)
	jobs := NewJobHandlers(manager, executor, logger)
	pluginsH := NewPluginHandlers(registry, logger)
	drivesH := NewDriveHandlers(drives, store, logger)

	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler).Methods("GET")

	r.HandleFunc("/sessions/check", sessions.Check).Methods("POST")
	r.HandleFunc("/sessions/flags", sessions.Flags).Methods("POST")
	r.HandleFunc("/sessions/formats", sessions.Formats).Methods("POST")

	r.HandleFunc("/plugins", pluginsH.List).Methods("GET")
	r.HandleFunc("/plugins/{name}/enable", pluginsH.Enable).Methods("POST")
	r.HandleFunc("/plugins/{name}/disable", pluginsH.Disable).Methods("POST")

	r.HandleFunc("/drives", drivesH.List).Methods("GET")
	r.HandleFunc("/drives/{name}/settings", drivesH.GetSettings).Methods("GET")
	r.HandleFunc("/drives/{name}/settings", drivesH.PutSettings).Methods("PUT")

	r.HandleFunc("/jobs", jobs.List).Methods("GET")
	r.HandleFunc("/jobs", jobs.Enqueue).Methods("POST")
	r.HandleFunc("/jobs/{id}", jobs.Get).Methods("GET")
	r.HandleFunc("/jobs/{id}", jobs.Delete).Methods("DELETE")
	r.HandleFunc("/jobs/{id}/cancel", jobs.Cancel).Methods("POST")

	return r
}

// healthHandler handles GET /health
// @Summary Health check
// @Success 200 {object} HealthResponse
// @Router /health [get]
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
