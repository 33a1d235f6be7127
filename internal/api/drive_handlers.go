package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"discburn-agent/internal/drive"

	"github.com/gorilla/mux"
)

// DriveInfo describes one configured drive
type DriveInfo struct {
	Name     string `json:"name"`
	Device   string `json:"device"`
	Medium   string `json:"medium"`
	CanTAO   bool   `json:"can_tao"`
	CanSAO   bool   `json:"can_sao"`
	BurnFree bool   `json:"burnfree"`
}

// ListDrivesResponse is returned by GET /drives
type ListDrivesResponse struct {
	Drives []DriveInfo `json:"drives"`
}

// DriveHandlers holds HTTP handlers for drive endpoints
type DriveHandlers struct {
	drives map[string]*drive.Drive
	store  *drive.Store
	logger *slog.Logger
}

// NewDriveHandlers creates a new drive handlers instance
func NewDriveHandlers(drives map[string]*drive.Drive, store *drive.Store, logger *slog.Logger) *DriveHandlers {
	return &DriveHandlers{
		drives: drives,
		store:  store,
		logger: logger,
	}
}

// List handles GET /drives
// @Summary List configured drives
// @Tags drives
// @Success 200 {object} ListDrivesResponse
// @Router /drives [get]
func (h *DriveHandlers) List(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.drives))
	for name := range h.drives {
		names = append(names, name)
	}
	sort.Strings(names)

	var resp ListDrivesResponse
	for _, name := range names {
		d := h.drives[name]
		resp.Drives = append(resp.Drives, DriveInfo{
			Name:     d.Name,
			Device:   d.Device,
			Medium:   d.Medium.String(),
			CanTAO:   d.CanTAO,
			CanSAO:   d.CanSAO,
			BurnFree: d.CanBurnFree,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSettings handles GET /drives/{name}/settings
// @Summary Read saved per-drive settings
// @Tags drives
// @Param name path string true "Drive name"
// @Success 200 {object} drive.Settings
// @Failure 404 {string} string "Not found"
// @Router /drives/{name}/settings [get]
func (h *DriveHandlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	d, ok := h.drives[name]
	if !ok {
		http.Error(w, "unknown drive", http.StatusNotFound)
		return
	}

	settings, found, err := h.store.Get(d.Device)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "no saved settings", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// PutSettings handles PUT /drives/{name}/settings
// @Summary Save per-drive settings
// @Tags drives
// @Param name path string true "Drive name"
// @Param body body drive.Settings true "Settings"
// @Success 204 {string} string "Saved"
// @Failure 400 {string} string "Bad request"
// @Router /drives/{name}/settings [put]
func (h *DriveHandlers) PutSettings(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	d, ok := h.drives[name]
	if !ok {
		http.Error(w, "unknown drive", http.StatusNotFound)
		return
	}

	var settings drive.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.Put(d.Device, settings); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
