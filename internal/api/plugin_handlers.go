package api

import (
	"log/slog"
	"net/http"

	"discburn-agent/internal/caps"
	"discburn-agent/internal/plugin"

	"github.com/gorilla/mux"
)

// PluginInfo describes one registered back-end
type PluginInfo struct {
	Name          string `json:"name"`
	Priority      int    `json:"priority"`
	Active        bool   `json:"active"`
	MissingBinary bool   `json:"missing_binary,omitempty"`
	Links         int    `json:"links"`
}

// ListPluginsResponse is returned by GET /plugins
type ListPluginsResponse struct {
	Plugins []PluginInfo `json:"plugins"`
}

// PluginHandlers holds HTTP handlers for plug-in endpoints
type PluginHandlers struct {
	registry *caps.Registry
	logger   *slog.Logger
}

// NewPluginHandlers creates a new plugin handlers instance
func NewPluginHandlers(registry *caps.Registry, logger *slog.Logger) *PluginHandlers {
	return &PluginHandlers{
		registry: registry,
		logger:   logger,
	}
}

// List handles GET /plugins
// @Summary List registered back-ends and their availability
// @Tags plugins
// @Success 200 {object} ListPluginsResponse
// @Router /plugins [get]
func (h *PluginHandlers) List(w http.ResponseWriter, r *http.Request) {
	var resp ListPluginsResponse
	for _, d := range h.registry.Plugins() {
		resp.Plugins = append(resp.Plugins, PluginInfo{
			Name:          d.Name,
			Priority:      d.Priority,
			Active:        d.IsActive(plugin.ActiveStrict),
			MissingBinary: d.NeedsDownload(),
			Links:         len(d.Links),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Enable handles POST /plugins/{name}/enable
// @Summary Enable a back-end
// @Tags plugins
// @Param name path string true "Plugin name"
// @Success 204 {string} string "Enabled"
// @Failure 404 {string} string "Not found"
// @Router /plugins/{name}/enable [post]
func (h *PluginHandlers) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// Disable handles POST /plugins/{name}/disable
// @Summary Disable a back-end
// @Tags plugins
// @Param name path string true "Plugin name"
// @Success 204 {string} string "Disabled"
// @Failure 404 {string} string "Not found"
// @Router /plugins/{name}/disable [post]
func (h *PluginHandlers) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

// setEnabled flips availability only; the graph itself stays frozen, links
// simply stop (or resume) admitting the plug-in.
func (h *PluginHandlers) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	name := mux.Vars(r)["name"]
	d, ok := h.registry.Plugin(name)
	if !ok {
		http.Error(w, "unknown plugin", http.StatusNotFound)
		return
	}

	d.SetEnabled(enabled)
	h.logger.Info("plugin availability changed", "plugin", name, "enabled", enabled)
	w.WriteHeader(http.StatusNoContent)
}
