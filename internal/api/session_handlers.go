package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"discburn-agent/internal/burn"
	"discburn-agent/internal/caps"
	"discburn-agent/internal/drive"
	"discburn-agent/internal/queue"
	"discburn-agent/internal/session"
	"discburn-agent/internal/track"
)

// SessionRequest describes a hypothetical session to plan.
type SessionRequest struct {
	queue.Command

	IgnorePluginErrors bool `json:"ignore_plugin_errors,omitempty"`
}

// CheckResponse is the planner verdict for a session.
type CheckResponse struct {
	Result        string   `json:"result"`
	RequiredMedia string   `json:"required_media,omitempty"`
	CanBlank      bool     `json:"can_blank"`
	NeedDownload  []string `json:"need_download,omitempty"`
}

// FlagsResponse carries the reconciled flag sets.
type FlagsResponse struct {
	Result          string `json:"result"`
	Supported       string `json:"supported,omitempty"`
	Compulsory      string `json:"compulsory,omitempty"`
	BlankSupported  string `json:"blank_supported,omitempty"`
	BlankCompulsory string `json:"blank_compulsory,omitempty"`
}

// FormatsResponse enumerates usable image output formats.
type FormatsResponse struct {
	Count   int      `json:"count"`
	Formats []string `json:"formats"`
	Default string   `json:"default"`
}

// SessionHandlers holds HTTP handlers for planning queries
type SessionHandlers struct {
	registry *caps.Registry
	drives   map[string]*drive.Drive
	logger   *slog.Logger

	// serializes queries that install the need-download hook
	mu sync.Mutex
}

// NewSessionHandlers creates a new session handlers instance
func NewSessionHandlers(registry *caps.Registry, drives map[string]*drive.Drive, logger *slog.Logger) *SessionHandlers {
	return &SessionHandlers{
		registry: registry,
		drives:   drives,
		logger:   logger,
	}
}

func (h *SessionHandlers) buildSession(req SessionRequest) (*session.Session, bool) {
	check := session.DefaultCheckFlags
	if req.IgnorePluginErrors {
		check |= session.IgnorePluginErrors | session.SignalPluginErrors
	}

	cfg := session.Config{
		Input:      req.InputType(),
		DestFile:   req.DestFile,
		DestFormat: req.DestFormat,
		Flags:      req.Flags,
		Check:      check,
	}
	if req.DestDrive != "" {
		d, ok := h.drives[req.DestDrive]
		if !ok {
			return nil, false
		}
		cfg.DestDrive = d
	}
	if req.SourceDrive != "" {
		d, ok := h.drives[req.SourceDrive]
		if !ok {
			return nil, false
		}
		cfg.SourceDrive = d
	}

	return session.New(cfg), true
}

// Check handles POST /sessions/check
// @Summary Check whether a session is feasible
// @Tags sessions
// @Param body body SessionRequest true "Session description"
// @Success 200 {object} CheckResponse
// @Failure 400 {string} string "Bad request"
// @Router /sessions/check [post]
func (h *SessionHandlers) Check(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var needDownload []string
	h.registry.NeedDownload = func(name string) {
		needDownload = append(needDownload, name)
	}
	defer func() { h.registry.NeedDownload = nil }()

	sess, ok := h.buildSession(req)
	if !ok {
		http.Error(w, "unknown drive", http.StatusBadRequest)
		return
	}

	result := h.registry.SessionSupported(sess)

	resp := CheckResponse{
		Result:       result.String(),
		CanBlank:     h.registry.CanBlank(sess) == burn.Ok,
		NeedDownload: needDownload,
	}
	if media := h.registry.RequiredMediaType(sess); media != track.MediaNone {
		resp.RequiredMedia = media.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

// Flags handles POST /sessions/flags
// @Summary Compute supported and compulsory burn flags
// @Tags sessions
// @Param body body SessionRequest true "Session description"
// @Success 200 {object} FlagsResponse
// @Failure 400 {string} string "Bad request"
// @Router /sessions/flags [post]
func (h *SessionHandlers) Flags(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, ok := h.buildSession(req)
	if !ok {
		http.Error(w, "unknown drive", http.StatusBadRequest)
		return
	}

	supported, compulsory, result := h.registry.GetBurnFlags(sess)
	resp := FlagsResponse{Result: result.String()}
	if result == burn.Ok {
		resp.Supported = supported.String()
		resp.Compulsory = compulsory.String()
	}

	if blankSup, blankComp, res := h.registry.GetBlankFlags(sess); res == burn.Ok {
		resp.BlankSupported = blankSup.String()
		resp.BlankCompulsory = blankComp.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

// Formats handles POST /sessions/formats
// @Summary Enumerate possible image output formats
// @Tags sessions
// @Param body body SessionRequest true "Session description"
// @Success 200 {object} FormatsResponse
// @Failure 400 {string} string "Bad request"
// @Router /sessions/formats [post]
func (h *SessionHandlers) Formats(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, ok := h.buildSession(req)
	if !ok {
		http.Error(w, "unknown drive", http.StatusBadRequest)
		return
	}

	count, mask := h.registry.PossibleOutputFormats(sess)
	resp := FormatsResponse{
		Count:   count,
		Default: h.registry.DefaultOutputFormat(sess).String(),
	}
	for _, f := range []track.ImageFormat{track.ImageFormatCdrdao, track.ImageFormatCue, track.ImageFormatClone, track.ImageFormatBin} {
		if mask&f != 0 {
			resp.Formats = append(resp.Formats, f.String())
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
