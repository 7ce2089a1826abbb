package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/kind"
	"github.com/itsneelabh/kindreg/monitor"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegistryResponse summarizes the populated registry.
type RegistryResponse struct {
	Tags        map[kind.Tag]int `json:"tags"`
	Order       []kind.Tag       `json:"order"`
	Total       int              `json:"total"`
	PopulatedAt *time.Time       `json:"populated_at,omitempty"`
}

// TagResponse lists the components carrying one tag.
type TagResponse struct {
	Tag   kind.Tag `json:"tag"`
	Count int      `json:"count"`
	Names []string `json:"names"`
}

// handleHealth returns the monitor's check results as a JSON array.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.Check())
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if !s.registry.Populated() {
		s.writeError(w, "registry not populated", http.StatusServiceUnavailable)
		return
	}
	if s.monitor.State() != monitor.Ready {
		s.writeError(w, "monitor not initialised", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRegistry(w http.ResponseWriter, _ *http.Request) {
	snap := s.registry.Snapshot()

	resp := RegistryResponse{
		Tags:  make(map[kind.Tag]int, len(snap.Tags)),
		Order: snap.Tags,
		Total: snap.Total,
	}
	if resp.Order == nil {
		resp.Order = []kind.Tag{}
	}
	for _, tag := range snap.Tags {
		resp.Tags[tag] = len(snap.Names[tag])
	}
	if !snap.PopulatedAt.IsZero() {
		resp.PopulatedAt = &snap.PopulatedAt
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleTag lists names for a tag. Unknown tags yield an empty list.
func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	tag := kind.Tag(chi.URLParam(r, "tag"))
	names := s.registry.Names(tag)
	s.writeJSON(w, http.StatusOK, TagResponse{Tag: tag, Count: len(names), Names: names})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.Report(r.Context()))
}

func (s *Server) handleMirror(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		s.writeError(w, "registry mirror not configured", http.StatusNotFound)
		return
	}
	snap, err := s.mirror.Load(r.Context())
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		s.writeError(w, "no snapshot mirrored yet", http.StatusNotFound)
	case err != nil:
		s.logger.Error("Failed to load mirrored snapshot", map[string]interface{}{
			"error": err.Error(),
		})
		s.writeError(w, "mirror unavailable", http.StatusBadGateway)
	default:
		s.writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
