package api

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status  string `json:"status"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := writeJSONBody(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Title:   s.opts.Title,
		Version: s.opts.Version,
	}); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}

// writeJSONBody writes v as JSON without a logger, for handlers mounted
// outside a Server.
func writeJSONBody(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
