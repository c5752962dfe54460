package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/procgate/internal/lifecycle"
	"github.com/seantiz/procgate/internal/model"
)

const (
	maxBodySize  = 1 << 20  // 1 MB
	maxInputSize = 16 << 20 // 16 MB
)

// enqueueRequest is the JSON body for POST /v1/processes/{id}/enqueue.
type enqueueRequest struct {
	JobType string         `json:"job_type"`
	Params  map[string]any `json:"params"`
}

// killRequest is the JSON body for POST /v1/processes/{id}/kill.
type killRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCreateProcess(w http.ResponseWriter, r *http.Request) {
	pid, err := s.svc.Create(r.Context())
	if err != nil {
		s.writeServiceError(w, "create process", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, &model.Record{
		ProcessID: pid,
		Status:    model.StatusCreated,
	})
}

func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get process", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUploadInput(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxInputSize)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "body must hold a single JSON value")
		return
	}

	rec, err := s.svc.Upload(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		s.writeServiceError(w, "upload input", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEnqueueProcess(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !s.decodeOptionalBody(w, r, &req) {
		return
	}

	rec, err := s.svc.Enqueue(r.Context(), chi.URLParam(r, "id"), req.JobType, req.Params)
	if err != nil {
		s.writeServiceError(w, "enqueue process", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, rec)
}

func (s *Server) handleKillProcess(w http.ResponseWriter, r *http.Request) {
	var req killRequest
	if !s.decodeOptionalBody(w, r, &req) {
		return
	}

	rec, err := s.svc.Kill(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeServiceError(w, "kill process", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteProcess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("purge") == "true" {
		if err := s.svc.Purge(r.Context(), id); err != nil {
			s.writeServiceError(w, "purge process", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rec, err := s.svc.Delete(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "delete process", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// decodeOptionalBody decodes a JSON body into v. An empty body leaves v at
// its zero value. It writes a 400 and returns false on malformed input.
func (s *Server) decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps lifecycle errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidPayload):
		status = http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrStorage), errors.Is(err, lifecycle.ErrQueue):
		status = http.StatusBadGateway
	case errors.Is(err, lifecycle.ErrMetadata):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(op, "error", err)
	}
	s.writeError(w, status, err.Error())
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
