package api

import (
	"encoding/json"
	"net/http"

	"rtranslator/internal/archive"

	"github.com/go-chi/chi/v5"
)

type SubmitRequest struct {
	Provider   archive.Provider `json:"provider"`
	Identifier string           `json:"identifier"`
}

type SubmitResponse struct {
	TaskID string `json:"task_id"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	id, err := s.archives.Submit(r.Context(), req.Provider, req.Identifier)
	if err != nil {
		s.logger.Warn("archive submission rejected", "provider", req.Provider, "identifier", req.Identifier, "error", err)
		writeError(w, archiveErrorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{TaskID: id})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := s.archives.Task(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleArchiveSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	provider := archive.Modrinth
	if raw := q.Get("provider"); raw != "" {
		p, err := archive.ParseProvider(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		provider = p
	}
	page, ok := pageParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}

	hits, err := s.archives.Search(r.Context(), provider, q.Get("query"), page)
	if err != nil {
		writeError(w, archiveErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hits)
}
