package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"rtranslator/internal/storage"

	"github.com/go-chi/chi/v5"
)

type ModSearchResponse struct {
	TotalPages int64         `json:"total_pages"`
	Mods       []storage.Mod `json:"mods"`
}

type EntriesResponse struct {
	TotalPages int64               `json:"total_pages"`
	Entries    []storage.TextEntry `json:"entries"`
}

type TranslateRequest struct {
	Content string `json:"content"`
}

type TranslateResponse struct {
	ID uint `json:"id"`
}

func (s *Server) handleModSearch(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}

	mods, pages, err := s.store.SearchMods(r.Context(), r.URL.Query().Get("query"), page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if mods == nil {
		mods = []storage.Mod{}
	}
	writeJSON(w, http.StatusOK, ModSearchResponse{TotalPages: pages, Mods: mods})
}

func (s *Server) handleModMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid mod id")
		return
	}

	mod, err := s.store.ModMetadata(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "mod not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mod)
}

func (s *Server) handleModEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid mod id")
		return
	}
	page, ok := pageParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}

	entries, pages, err := s.store.ModEntries(r.Context(), id, r.URL.Query().Get("query"), page)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "mod not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []storage.TextEntry{}
	}
	writeJSON(w, http.StatusOK, EntriesResponse{TotalPages: pages, Entries: entries})
}

func (s *Server) handleAddTranslation(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	id, err := s.store.AddTranslation(r.Context(), chi.URLParam(r, "key"), req.Content)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, TranslateResponse{ID: id})
}

func (s *Server) handleGetTranslations(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Translations(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []storage.TextTranslation{}
	}
	writeJSON(w, http.StatusOK, list)
}
