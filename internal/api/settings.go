package api

import (
	"encoding/json"
	"net/http"
)

type SettingsUpdate struct {
	MaxSimultaneousDownloads *int   `json:"max_simultaneous_downloads"`
	BandwidthLimit           *int64 `json:"bandwidth_limit"`
	APIMaxConcurrent         *int   `json:"api_max_concurrent"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.GetAnalytics())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Snapshot())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.MaxSimultaneousDownloads != nil && *req.MaxSimultaneousDownloads < 1 {
		writeError(w, http.StatusBadRequest, "max_simultaneous_downloads must be at least 1")
		return
	}
	if req.BandwidthLimit != nil && *req.BandwidthLimit < 0 {
		writeError(w, http.StatusBadRequest, "bandwidth_limit must not be negative")
		return
	}
	if req.APIMaxConcurrent != nil && *req.APIMaxConcurrent < 1 {
		writeError(w, http.StatusBadRequest, "api_max_concurrent must be at least 1")
		return
	}

	var err error
	if req.MaxSimultaneousDownloads != nil {
		err = s.cfg.SetMaxSimultaneousDownloads(*req.MaxSimultaneousDownloads)
	}
	if err == nil && req.BandwidthLimit != nil {
		if err = s.cfg.SetBandwidthLimit(*req.BandwidthLimit); err == nil && s.bandwidth != nil {
			s.bandwidth.SetLimit(*req.BandwidthLimit)
		}
	}
	if err == nil && req.APIMaxConcurrent != nil {
		err = s.cfg.SetAPIMaxConcurrent(*req.APIMaxConcurrent)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("settings updated", "settings", s.cfg.Snapshot())
	writeJSON(w, http.StatusOK, s.cfg.Snapshot())
}
