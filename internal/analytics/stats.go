// Package analytics provides ingestion statistics and staging disk usage.
package analytics

import (
	"log/slog"

	"rtranslator/internal/storage"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskUsageInfo holds disk space information
type DiskUsageInfo struct {
	UsedGB  float64 `json:"used_gb"`
	FreeGB  float64 `json:"free_gb"`
	TotalGB float64 `json:"total_gb"`
	Percent float64 `json:"percent"`
}

// AnalyticsData holds all analytics information served by the API
type AnalyticsData struct {
	TotalDownloaded      int64            `json:"total_downloaded"`
	TotalDownloadedHuman string           `json:"total_downloaded_human"`
	TotalArchives        int64            `json:"total_archives"`
	DailyHistory         map[string]int64 `json:"daily_history"`
	DiskUsage            DiskUsageInfo    `json:"disk_usage"`
}

// StatsManager tracks ingestion statistics
type StatsManager struct {
	storage    *storage.Storage
	stagingDir string
	logger     *slog.Logger
}

// NewStatsManager creates a stats manager with storage backend
func NewStatsManager(s *storage.Storage, stagingDir string, logger *slog.Logger) *StatsManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StatsManager{
		storage:    s,
		stagingDir: stagingDir,
		logger:     logger,
	}
}

// TrackDownloadBytes increments today's downloaded bytes using SQL upsert
func (sm *StatsManager) TrackDownloadBytes(bytes int64) {
	if err := sm.storage.IncrementDailyBytes(bytes); err != nil {
		sm.logger.Warn("failed to record downloaded bytes", "error", err)
	}
}

// TrackArchivesProcessed increments today's archive count using SQL upsert
func (sm *StatsManager) TrackArchivesProcessed(n int) {
	if err := sm.storage.IncrementDailyArchives(int64(n)); err != nil {
		sm.logger.Warn("failed to record processed archives", "error", err)
	}
}

// GetLifetimeStats returns total bytes downloaded using SQL SUM
func (sm *StatsManager) GetLifetimeStats() (int64, error) {
	return sm.storage.GetTotalLifetime()
}

// GetTotalArchives returns total archives processed using SQL SUM
func (sm *StatsManager) GetTotalArchives() (int64, error) {
	return sm.storage.GetTotalArchives()
}

// GetDailyStats returns the last N days of downloaded bytes
func (sm *StatsManager) GetDailyStats(days int) (map[string]int64, error) {
	stats, err := sm.storage.GetDailyHistory(days)
	if err != nil {
		return make(map[string]int64), err
	}

	res := make(map[string]int64)
	for _, stat := range stats {
		res[stat.Date] = stat.Bytes
	}
	return res, nil
}

// GetDiskUsage returns disk space info for the staging volume
func (sm *StatsManager) GetDiskUsage() DiskUsageInfo {
	if sm.stagingDir == "" {
		return DiskUsageInfo{}
	}

	usage, err := disk.Usage(sm.stagingDir)
	if err != nil {
		return DiskUsageInfo{} // Return zeros on error
	}

	const bytesPerGB = 1024 * 1024 * 1024
	return DiskUsageInfo{
		UsedGB:  float64(usage.Used) / bytesPerGB,
		FreeGB:  float64(usage.Free) / bytesPerGB,
		TotalGB: float64(usage.Total) / bytesPerGB,
		Percent: usage.UsedPercent,
	}
}

// GetAnalytics returns comprehensive analytics data
func (sm *StatsManager) GetAnalytics() AnalyticsData {
	lifetime, _ := sm.GetLifetimeStats()
	archives, _ := sm.GetTotalArchives()
	daily, _ := sm.GetDailyStats(7)

	return AnalyticsData{
		TotalDownloaded:      lifetime,
		TotalDownloadedHuman: humanize.Bytes(uint64(max(lifetime, 0))),
		TotalArchives:        archives,
		DailyHistory:         daily,
		DiskUsage:            sm.GetDiskUsage(),
	}
}
