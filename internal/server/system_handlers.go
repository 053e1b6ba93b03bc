package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ericscottllc/triggergrain/internal/database"
)

// SystemHandlers serves host and database status endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases []*database.DB
}

// NewSystemHandlers creates system monitoring handlers
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases ...*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		dataDir:   dataDir,
		databases: databases,
	}
}

// SystemStatusResponse is the payload for GET /api/system/status
type SystemStatusResponse struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	DataDirMB     float64 `json:"data_dir_mb"`
	Uptime        string  `json:"uptime"`
}

var startTime = time.Now()

// HandleSystemStatus returns host resource usage
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		DataDirMB: h.getDirSize(h.dataDir),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		resp.CPUPercent = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = memStat.UsedPercent
	}
	if diskStat, err := disk.Usage(h.dataDir); err == nil {
		resp.DiskPercent = diskStat.UsedPercent
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// databaseStat describes one database file and its integrity state
type databaseStat struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	SizeMB  float64 `json:"size_mb"`
	Healthy bool    `json:"healthy"`
	Error   string  `json:"error,omitempty"`
}

// HandleDatabaseStats runs quick integrity checks on each database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats := make([]databaseStat, 0, len(h.databases))
	for _, db := range h.databases {
		stat := databaseStat{Name: db.Name(), Path: db.Path(), Healthy: true}
		if info, err := os.Stat(db.Path()); err == nil {
			stat.SizeMB = float64(info.Size()) / 1024 / 1024
		}
		if err := db.QuickCheck(ctx); err != nil {
			stat.Healthy = false
			stat.Error = err.Error()
		}
		stats = append(stats, stat)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// getDirSize returns the total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var size int64
	_ = filepath.Walk(dirPath, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return float64(size) / 1024 / 1024
}
