package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/helmfi/helm/internal/database"
)

// SystemHandlers serves engine health and resource usage endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	engineDB  *database.DB
	cacheDB   *database.DB
	priceFeed PriceFeed
	startedAt time.Time
}

// NewSystemHandlers creates system monitoring handlers.
func NewSystemHandlers(log zerolog.Logger, engineDB, cacheDB *database.DB, priceFeed PriceFeed) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		engineDB:  engineDB,
		cacheDB:   cacheDB,
		priceFeed: priceFeed,
		startedAt: time.Now(),
	}
}

// HandleSystemStatus reports process and dependency health.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemStats()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	dbHealthy := h.engineDB.Conn().PingContext(ctx) == nil

	status := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
		"database":       dbHealthy,
	}
	if !dbHealthy {
		status["status"] = "degraded"
	}
	if h.priceFeed != nil {
		status["price_feed_connected"] = h.priceFeed.IsConnected()
	}

	h.writeJSON(w, status)
}

// HandleDatabaseStats reports per-database sizes.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	stats := make([]map[string]interface{}, 0, 2)
	for _, db := range []*database.DB{h.engineDB, h.cacheDB} {
		if db == nil {
			continue
		}
		stats = append(stats, map[string]interface{}{
			"name":       db.Name(),
			"profile":    string(db.Profile()),
			"size_bytes": h.databaseSize(db),
		})
	}
	h.writeJSON(w, map[string]interface{}{"databases": stats})
}

// systemStats returns CPU and RAM usage percentages. A short sampling
// interval keeps the status endpoint responsive.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}

func (h *SystemHandlers) databaseSize(db *database.DB) int64 {
	var pageCount, pageSize int64
	if err := db.Conn().QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.Conn().QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
