package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/muandane/estatic/internal/cache"
)

// StatsSource reports entity store statistics.
type StatsSource interface {
	GetStats() cache.Stats
}

type StatsResponse struct {
	cache.Stats
	Materialized string `json:"materialized"`
	LastSweepAgo string `json:"last_sweep_ago,omitempty"`
}

type StatsHandler struct {
	source StatsSource
	logger *slog.Logger
}

func NewStatsHandler(source StatsSource, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{source: source, logger: logger}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		sendError(w, h.logger, http.StatusMethodNotAllowed, "method not allowed", errors.New(r.Method+" not supported"))
		return
	}

	stats := h.source.GetStats()
	resp := StatsResponse{
		Stats:        stats,
		Materialized: humanize.IBytes(uint64(stats.MaterializedBytes)),
	}
	if !stats.LastSweep.IsZero() {
		resp.LastSweepAgo = humanize.Time(stats.LastSweep)
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
