package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
	"github.com/ThiagoRGoveia/market-data-loader/internal/scheduler"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

type StatsReader interface {
	Stats() scheduler.Stats
}

type ResultsReader interface {
	Results() []models.PeriodResult
}

// StatusService reports the state of a running load.
type StatusService struct {
	Health    HealthChecker
	Scheduler StatsReader
	Results   ResultsReader
	startedAt time.Time
}

func NewStatusService(health HealthChecker, sched StatsReader, results ResultsReader) *StatusService {
	return &StatusService{Health: health, Scheduler: sched, Results: results, startedAt: time.Now()}
}

type healthResponse struct {
	Status string `json:"status"`
}

type statsResponse struct {
	Uptime    string                `json:"uptime"`
	Scheduler scheduler.Stats       `json:"scheduler"`
	Periods   []models.PeriodResult `json:"periods"`
}

func (h *StatusService) GetHealth(w http.ResponseWriter, r *http.Request) {
	if !h.Health.HealthCheck(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *StatusService) GetStats(w http.ResponseWriter, r *http.Request) {
	periods := h.Results.Results()
	if periods == nil {
		periods = []models.PeriodResult{}
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Scheduler: h.Scheduler.Stats(),
		Periods:   periods,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
