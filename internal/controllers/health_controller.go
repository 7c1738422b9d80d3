package controllers

import (
	"clarity/internal/localdb"
	"clarity/internal/query"
	"clarity/internal/realtime"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

type HealthController struct {
	db        *localdb.LocalDB
	queries   *query.Client
	listener  *realtime.Listener
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Storage       bool    `json:"storage"`
	Queries       int     `json:"queries"`
	Realtime      string  `json:"realtime"`
}

// Health reports "degraded" while the local store is unavailable; the
// service keeps answering from the network in that state.
func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Storage:       hc.db.Available(),
		Queries:       hc.queries.Len(),
		Realtime:      hc.realtimeState(),
	}
	if !resp.Storage {
		resp.Status = "degraded"
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (hc *HealthController) realtimeState() string {
	switch {
	case !hc.listener.Enabled():
		return "disabled"
	case hc.listener.Running():
		return "running"
	}
	return "stopped"
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(db *localdb.LocalDB, queries *query.Client, listener *realtime.Listener) *HealthController {
	return &HealthController{
		db:        db,
		queries:   queries,
		listener:  listener,
		startTime: time.Now(),
	}
}
