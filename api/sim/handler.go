package sim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	coresim "github.com/gridwise/energysim/core/sim"
)

// Controller is the simulation control surface exposed over HTTP. Nothing
// else mutates simulation state.
type Controller interface {
	Start() error
	Stop()
	SetTickInterval(d time.Duration) error
	Snapshot() coresim.Snapshot
}

// NewSnapshotHandler returns an HTTP handler exposing the latest settled
// tick via GET /api/sim/snapshot.
func NewSnapshotHandler(ctrl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ctrl.Snapshot()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

type controlRequest struct {
	Action              string  `json:"action"`
	TickIntervalSeconds float64 `json:"tick_interval_seconds"`
}

type controlResponse struct {
	Status string `json:"status"`
}

// NewControlHandler returns an HTTP handler accepting control commands via
// POST /api/sim/control. Supported actions: start, stop, set_tick_interval.
func NewControlHandler(ctrl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req controlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
			return
		}
		switch req.Action {
		case "start":
			if err := ctrl.Start(); err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
		case "stop":
			ctrl.Stop()
		case "set_tick_interval":
			d := time.Duration(req.TickIntervalSeconds * float64(time.Second))
			if err := ctrl.SetTickInterval(d); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(controlResponse{Status: "ok"}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
