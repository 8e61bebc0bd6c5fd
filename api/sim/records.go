package sim

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/infra/store"
)

// NewRecordsHandler returns an HTTP handler exposing persisted simulation
// records via GET /api/sim/records. Filters: from_tick, to_tick, agent_id,
// kind.
func NewRecordsHandler(st store.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := store.Query{
			AgentID: r.URL.Query().Get("agent_id"),
			Kind:    store.Kind(r.URL.Query().Get("kind")),
		}
		if s := r.URL.Query().Get("from_tick"); s != "" {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				q.FromTick = model.Tick(v)
			}
		}
		if s := r.URL.Query().Get("to_tick"); s != "" {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				q.ToTick = model.Tick(v)
			}
		}
		records, err := st.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
