package api

import (
	"net/http"
	"strconv"

	"github.com/Capitan-Parrot/wildfire-live/internal/reconciler"
)

func (h *Handlers) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sync.Status())
}

// GetStateHandler отдает текущую карту в виде двух FeatureCollection
func (h *Handlers) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	view := h.sync.View()
	hotspots, incidents := view.FeatureCollections()

	writeJSON(w, http.StatusOK, map[string]any{
		"version":   view.Version,
		"hotspots":  hotspots,
		"incidents": incidents,
	})
}

func (h *Handlers) GetTopIncidentsHandler(w http.ResponseWriter, r *http.Request) {
	n := reconciler.DefaultTopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		n = v
	}

	writeJSON(w, http.StatusOK, h.sync.TopIncidents(n))
}
