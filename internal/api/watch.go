package api

import (
	"net/http"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/gorilla/mux"
)

type watchResponse struct {
	models.WatchLocation
	HotspotCount int `json:"hotspot_count"`
}

func (h *Handlers) ListWatchHandler(w http.ResponseWriter, r *http.Request) {
	fence := h.sync.Fence()
	counts := fence.Counts()

	locations := fence.Locations()
	resp := make([]watchResponse, 0, len(locations))
	for _, loc := range locations {
		resp = append(resp, watchResponse{WatchLocation: loc, HotspotCount: counts[loc.ID]})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetWatchCirclesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sync.Fence().Circles())
}

func (h *Handlers) CreateWatchHandler(w http.ResponseWriter, r *http.Request) {
	var loc models.WatchLocation
	if err := decodeBody(r, &loc); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := h.sync.AddWatch(r.Context(), loc)
	if err != nil {
		writeError(w, err)
		return
	}
	n, _ := h.sync.Fence().Count(saved.ID)
	writeJSON(w, http.StatusCreated, watchResponse{WatchLocation: saved, HotspotCount: n})
}

func (h *Handlers) DeleteWatchHandler(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["location_id"]

	if err := h.sync.RemoveWatch(r.Context(), locationID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
