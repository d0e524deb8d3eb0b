package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/Capitan-Parrot/wildfire-live/internal/metrics"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/Capitan-Parrot/wildfire-live/internal/syncer"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

type Handlers struct {
	sync *syncer.Syncer
}

func NewHandlers(s *syncer.Syncer) *Handlers {
	return &Handlers{sync: s}
}

// NewRouter регистрирует все обработчики локального API
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/status", h.GetStatusHandler).Methods("GET")
	r.HandleFunc("/state", h.GetStateHandler).Methods("GET")
	r.HandleFunc("/incidents/top", h.GetTopIncidentsHandler).Methods("GET")

	r.HandleFunc("/watch", h.ListWatchHandler).Methods("GET")
	r.HandleFunc("/watch", h.CreateWatchHandler).Methods("POST")
	r.HandleFunc("/watch/circles", h.GetWatchCirclesHandler).Methods("GET")
	r.HandleFunc("/watch/{location_id}", h.DeleteWatchHandler).Methods("DELETE")

	r.HandleFunc("/mode", h.SetModeHandler).Methods("POST")
	r.HandleFunc("/refresh", h.RefreshHandler).Methods("POST")

	r.HandleFunc("/replay/range", h.SetRangeHandler).Methods("POST")
	r.HandleFunc("/replay/seek", h.SeekHandler).Methods("POST")
	r.HandleFunc("/replay/step/{direction}", h.StepHandler).Methods("POST")
	r.HandleFunc("/replay/play", h.PlayHandler).Methods("POST")
	r.HandleFunc("/replay/pause", h.PauseHandler).Methods("POST")

	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, syncer.ErrNotLive), errors.Is(err, syncer.ErrNotReplay):
		status = http.StatusConflict
	case errors.Is(err, syncer.ErrUnknownMode), errors.Is(err, models.ErrUnknownRange), errors.Is(err, syncer.ErrInvalidWatch):
		status = http.StatusBadRequest
	case errors.Is(err, syncer.ErrWatchNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
