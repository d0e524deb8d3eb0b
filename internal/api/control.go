package api

import (
	"errors"
	"net/http"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/Capitan-Parrot/wildfire-live/internal/syncer"
	"github.com/gorilla/mux"
)

type modeRequest struct {
	Mode string `json:"mode"`
}

type rangeRequest struct {
	Range string `json:"range"`
}

type seekRequest struct {
	Index *int `json:"index"`
}

func (h *Handlers) SetModeHandler(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	mode, err := syncer.ParseMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.sync.SetMode(r.Context(), mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sync.Status())
}

func (h *Handlers) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.Refresh(r.Context()); err != nil {
		if errorIsMode(err) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.sync.Status())
}

func (h *Handlers) SetRangeHandler(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rng, err := models.ParseRange(req.Range)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.sync.SetRange(r.Context(), rng); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sync.Status().Replay)
}

func (h *Handlers) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decodeBody(r, &req); err != nil || req.Index == nil {
		http.Error(w, "index is required", http.StatusBadRequest)
		return
	}
	h.replayControl(w, func() error { return h.sync.Seek(*req.Index) })
}

func (h *Handlers) StepHandler(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["direction"] {
	case "forward":
		h.replayControl(w, func() error { return h.sync.Step(true) })
	case "back":
		h.replayControl(w, func() error { return h.sync.Step(false) })
	default:
		http.Error(w, "direction must be forward or back", http.StatusBadRequest)
	}
}

func (h *Handlers) PlayHandler(w http.ResponseWriter, r *http.Request) {
	h.replayControl(w, h.sync.Play)
}

func (h *Handlers) PauseHandler(w http.ResponseWriter, r *http.Request) {
	h.replayControl(w, h.sync.Pause)
}

func (h *Handlers) replayControl(w http.ResponseWriter, control func() error) {
	if err := control(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sync.Status().Replay)
}

func errorIsMode(err error) bool {
	return errors.Is(err, syncer.ErrNotLive) || errors.Is(err, syncer.ErrNotReplay)
}
