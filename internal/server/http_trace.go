package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/harvestlink/traceledger/internal/model"
)

// handleAppendPlotEvent handles POST /v1/plots/{id}/events.
func (s *LedgerServer) handleAppendPlotEvent(w http.ResponseWriter, r *http.Request) {
	plotID := r.PathValue("id")

	var in appendEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	event, err := s.appendPreHarvestEvent(r.Context(), plotID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// handleListPlotEvents handles GET /v1/plots/{id}/events.
func (s *LedgerServer) handleListPlotEvents(w http.ResponseWriter, r *http.Request) {
	plotID := r.PathValue("id")

	evs, err := s.listPlotEvents(r.Context(), plotID, isAuthenticated(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if evs == nil {
		evs = []*model.TraceEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

// handleHarvest handles POST /v1/plots/{id}/harvest.
func (s *LedgerServer) handleHarvest(w http.ResponseWriter, r *http.Request) {
	plotID := r.PathValue("id")

	var in harvestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	vti, event, err := s.harvestTransition(r.Context(), plotID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"identifier": vti,
		"event":      event,
	})
}

// handleListVTIs handles GET /v1/vtis.
func (s *LedgerServer) handleListVTIs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	vtis, err := s.listPublicBatches(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if vtis == nil {
		vtis = []*model.VTI{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"identifiers": vtis})
}

// handleGetVTI handles GET /v1/vtis/{id}.
func (s *LedgerServer) handleGetVTI(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	vti, err := s.getIdentifier(r.Context(), id, isAuthenticated(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, vti)
}

// handleAppendVTIEvent handles POST /v1/vtis/{id}/events.
func (s *LedgerServer) handleAppendVTIEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var in appendEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	event, err := s.appendPostHarvestEvent(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// handleListVTIEvents handles GET /v1/vtis/{id}/events.
func (s *LedgerServer) handleListVTIEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	evs, err := s.listEvents(r.Context(), id, isAuthenticated(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if evs == nil {
		evs = []*model.TraceEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

// handleGetHistory handles GET /v1/vtis/{id}/history.
func (s *LedgerServer) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	history, err := s.getHistory(r.Context(), id, isAuthenticated(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if history.Events == nil {
		history.Events = []*model.TraceEvent{}
	}

	writeJSON(w, http.StatusOK, history)
}

// handleAddLink handles POST /v1/vtis/{id}/links.
func (s *LedgerServer) handleAddLink(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		LinkedID string `json:"linked_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.linkIdentifiers(r.Context(), id, body.LinkedID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateStatus handles POST /v1/vtis/{id}/status.
func (s *LedgerServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.updateStatus(r.Context(), id, model.VTIStatus(body.Status)); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
