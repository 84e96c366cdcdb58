package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, mutating routes require a valid
// Authorization: Bearer <token> header; public reads pass through but see
// only is_public records.
func (s *LedgerServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/plots/{id}/events", s.handleAppendPlotEvent)
	mux.HandleFunc("GET /v1/plots/{id}/events", s.handleListPlotEvents)
	mux.HandleFunc("POST /v1/plots/{id}/harvest", s.handleHarvest)
	mux.HandleFunc("GET /v1/vtis", s.handleListVTIs)
	mux.HandleFunc("GET /v1/vtis/{id}", s.handleGetVTI)
	mux.HandleFunc("POST /v1/vtis/{id}/events", s.handleAppendVTIEvent)
	mux.HandleFunc("GET /v1/vtis/{id}/events", s.handleListVTIEvents)
	mux.HandleFunc("GET /v1/vtis/{id}/history", s.handleGetHistory)
	mux.HandleFunc("POST /v1/vtis/{id}/links", s.handleAddLink)
	mux.HandleFunc("POST /v1/vtis/{id}/status", s.handleUpdateStatus)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return Recovery(s.logger, RequestLogger(s.logger, AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *LedgerServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service-layer error kinds to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var ie inputError
	var nf notFoundError
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
