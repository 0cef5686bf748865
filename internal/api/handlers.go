package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/katavoz/KataRoute/internal/models"
)

// maxDecisionLimit caps how many audit records one request may fetch.
const maxDecisionLimit = 500

type routeRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	utt, err := models.NewUtterance(req.UserID, req.Text, time.Now())
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, models.ErrEmptyUserID) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	result := s.routes.Route(r.Context(), utt)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxDecisionLimit {
		limit = maxDecisionLimit
	}

	records, err := s.decisions.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Server.handleDecisions: failed to read decisions", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read decisions"})
		return
	}
	if records == nil {
		records = []models.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.routes.Stats())
}

// writeJSON marshals before writing headers so encoding failures still
// produce a well-formed error response.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Server.writeJSON: failed to marshal response", "error", err)
		data = []byte(`{"error":"internal server error"}`)
		statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		slog.Error("Server.writeJSON: failed to write response", "error", err)
	}
}
