// Package api serves the pipeline status to dashboards and scrapers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"kerneural/internal/event"
	"kerneural/internal/pipeline"
	"kerneural/internal/rules"
)

// DefaultAlertLimit is how many recent alerts /status returns by default.
const DefaultAlertLimit = 10

// APIError represents a structured API error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
		Details: details,
	}); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// StatusProvider exposes the read-only pipeline view.
type StatusProvider interface {
	Status() pipeline.Status
	Recent(n int) []event.Event
}

// RuleLister reads the persisted rule store.
type RuleLister interface {
	Load() ([]rules.Definition, error)
}

// Alert is the dashboard view of one received event.
type Alert struct {
	Time      string `json:"time"`
	Priority  string `json:"priority"`
	Rule      string `json:"rule"`
	Container string `json:"container,omitempty"`
	Process   string `json:"process,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status pipeline.Status `json:"status"`
	Alerts []Alert         `json:"alerts"`
}

// RulesResponse is the body of GET /rules.
type RulesResponse struct {
	Path  string             `json:"path"`
	Count int                `json:"count"`
	Rules []rules.Definition `json:"rules"`
}

// StatusAPI provides the HTTP endpoints.
type StatusAPI struct {
	status    StatusProvider
	rules     RuleLister
	rulesPath string
	metrics   http.Handler
	started   time.Time
}

// NewStatusAPI creates a StatusAPI. rules and metrics may be nil.
func NewStatusAPI(status StatusProvider, rules RuleLister, rulesPath string, metrics http.Handler) *StatusAPI {
	return &StatusAPI{
		status:    status,
		rules:     rules,
		rulesPath: rulesPath,
		metrics:   metrics,
		started:   time.Now(),
	}
}

// RegisterRoutes registers the API routes.
func (api *StatusAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", api.handleStatus)
	mux.HandleFunc("GET /health", api.handleHealth)
	if api.rules != nil {
		mux.HandleFunc("GET /rules", api.handleRules)
	}
	if api.metrics != nil {
		mux.Handle("GET /metrics", api.metrics)
	}
}

func (api *StatusAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	limit := DefaultAlertLimit
	if v := r.URL.Query().Get("alerts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "alerts must be a non-negative integer", v)
			return
		}
		limit = n
	}

	resp := StatusResponse{
		Status: api.status.Status(),
		Alerts: []Alert{},
	}
	if limit > 0 {
		for _, ev := range api.status.Recent(limit) {
			resp.Alerts = append(resp.Alerts, Alert{
				Time:      ev.Time,
				Priority:  string(ev.Priority),
				Rule:      ev.Rule,
				Container: ev.Field("container.name"),
				Process:   ev.Field("proc.name"),
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *StatusAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"phase":  api.status.Status().Phase,
		"uptime": time.Since(api.started).Round(time.Second).String(),
	})
}

func (api *StatusAPI) handleRules(w http.ResponseWriter, r *http.Request) {
	defs, err := api.rules.Load()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "RULE_STORE_ERROR", "failed to read rule store", err.Error())
		return
	}
	if defs == nil {
		defs = []rules.Definition{}
	}
	writeJSON(w, http.StatusOK, RulesResponse{
		Path:  api.rulesPath,
		Count: len(defs),
		Rules: defs,
	})
}
