package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"honeypot-service/internal/analyzer"
	"honeypot-service/internal/honeypot"
	"honeypot-service/internal/model"
	"honeypot-service/internal/store"
)

const exportLimit = 100000

// AttackHandler serves the read-only projections over the event store and
// the start/stop commands over the listener registry.
type AttackHandler struct {
	store    store.Store
	analyzer *analyzer.ThreatAnalyzer
	registry *honeypot.Registry
	logger   *zap.Logger
}

func NewAttackHandler(s store.Store, a *analyzer.ThreatAnalyzer, r *honeypot.Registry, logger *zap.Logger) *AttackHandler {
	return &AttackHandler{
		store:    s,
		analyzer: a,
		registry: r,
		logger:   logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

func errorResponse(message string) Response {
	return Response{Success: false, Error: message}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RegisterRoutes registers all routes; start/stop commands sit behind the
// optional API key.
func (h *AttackHandler) RegisterRoutes(router chi.Router, apiKey string) {
	router.Get("/health", h.Health)

	router.Get("/attacks", h.ListAttacks)
	router.Get("/attacks/{attackID}", h.GetAttack)
	router.Get("/alerts", h.ListAlerts)
	router.Get("/statistics", h.GetStatistics)
	router.Get("/stats/summary", h.GetSummary)
	router.Get("/export/csv", h.ExportCSV)
	router.Get("/export/json", h.ExportJSON)

	router.Get("/honeypots", h.ListHoneypots)
	router.Group(func(r chi.Router) {
		r.Use(requireAPIKey(apiKey))
		r.Post("/honeypots/start", h.StartHoneypot)
		r.Post("/honeypots/stop", h.StopHoneypot)
	})
}

func (h *AttackHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *AttackHandler) ListAttacks(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 100)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	filters := store.Filters{}
	for _, col := range []string{"protocol", "attack_type", "source_ip", "threat_level"} {
		if val := r.URL.Query().Get(col); val != "" {
			filters[col] = val
		}
	}

	attacks, err := h.store.GetAttacks(r.Context(), limit, offset, filters)
	if err != nil {
		if errors.Is(err, store.ErrInvalidFilter) {
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		h.logger.Error("Failed to list attacks", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to list attacks"))
		return
	}

	writeJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"attacks": attacks,
		"count":   len(attacks),
	}, ""))
}

func (h *AttackHandler) GetAttack(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "attackID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("attack id must be an integer"))
		return
	}

	attack, err := h.store.GetAttackByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse("attack not found"))
			return
		}
		h.logger.Error("Failed to get attack", zap.Int64("id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to get attack"))
		return
	}

	writeJSON(w, http.StatusOK, successResponse(attack, ""))
}

func (h *AttackHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 100)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if limit > 1000 {
		limit = 1000
	}

	alerts, err := h.store.GetAlerts(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list alerts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to list alerts"))
		return
	}

	writeJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	}, ""))
}

func (h *AttackHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	storeStats, err := h.store.GetAttackStatistics(r.Context())
	if err != nil {
		h.logger.Error("Failed to get store statistics", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to get statistics"))
		return
	}

	writeJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"database": storeStats,
		"analyzer": h.analyzer.GetStatistics(),
	}, ""))
}

func (h *AttackHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetAttackStatistics(r.Context())
	if err != nil {
		h.logger.Error("Failed to get summary", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to get summary"))
		return
	}

	var mostTargeted model.AttackType
	var max int64
	for t, n := range stats.AttacksByType {
		if n > max {
			mostTargeted, max = t, n
		}
	}

	writeJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"total_attacks":           stats.TotalAttacks,
		"unique_attackers":        stats.UniqueAttackers,
		"most_targeted_service":   mostTargeted,
		"attacks_by_threat_level": stats.AttacksByThreatLevel,
	}, ""))
}

func (h *AttackHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	attacks, err := h.store.GetAttacks(r.Context(), exportLimit, 0, nil)
	if err != nil {
		h.logger.Error("Failed to export attacks", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to export attacks"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename=attacks.csv`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "timestamp", "source_ip", "source_port",
		"protocol", "attack_type", "raw_payload", "threat_level", "attack_pattern"})
	for i := range attacks {
		a := &attacks[i]
		_ = cw.Write([]string{
			strconv.FormatInt(a.ID, 10),
			a.Timestamp.UTC().Format(time.RFC3339Nano),
			a.SourceIP,
			strconv.Itoa(a.SourcePort),
			string(a.Protocol),
			string(a.AttackType),
			a.RawPayload,
			string(a.ThreatLevel),
			string(a.AttackPattern),
		})
	}
	cw.Flush()
}

func (h *AttackHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	attacks, err := h.store.GetAttacks(r.Context(), exportLimit, 0, nil)
	if err != nil {
		h.logger.Error("Failed to export attacks", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to export attacks"))
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename=attacks.json`)
	writeJSON(w, http.StatusOK, map[string]interface{}{"attacks": attacks})
}

func (h *AttackHandler) ListHoneypots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"honeypots": h.registry.List(),
	}, ""))
}

type honeypotCommand struct {
	Type string `json:"type"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (h *AttackHandler) StartHoneypot(w http.ResponseWriter, r *http.Request) {
	var cmd honeypotCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	status, err := h.registry.Start(cmd.Type, cmd.Host, cmd.Port)
	if err != nil {
		switch {
		case errors.Is(err, honeypot.ErrUnknownProtocol):
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		case errors.Is(err, honeypot.ErrAlreadyRunning):
			writeJSON(w, http.StatusConflict, errorResponse(err.Error()))
		default:
			h.logger.Error("Failed to start honeypot",
				zap.String("type", cmd.Type), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusCreated, successResponse(status, "honeypot started"))
}

func (h *AttackHandler) StopHoneypot(w http.ResponseWriter, r *http.Request) {
	var cmd honeypotCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	if err := h.registry.Stop(cmd.Type); err != nil {
		switch {
		case errors.Is(err, honeypot.ErrUnknownProtocol):
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		case errors.Is(err, honeypot.ErrNotRunning):
			writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusOK, successResponse(nil, "honeypot stopped"))
}

func parsePagination(r *http.Request, defaultLimit int) (int, int, error) {
	limit := defaultLimit
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
		offset = n
	}
	return limit, offset, nil
}
