package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	cache   domain.Cache
	bus     domain.EventBus
	version string
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		engine:  eng,
		cache:   cache,
		bus:     bus,
		version: version,
	}
}

// AnalyzeRequest is the request body for POST /analyze.
type AnalyzeRequest struct {
	Accounts     []string                   `json:"accounts,omitempty"`
	Transactions []domain.TransactionRecord `json:"transactions"`
	HighRisk     []string                   `json:"highRisk,omitempty"`
	Source       string                     `json:"source,omitempty"`
	Target       string                     `json:"target,omitempty"`
	Threshold    *float64                   `json:"threshold,omitempty"`
	GroundTruth  map[string]int             `json:"groundTruth,omitempty"`
}

// QueuedResponse is the response for POST /analyze?async=true.
type QueuedResponse struct {
	AnalysisID string `json:"analysisId"`
	Status     string `json:"status"`
	TraceID    string `json:"traceId,omitempty"`
}

// Analyze handles POST /analyze requests.
//
// The default mode runs the analysis synchronously and returns the full
// result. With ?async=true the request is enqueued on the event bus, a
// pre-assigned analysis ID is returned with 202 Accepted and the result
// becomes available at GET /analyses/{id} once a worker has processed it.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Accounts) == 0 && len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one account or transaction is required",
		})
		return
	}
	if (req.Source == "") != (req.Target == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "source and target must be supplied together",
		})
		return
	}
	if req.Threshold != nil && *req.Threshold <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "threshold must be positive",
		})
		return
	}

	analysisReq := &domain.AnalysisRequest{
		Accounts:     req.Accounts,
		Transactions: req.Transactions,
		HighRisk:     req.HighRisk,
		Source:       req.Source,
		Target:       req.Target,
		Threshold:    req.Threshold,
		GroundTruth:  req.GroundTruth,
	}

	if r.URL.Query().Get("async") == "true" {
		h.enqueue(w, r, tenantID, traceID, analysisReq)
		return
	}

	analysis, err := h.engine.Run(ctx, tenantID, "", analysisReq)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidTransaction) || errors.Is(err, domain.ErrUnknownAccount) {
			status = http.StatusBadRequest
		}
		slog.Error("analysis failed",
			"tenant_id", tenantID,
			"trace_id", traceID,
			"error", err,
		)
		writeJSON(w, status, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// enqueue publishes the request for async processing by a worker.
func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, tenantID, traceID string, req *domain.AnalysisRequest) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "async processing not available",
		})
		return
	}

	queued := domain.QueuedAnalysis{
		AnalysisID: uuid.New().String(),
		Request:    req,
	}
	payload, err := json.Marshal(queued)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode request",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), tenantID, domain.TopicAnalysisRequest, payload); err != nil {
		slog.Error("failed to enqueue analysis",
			"tenant_id", tenantID,
			"analysis_id", queued.AnalysisID,
			"error", err,
		)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to enqueue analysis",
		})
		return
	}

	slog.Info("analysis enqueued",
		"tenant_id", tenantID,
		"analysis_id", queued.AnalysisID,
	)
	writeJSON(w, http.StatusAccepted, QueuedResponse{
		AnalysisID: queued.AnalysisID,
		Status:     "queued",
		TraceID:    traceID,
	})
}

// GetAnalysis retrieves a completed analysis by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	analysisID := chi.URLParam(r, "id")

	if analysisID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysis id is required",
		})
		return
	}

	analysis, err := h.engine.GetAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "analysis not found",
			})
			return
		}
		slog.Error("failed to get analysis", "id", analysisID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get analysis",
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
