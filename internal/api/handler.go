package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/fraudguard/internal/assessment"
	"github.com/opensource-finance/fraudguard/internal/cache"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/explain"
	"github.com/opensource-finance/fraudguard/internal/metrics"
	"github.com/opensource-finance/fraudguard/internal/model"
	"github.com/opensource-finance/fraudguard/internal/presets"
	"github.com/opensource-finance/fraudguard/internal/render"
	"github.com/opensource-finance/fraudguard/internal/scoring"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 1 << 20

// Deps are the collaborators the API serves. Repo, Cache, Bus, Metrics and
// Model may be nil.
type Deps struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Pipeline  *scoring.Pipeline
	Explainer *explain.Engine
	Metrics   *metrics.Collector
	Model     *model.Info

	// MaxMonetaryValue bounds amounts and balances; 0 uses the default.
	MaxMonetaryValue float64

	// AssessmentTTL controls read-through caching of assessments.
	AssessmentTTL time.Duration

	Version string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo          domain.Repository
	cache         domain.Cache
	bus           domain.EventBus
	pipeline      *scoring.Pipeline
	explainer     *explain.Engine
	metrics       *metrics.Collector
	model         *model.Info
	builder       assessment.Builder
	maxValue      float64
	assessmentTTL time.Duration
	version       string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	maxValue := deps.MaxMonetaryValue
	if maxValue <= 0 {
		maxValue = domain.DefaultConfig().Scoring.MaxMonetaryValue
	}
	ttl := deps.AssessmentTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	builder := assessment.Builder{}
	if deps.Pipeline != nil {
		builder.Threshold = deps.Pipeline.Threshold()
		builder.Capability = deps.Pipeline.Capability()
	}
	if deps.Model != nil {
		builder.ModelVersion = deps.Model.Version
	}

	return &Handler{
		repo:          deps.Repo,
		cache:         deps.Cache,
		bus:           deps.Bus,
		pipeline:      deps.Pipeline,
		explainer:     deps.Explainer,
		metrics:       deps.Metrics,
		model:         deps.Model,
		builder:       builder,
		maxValue:      maxValue,
		assessmentTTL: ttl,
		version:       deps.Version,
	}
}

// ScoreResponse is the response for POST /score.
type ScoreResponse struct {
	AssessmentID string          `json:"assessmentId"`
	Probability  float64         `json:"probability"`
	Verdict      domain.Verdict  `json:"verdict"`
	Rationale    []string        `json:"rationale"`
	Display      render.Display  `json:"display"`
	Metadata     ResponseMetrics `json:"metadata"`
}

// ResponseMetrics describes how a score was produced.
type ResponseMetrics struct {
	TraceID      string  `json:"traceId"`
	TotalMs      int64   `json:"totalMs"`
	Threshold    float64 `json:"threshold"`
	ModelVersion string  `json:"modelVersion,omitempty"`
	Capability   string  `json:"capability"`
	Version      string  `json:"version"`
}

// AsyncResponse is the response for POST /score/async.
type AsyncResponse struct {
	AssessmentID string `json:"assessmentId"`
	Status       string `json:"status"`
}

// Score handles POST /score requests.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	h.scoreAndRecord(w, r, in)
}

// ScorePreset handles POST /presets/{name}/score requests.
func (h *Handler) ScorePreset(w http.ResponseWriter, r *http.Request) {
	p, err := presets.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "preset not found")
		return
	}
	h.scoreAndRecord(w, r, p.Input)
}

// scoreAndRecord scores in synchronously, stores the assessment and writes
// the response.
func (h *Handler) scoreAndRecord(w http.ResponseWriter, r *http.Request, in domain.TransactionInput) {
	start := time.Now()
	ctx := scoring.WithSource(r.Context(), assessment.SourceSync)
	tenantID := GetTenantID(ctx)

	if err := h.checkBounds(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrClassifierUnavailable.Error())
		return
	}

	outcome, err := h.pipeline.Score(ctx, in)
	if err != nil {
		h.writeScoreError(w, tenantID, err)
		return
	}

	a := h.builder.Build(ctx, "", tenantID, in, outcome, assessment.SourceSync, start)
	h.record(ctx, a)

	resp := ScoreResponse{
		AssessmentID: a.ID,
		Probability:  outcome.Probability,
		Verdict:      outcome.Verdict,
		Rationale:    outcome.Rationale,
		Display:      render.Render(outcome),
		Metadata: ResponseMetrics{
			TraceID:      GetTraceID(ctx),
			TotalMs:      time.Since(start).Milliseconds(),
			Threshold:    h.builder.Threshold,
			ModelVersion: h.builder.ModelVersion,
			Capability:   h.builder.Capability,
			Version:      h.version,
		},
	}

	writeJSON(w, http.StatusOK, resp)
}

// record persists the assessment and primes the read-through cache.
// Failures are logged; the caller already has its verdict.
func (h *Handler) record(ctx context.Context, a *domain.Assessment) {
	if h.repo != nil {
		if err := h.repo.SaveAssessment(ctx, a.TenantID, a); err != nil {
			slog.Error("failed to save assessment",
				"assessment_id", a.ID,
				"tenant_id", a.TenantID,
				"error", err,
			)
			return
		}
	}
	h.cacheAssessment(ctx, a)
}

// ScoreAsync handles POST /score/async requests. The input is validated
// here so bad requests are rejected before they reach the bus.
func (h *Handler) ScoreAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var in domain.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := h.checkBounds(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	sub := domain.Submission{
		AssessmentID: assessment.NewID(),
		TenantID:     tenantID,
		Input:        in,
		SubmittedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode submission")
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicTransactionSubmitted, payload); err != nil {
		slog.Error("failed to queue submission",
			"assessment_id", sub.AssessmentID,
			"tenant_id", tenantID,
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "failed to queue transaction")
		return
	}
	h.metrics.ObserveAsyncQueued()

	writeJSON(w, http.StatusAccepted, AsyncResponse{
		AssessmentID: sub.AssessmentID,
		Status:       "queued",
	})
}

// GetAssessment retrieves an assessment by ID, reading through the cache.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if id == "" {
		writeError(w, http.StatusBadRequest, "assessment id is required")
		return
	}

	if a := h.cachedAssessment(ctx, tenantID, id); a != nil {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, a)
		return
	}

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	a, err := h.repo.GetAssessment(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assessment not found")
			return
		}
		slog.Error("failed to get assessment", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get assessment")
		return
	}

	h.cacheAssessment(ctx, a)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, a)
}

// ListAssessments returns the tenant's most recent assessments.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	list, err := h.repo.ListAssessments(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list assessments", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list assessments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessments": list,
		"count":       len(list),
	})
}

// ListPresets returns the example transactions.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	all := presets.All()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presets": all,
		"count":   len(all),
	})
}

// GetPreset returns one example transaction.
func (h *Handler) GetPreset(w http.ResponseWriter, r *http.Request) {
	p, err := presets.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "preset not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListRules returns the explanation rules in evaluation order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.explainer == nil {
		writeError(w, http.StatusServiceUnavailable, "explanation engine not available")
		return
	}

	rules := h.explainer.Rules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	checks := map[string]string{}

	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}
	if h.repo != nil {
		check("repository", h.repo.Ping)
	}
	if h.cache != nil {
		check("cache", h.cache.Ping)
	}
	if h.bus != nil {
		check("eventBus", h.bus.Ping)
	}

	resp := map[string]interface{}{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	}
	if h.model != nil {
		resp["model"] = h.model
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready reports whether a classifier is loaded and traffic can be scored.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil || h.pipeline.Capability() == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready":  "false",
			"reason": "no classifier loaded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready":      "true",
		"capability": h.pipeline.Capability(),
	})
}

// checkBounds enforces the presentation layer's field ranges.
func (h *Handler) checkBounds(in domain.TransactionInput) error {
	if in.Step < 1 {
		return fmt.Errorf("step must be >= 1")
	}

	fields := []struct {
		name  string
		value float64
	}{
		{"amount", in.Amount},
		{"oldBalanceOrg", in.OldBalanceOrg},
		{"newBalanceOrig", in.NewBalanceOrig},
		{"oldBalanceDest", in.OldBalanceDest},
		{"newBalanceDest", in.NewBalanceDest},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > h.maxValue {
			return fmt.Errorf("%s must be between 0 and %.0f", f.name, h.maxValue)
		}
	}
	return nil
}

// writeScoreError maps pipeline failures to HTTP statuses. No verdict is
// ever returned for a failed request.
func (h *Handler) writeScoreError(w http.ResponseWriter, tenantID string, err error) {
	stage, _ := scoring.FailedStage(err)

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrClassifierUnavailable):
		slog.Error("classifier unavailable",
			"tenant_id", tenantID,
			"stage", stage.String(),
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "classifier unavailable")
	default:
		slog.Error("scoring failed",
			"tenant_id", tenantID,
			"stage", stage.String(),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "scoring failed")
	}
}

func (h *Handler) cacheAssessment(ctx context.Context, a *domain.Assessment) {
	if h.cache == nil {
		return
	}
	if err := cache.PutAssessment(ctx, h.cache, a, h.assessmentTTL); err != nil {
		slog.Warn("failed to cache assessment", "assessment_id", a.ID, "error", err)
	}
}

func (h *Handler) cachedAssessment(ctx context.Context, tenantID, id string) *domain.Assessment {
	if h.cache == nil {
		return nil
	}
	a, err := cache.GetAssessment(ctx, h.cache, tenantID, id)
	if err != nil {
		slog.Warn("assessment cache lookup failed", "assessment_id", id, "error", err)
		return nil
	}
	return a
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
