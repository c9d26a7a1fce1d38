// Package assessment builds the audit records the host keeps for scored
// requests.
package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// EngineVersion identifies the scoring pipeline in stored records.
const EngineVersion = "fraudguard-1.0"

// Sources of a scoring request.
const (
	SourceSync  = "sync"
	SourceAsync = "async"
)

// Builder stamps assessments with the loaded model's identity.
type Builder struct {
	ModelVersion string
	Capability   string
	Threshold    float64
}

// NewID returns a fresh assessment ID.
func NewID() string {
	return uuid.New().String()
}

// Build creates the record for one scored request. An empty id gets a fresh
// one; the trace ID comes from the span in ctx when there is one.
func (b Builder) Build(ctx context.Context, id, tenantID string, in domain.TransactionInput, outcome domain.ScoringOutcome, source string, started time.Time) *domain.Assessment {
	if id == "" {
		id = NewID()
	}

	return &domain.Assessment{
		ID:        id,
		TenantID:  tenantID,
		Input:     in,
		Outcome:   outcome,
		Threshold: b.Threshold,
		Timestamp: time.Now().UTC(),
		Metadata: domain.AssessmentMetadata{
			TraceID:       TraceID(ctx),
			ModelVersion:  b.ModelVersion,
			Capability:    b.Capability,
			Source:        source,
			TotalMs:       time.Since(started).Milliseconds(),
			EngineVersion: EngineVersion,
		},
	}
}

// TraceID returns the OpenTelemetry trace ID carried by ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
