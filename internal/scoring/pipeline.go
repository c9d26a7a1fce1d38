// Package scoring runs the fraud scoring pipeline: encode, classify, decide,
// explain and assemble.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/opensource-finance/fraudguard/internal/decision"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/explain"
	"github.com/opensource-finance/fraudguard/internal/features"
	"github.com/opensource-finance/fraudguard/internal/metrics"
)

var tracer = otel.Tracer("fraudguard-scoring")

// Stage is a pipeline state. A request moves through the stages in order;
// failures stop at Encoded or Scored.
type Stage int

const (
	StageReceived Stage = iota
	StageEncoded
	StageScored
	StageDecided
	StageExplained
	StageAssembled
	StageReturned
)

var stageNames = [...]string{
	"Received",
	"Encoded",
	"Scored",
	"Decided",
	"Explained",
	"Assembled",
	"Returned",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError reports the stage at which a request failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}

type sourceKey struct{}

// WithSource labels scores made under ctx (e.g. "sync", "async") for metrics.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "sync"
}

// Pipeline holds only immutable collaborators and is safe for concurrent use.
type Pipeline struct {
	encoder    *features.Encoder
	classifier domain.Classifier
	policy     *decision.Policy
	explainer  *explain.Engine
	metrics    *metrics.Collector
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records every run on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) { p.metrics = c }
}

// New creates a pipeline. A nil policy selects decision.DefaultPolicy. A nil
// classifier is accepted; every Score call then fails with
// domain.ErrClassifierUnavailable.
func New(encoder *features.Encoder, classifier domain.Classifier, policy *decision.Policy, explainer *explain.Engine, opts ...Option) (*Pipeline, error) {
	if encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if explainer == nil {
		return nil, fmt.Errorf("explanation engine is required")
	}
	if policy == nil {
		policy = decision.DefaultPolicy()
	}

	p := &Pipeline{
		encoder:    encoder,
		classifier: classifier,
		policy:     policy,
		explainer:  explainer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Threshold returns the decision threshold in use.
func (p *Pipeline) Threshold() float64 {
	return p.policy.Threshold
}

// Capability names the classifier variant, or "" when none is loaded.
func (p *Pipeline) Capability() string {
	if p.classifier == nil {
		return ""
	}
	return p.classifier.Capability()
}

// Score runs one transaction through the pipeline. Errors wrap
// domain.ErrInvalidInput or domain.ErrClassifierUnavailable inside a
// *StageError; no outcome is produced on failure.
func (p *Pipeline) Score(ctx context.Context, in domain.TransactionInput) (domain.ScoringOutcome, error) {
	start := time.Now()

	_, span := tracer.Start(ctx, "scoring.Score")
	defer span.End()
	span.SetAttributes(
		attribute.String("tx.type", string(in.Type)),
		attribute.Float64("tx.amount", in.Amount),
	)

	outcome, err := p.run(in)
	if err != nil {
		stage, _ := FailedStage(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("scoring.failed_stage", stage.String()))
		p.metrics.ObserveFailure(stage.String())
		return domain.ScoringOutcome{}, err
	}

	span.SetAttributes(
		attribute.Float64("scoring.probability", outcome.Probability),
		attribute.String("scoring.verdict", string(outcome.Verdict)),
		attribute.Int("scoring.reasons", len(outcome.Rationale)),
	)
	p.metrics.ObserveScore(outcome, sourceFrom(ctx), time.Since(start))

	return outcome, nil
}

func (p *Pipeline) run(in domain.TransactionInput) (domain.ScoringOutcome, error) {
	vector, err := p.encoder.Encode(in)
	if err != nil {
		return domain.ScoringOutcome{}, &StageError{Stage: StageEncoded, Err: err}
	}

	probability, err := p.classify(vector)
	if err != nil {
		return domain.ScoringOutcome{}, &StageError{Stage: StageScored, Err: err}
	}

	verdict := p.policy.Decide(probability)

	rationale, err := p.explainer.Explain(in, verdict)
	if err != nil {
		return domain.ScoringOutcome{}, &StageError{Stage: StageExplained, Err: err}
	}

	return Assemble(probability, verdict, rationale), nil
}

func (p *Pipeline) classify(v domain.FeatureVector) (float64, error) {
	if p.classifier == nil {
		return 0, fmt.Errorf("%w: no classifier loaded", domain.ErrClassifierUnavailable)
	}

	probability, err := p.classifier.Probability(v)
	if err != nil {
		if errors.Is(err, domain.ErrClassifierUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", domain.ErrClassifierUnavailable, err)
	}
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return 0, fmt.Errorf("%w: probability %v outside [0,1]", domain.ErrClassifierUnavailable, probability)
	}
	return probability, nil
}

// Assemble builds the outcome. The rationale is copied so the caller's slice
// is never shared with the result.
func Assemble(probability float64, verdict domain.Verdict, rationale []string) domain.ScoringOutcome {
	return domain.ScoringOutcome{
		Probability: probability,
		Verdict:     verdict,
		Rationale:   append([]string(nil), rationale...),
	}
}
