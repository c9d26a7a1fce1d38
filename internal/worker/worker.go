// Package worker scores transactions submitted through the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/fraudguard/internal/assessment"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/scoring"
)

// Scorer is the part of the scoring pipeline the worker needs.
type Scorer interface {
	Score(ctx context.Context, in domain.TransactionInput) (domain.ScoringOutcome, error)
}

// Worker processes submissions asynchronously from the EventBus.
type Worker struct {
	bus     domain.EventBus
	repo    domain.Repository
	scorer  Scorer
	builder assessment.Builder

	mu            sync.Mutex
	subscriptions []domain.Subscription
	sem           chan struct{}
	stopped       bool
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all tenants)
	TenantIDs []string

	// WorkerCount bounds concurrent scoring across all subscriptions
	WorkerCount int
}

// NewWorker creates a new async worker. repo may be nil, in which case
// results are only published.
func NewWorker(bus domain.EventBus, repo domain.Repository, scorer Scorer, builder assessment.Builder) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		repo:    repo,
		scorer:  scorer,
		builder: builder,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing submissions for the given tenants.
func (w *Worker) Start(cfg Config) error {
	count := cfg.WorkerCount
	if count <= 0 {
		count = 4
	}
	w.sem = make(chan struct{}, count)

	tenants := cfg.TenantIDs
	if len(tenants) == 0 {
		tenants = []string{domain.AllTenants}
	}

	for _, tenantID := range tenants {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicTransactionSubmitted, w.dispatch)
		if err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		w.mu.Lock()
		w.subscriptions = append(w.subscriptions, sub)
		w.mu.Unlock()
	}

	if len(w.subscriptions) == 0 {
		return fmt.Errorf("worker has no active subscriptions")
	}

	slog.Info("workers started",
		"tenants", tenants,
		"concurrency", count,
	)
	return nil
}

// dispatch hands a message to the bounded pool so a slow classifier never
// stalls the bus delivery goroutine for long.
func (w *Worker) dispatch(ctx context.Context, msg *domain.Message) error {
	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		return w.ctx.Err()
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.sem
		return fmt.Errorf("worker stopped")
	}
	w.wg.Add(1)
	w.mu.Unlock()

	// In-flight submissions finish even when the subscription is cancelled.
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()

		if err := w.process(ctx, msg); err != nil {
			slog.Error("failed to process submission",
				"message_id", msg.ID,
				"tenant_id", msg.TenantID,
				"error", err,
			)
		}
	}()
	return nil
}

// process scores one submission, persists the assessment and publishes the
// result.
func (w *Worker) process(ctx context.Context, msg *domain.Message) error {
	var sub domain.Submission
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		return fmt.Errorf("failed to parse submission: %w", err)
	}

	// The envelope tenant is authoritative.
	tenantID := msg.TenantID
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}

	slog.Debug("processing submission",
		"assessment_id", sub.AssessmentID,
		"tenant_id", tenantID,
	)

	outcome, err := w.scorer.Score(scoring.WithSource(ctx, assessment.SourceAsync), sub.Input)
	if err != nil {
		stage, _ := scoring.FailedStage(err)
		w.publishFailure(ctx, tenantID, sub.AssessmentID, stage.String(), err)
		return err
	}

	a := w.builder.Build(ctx, sub.AssessmentID, tenantID, sub.Input, outcome, assessment.SourceAsync, sub.SubmittedAt)

	if w.repo != nil {
		if err := w.repo.SaveAssessment(ctx, tenantID, a); err != nil {
			slog.Error("failed to save assessment",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	if err := w.bus.Publish(ctx, tenantID, domain.TopicAssessmentScored, payload); err != nil {
		slog.Error("failed to publish assessment",
			"assessment_id", a.ID,
			"error", err,
		)
	}

	if outcome.IsFraud() {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}

	slog.Info("submission scored",
		"assessment_id", a.ID,
		"tenant_id", tenantID,
		"verdict", outcome.Verdict,
		"probability", outcome.Probability,
		"duration_ms", a.Metadata.TotalMs,
	)
	return nil
}

func (w *Worker) publishFailure(ctx context.Context, tenantID, assessmentID, stage string, cause error) {
	payload, _ := json.Marshal(domain.ScoringFailure{
		AssessmentID: assessmentID,
		TenantID:     tenantID,
		Stage:        stage,
		Error:        cause.Error(),
		Timestamp:    time.Now().UTC(),
	})
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAssessmentFailed, payload); err != nil {
		slog.Error("failed to publish scoring failure",
			"assessment_id", assessmentID,
			"error", err,
		)
	}
}

// Stop gracefully stops all workers and waits for in-flight submissions.
func (w *Worker) Stop() error {
	w.mu.Lock()
	subs := w.subscriptions
	w.subscriptions = nil
	w.stopped = true
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	w.cancel()
	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	InFlight          int      `json:"inFlight"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		InFlight:          len(w.sem),
	}
}
