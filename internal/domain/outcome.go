package domain

import (
	"time"
)

// Verdict is the binary decision for a scored transaction.
type Verdict string

const (
	VerdictFraud Verdict = "FRAUD"
	VerdictSafe  Verdict = "SAFE"
)

// ScoringOutcome is the immutable result of one pipeline run.
type ScoringOutcome struct {
	Probability float64  `json:"probability"`
	Verdict     Verdict  `json:"verdict"`
	Rationale   []string `json:"rationale"`
}

// IsFraud reports whether the outcome should block the transaction.
func (o ScoringOutcome) IsFraud() bool {
	return o.Verdict == VerdictFraud
}

// Assessment is the audit record the host keeps for a scored request.
// The scoring core never creates or retains these.
type Assessment struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenantId"`
	Input     TransactionInput `json:"input"`
	Outcome   ScoringOutcome   `json:"outcome"`
	Threshold float64          `json:"threshold"`
	Timestamp time.Time        `json:"timestamp"`

	Metadata AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata contains processing information.
type AssessmentMetadata struct {
	TraceID       string `json:"traceId"`
	ModelVersion  string `json:"modelVersion"`
	Capability    string `json:"capability"`
	Source        string `json:"source"` // "sync" or "async"
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// Submission is the event payload of a transaction queued for asynchronous
// scoring.
type Submission struct {
	AssessmentID string           `json:"assessmentId"`
	TenantID     string           `json:"tenantId"`
	Input        TransactionInput `json:"input"`
	SubmittedAt  time.Time        `json:"submittedAt"`
}

// ScoringFailure is published when an asynchronous submission cannot be
// scored. No verdict is ever guessed for it.
type ScoringFailure struct {
	AssessmentID string    `json:"assessmentId"`
	TenantID     string    `json:"tenantId"`
	Stage        string    `json:"stage"`
	Error        string    `json:"error"`
	Timestamp    time.Time `json:"timestamp"`
}
