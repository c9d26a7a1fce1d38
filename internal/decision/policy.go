// Package decision turns a fraud probability into a binary verdict.
package decision

import (
	"fmt"
	"math"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// DefaultThreshold is the probability at or above which a transaction is FRAUD.
const DefaultThreshold = domain.DefaultThreshold

// Policy applies a closed lower-bound threshold: probability >= Threshold
// is FRAUD.
type Policy struct {
	Threshold float64
}

// NewPolicy creates a policy with the given threshold in [0,1].
func NewPolicy(threshold float64) (*Policy, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be within [0,1], got %v", threshold)
	}
	return &Policy{Threshold: threshold}, nil
}

// DefaultPolicy returns the recall-biased policy (threshold 0.3).
func DefaultPolicy() *Policy {
	return &Policy{Threshold: DefaultThreshold}
}

// Decide returns the verdict for probability under this policy.
func (p *Policy) Decide(probability float64) domain.Verdict {
	return Decide(probability, p.Threshold)
}

// Decide returns FRAUD if probability >= threshold, else SAFE.
// A probability exactly on the threshold is always FRAUD.
func Decide(probability, threshold float64) domain.Verdict {
	if probability >= threshold {
		return domain.VerdictFraud
	}
	return domain.VerdictSafe
}
