package model

import (
	"fmt"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Capability names.
const (
	CapabilityProbability = "probability"
	CapabilityLabel       = "label"
)

// Resolve picks the capability a loaded model offers: probability scoring
// when available, hard labels otherwise. It runs once at load time so the
// pipeline never re-inspects the model per request.
func Resolve(m any) (domain.Classifier, error) {
	switch c := m.(type) {
	case nil:
		return nil, fmt.Errorf("%w: no model", domain.ErrClassifierUnavailable)
	case domain.ProbabilityClassifier:
		return probabilityClassifier{c}, nil
	case domain.LabelClassifier:
		return labelClassifier{c}, nil
	default:
		return nil, fmt.Errorf("%w: %T offers neither probability nor label prediction", domain.ErrClassifierUnavailable, m)
	}
}

type probabilityClassifier struct {
	c domain.ProbabilityClassifier
}

func (p probabilityClassifier) Probability(v domain.FeatureVector) (float64, error) {
	return p.c.PredictProbability(v)
}

func (p probabilityClassifier) Capability() string { return CapabilityProbability }

type labelClassifier struct {
	c domain.LabelClassifier
}

// Probability maps label 1 to 1.0 and label 0 to 0.0.
func (l labelClassifier) Probability(v domain.FeatureVector) (float64, error) {
	label, err := l.c.PredictLabel(v)
	if err != nil {
		return 0, err
	}
	switch label {
	case 1:
		return 1.0, nil
	case 0:
		return 0.0, nil
	default:
		return 0, fmt.Errorf("label classifier returned %d, want 0 or 1", label)
	}
}

func (l labelClassifier) Capability() string { return CapabilityLabel }
