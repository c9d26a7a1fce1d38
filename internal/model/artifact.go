// Package model loads classifier artifacts and resolves them into the
// capability the scoring pipeline consumes.
package model

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Artifact formats.
const (
	FormatLogistic = "logistic"
	FormatStumps   = "stumps"
)

// Artifact is the on-disk (JSON) representation of a trained classifier.
type Artifact struct {
	Format  string `json:"format"`
	Version string `json:"version"`

	// Features, when present, must equal domain.FeatureNames.
	Features []string `json:"features,omitempty"`

	Logistic *LogisticParams `json:"logistic,omitempty"`
	Stumps   *StumpParams    `json:"stumps,omitempty"`
}

// LogisticParams describe a standardized logistic regression:
// p = sigmoid(bias + sum(w[i] * (x[i]-mean[i]) / scale[i])).
type LogisticParams struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means,omitempty"`
	Scales  []float64 `json:"scales,omitempty"`
}

// StumpParams describe a weighted vote of decision stumps. The model only
// produces hard labels.
type StumpParams struct {
	Stumps []Stump `json:"stumps"`

	// Cutoff is the vote total at or above which the label is 1.
	Cutoff float64 `json:"cutoff"`
}

// Stump votes Weight when feature Feature is strictly above Threshold.
type Stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Weight    float64 `json:"weight"`
}

// Parse decodes an artifact and builds the model it describes. The returned
// value implements domain.ProbabilityClassifier or domain.LabelClassifier.
func Parse(data []byte) (any, *Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, nil, fmt.Errorf("invalid artifact JSON: %w", err)
	}

	if err := a.checkFeatures(); err != nil {
		return nil, nil, err
	}

	switch a.Format {
	case FormatLogistic:
		m, err := newLogisticModel(a.Logistic)
		if err != nil {
			return nil, nil, err
		}
		return m, &a, nil

	case FormatStumps:
		m, err := newStumpModel(a.Stumps)
		if err != nil {
			return nil, nil, err
		}
		return m, &a, nil

	default:
		return nil, nil, fmt.Errorf("unsupported artifact format: %q", a.Format)
	}
}

func (a *Artifact) checkFeatures() error {
	if len(a.Features) == 0 {
		return nil
	}
	if len(a.Features) != domain.FeatureCount {
		return fmt.Errorf("artifact declares %d features, schema has %d", len(a.Features), domain.FeatureCount)
	}
	for i, name := range a.Features {
		if name != domain.FeatureNames[i] {
			return fmt.Errorf("artifact feature %d is %q, schema expects %q", i, name, domain.FeatureNames[i])
		}
	}
	return nil
}

// LogisticModel is a probability-capable classifier.
type LogisticModel struct {
	weights domain.FeatureVector
	means   domain.FeatureVector
	scales  domain.FeatureVector
	bias    float64
}

func newLogisticModel(p *LogisticParams) (*LogisticModel, error) {
	if p == nil {
		return nil, fmt.Errorf("logistic artifact is missing parameters")
	}
	if len(p.Weights) != domain.FeatureCount {
		return nil, fmt.Errorf("logistic artifact has %d weights, want %d", len(p.Weights), domain.FeatureCount)
	}

	m := &LogisticModel{bias: p.Bias}
	copy(m.weights[:], p.Weights)

	if len(p.Means) > 0 {
		if len(p.Means) != domain.FeatureCount {
			return nil, fmt.Errorf("logistic artifact has %d means, want %d", len(p.Means), domain.FeatureCount)
		}
		copy(m.means[:], p.Means)
	}

	for i := range m.scales {
		m.scales[i] = 1
	}
	if len(p.Scales) > 0 {
		if len(p.Scales) != domain.FeatureCount {
			return nil, fmt.Errorf("logistic artifact has %d scales, want %d", len(p.Scales), domain.FeatureCount)
		}
		for i, s := range p.Scales {
			if s == 0 {
				return nil, fmt.Errorf("logistic artifact scale %d is zero", i)
			}
			m.scales[i] = s
		}
	}

	return m, nil
}

// PredictProbability implements domain.ProbabilityClassifier.
func (m *LogisticModel) PredictProbability(v domain.FeatureVector) (float64, error) {
	z := m.bias
	for i, x := range v {
		z += m.weights[i] * (x - m.means[i]) / m.scales[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// StumpModel is a label-only classifier.
type StumpModel struct {
	stumps []Stump
	cutoff float64
}

func newStumpModel(p *StumpParams) (*StumpModel, error) {
	if p == nil || len(p.Stumps) == 0 {
		return nil, fmt.Errorf("stumps artifact has no stumps")
	}
	for i, s := range p.Stumps {
		if s.Feature < 0 || s.Feature >= domain.FeatureCount {
			return nil, fmt.Errorf("stump %d references feature %d outside the schema", i, s.Feature)
		}
	}
	return &StumpModel{
		stumps: append([]Stump(nil), p.Stumps...),
		cutoff: p.Cutoff,
	}, nil
}

// PredictLabel implements domain.LabelClassifier.
func (m *StumpModel) PredictLabel(v domain.FeatureVector) (int, error) {
	var vote float64
	for _, s := range m.stumps {
		if v[s.Feature] > s.Threshold {
			vote += s.Weight
		}
	}
	if vote >= m.cutoff {
		return 1, nil
	}
	return 0, nil
}
