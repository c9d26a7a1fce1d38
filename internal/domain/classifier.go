package domain

// ProbabilityClassifier returns the probability of the fraud class.
type ProbabilityClassifier interface {
	PredictProbability(v FeatureVector) (float64, error)
}

// LabelClassifier returns a hard 0/1 label. It is the fallback capability
// for models that cannot produce probabilities.
type LabelClassifier interface {
	PredictLabel(v FeatureVector) (int, error)
}

// Classifier is the capability the scoring pipeline consumes: one of the two
// variants above, resolved once when the model is loaded.
type Classifier interface {
	// Probability returns a fraud probability in [0,1].
	Probability(v FeatureVector) (float64, error)

	// Capability names the variant in use ("probability" or "label").
	Capability() string
}
