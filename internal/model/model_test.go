package model

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/fraudguard/internal/cache"
	"github.com/opensource-finance/fraudguard/internal/domain"
)

const logisticArtifact = `{
	"format": "logistic",
	"version": "test-1",
	"features": ["step","type","amount","oldbalanceOrg","newbalanceOrig","oldbalanceDest","newbalanceDest","isFlaggedFraud"],
	"logistic": {
		"weights": [0, 0, 1, 0, 0, 0, 0, 0],
		"bias": -2,
		"scales": [1, 1, 100000, 1, 1, 1, 1, 1]
	}
}`

const stumpArtifact = `{
	"format": "stumps",
	"version": "stumps-1",
	"stumps": {
		"stumps": [
			{"feature": 2, "threshold": 200000, "weight": 1},
			{"feature": 1, "threshold": 3, "weight": 1}
		],
		"cutoff": 2
	}
}`

func TestParseLogistic(t *testing.T) {
	m, artifact, err := Parse([]byte(logisticArtifact))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if artifact.Version != "test-1" {
		t.Errorf("expected version test-1, got %s", artifact.Version)
	}

	clf, ok := m.(domain.ProbabilityClassifier)
	if !ok {
		t.Fatalf("expected probability classifier, got %T", m)
	}

	// amount 200,000 -> z = -2 + 2 = 0 -> p = 0.5
	p, _ := clf.PredictProbability(domain.FeatureVector{1, 4, 200_000, 0, 0, 0, 0, 0})
	if p != 0.5 {
		t.Errorf("expected probability 0.5, got %v", p)
	}
}

func TestParseStumps(t *testing.T) {
	m, _, err := Parse([]byte(stumpArtifact))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	clf, ok := m.(domain.LabelClassifier)
	if !ok {
		t.Fatalf("expected label classifier, got %T", m)
	}
	if _, isProb := m.(domain.ProbabilityClassifier); isProb {
		t.Error("stump model must not offer probabilities")
	}

	label, _ := clf.PredictLabel(domain.FeatureVector{1, 4, 250_000, 0, 0, 0, 0, 0})
	if label != 1 {
		t.Errorf("expected label 1, got %d", label)
	}
	label, _ = clf.PredictLabel(domain.FeatureVector{1, 3, 250_000, 0, 0, 0, 0, 0})
	if label != 0 {
		t.Errorf("expected label 0, got %d", label)
	}
}

func TestParseRejectsBadArtifacts(t *testing.T) {
	tests := map[string]string{
		"NotJSON":         `nope`,
		"UnknownFormat":   `{"format":"xgboost"}`,
		"MissingParams":   `{"format":"logistic"}`,
		"ShortWeights":    `{"format":"logistic","logistic":{"weights":[1,2]}}`,
		"ZeroScale":       `{"format":"logistic","logistic":{"weights":[0,0,0,0,0,0,0,0],"scales":[0,1,1,1,1,1,1,1]}}`,
		"FeatureOrder":    `{"format":"logistic","features":["type","step","amount","oldbalanceOrg","newbalanceOrig","oldbalanceDest","newbalanceDest","isFlaggedFraud"],"logistic":{"weights":[0,0,0,0,0,0,0,0]}}`,
		"NoStumps":        `{"format":"stumps","stumps":{"stumps":[]}}`,
		"StumpOutOfRange": `{"format":"stumps","stumps":{"stumps":[{"feature":8,"threshold":0,"weight":1}]}}`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Parse([]byte(data)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

type labelOnly struct{ label int }

func (l labelOnly) PredictLabel(domain.FeatureVector) (int, error) { return l.label, nil }

type both struct{}

func (both) PredictProbability(domain.FeatureVector) (float64, error) { return 0.42, nil }
func (both) PredictLabel(domain.FeatureVector) (int, error)           { return 1, nil }

func TestResolve(t *testing.T) {
	t.Run("PrefersProbability", func(t *testing.T) {
		clf, err := Resolve(both{})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if clf.Capability() != CapabilityProbability {
			t.Errorf("expected probability capability, got %s", clf.Capability())
		}
		p, _ := clf.Probability(domain.FeatureVector{})
		if p != 0.42 {
			t.Errorf("expected 0.42, got %v", p)
		}
	})

	t.Run("FallsBackToLabel", func(t *testing.T) {
		clf, err := Resolve(labelOnly{label: 1})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if clf.Capability() != CapabilityLabel {
			t.Errorf("expected label capability, got %s", clf.Capability())
		}
		p, _ := clf.Probability(domain.FeatureVector{})
		if p != 1.0 {
			t.Errorf("expected 1.0 for label 1, got %v", p)
		}

		clf, _ = Resolve(labelOnly{label: 0})
		p, _ = clf.Probability(domain.FeatureVector{})
		if p != 0.0 {
			t.Errorf("expected 0.0 for label 0, got %v", p)
		}
	})

	t.Run("RejectsBadLabel", func(t *testing.T) {
		clf, _ := Resolve(labelOnly{label: 7})
		if _, err := clf.Probability(domain.FeatureVector{}); err == nil {
			t.Error("expected error for label outside {0,1}")
		}
	})

	t.Run("NoCapability", func(t *testing.T) {
		if _, err := Resolve(struct{}{}); !errors.Is(err, domain.ErrClassifierUnavailable) {
			t.Errorf("expected ErrClassifierUnavailable, got %v", err)
		}
		if _, err := Resolve(nil); !errors.Is(err, domain.ErrClassifierUnavailable) {
			t.Errorf("expected ErrClassifierUnavailable for nil, got %v", err)
		}
	})
}

func testConfig(baseURL, localPath string) domain.ModelConfig {
	return domain.ModelConfig{
		HFRepo:         "acme/fraud",
		HFBaseURL:      baseURL,
		Filename:       "fraud_model.json",
		LocalPath:      localPath,
		RemoteAttempts: 3,
		RetryDelay:     time.Millisecond,
		FetchTimeout:   time.Second,
		CacheTTL:       time.Minute,
	}
}

func writeLocal(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fraud_model.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	return path
}

func TestRepositoryLoadRemote(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/acme/fraud/resolve/main/fraud_model.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(logisticArtifact))
	}))
	defer srv.Close()

	lru := cache.NewLRUCache(10)
	repo := NewRepository(testConfig(srv.URL, ""), lru, srv.Client())

	clf, info, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if info.Source != SourceRemote {
		t.Errorf("expected remote source, got %s", info.Source)
	}
	if info.Capability != CapabilityProbability || clf.Capability() != CapabilityProbability {
		t.Errorf("expected probability capability, got %s", info.Capability)
	}
	if info.Checksum == "" {
		t.Error("expected checksum")
	}

	// Second load is served from the artifact cache.
	_, info, err = repo.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if info.Source != SourceCache {
		t.Errorf("expected cache source, got %s", info.Source)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 remote hit, got %d", hits.Load())
	}
}

func TestRepositoryRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(stumpArtifact))
	}))
	defer srv.Close()

	repo := NewRepository(testConfig(srv.URL, ""), nil, srv.Client())

	clf, info, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	if clf.Capability() != CapabilityLabel || info.Version != "stumps-1" {
		t.Errorf("unexpected model: %+v", info)
	}
}

func TestRepositoryFallsBackToLocal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	path := writeLocal(t, logisticArtifact)
	repo := NewRepository(testConfig(srv.URL, path), nil, srv.Client())

	_, info, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if info.Source != SourceLocal {
		t.Errorf("expected local source, got %s", info.Source)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 404 not to be retried, got %d attempts", hits.Load())
	}
}

func TestRepositoryRejectsOversizedArtifact(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(logisticArtifact))
	}))
	defer srv.Close()

	repo := NewRepository(testConfig(srv.URL, ""), nil, srv.Client())
	repo.maxBytes = int64(len(logisticArtifact) - 1)

	_, err := repo.download(context.Background(), repo.RemoteURL())
	if err == nil || !strings.Contains(err.Error(), "artifact exceeds") {
		t.Fatalf("expected size error, got %v", err)
	}

	_, _, err = repo.Load(context.Background())
	if !errors.Is(err, domain.ErrModelLoad) {
		t.Errorf("expected ErrModelLoad, got %v", err)
	}
	if strings.Contains(err.Error(), "invalid artifact") {
		t.Errorf("oversized artifact reported as malformed: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected size error not to be retried, got %d requests", hits.Load())
	}

	repo.maxBytes = int64(len(logisticArtifact))
	if _, _, err := repo.Load(context.Background()); err != nil {
		t.Errorf("artifact at the limit should load: %v", err)
	}
}

func TestRepositoryLocalOnly(t *testing.T) {
	cfg := testConfig("", writeLocal(t, stumpArtifact))
	cfg.HFRepo = ""

	_, info, err := NewRepository(cfg, nil, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if info.Source != SourceLocal || info.Capability != CapabilityLabel {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestRepositoryLoadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	t.Run("AllSourcesFail", func(t *testing.T) {
		cfg := testConfig(srv.URL, filepath.Join(t.TempDir(), "missing.json"))
		_, _, err := NewRepository(cfg, nil, srv.Client()).Load(context.Background())
		if !errors.Is(err, domain.ErrModelLoad) {
			t.Errorf("expected ErrModelLoad, got %v", err)
		}
	})

	t.Run("CorruptLocal", func(t *testing.T) {
		cfg := testConfig("", writeLocal(t, `{"format":"logistic"}`))
		cfg.HFRepo = ""
		_, _, err := NewRepository(cfg, nil, nil).Load(context.Background())
		if !errors.Is(err, domain.ErrModelLoad) {
			t.Errorf("expected ErrModelLoad, got %v", err)
		}
	})

	t.Run("NoSources", func(t *testing.T) {
		_, _, err := NewRepository(domain.ModelConfig{}, nil, nil).Load(context.Background())
		if !errors.Is(err, domain.ErrModelLoad) {
			t.Errorf("expected ErrModelLoad, got %v", err)
		}
	})
}

func TestShippedArtifact(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "model", "fraud_model.json"))
	if err != nil {
		t.Fatalf("failed to read shipped artifact: %v", err)
	}

	m, _, err := Parse(data)
	if err != nil {
		t.Fatalf("shipped artifact does not parse: %v", err)
	}
	clf, err := Resolve(m)
	if err != nil {
		t.Fatalf("shipped artifact does not resolve: %v", err)
	}

	drained, _ := clf.Probability(domain.FeatureVector{1, 4, 1_810_000, 1_810_000, 0, 0, 0, 0})
	routine, _ := clf.Probability(domain.FeatureVector{1, 3, 500, 10_000, 9_500, 2_000, 2_500, 0})
	if drained <= routine {
		t.Errorf("expected drained transfer (%v) to score above routine payment (%v)", drained, routine)
	}
}
