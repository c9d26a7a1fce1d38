package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

func TestObserveScore(t *testing.T) {
	c := New()

	c.ObserveScore(domain.ScoringOutcome{
		Probability: 0.91,
		Verdict:     domain.VerdictFraud,
		Rationale:   []string{"Large TRANSFER of $1,810,000", "Account fully emptied"},
	}, "sync", time.Millisecond)
	c.ObserveScore(domain.ScoringOutcome{
		Probability: 0.02,
		Verdict:     domain.VerdictSafe,
		Rationale:   []string{"Transaction follows normal patterns"},
	}, "sync", time.Millisecond)

	if got := testutil.ToFloat64(c.scoresTotal.WithLabelValues("FRAUD", "sync")); got != 1 {
		t.Errorf("expected 1 FRAUD score, got %v", got)
	}
	if got := testutil.ToFloat64(c.scoresTotal.WithLabelValues("SAFE", "sync")); got != 1 {
		t.Errorf("expected 1 SAFE score, got %v", got)
	}
	if got := testutil.ToFloat64(c.rulesMatched.WithLabelValues("Large outflow")); got != 1 {
		t.Errorf("expected large outflow reason to be bucketed, got %v", got)
	}
	if got := testutil.CollectAndCount(c.probability); got != 1 {
		t.Errorf("expected 1 probability histogram, got %d", got)
	}
}

func TestObserveFailure(t *testing.T) {
	c := New()
	c.ObserveFailure("Encoded")
	c.ObserveFailure("Encoded")
	c.ObserveFailure("Scored")

	if got := testutil.ToFloat64(c.failuresTotal.WithLabelValues("Encoded")); got != 2 {
		t.Errorf("expected 2 encode failures, got %v", got)
	}
	if got := testutil.ToFloat64(c.failuresTotal.WithLabelValues("Scored")); got != 1 {
		t.Errorf("expected 1 classifier failure, got %v", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector

	// All observers are no-ops on a nil collector.
	c.ObserveScore(domain.ScoringOutcome{}, "sync", 0)
	c.ObserveFailure("Scored")
	c.ObserveHTTP("GET", "/health", 200, 0)
	c.ObserveAsyncQueued()
	c.SetModel("v", "probability", "local")
	c.SetCacheHitRatio(0.5)
}

func TestStatusBucket(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		201: "2xx",
		404: "4xx",
		503: "5xx",
		42:  "42",
	}
	for code, want := range tests {
		if got := statusBucket(code); got != want {
			t.Errorf("statusBucket(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestHandler(t *testing.T) {
	c := New()
	c.SetModel("v1", "probability", "remote")
	c.ObserveHTTP("POST", "/score", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`fraudguard_model_info{capability="probability",source="remote",version="v1"} 1`,
		`fraudguard_http_requests_total{method="POST",path="/score",status="2xx"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected exposition to contain %q", want)
		}
	}
}
