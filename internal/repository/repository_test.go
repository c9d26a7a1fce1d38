package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "fraudguard-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleAssessment(id string, ts time.Time) *domain.Assessment {
	return &domain.Assessment{
		ID: id,
		Input: domain.TransactionInput{
			Step:           1,
			Type:           domain.TxTransfer,
			Amount:         1_810_000,
			OldBalanceOrg:  1_810_000,
			NewBalanceOrig: 0,
		},
		Outcome: domain.ScoringOutcome{
			Probability: 0.97,
			Verdict:     domain.VerdictFraud,
			Rationale:   []string{"Large TRANSFER of $1,810,000", "Account fully emptied"},
		},
		Threshold: 0.3,
		Timestamp: ts,
		Metadata: domain.AssessmentMetadata{
			TraceID:      "trace-001",
			ModelVersion: "test-1",
			Capability:   "probability",
			Source:       "sync",
		},
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetAssessment", func(t *testing.T) {
		a := sampleAssessment("asm-001", time.Now().UTC().Truncate(time.Millisecond))

		if err := repo.SaveAssessment(ctx, tenantID, a); err != nil {
			t.Fatalf("SaveAssessment failed: %v", err)
		}

		retrieved, err := repo.GetAssessment(ctx, tenantID, a.ID)
		if err != nil {
			t.Fatalf("GetAssessment failed: %v", err)
		}

		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
		if retrieved.Input != a.Input {
			t.Errorf("expected input %+v, got %+v", a.Input, retrieved.Input)
		}
		if !reflect.DeepEqual(retrieved.Outcome, a.Outcome) {
			t.Errorf("expected outcome %+v, got %+v", a.Outcome, retrieved.Outcome)
		}
		if retrieved.Metadata != a.Metadata {
			t.Errorf("expected metadata %+v, got %+v", a.Metadata, retrieved.Metadata)
		}
		if !retrieved.Timestamp.Equal(a.Timestamp) {
			t.Errorf("expected timestamp %v, got %v", a.Timestamp, retrieved.Timestamp)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_, err := repo.GetAssessment(ctx, "tenant-002", "asm-001")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := repo.SaveAssessment(ctx, "", sampleAssessment("x", time.Now())); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.GetAssessment(ctx, "", "asm-001"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.ListAssessments(ctx, "", 10); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("RequiresID", func(t *testing.T) {
		if err := repo.SaveAssessment(ctx, tenantID, sampleAssessment("", time.Now())); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		if err := repo.SaveAssessment(ctx, tenantID, sampleAssessment("asm-001", time.Now())); err == nil {
			t.Error("expected error for duplicate assessment ID")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetAssessment(ctx, tenantID, "nonexistent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestListAssessments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a := sampleAssessment(fmt.Sprintf("asm-%03d", i), base.Add(time.Duration(i)*time.Minute))
		if err := repo.SaveAssessment(ctx, "tenant-a", a); err != nil {
			t.Fatalf("SaveAssessment failed: %v", err)
		}
	}
	if err := repo.SaveAssessment(ctx, "tenant-b", sampleAssessment("asm-b", base)); err != nil {
		t.Fatalf("SaveAssessment failed: %v", err)
	}

	t.Run("NewestFirst", func(t *testing.T) {
		list, err := repo.ListAssessments(ctx, "tenant-a", 3)
		if err != nil {
			t.Fatalf("ListAssessments failed: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 assessments, got %d", len(list))
		}
		want := []string{"asm-004", "asm-003", "asm-002"}
		for i, a := range list {
			if a.ID != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], a.ID)
			}
		}
	})

	t.Run("DefaultLimit", func(t *testing.T) {
		list, err := repo.ListAssessments(ctx, "tenant-a", 0)
		if err != nil {
			t.Fatalf("ListAssessments failed: %v", err)
		}
		if len(list) != 5 {
			t.Errorf("expected 5 assessments, got %d", len(list))
		}
	})

	t.Run("EmptyTenant", func(t *testing.T) {
		list, err := repo.ListAssessments(ctx, "tenant-z", 10)
		if err != nil {
			t.Fatalf("ListAssessments failed: %v", err)
		}
		if list == nil || len(list) != 0 {
			t.Errorf("expected empty non-nil list, got %v", list)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}

	sqlite := &SQLRepository{driver: "sqlite"}
	if got := sqlite.rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("sqlite rebind changed the query: %q", got)
	}
}

func TestDSN(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{PostgresUser: "fg", PostgresPassword: "secret"})
	for _, want := range []string{"host=localhost", "port=5432", "dbname=fraudguard", "sslmode=disable", "user=fg"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("postgres DSN %q missing %q", dsn, want)
		}
	}

	dsn, err := sqliteDSN(filepath.Join(t.TempDir(), "nested", "audit.db"))
	if err != nil {
		t.Fatalf("sqliteDSN failed: %v", err)
	}
	if !strings.Contains(dsn, "_pragma=journal_mode(WAL)") || !strings.HasPrefix(dsn, "file:") {
		t.Errorf("unexpected sqlite DSN %q", dsn)
	}
}
