// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = domain.ErrInvalidInput
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// DB exposes the connection pool for stats collection.
func (r *SQLRepository) DB() *sql.DB {
	return r.db
}

// SaveAssessment stores an assessment with tenant isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.Assessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: assessment ID is required", ErrInvalidInput)
	}

	input, err := json.Marshal(a.Input)
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	rationale, err := json.Marshal(a.Outcome.Rationale)
	if err != nil {
		return fmt.Errorf("failed to encode rationale: %w", err)
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO assessments (
			id, tenant_id, tx_type, amount, probability, verdict,
			threshold, timestamp, input, rationale, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, string(a.Input.Type), a.Input.Amount,
		a.Outcome.Probability, string(a.Outcome.Verdict),
		a.Threshold, a.Timestamp.UTC(),
		string(input), string(rationale), string(metadata),
	)
	return err
}

const selectAssessment = `
	SELECT id, tenant_id, probability, verdict, threshold, timestamp,
		   input, rationale, metadata
	FROM assessments
`

// GetAssessment retrieves an assessment by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, id string) (*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := selectAssessment + `WHERE tenant_id = ? AND id = ?`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: assessment %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAssessments returns the newest assessments for a tenant. limit is
// clamped to [1, 500]; zero selects the default page of 50.
func (r *SQLRepository) ListAssessments(ctx context.Context, tenantID string, limit int) ([]*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	query := selectAssessment + `WHERE tenant_id = ? ORDER BY timestamp DESC, id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assessments := make([]*domain.Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}

	return assessments, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(s scanner) (*domain.Assessment, error) {
	var a domain.Assessment
	var verdict, input, rationale, metadata string

	if err := s.Scan(
		&a.ID, &a.TenantID, &a.Outcome.Probability, &verdict, &a.Threshold, &a.Timestamp,
		&input, &rationale, &metadata,
	); err != nil {
		return nil, err
	}

	a.Outcome.Verdict = domain.Verdict(verdict)
	if err := json.Unmarshal([]byte(input), &a.Input); err != nil {
		return nil, fmt.Errorf("failed to parse input of assessment %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(rationale), &a.Outcome.Rationale); err != nil {
		return nil, fmt.Errorf("failed to parse rationale of assessment %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata of assessment %s: %w", a.ID, err)
	}
	a.Timestamp = a.Timestamp.UTC()

	return &a, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != driverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
