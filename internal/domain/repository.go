// Package domain defines the core interfaces and types for FraudGuard.
package domain

import (
	"context"
	"time"
)

// Repository persists assessments for audit and retrieval.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	SaveAssessment(ctx context.Context, tenantID string, a *Assessment) error
	GetAssessment(ctx context.Context, tenantID string, id string) (*Assessment, error)

	// ListAssessments returns the most recent assessments first.
	ListAssessments(ctx context.Context, tenantID string, limit int) ([]*Assessment, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
