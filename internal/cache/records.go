package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// AssessmentKey is the key of an assessment within its tenant's scope.
func AssessmentKey(id string) string {
	return "assessment:" + id
}

// ArtifactKey is the key of a model artifact within CacheScopeModel.
func ArtifactKey(repo, filename string) string {
	return "artifact:" + repo + "/" + filename
}

// PutAssessment caches a under its tenant for ttl.
func PutAssessment(ctx context.Context, c domain.Cache, a *domain.Assessment, ttl time.Duration) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode assessment %s: %w", a.ID, err)
	}
	return c.Set(ctx, a.TenantID, AssessmentKey(a.ID), data, ttl)
}

// GetAssessment returns the cached assessment, or nil on a miss. An entry
// that no longer decodes is deleted and reported as a miss.
func GetAssessment(ctx context.Context, c domain.Cache, tenantID, id string) (*domain.Assessment, error) {
	key := AssessmentKey(id)
	data, err := c.Get(ctx, tenantID, key)
	if err != nil || data == nil {
		return nil, err
	}

	var a domain.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		slog.Warn("discarding corrupt cached assessment",
			"assessment_id", id,
			"tenant_id", tenantID,
			"error", err,
		)
		_ = c.Delete(ctx, tenantID, key)
		return nil, nil
	}
	return &a, nil
}
