package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/opensource-finance/fraudguard/internal/cache"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/retry"
)

// Artifact sources.
const (
	SourceCache  = "cache"
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// maxArtifactBytes bounds a downloaded artifact.
const maxArtifactBytes = 16 << 20

// Info describes the artifact a classifier was built from.
type Info struct {
	Version    string `json:"version"`
	Format     string `json:"format"`
	Capability string `json:"capability"`
	Source     string `json:"source"`
	Location   string `json:"location"`
	Checksum   string `json:"checksum"`
}

// Repository loads the classifier once at startup: artifact cache first,
// then the remote hub with retries, then the local file.
type Repository struct {
	cfg      domain.ModelConfig
	cache    domain.Cache
	client   *http.Client
	maxBytes int64
}

// NewRepository creates a model repository. artifacts and client may be nil.
func NewRepository(cfg domain.ModelConfig, artifacts domain.Cache, client *http.Client) *Repository {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	if cfg.RemoteAttempts <= 0 {
		cfg.RemoteAttempts = 1
	}
	return &Repository{cfg: cfg, cache: artifacts, client: client, maxBytes: maxArtifactBytes}
}

// Load returns the resolved classifier and a description of its artifact.
// Errors wrap domain.ErrModelLoad.
func (r *Repository) Load(ctx context.Context) (domain.Classifier, *Info, error) {
	var causes []error

	if r.cfg.HFRepo != "" {
		url := r.RemoteURL()

		if data := r.fromCache(ctx); data != nil {
			clf, info, err := build(data, SourceCache, url)
			if err == nil {
				return clf, info, nil
			}
			slog.Warn("cached model artifact is unusable", "error", err)
			_ = r.cache.Delete(ctx, domain.CacheScopeModel, r.cacheKey())
		}

		data, err := r.fetchRemote(ctx, url)
		if err == nil {
			clf, info, buildErr := build(data, SourceRemote, url)
			if buildErr == nil {
				r.toCache(ctx, data)
				return clf, info, nil
			}
			err = buildErr
		}
		slog.Warn("remote model loading failed, trying local file",
			"url", url,
			"error", err,
		)
		causes = append(causes, fmt.Errorf("remote %s: %w", url, err))
	}

	if r.cfg.LocalPath != "" {
		data, err := os.ReadFile(r.cfg.LocalPath)
		if err == nil {
			clf, info, buildErr := build(data, SourceLocal, r.cfg.LocalPath)
			if buildErr == nil {
				return clf, info, nil
			}
			err = buildErr
		}
		causes = append(causes, fmt.Errorf("local %s: %w", r.cfg.LocalPath, err))
	}

	if len(causes) == 0 {
		return nil, nil, fmt.Errorf("%w: no model source configured", domain.ErrModelLoad)
	}
	return nil, nil, fmt.Errorf("%w: %w", domain.ErrModelLoad, errors.Join(causes...))
}

// RemoteURL is the hub download URL of the configured artifact.
func (r *Repository) RemoteURL() string {
	base := strings.TrimRight(r.cfg.HFBaseURL, "/")
	if base == "" {
		base = "https://huggingface.co"
	}
	return fmt.Sprintf("%s/%s/resolve/main/%s", base, r.cfg.HFRepo, r.cfg.Filename)
}

func (r *Repository) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	var data []byte

	err := retry.Do(ctx, r.cfg.RemoteAttempts, r.cfg.RetryDelay, func(attempt int) error {
		body, err := r.download(ctx, url)
		if err != nil {
			slog.Debug("model download attempt failed",
				"attempt", attempt,
				"max_attempts", r.cfg.RemoteAttempts,
				"error", err,
			)
			return err
		}
		data = body
		return nil
	})
	return data, err
}

func (r *Repository) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if token := os.Getenv("HF_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, retry.Permanent(fmt.Errorf("artifact exceeds %d bytes", r.maxBytes))
	}
	return data, nil
}

func (r *Repository) cacheKey() string {
	return cache.ArtifactKey(r.cfg.HFRepo, r.cfg.Filename)
}

func (r *Repository) fromCache(ctx context.Context) []byte {
	if r.cache == nil {
		return nil
	}
	data, err := r.cache.Get(ctx, domain.CacheScopeModel, r.cacheKey())
	if err != nil {
		slog.Warn("model cache lookup failed", "error", err)
		return nil
	}
	return data
}

func (r *Repository) toCache(ctx context.Context, data []byte) {
	if r.cache == nil || r.cfg.CacheTTL <= 0 {
		return
	}
	if err := r.cache.Set(ctx, domain.CacheScopeModel, r.cacheKey(), data, r.cfg.CacheTTL); err != nil {
		slog.Warn("failed to cache model artifact", "error", err)
	}
}

func build(data []byte, source, location string) (domain.Classifier, *Info, error) {
	m, artifact, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	clf, err := Resolve(m)
	if err != nil {
		return nil, nil, err
	}

	sum := sha256.Sum256(data)
	return clf, &Info{
		Version:    artifact.Version,
		Format:     artifact.Format,
		Capability: clf.Capability(),
		Source:     source,
		Location:   location,
		Checksum:   hex.EncodeToString(sum[:]),
	}, nil
}
