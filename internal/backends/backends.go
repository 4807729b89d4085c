// Package backends turns backend configuration into ready embedding providers
// paired with their vector indexes.
package backends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/JS12540/evaluating-embedding-models/internal/backoff"
	"github.com/JS12540/evaluating-embedding-models/internal/config"
	"github.com/JS12540/evaluating-embedding-models/internal/embeddings"
	"github.com/JS12540/evaluating-embedding-models/internal/embeddings/bedrock"
	"github.com/JS12540/evaluating-embedding-models/internal/embeddings/cohere"
	"github.com/JS12540/evaluating-embedding-models/internal/embeddings/gemini"
	"github.com/JS12540/evaluating-embedding-models/internal/embeddings/ollama"
	"github.com/JS12540/evaluating-embedding-models/internal/embeddings/openai"
	"github.com/JS12540/evaluating-embedding-models/internal/observability"
	"github.com/JS12540/evaluating-embedding-models/internal/ratelimit"
	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex"
	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex/pgvector"
	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex/sqlite"
)

// Backend is one embedding model under evaluation together with its index.
type Backend struct {
	Config   config.BackendConfig
	Provider embeddings.Provider
	Index    vectorindex.Index
}

// Name returns the configured backend name.
func (b *Backend) Name() string {
	return b.Config.Name
}

// Deps carries the shared observability handles.
type Deps struct {
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Logger  *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// CheckCredentials reports every configured backend that cannot authenticate.
func CheckCredentials(cfgs []config.BackendConfig) error {
	var missing []string
	for _, b := range cfgs {
		switch b.Type {
		case "openai", "cohere", "gemini":
			if strings.TrimSpace(b.APIKey) == "" {
				missing = append(missing, fmt.Sprintf("%s (%s api_key)", b.Name, b.Type))
			}
		case "bedrock":
			if (b.AccessKeyID == "") != (b.SecretAccessKey == "") {
				missing = append(missing, fmt.Sprintf("%s (bedrock needs both access_key_id and secret_access_key)", b.Name))
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials for backends: %s", strings.Join(missing, ", "))
	}
	return nil
}

// NewProvider builds the raw provider for cfg.
func NewProvider(ctx context.Context, cfg config.BackendConfig) (embeddings.Provider, error) {
	switch cfg.Type {
	case "openai":
		return openai.New(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, Dimension: cfg.Dimension})
	case "cohere":
		return cohere.New(cohere.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, Dimension: cfg.Dimension})
	case "bedrock":
		return bedrock.New(ctx, bedrock.Config{
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Model:           cfg.Model,
			Dimension:       cfg.Dimension,
		})
	case "ollama":
		return ollama.New(ollama.Config{BaseURL: cfg.BaseURL, Model: cfg.Model, Dimension: cfg.Dimension})
	case "gemini":
		return gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model, Dimension: cfg.Dimension})
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
}

// Wrap adds timeouts, retries, rate limiting and metrics to a provider.
func Wrap(inner embeddings.Provider, cfg config.BackendConfig, deps Deps) *embeddings.Resilient {
	return embeddings.NewResilient(inner, embeddings.ResilientConfig{
		Backend:     cfg.Name,
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
		Policy:      backoff.DefaultPolicy(),
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         cfg.Burst,
		},
	},
		embeddings.WithMetrics(deps.Metrics),
		embeddings.WithTracer(deps.Tracer),
		embeddings.WithLogger(deps.logger()),
	)
}

// OpenIndex opens the index holding cfg's vectors.
func OpenIndex(ctx context.Context, idx config.IndexConfig, dir string, cfg config.BackendConfig) (vectorindex.Index, error) {
	switch idx.Type {
	case "", "sqlite":
		return sqlite.New(ctx, sqlite.Config{
			Path:      filepath.Join(dir, cfg.Name+".db"),
			Dimension: cfg.Dimension,
		})
	case "postgres":
		return pgvector.New(ctx, pgvector.Config{
			DSN:       idx.DSN,
			Backend:   cfg.Name,
			Dimension: cfg.Dimension,
		})
	case "memory":
		return vectorindex.NewMemory(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown index type %q", idx.Type)
	}
}

// Open builds every selected backend. Credentials are checked for all of them
// before anything is opened.
func Open(ctx context.Context, cfg *config.Config, selected []config.BackendConfig, deps Deps) ([]*Backend, error) {
	if len(selected) == 0 {
		return nil, errors.New("no backends selected")
	}
	if err := CheckCredentials(selected); err != nil {
		return nil, err
	}

	opened := make([]*Backend, 0, len(selected))
	for _, bc := range selected {
		inner, err := NewProvider(ctx, bc)
		if err != nil {
			CloseAll(opened)
			return nil, fmt.Errorf("backend %s: %w", bc.Name, err)
		}
		index, err := OpenIndex(ctx, cfg.Index, cfg.Paths.IndexDir, bc)
		if err != nil {
			CloseAll(opened)
			return nil, fmt.Errorf("backend %s: open index: %w", bc.Name, err)
		}
		opened = append(opened, &Backend{
			Config:   bc,
			Provider: Wrap(inner, bc, deps),
			Index:    index,
		})
		deps.logger().Debug("backend ready",
			"backend", bc.Name,
			"type", bc.Type,
			"model", bc.Model,
			"index", cfg.Index.Type,
		)
	}
	return opened, nil
}

// CloseAll closes every backend's index.
func CloseAll(all []*Backend) error {
	var errs []error
	for _, b := range all {
		if b == nil || b.Index == nil {
			continue
		}
		if err := b.Index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s index: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}
