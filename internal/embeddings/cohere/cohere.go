// Package cohere provides an embedding provider using Cohere's v2 embed API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JS12540/evaluating-embedding-models/internal/backoff"
	"github.com/JS12540/evaluating-embedding-models/internal/embeddings"
)

const (
	defaultBaseURL = "https://api.cohere.com"
	defaultModel   = "embed-v4.0"

	inputTypeDocument = "search_document"
	inputTypeQuery    = "search_query"
)

// Provider implements embeddings.Provider using Cohere.
type Provider struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

var (
	_ embeddings.Provider      = (*Provider)(nil)
	_ embeddings.QueryEmbedder = (*Provider)(nil)
)

// Config contains configuration for the Cohere provider.
type Config struct {
	APIKey  string
	BaseURL string // Default: https://api.cohere.com
	Model   string // embed-v4.0, embed-english-v3.0, embed-multilingual-v3.0

	// Dimension requests a shorter embed-v4.0 output when set.
	Dimension int

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// New creates a new Cohere embedding provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Cohere API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Provider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    client,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "cohere"
}

// Dimension returns the embedding dimension for the configured model.
func (p *Provider) Dimension() int {
	if p.dimension > 0 {
		return p.dimension
	}
	switch {
	case strings.HasPrefix(p.model, "embed-v4"):
		return 1536
	case strings.Contains(p.model, "light"):
		return 384
	default:
		return 1024
	}
}

// MaxBatchSize returns the maximum number of texts per batch.
func (p *Provider) MaxBatchSize() int {
	return 96
}

// Embed generates a document embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embeddings.First(p.embed(ctx, []string{text}, inputTypeDocument))
}

// EmbedBatch generates document embeddings for multiple texts.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, texts, inputTypeDocument)
}

// EmbedQuery generates a search-query embedding.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embeddings.First(p.embed(ctx, []string{text}, inputTypeQuery))
}

type embedRequest struct {
	Model           string   `json:"model"`
	Texts           []string `json:"texts"`
	InputType       string   `json:"input_type"`
	EmbeddingTypes  []string `json:"embedding_types"`
	OutputDimension int      `json:"output_dimension,omitempty"`
	Truncate        string   `json:"truncate,omitempty"`
}

type embedResponse struct {
	ID         string `json:"id"`
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

func (p *Provider) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	req := embedRequest{
		Model:          p.model,
		Texts:          texts,
		InputType:      inputType,
		EmbeddingTypes: []string{"float"},
		Truncate:       "END",
	}
	if p.dimension > 0 && strings.HasPrefix(p.model, "embed-v4") {
		req.OutputDimension = p.dimension
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &backoff.StatusError{Provider: "cohere", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embeddings.Float) != len(texts) {
		return nil, fmt.Errorf("cohere returned %d embeddings for %d texts", len(result.Embeddings.Float), len(texts))
	}
	return result.Embeddings.Float, nil
}
