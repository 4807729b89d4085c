// Package gemini provides an embedding provider backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/JS12540/evaluating-embedding-models/internal/embeddings"
)

const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

// Embedder is the subset of *genai.Models used by the provider.
type Embedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config contains configuration for the Gemini provider.
type Config struct {
	APIKey    string
	Model     string // Default: text-embedding-004
	Dimension int    // Requested output dimensionality; 0 keeps the model default

	// Client overrides the SDK client, mainly for tests.
	Client Embedder
}

// Provider implements embeddings.Provider using Gemini embedding models.
type Provider struct {
	client    Embedder
	model     string
	dimension int
}

var (
	_ embeddings.Provider      = (*Provider)(nil)
	_ embeddings.QueryEmbedder = (*Provider)(nil)
)

// New creates a new Gemini embedding provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	client := cfg.Client
	if client == nil {
		if cfg.APIKey == "" {
			return nil, errors.New("gemini: API key is required")
		}
		c, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini: failed to create client: %w", err)
		}
		client = c.Models
	}
	return &Provider{client: client, model: cfg.Model, dimension: cfg.Dimension}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "gemini"
}

// Dimension returns the embedding dimension.
func (p *Provider) Dimension() int {
	if p.dimension > 0 {
		return p.dimension
	}
	switch p.model {
	case "gemini-embedding-001":
		return 3072
	default:
		return 768
	}
}

// MaxBatchSize returns the maximum number of texts per batch.
func (p *Provider) MaxBatchSize() int {
	return 100
}

// Embed generates a document embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embeddings.First(p.embed(ctx, []string{text}, taskDocument))
}

// EmbedBatch generates document embeddings for multiple texts.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, texts, taskDocument)
}

// EmbedQuery generates a retrieval query embedding.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embeddings.First(p.embed(ctx, []string{text}, taskQuery))
}

func (p *Provider) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	cfg := &genai.EmbedContentConfig{TaskType: task}
	if p.dimension > 0 {
		dim := int32(p.dimension)
		cfg.OutputDimensionality = &dim
	}

	resp, err := p.client.EmbedContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", got, len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini returned an empty embedding for text %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}
