// Package bedrock provides an embedding provider using models hosted on
// Amazon Bedrock: Cohere Embed and Amazon Titan text embeddings.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/JS12540/evaluating-embedding-models/internal/embeddings"
)

const defaultModel = "cohere.embed-english-v3"

// Invoker is the subset of the Bedrock runtime client used here.
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements embeddings.Provider using Bedrock InvokeModel.
type Provider struct {
	client    Invoker
	model     string
	dimension int
}

var (
	_ embeddings.Provider      = (*Provider)(nil)
	_ embeddings.QueryEmbedder = (*Provider)(nil)
)

// Config contains configuration for the Bedrock provider.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Model           string // cohere.embed-english-v3, cohere.embed-multilingual-v3, amazon.titan-embed-text-v2:0

	// Dimension overrides the model's default dimension.
	Dimension int

	// Client replaces the runtime client, mainly for tests.
	Client Invoker
}

// New creates a Bedrock embedding provider. Explicit keys win over the
// default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	client := cfg.Client
	if client == nil {
		opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
		}
		client = bedrockruntime.NewFromConfig(awsCfg)
	}
	return &Provider{client: client, model: cfg.Model, dimension: cfg.Dimension}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "bedrock"
}

// Dimension returns the embedding dimension for the configured model.
func (p *Provider) Dimension() int {
	if p.dimension > 0 {
		return p.dimension
	}
	switch {
	case strings.HasPrefix(p.model, "amazon.titan-embed-text-v1"):
		return 1536
	case strings.Contains(p.model, "light"):
		return 384
	default:
		return 1024
	}
}

// MaxBatchSize returns the maximum number of texts per batch.
func (p *Provider) MaxBatchSize() int {
	if p.isTitan() {
		return 1
	}
	return 96
}

// Embed generates a document embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embeddings.First(p.embed(ctx, []string{text}, "search_document"))
}

// EmbedBatch generates document embeddings for multiple texts.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, texts, "search_document")
}

// EmbedQuery generates a search-query embedding.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embeddings.First(p.embed(ctx, []string{text}, "search_query"))
}

func (p *Provider) isTitan() bool {
	return strings.HasPrefix(p.model, "amazon.titan")
}

type cohereRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate"`
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *Provider) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if p.isTitan() {
		out := make([][]float32, 0, len(texts))
		for _, text := range texts {
			payload, err := p.invoke(ctx, titanRequest{InputText: text, Dimensions: p.dimension, Normalize: true})
			if err != nil {
				return nil, err
			}
			var resp titanResponse
			if err := json.Unmarshal(payload, &resp); err != nil {
				return nil, fmt.Errorf("bedrock: decode titan response: %w", err)
			}
			out = append(out, resp.Embedding)
		}
		return out, nil
	}

	payload, err := p.invoke(ctx, cohereRequest{Texts: texts, InputType: inputType, Truncate: "END"})
	if err != nil {
		return nil, err
	}
	vectors, err := decodeCohere(payload)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("bedrock returned %d embeddings for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (p *Provider) invoke(ctx context.Context, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}
	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoke %s: %w", p.model, err)
	}
	return out.Body, nil
}

// decodeCohere accepts both response shapes: a bare float matrix, and the
// typed {"float": [...]} object returned when embedding types are requested.
func decodeCohere(payload []byte) ([][]float32, error) {
	var resp struct {
		Embeddings json.RawMessage `json:"embeddings"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: decode cohere response: %w", err)
	}
	var matrix [][]float32
	if err := json.Unmarshal(resp.Embeddings, &matrix); err == nil {
		return matrix, nil
	}
	var typed struct {
		Float [][]float32 `json:"float"`
	}
	if err := json.Unmarshal(resp.Embeddings, &typed); err != nil {
		return nil, fmt.Errorf("bedrock: unexpected embeddings shape: %w", err)
	}
	return typed.Float, nil
}
