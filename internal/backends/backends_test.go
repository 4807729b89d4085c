package backends

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JS12540/evaluating-embedding-models/internal/config"
	"github.com/JS12540/evaluating-embedding-models/internal/embeddings"
	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex"
	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex/sqlite"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// hashProvider embeds a text as its letter histogram over a..d.
type hashProvider struct {
	fail error
}

func (p *hashProvider) Name() string      { return "hash" }
func (p *hashProvider) Dimension() int    { return 4 }
func (p *hashProvider) MaxBatchSize() int { return 2 }

func (p *hashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embeddings.First(p.EmbedBatch(ctx, []string{text}))
}

func (p *hashProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 4)
		for _, r := range text {
			if r >= 'a' && r <= 'd' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

func testChunks() []models.Chunk {
	return []models.Chunk{
		{Metadata: models.ChunkMetadata{ChunkID: "acme_1"}, Content: "aaaa"},
		{Metadata: models.ChunkMetadata{ChunkID: "acme_2"}, Content: "   "},
		{Metadata: models.ChunkMetadata{ChunkID: "acme_3"}, Content: "bbb"},
		{Metadata: models.ChunkMetadata{ChunkID: "acme_4"}, Content: "cc d"},
	}
}

func memoryBackend(name string, p embeddings.Provider) *Backend {
	return &Backend{
		Config:   config.BackendConfig{Name: name, Model: "hash-v1", BatchSize: 8},
		Provider: p,
		Index:    vectorindex.NewMemory(0),
	}
}

func TestCheckCredentials(t *testing.T) {
	err := CheckCredentials([]config.BackendConfig{
		{Name: "openai", Type: "openai"},
		{Name: "open_source", Type: "ollama"},
		{Name: "cohere", Type: "cohere", APIKey: "co-key"},
		{Name: "bedrock", Type: "bedrock", AccessKeyID: "AKIA"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"openai", "bedrock"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not name %s", msg, want)
		}
	}
	if strings.Contains(msg, "open_source") || strings.Contains(msg, "cohere (") {
		t.Errorf("error %q names a backend with valid credentials", msg)
	}

	if err := CheckCredentials(config.DefaultBackends()[2:]); err != nil {
		t.Errorf("ollama needs no credentials: %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		cfg      config.BackendConfig
		wantName string
		wantErr  bool
	}{
		{cfg: config.BackendConfig{Type: "openai", APIKey: "sk-test"}, wantName: "openai"},
		{cfg: config.BackendConfig{Type: "cohere", APIKey: "co-test"}, wantName: "cohere"},
		{cfg: config.BackendConfig{Type: "ollama"}, wantName: "ollama"},
		{cfg: config.BackendConfig{Type: "gemini"}, wantErr: true},
		{cfg: config.BackendConfig{Type: "word2vec"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			p, err := NewProvider(ctx, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestOpenIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bc := config.BackendConfig{Name: "open_source"}

	idx, err := OpenIndex(ctx, config.IndexConfig{Type: "sqlite"}, dir, bc)
	if err != nil {
		t.Fatalf("OpenIndex sqlite error: %v", err)
	}
	defer idx.Close()
	if _, ok := idx.(*sqlite.Index); !ok {
		t.Errorf("index type = %T", idx)
	}
	if _, err := os.Stat(filepath.Join(dir, "open_source.db")); err != nil {
		t.Errorf("index file: %v", err)
	}

	mem, err := OpenIndex(ctx, config.IndexConfig{Type: "memory"}, dir, bc)
	if err != nil {
		t.Fatalf("OpenIndex memory error: %v", err)
	}
	if _, ok := mem.(*vectorindex.Memory); !ok {
		t.Errorf("index type = %T", mem)
	}

	if _, err := OpenIndex(ctx, config.IndexConfig{Type: "faiss"}, dir, bc); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestOpenChecksCredentialsFirst(t *testing.T) {
	cfg := config.Default()
	cfg.Index.Type = "memory"
	_, err := Open(context.Background(), cfg, []config.BackendConfig{{Name: "openai", Type: "openai"}}, Deps{})
	if err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Fatalf("error = %v, want missing credentials", err)
	}

	all, err := Open(context.Background(), cfg, []config.BackendConfig{{Name: "local", Type: "ollama", Model: "all-minilm"}}, Deps{})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer CloseAll(all)
	if len(all) != 1 || all[0].Name() != "local" || all[0].Provider.Name() != "local" {
		t.Errorf("backends = %+v", all)
	}
}

func TestBuildSkipsEmptyChunksAndKeepsIDs(t *testing.T) {
	ctx := context.Background()
	b := memoryBackend("hash", &hashProvider{})

	stats, err := Build(ctx, b, testChunks(), nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if stats.Chunks != 3 || stats.Dimension != 4 {
		t.Errorf("stats = %+v", stats)
	}

	ids := models.ChunkIDs(models.NonEmptyChunks(testChunks()))
	if err := vectorindex.Verify(ctx, b.Index, ids); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	for _, c := range models.NonEmptyChunks(testChunks()) {
		v, _ := b.Provider.Embed(ctx, c.Content)
		hits, err := b.Index.Search(ctx, v, 1)
		if err != nil {
			t.Fatalf("Search error: %v", err)
		}
		if hits[0].ChunkID != c.ID() {
			t.Errorf("own text of %s found %s", c.ID(), hits[0].ChunkID)
		}
	}

	meta, _ := b.Index.Meta(ctx)
	if meta.Model != "hash-v1" || meta.Dimension != 4 {
		t.Errorf("meta = %+v", meta)
	}

	if _, err := Build(ctx, b, testChunks(), nil); err != nil {
		t.Fatalf("rebuild error: %v", err)
	}
	if count, _ := b.Index.Count(ctx); count != 3 {
		t.Errorf("rebuild count = %d, want 3", count)
	}
}

func TestFailedRebuildKeepsPersistedIndex(t *testing.T) {
	ctx := context.Background()
	idx, err := sqlite.New(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "hash.db")})
	if err != nil {
		t.Fatalf("sqlite.New error: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	provider := &hashProvider{}
	b := &Backend{
		Config:   config.BackendConfig{Name: "hash", Model: "hash-v1", BatchSize: 8},
		Provider: provider,
		Index:    idx,
	}
	if _, err := Build(ctx, b, testChunks(), nil); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	unavailable := errors.New("provider unavailable")
	provider.fail = unavailable
	if _, err := Build(ctx, b, testChunks(), nil); !errors.Is(err, unavailable) {
		t.Fatalf("rebuild error = %v, want provider failure", err)
	}

	ids := models.ChunkIDs(models.NonEmptyChunks(testChunks()))
	if err := vectorindex.Verify(ctx, idx, ids); err != nil {
		t.Fatalf("index lost after failed rebuild: %v", err)
	}
	if meta, _ := idx.Meta(ctx); meta.Model != "hash-v1" || meta.Dimension != 4 {
		t.Errorf("meta after failed rebuild = %+v", meta)
	}
}

func TestBuildAll(t *testing.T) {
	ctx := context.Background()
	good := memoryBackend("a", &hashProvider{})
	other := memoryBackend("b", &hashProvider{})

	stats, err := BuildAll(ctx, []*Backend{good, other}, testChunks(), nil)
	if err != nil {
		t.Fatalf("BuildAll error: %v", err)
	}
	if len(stats) != 2 || stats[0].Backend != "a" || stats[1].Backend != "b" {
		t.Errorf("stats = %+v", stats)
	}

	boom := errors.New("boom")
	bad := memoryBackend("bad", &hashProvider{fail: boom})
	if _, err := BuildAll(ctx, []*Backend{good, bad}, testChunks(), nil); !errors.Is(err, boom) || !strings.Contains(err.Error(), "backend bad") {
		t.Fatalf("error = %v", err)
	}

	if err := VerifyAll(ctx, []*Backend{other}, []string{"acme_1"}); err == nil {
		t.Error("expected mismatch")
	}
}
