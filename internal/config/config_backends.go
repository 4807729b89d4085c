package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// BackendConfig configures one embedding backend.
type BackendConfig struct {
	Name              string        `yaml:"name"`
	Type              string        `yaml:"type"` // openai | cohere | bedrock | ollama | gemini
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Region            string        `yaml:"region"`
	AccessKeyID       string        `yaml:"access_key_id"`
	SecretAccessKey   string        `yaml:"secret_access_key"`
	Dimension         int           `yaml:"dimension"`
	BatchSize         int           `yaml:"batch_size"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// BackendTypes lists the supported embedding provider types.
var BackendTypes = []string{"openai", "cohere", "bedrock", "ollama", "gemini"}

// DefaultBackends returns the three backends compared when none are configured.
func DefaultBackends() []BackendConfig {
	return []BackendConfig{
		{Name: "openai", Type: "openai", Model: "text-embedding-3-small"},
		{Name: "cohere", Type: "cohere", Model: "embed-v4.0"},
		{Name: "open_source", Type: "ollama", Model: "all-minilm"},
	}
}

// Backend returns the backend with the given name.
func (c *Config) Backend(name string) (BackendConfig, bool) {
	for _, b := range c.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return BackendConfig{}, false
}

// SelectBackends filters the configured backends to the given names, keeping
// config order. An empty selection returns every backend.
func (c *Config) SelectBackends(names []string) ([]BackendConfig, error) {
	if len(names) == 0 {
		return c.Backends, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := c.Backend(name); !ok {
			return nil, fmt.Errorf("unknown backend %q", name)
		}
		wanted[name] = true
	}
	selected := make([]BackendConfig, 0, len(wanted))
	for _, b := range c.Backends {
		if wanted[b.Name] {
			selected = append(selected, b)
		}
	}
	return selected, nil
}

func applyBackendDefaults(b *BackendConfig) {
	if b.Type == "" {
		b.Type = b.Name
	}
	switch b.Type {
	case "openai":
		if b.Model == "" {
			b.Model = "text-embedding-3-small"
		}
		if b.APIKey == "" {
			b.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "cohere":
		if b.Model == "" {
			b.Model = "embed-v4.0"
		}
		if b.APIKey == "" {
			b.APIKey = firstEnv("COHERE_API_KEY", "CO_API_KEY")
		}
	case "bedrock":
		if b.Model == "" {
			b.Model = "cohere.embed-english-v3"
		}
		if b.Region == "" {
			b.Region = firstEnv("AWS_REGION", "AWS_DEFAULT_REGION")
		}
		if b.Region == "" {
			b.Region = "us-east-1"
		}
	case "ollama":
		if b.Model == "" {
			b.Model = "all-minilm"
		}
		if b.BaseURL == "" {
			b.BaseURL = firstEnv("OLLAMA_HOST")
		}
		if b.BaseURL == "" {
			b.BaseURL = "http://localhost:11434"
		}
	case "gemini":
		if b.Model == "" {
			b.Model = "text-embedding-004"
		}
		if b.APIKey == "" {
			b.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		}
	}
	if b.BatchSize == 0 {
		b.BatchSize = 32
	}
	if b.Timeout == 0 {
		b.Timeout = 60 * time.Second
	}
	if b.MaxAttempts == 0 {
		b.MaxAttempts = 3
	}
}

func backendIssues(backends []BackendConfig) []string {
	var issues []string
	seen := make(map[string]bool, len(backends))
	for i, b := range backends {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("backends[%d].name is required", i))
			continue
		}
		if seen[name] {
			issues = append(issues, fmt.Sprintf("backends[%d].name %q is duplicated", i, name))
		}
		seen[name] = true
		if !isBackendType(b.Type) {
			issues = append(issues, fmt.Sprintf("backends[%d].type must be one of %s (got %q)", i, strings.Join(BackendTypes, ", "), b.Type))
		}
		if b.BatchSize < 0 {
			issues = append(issues, fmt.Sprintf("backends[%d].batch_size must be positive", i))
		}
		if b.Dimension < 0 {
			issues = append(issues, fmt.Sprintf("backends[%d].dimension must be positive", i))
		}
		if b.RequestsPerSecond < 0 {
			issues = append(issues, fmt.Sprintf("backends[%d].requests_per_second must not be negative", i))
		}
	}
	return issues
}

func isBackendType(t string) bool {
	for _, known := range BackendTypes {
		if t == known {
			return true
		}
	}
	return false
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
