package artifacts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Published is one uploaded file.
type Published struct {
	Path string `json:"path"`
	Key  string `json:"key"`
	URI  string `json:"uri"`
}

// ContentType picks a MIME type from the file extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	case ".csv":
		return "text/csv"
	case ".prom":
		return "text/plain; version=0.0.4"
	case ".txt", ".md":
		return "text/plain"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

// Publish uploads each file under runID/basename. Missing files are an error.
func Publish(ctx context.Context, store Store, runID string, files []string) ([]Published, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	seen := make(map[string]string, len(files))
	out := make([]Published, 0, len(files))
	for _, file := range files {
		base := filepath.Base(file)
		if prev, dup := seen[base]; dup {
			return out, fmt.Errorf("artifacts %s and %s share the name %s", prev, file, base)
		}
		seen[base] = file

		uri, err := putFile(ctx, store, file, path.Join(runID, base))
		if err != nil {
			return out, err
		}
		out = append(out, Published{Path: file, Key: path.Join(runID, base), URI: uri})
	}
	return out, nil
}

func putFile(ctx context.Context, store Store, file, key string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	uri, err := store.Put(ctx, key, f, PutOptions{
		MimeType: ContentType(file),
		Metadata: map[string]string{"run-id": path.Dir(key)},
	})
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", file, err)
	}
	return uri, nil
}
