package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Storage is a write-mostly blob store for generated reports.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error
	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)
	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)
	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend.
type Config struct {
	Type string // "localfs" or "s3"; empty disables archiving
	Path string
	S3   S3Config
}

// Open builds the configured backend. It returns nil when archiving is disabled.
func Open(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}

// SummaryPath is the key for the daily summary of the given session date.
func SummaryPath(date time.Time) string {
	return date.Format("summaries/2006/01/02.json")
}

// WriteJSON marshals v with indentation and stores it at path.
func WriteJSON(ctx context.Context, s Storage, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return s.Write(ctx, path, data)
}
