package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/akozlov/ricwatch/internal/market"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

type batchDocument struct {
	Items []market.Item `json:"items"`
}

// FileSink writes each batch as a standalone JSON document under a
// results directory, named after the subscriber and the write time.
type FileSink struct {
	dir   string
	clock Clock
}

// NewFileSink creates the results directory if needed.
func NewFileSink(dir string, clock Clock) (*FileSink, error) {
	if dir == "" {
		return nil, errors.New("results directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &FileSink{dir: dir, clock: clock}, nil
}

// Write persists the batch atomically and returns its path.
func (s *FileSink) Write(_ context.Context, subscriber string, items []market.Item) (string, error) {
	raw, err := json.MarshalIndent(batchDocument{Items: items}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}

	name := unsafeNameChars.ReplaceAllString(subscriber, "_")
	stamp := s.clock.Now().UTC().Format("20060102T150405Z")
	target := filepath.Join(s.dir, fmt.Sprintf("ricardo_%s_%s.json", name, stamp))
	for i := 2; fileExists(target); i++ {
		target = filepath.Join(s.dir, fmt.Sprintf("ricardo_%s_%s_%d.json", name, stamp, i))
	}

	tmp, err := os.CreateTemp(s.dir, "batch-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp batch file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp batch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp batch file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("place batch file: %w", err)
	}
	return target, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
