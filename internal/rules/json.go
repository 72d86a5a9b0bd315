package rules

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prophylaxis-audit/internal/domain"
)

// JSONSource loads rules from a rules.json file.
type JSONSource struct {
	path     string
	metadata *Metadata
}

// NewJSONSource creates a source reading the given file on each load.
func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

// LoadRules reads and parses the file. The snapshot digest is available
// from Metadata afterwards.
func (s *JSONSource) LoadRules(ctx context.Context) ([]domain.ProtocolRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules, err := DecodeRules(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	s.metadata = &Metadata{
		SHA256:      Digest(content),
		RulesCount:  len(rules),
		Source:      s.path,
		GeneratedAt: time.Now().UTC(),
	}
	return rules, nil
}

// Metadata returns the metadata of the last successful load, or nil.
func (s *JSONSource) Metadata() *Metadata {
	return s.metadata
}

// Close is a no-op; the file is not held open.
func (s *JSONSource) Close() error {
	return nil
}
