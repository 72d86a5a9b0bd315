package rules

import (
	"fmt"
	"strings"

	"github.com/prophylaxis-audit/internal/domain"
)

const (
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

// Source is a closable rule source.
type Source interface {
	domain.RuleSource
	Close() error
}

// Open returns the rule source configured by cfg. An empty format is
// inferred from the file extension.
func Open(cfg domain.RulesConfig) (Source, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, domain.NewValidationError("rules.path", "rules path cannot be empty", cfg.Path)
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = FormatJSON
		lower := strings.ToLower(cfg.Path)
		if strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") {
			format = FormatSQLite
		}
	}

	switch format {
	case FormatJSON:
		return NewJSONSource(cfg.Path), nil
	case FormatSQLite:
		store, err := OpenSQLiteSnapshot(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open rule snapshot: %w", err)
		}
		return store, nil
	default:
		return nil, domain.NewValidationError("rules.format", "must be json or sqlite", cfg.Format)
	}
}
