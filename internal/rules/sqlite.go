package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/prophylaxis-audit/internal/domain"
)

var (
	ErrEmptySnapshot           = errors.New("rule snapshot holds no rules")
	ErrMissingSnapshotMetadata = errors.New("rule snapshot has no metadata")
)

// SQLiteStore keeps an imported rule snapshot in a SQLite file. Audits
// only read from it; ImportRules replaces the whole snapshot atomically.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (and if needed creates) the snapshot database.
// Only the import path should use it; audits read through OpenSQLiteSnapshot.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return newSQLiteStore(db, dbPath), nil
}

// OpenSQLiteSnapshot opens an existing snapshot read-only. A missing file is
// an error and nothing is created on disk.
func OpenSQLiteSnapshot(dbPath string) (*SQLiteStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeRuleSource, "rule snapshot not found", err, "")
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, domain.NewAuditError(domain.ErrCodeRuleSource, "rule snapshot is unreadable", err, "")
	}

	return newSQLiteStore(db, dbPath), nil
}

func newSQLiteStore(db *sql.DB, dbPath string) *SQLiteStore {
	return &SQLiteStore{db: db, dbPath: dbPath}
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS protocol_rules (
		rule_id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		section TEXT DEFAULT '',
		procedure TEXT NOT NULL,
		procedure_normalized TEXT NOT NULL,
		prophylaxis_required INTEGER NOT NULL DEFAULT 0,
		primary_recommendation TEXT NOT NULL DEFAULT '{}',
		allergy_recommendation TEXT NOT NULL DEFAULT '{}',
		postoperative TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_rules_position ON protocol_rules(position);
	CREATE INDEX IF NOT EXISTS idx_rules_section ON protocol_rules(section);

	CREATE TABLE IF NOT EXISTS snapshot_metadata (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		sha256 TEXT NOT NULL,
		rules_count INTEGER NOT NULL,
		source TEXT DEFAULT '',
		generated_at DATETIME NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(s scanner) (domain.ProtocolRule, error) {
	var rule domain.ProtocolRule
	var primary, allergy string

	err := s.Scan(
		&rule.RuleID, &rule.Section, &rule.Procedure, &rule.ProcedureNormalized,
		&rule.IsProphylaxisRequired, &primary, &allergy, &rule.Postoperative,
	)
	if err != nil {
		return domain.ProtocolRule{}, err
	}

	if err := json.Unmarshal([]byte(primary), &rule.PrimaryRecommendation); err != nil {
		return domain.ProtocolRule{}, fmt.Errorf("rule %s primary recommendation: %w", rule.RuleID, err)
	}
	if err := json.Unmarshal([]byte(allergy), &rule.AllergyRecommendation); err != nil {
		return domain.ProtocolRule{}, fmt.Errorf("rule %s allergy recommendation: %w", rule.RuleID, err)
	}
	return rule, nil
}

// ImportRules replaces the stored snapshot with rules, keeping their order.
// Duplicate rule ids are rejected before anything is written.
func (s *SQLiteStore) ImportRules(ctx context.Context, rules []domain.ProtocolRule, meta Metadata) error {
	seen := make(map[string]int, len(rules))
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return fmt.Errorf("rule at position %d: %w", i, err)
		}
		if first, dup := seen[rules[i].RuleID]; dup {
			return &domain.DuplicateRuleIDError{RuleID: rules[i].RuleID, FirstIndex: first, SecondIndex: i}
		}
		seen[rules[i].RuleID] = i
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM protocol_rules"); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO protocol_rules (
			rule_id, position, section, procedure, procedure_normalized,
			prophylaxis_required, primary_recommendation, allergy_recommendation,
			postoperative
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range rules {
		rule := &rules[i]
		primary, err := json.Marshal(rule.PrimaryRecommendation)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.RuleID, err)
		}
		allergy, err := json.Marshal(rule.AllergyRecommendation)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.RuleID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			rule.RuleID,
			i,
			rule.Section,
			rule.Procedure,
			rule.ProcedureNormalized,
			rule.IsProphylaxisRequired,
			string(primary),
			string(allergy),
			rule.Postoperative,
		); err != nil {
			return fmt.Errorf("failed to insert rule %s: %w", rule.RuleID, err)
		}
	}

	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshot_metadata (id, sha256, rules_count, source, generated_at)
		VALUES (1, ?, ?, ?, ?)
	`, meta.SHA256, len(rules), meta.Source, generated); err != nil {
		return fmt.Errorf("failed to store metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadRules returns the stored snapshot in import order. A snapshot with no
// rules or no metadata row was never imported and is rejected.
func (s *SQLiteStore) LoadRules(ctx context.Context) ([]domain.ProtocolRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, section, procedure, procedure_normalized,
			prophylaxis_required, primary_recommendation, allergy_recommendation,
			postoperative
		FROM protocol_rules
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var result []domain.ProtocolRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	if len(result) == 0 {
		return nil, domain.NewAuditError(domain.ErrCodeRuleSource, "rule snapshot is empty", ErrEmptySnapshot, "")
	}

	meta, err := s.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, domain.NewAuditError(domain.ErrCodeRuleSource, "rule snapshot is incomplete", ErrMissingSnapshotMetadata, "")
	}
	if meta.RulesCount != len(result) {
		return nil, domain.NewAuditError(domain.ErrCodeRuleSource, "rule snapshot is inconsistent",
			fmt.Errorf("metadata lists %d rules, table holds %d", meta.RulesCount, len(result)), "")
	}
	return result, nil
}

// Metadata returns the snapshot metadata, or nil if nothing was imported.
func (s *SQLiteStore) Metadata(ctx context.Context) (*Metadata, error) {
	meta := &Metadata{}
	err := s.db.QueryRowContext(ctx, `
		SELECT sha256, rules_count, source, generated_at
		FROM snapshot_metadata
		WHERE id = 1
	`).Scan(&meta.SHA256, &meta.RulesCount, &meta.Source, &meta.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return meta, nil
}

// Count returns the number of stored rules.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM protocol_rules").Scan(&count)
	return count, err
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
