package domain

import (
	"context"
)

// RuleSource loads the protocol rule snapshot used for one audit run.
type RuleSource interface {
	LoadRules(ctx context.Context) ([]ProtocolRule, error)
}

// SurgerySource loads the batch of surgery records to audit.
type SurgerySource interface {
	LoadSurgeries(ctx context.Context) ([]SurgeryRecord, error)
}

// ResultWriter persists audit results after a batch.
type ResultWriter interface {
	WriteResults(ctx context.Context, results []AuditResult) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetAuditConfig() AuditConfig
	Reload() error
	Validate() error
}
