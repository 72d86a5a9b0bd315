package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/prophylaxis-audit/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager creates a new configuration manager. An empty configFile
// searches ./prophylaxis-audit.yaml and ./config/prophylaxis-audit.yaml;
// a missing file is not an error.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment and defaults
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("prophylaxis-audit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// PROPHYLAXIS_AUDIT_MATCH_THRESHOLD overrides audit.match_threshold
	v.SetEnvPrefix("PROPHYLAXIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.Audit = config.Audit.Canonicalize()

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	audit := domain.DefaultAuditConfig()

	// Audit defaults
	v.SetDefault("audit.match_threshold", audit.MatchThreshold)
	v.SetDefault("audit.dose_tolerance_percent", audit.DoseTolerancePercent)
	v.SetDefault("audit.alert_dose_tolerance_percent", audit.AlertDoseTolerancePercent)
	v.SetDefault("audit.timing_window_minutes", audit.TimingWindowMinutes)
	v.SetDefault("audit.redose_tolerance_minutes", audit.RedoseToleranceMinutes)
	v.SetDefault("audit.drug_fuzzy_threshold", audit.DrugFuzzyThreshold)
	v.SetDefault("audit.normalization_cache_size", audit.NormalizationCacheSize)
	v.SetDefault("audit.workers", audit.Workers)
	v.SetDefault("audit.stop_words", audit.StopWords)
	v.SetDefault("audit.procedure_translations", map[string]interface{}{})

	// Drug-keyed maps are stored with lowercase keys, as viper does for
	// file values; Canonicalize restores upper case after Unmarshal.
	aliases := make(map[string]interface{}, len(audit.DrugAliases))
	for drug, list := range audit.DrugAliases {
		aliases[strings.ToLower(drug)] = list
	}
	v.SetDefault("audit.drug_aliases", aliases)

	intervals := make(map[string]interface{}, len(audit.RedosingIntervals))
	for drug, minutes := range audit.RedosingIntervals {
		intervals[strings.ToLower(drug)] = minutes
	}
	v.SetDefault("audit.redosing_intervals", intervals)

	caps := make(map[string]interface{}, len(audit.DoseCaps))
	for drug, c := range audit.DoseCaps {
		caps[strings.ToLower(drug)] = map[string]interface{}{
			"max_mg":             c.MaxMg,
			"high_weight_kg":     c.HighWeightKg,
			"high_weight_max_mg": c.HighWeightMaxMg,
		}
	}
	v.SetDefault("audit.dose_caps", caps)

	// Rule snapshot defaults
	v.SetDefault("rules.path", "rules.json")
	v.SetDefault("rules.format", "")

	// Surgery batch defaults
	columns := domain.DefaultColumnMap()
	v.SetDefault("input.path", "")
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("input.yes_values", domain.DefaultYesValues())
	v.SetDefault("input.columns.date", columns.Date)
	v.SetDefault("input.columns.procedure", columns.Procedure)
	v.SetDefault("input.columns.specialty", columns.Specialty)
	v.SetDefault("input.columns.incision_time", columns.IncisionTime)
	v.SetDefault("input.columns.administered", columns.Administered)
	v.SetDefault("input.columns.antibiotic", columns.Antibiotic)
	v.SetDefault("input.columns.administration_time", columns.AdministrationTime)
	v.SetDefault("input.columns.redose", columns.Redose)
	v.SetDefault("input.columns.redose_time", columns.RedoseTime)
	v.SetDefault("input.columns.weight", columns.Weight)
	v.SetDefault("input.columns.allergy", columns.Allergy)

	// Output defaults
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.json_file", "auditoria_resultado.json")
	v.SetDefault("output.csv_file", "auditoria_resultado.csv")
	v.SetDefault("output.summary_file", "auditoria_resumo.txt")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetAuditConfig returns the audit settings with canonical drug keys
func (m *Manager) GetAuditConfig() domain.AuditConfig {
	return m.config.Audit
}

// ConfigFileUsed returns the file the configuration was read from, if any
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if err := config.Audit.Validate(); err != nil {
		return err
	}

	switch strings.ToLower(config.Rules.Format) {
	case "", "json", "sqlite":
	default:
		return fmt.Errorf("invalid rules format: %s", config.Rules.Format)
	}

	if len([]rune(config.Input.Delimiter)) > 1 {
		return fmt.Errorf("input delimiter must be a single character: %q", config.Input.Delimiter)
	}

	if config.Metrics.Enabled && config.Metrics.Textfile == "" {
		return fmt.Errorf("metrics textfile is required when metrics are enabled")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}
