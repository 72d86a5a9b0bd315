package domain

import (
	"strings"
)

// Config represents the main application configuration
type Config struct {
	Audit   AuditConfig   `mapstructure:"audit"`
	Rules   RulesConfig   `mapstructure:"rules"`
	Input   InputConfig   `mapstructure:"input"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// AuditConfig is the immutable setting value handed to the matcher and the
// validators. It is copied by value; maps must not be mutated after load.
type AuditConfig struct {
	MatchThreshold            float64             `mapstructure:"match_threshold"`
	DoseTolerancePercent      float64             `mapstructure:"dose_tolerance_percent"`
	AlertDoseTolerancePercent float64             `mapstructure:"alert_dose_tolerance_percent"`
	TimingWindowMinutes       int                 `mapstructure:"timing_window_minutes"`
	RedoseToleranceMinutes    int                 `mapstructure:"redose_tolerance_minutes"`
	DrugFuzzyThreshold        float64             `mapstructure:"drug_fuzzy_threshold"`
	NormalizationCacheSize    int                 `mapstructure:"normalization_cache_size"`
	Workers                   int                 `mapstructure:"workers"`
	DrugAliases               map[string][]string `mapstructure:"drug_aliases"`
	RedosingIntervals         map[string]int      `mapstructure:"redosing_intervals"` // minutes, 0 = no redose
	ProcedureTranslations     map[string]string   `mapstructure:"procedure_translations"`
	StopWords                 []string            `mapstructure:"stop_words"`
	DoseCaps                  map[string]DoseCap  `mapstructure:"dose_caps"`
}

// DoseCap limits a weight-based dose. From HighWeightKg on, HighWeightMaxMg
// replaces MaxMg.
type DoseCap struct {
	MaxMg           float64 `mapstructure:"max_mg"`
	HighWeightKg    float64 `mapstructure:"high_weight_kg"`
	HighWeightMaxMg float64 `mapstructure:"high_weight_max_mg"`
}

// Limit returns the cap in milligrams for the given body weight.
func (c DoseCap) Limit(weightKg float64) float64 {
	if c.HighWeightKg > 0 && c.HighWeightMaxMg > 0 && weightKg >= c.HighWeightKg {
		return c.HighWeightMaxMg
	}
	return c.MaxMg
}

// RulesConfig points at the rule snapshot used for the run.
type RulesConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"` // "json", "sqlite"
}

// InputConfig describes the surgery batch file.
type InputConfig struct {
	Path      string    `mapstructure:"path"`
	Delimiter string    `mapstructure:"delimiter"`
	Columns   ColumnMap `mapstructure:"columns"`
	YesValues []string  `mapstructure:"yes_values"`
}

// ColumnMap maps record fields to spreadsheet header names.
type ColumnMap struct {
	Date               string `mapstructure:"date"`
	Procedure          string `mapstructure:"procedure"`
	Specialty          string `mapstructure:"specialty"`
	IncisionTime       string `mapstructure:"incision_time"`
	Administered       string `mapstructure:"administered"`
	Antibiotic         string `mapstructure:"antibiotic"`
	AdministrationTime string `mapstructure:"administration_time"`
	Redose             string `mapstructure:"redose"`
	RedoseTime         string `mapstructure:"redose_time"`
	Weight             string `mapstructure:"weight"`
	Allergy            string `mapstructure:"allergy"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Dir        string `mapstructure:"dir"`
	JSONFile   string `mapstructure:"json_file"`
	CSVFile    string `mapstructure:"csv_file"`
	SummaryTxt string `mapstructure:"summary_file"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig enables the node-exporter textfile written after a batch.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

// DefaultDrugAliases is the institutional alias dictionary.
func DefaultDrugAliases() map[string][]string {
	return map[string][]string{
		"CEFAZOLINA":              {"KEFAZOL", "CEFAZOLINA", "ANCEF"},
		"CEFUROXIMA":              {"ZINACEF", "CEFUROXIMA"},
		"CEFTRIAXONE":             {"ROCEFIN", "CEFTRIAXONA", "CEFTRIAXONE"},
		"CEFOXITINA":              {"MEFOXIN", "CEFOXITINA"},
		"GENTAMICINA":             {"GENTAMICINA", "GARAMICINA"},
		"AMICACINA":               {"AMICACINA", "NOVAMIN"},
		"VANCOMICINA":             {"VANCOMICINA", "VANCOCINA"},
		"CIPROFLOXACINO":          {"CIPROFLOXACINO", "CIPRO"},
		"AMOXICILINA_CLAVULANATO": {"CLAVULIN", "AMOXICILINA+CLAVULANATO"},
		"AMPICILINA_SULBACTAM":    {"UNASYN", "AMPICILINA+SULBACTAM"},
		"METRONIDAZOL":            {"METRONIDAZOL", "FLAGYL"},
		"CLINDAMICINA":            {"CLINDAMICINA", "DALACIN"},
	}
}

// DefaultRedosingIntervals returns redose intervals in minutes.
func DefaultRedosingIntervals() map[string]int {
	return map[string]int{
		"CEFAZOLINA":     240,
		"CEFUROXIMA":     240,
		"CEFOXITINA":     120,
		"CLINDAMICINA":   360,
		"VANCOMICINA":    0,
		"GENTAMICINA":    0,
		"CIPROFLOXACINO": 0,
	}
}

// DefaultStopWords are ignored when scoring procedure names.
func DefaultStopWords() []string {
	return []string{"cirurgia", "procedimento", "de", "do", "da", "em", "com", "para"}
}

// DefaultDoseCaps returns the per-drug caps for weight-based doses.
func DefaultDoseCaps() map[string]DoseCap {
	return map[string]DoseCap{
		"CEFAZOLINA": {MaxMg: 2000, HighWeightKg: 120, HighWeightMaxMg: 3000},
	}
}

// DefaultColumnMap returns the header names of the hospital surgery export.
func DefaultColumnMap() ColumnMap {
	return ColumnMap{
		Date:               "Dt Cirurgia",
		Procedure:          "Cirurgia",
		Specialty:          "Especialidade",
		IncisionTime:       "Hr Incisão",
		Administered:       "Administração de Antibiotico",
		Antibiotic:         "Antibiótico",
		AdministrationTime: "Hr Antibiótico",
		Redose:             "Repique",
		RedoseTime:         "Hora Repique",
		Weight:             "Peso (kg)",
		Allergy:            "Alergia",
	}
}

// DefaultYesValues are the cell values read as "yes".
func DefaultYesValues() []string {
	return []string{"SIM", "S", "YES", "Y"}
}

// DefaultAuditConfig returns the audit settings used when nothing is configured.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		MatchThreshold:            0.70,
		DoseTolerancePercent:      15,
		AlertDoseTolerancePercent: 10,
		TimingWindowMinutes:       60,
		RedoseToleranceMinutes:    30,
		DrugFuzzyThreshold:        0.84,
		NormalizationCacheSize:    4096,
		Workers:                   4,
		DrugAliases:               DefaultDrugAliases(),
		RedosingIntervals:         DefaultRedosingIntervals(),
		ProcedureTranslations:     map[string]string{},
		StopWords:                 DefaultStopWords(),
		DoseCaps:                  DefaultDoseCaps(),
	}
}

// Canonicalize upper-cases drug-keyed maps. Configuration loaders lowercase
// map keys, canonical drug names are upper case everywhere else.
func (c AuditConfig) Canonicalize() AuditConfig {
	out := c
	out.DrugAliases = make(map[string][]string, len(c.DrugAliases))
	for k, v := range c.DrugAliases {
		out.DrugAliases[strings.ToUpper(k)] = append([]string(nil), v...)
	}
	out.RedosingIntervals = make(map[string]int, len(c.RedosingIntervals))
	for k, v := range c.RedosingIntervals {
		out.RedosingIntervals[strings.ToUpper(k)] = v
	}
	out.DoseCaps = make(map[string]DoseCap, len(c.DoseCaps))
	for k, v := range c.DoseCaps {
		out.DoseCaps[strings.ToUpper(k)] = v
	}
	out.ProcedureTranslations = make(map[string]string, len(c.ProcedureTranslations))
	for k, v := range c.ProcedureTranslations {
		out.ProcedureTranslations[k] = v
	}
	out.StopWords = append([]string(nil), c.StopWords...)
	return out
}

// Validate checks ranges and the ordering of the dose tolerance bands.
func (c AuditConfig) Validate() error {
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return NewValidationError("audit.match_threshold", "must be within [0,1]", c.MatchThreshold)
	}
	if c.DrugFuzzyThreshold < 0 || c.DrugFuzzyThreshold > 1 {
		return NewValidationError("audit.drug_fuzzy_threshold", "must be within [0,1]", c.DrugFuzzyThreshold)
	}
	if c.AlertDoseTolerancePercent < 0 {
		return NewValidationError("audit.alert_dose_tolerance_percent", "cannot be negative", c.AlertDoseTolerancePercent)
	}
	if c.DoseTolerancePercent < c.AlertDoseTolerancePercent {
		return NewValidationError("audit.dose_tolerance_percent", "must be >= alert_dose_tolerance_percent", c.DoseTolerancePercent)
	}
	if c.TimingWindowMinutes < 0 {
		return NewValidationError("audit.timing_window_minutes", "cannot be negative", c.TimingWindowMinutes)
	}
	if c.RedoseToleranceMinutes < 0 {
		return NewValidationError("audit.redose_tolerance_minutes", "cannot be negative", c.RedoseToleranceMinutes)
	}
	if c.Workers < 1 {
		return NewValidationError("audit.workers", "must be at least 1", c.Workers)
	}
	if len(c.DrugAliases) == 0 {
		return NewValidationError("audit.drug_aliases", "alias dictionary cannot be empty", nil)
	}
	return nil
}
