package domain

import (
	"strings"
	"time"
)

// DoseUnit is the unit of a recommended or administered dose.
type DoseUnit string

const (
	UnitMilligram      DoseUnit = "mg"
	UnitGram           DoseUnit = "g"
	UnitMilligramPerKg DoseUnit = "mg/kg"
	UnitGramPerKg      DoseUnit = "g/kg"
)

// IsWeightBased reports whether the dose must be multiplied by body weight.
func (u DoseUnit) IsWeightBased() bool {
	return u == UnitMilligramPerKg || u == UnitGramPerKg
}

// Dose is an amount with its unit. Raw keeps the protocol text it came from.
type Dose struct {
	Amount float64  `json:"amount"`
	Unit   DoseUnit `json:"unit"`
	Raw    string   `json:"raw,omitempty"`
}

// IsZero is true when no dose was parsed.
func (d Dose) IsZero() bool {
	return d.Amount == 0 && d.Unit == ""
}

// DrugSpec is one drug entry of a protocol recommendation.
type DrugSpec struct {
	Name       string `json:"name"` // canonical drug name, e.g. CEFAZOLINA
	Dose       Dose   `json:"dose"`
	Route      string `json:"route,omitempty"`
	TimingHint string `json:"timing,omitempty"`
}

// Recommendation is a list of drugs plus free-text notes.
type Recommendation struct {
	Drugs []DrugSpec `json:"drugs"`
	Notes string     `json:"notes,omitempty"`
}

// DrugNames returns the upper-cased canonical names of the recommended drugs.
func (r Recommendation) DrugNames() []string {
	names := make([]string, 0, len(r.Drugs))
	for _, d := range r.Drugs {
		names = append(names, strings.ToUpper(d.Name))
	}
	return names
}

// Find returns the drug entry with the given canonical name.
func (r Recommendation) Find(name string) (DrugSpec, bool) {
	for _, d := range r.Drugs {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return DrugSpec{}, false
}

// ProtocolRule is one recommendation unit of the institutional protocol.
// Rules are immutable once handed to the rule index.
type ProtocolRule struct {
	RuleID                string         `json:"rule_id"`
	Section               string         `json:"section"`
	Procedure             string         `json:"procedure"`
	ProcedureNormalized   string         `json:"procedure_normalized"`
	IsProphylaxisRequired bool           `json:"is_prophylaxis_required"`
	PrimaryRecommendation Recommendation `json:"primary_recommendation"`
	AllergyRecommendation Recommendation `json:"allergy_recommendation"`
	Postoperative         string         `json:"postoperative,omitempty"`
}

// Validate checks the fields every rule must carry.
func (r *ProtocolRule) Validate() error {
	if strings.TrimSpace(r.RuleID) == "" {
		return NewValidationError("rule_id", "rule_id cannot be empty", r.RuleID)
	}
	if strings.TrimSpace(r.Procedure) == "" {
		return NewValidationError("procedure", "procedure cannot be empty", r.RuleID)
	}
	for _, rec := range []Recommendation{r.PrimaryRecommendation, r.AllergyRecommendation} {
		for _, d := range rec.Drugs {
			if strings.TrimSpace(d.Name) == "" {
				return NewValidationError("drugs.name", "drug name cannot be empty", r.RuleID)
			}
		}
	}
	return nil
}

// ApplicableRecommendation selects the allergy list for allergic patients
// and the primary list otherwise. An empty allergy list falls back to the
// primary one.
func (r *ProtocolRule) ApplicableRecommendation(allergic bool) Recommendation {
	if allergic && len(r.AllergyRecommendation.Drugs) > 0 {
		return r.AllergyRecommendation
	}
	return r.PrimaryRecommendation
}

// SurgeryRecord is one performed procedure submitted for auditing.
// Times are kept as the raw clock text of the source spreadsheet; parsing
// happens in the validators so malformed values only affect their criterion.
type SurgeryRecord struct {
	RowIndex           int            `json:"row_index"`
	Date               time.Time      `json:"date,omitempty"`
	Procedure          string         `json:"procedure"`
	Specialty          string         `json:"specialty,omitempty"`
	IncisionTime       string         `json:"incision_time,omitempty"`
	Administration     Administration `json:"antibiotic_administered"`
	AntibioticText     string         `json:"antibiotic_text,omitempty"`
	AdministrationTime string         `json:"administration_time,omitempty"`
	RedoseGiven        bool           `json:"redose_given"`
	RedoseTime         string         `json:"redose_time,omitempty"`
	WeightKg           *float64       `json:"weight_kg,omitempty"`
	PatientAllergic    bool           `json:"patient_allergic"`
}

// HasWeight is true when a positive body weight is known.
func (s *SurgeryRecord) HasWeight() bool {
	return s.WeightKg != nil && *s.WeightKg > 0
}

// AuditResult is the outcome of auditing one surgery record. It is created
// once by the auditor and not modified afterwards.
type AuditResult struct {
	Record *SurgeryRecord `json:"-"`
	RunID  string         `json:"run_id"`

	MatchedRuleID *string     `json:"matched_rule_id"`
	MatchScore    float64     `json:"match_score"`
	MatchMethod   MatchMethod `json:"match_method"`

	ProtocolSection             string   `json:"protocolo_secao,omitempty"`
	ProtocolProcedure           string   `json:"protocolo_procedimento,omitempty"`
	ProtocolRequiresProphylaxis bool     `json:"protocolo_requer_profilaxia"`
	ProtocolDrugs               []string `json:"protocolo_atb_recomendados,omitempty"`
	ProtocolExpectedDose        string   `json:"protocolo_dose_esperada,omitempty"`

	DetectedDrugs      []string `json:"detected_drugs"`
	AdministeredDoseMg *float64 `json:"dose_administrada_mg"`

	ChoiceStatus ConformityStatus `json:"conf_escolha"`
	ChoiceReason ReasonCode       `json:"conf_escolha_razao"`
	DoseStatus   ConformityStatus `json:"conf_dose"`
	DoseReason   ReasonCode       `json:"conf_dose_razao"`
	TimingStatus ConformityStatus `json:"conf_timing"`
	TimingReason ReasonCode       `json:"conf_timing_razao"`
	RedoseStatus ConformityStatus `json:"conf_repique"`
	RedoseReason ReasonCode       `json:"conf_repique_razao"`
	FinalStatus  ConformityStatus `json:"conf_final"`
	FinalReason  string           `json:"conf_final_razao"`

	DoseDiffMg        *float64 `json:"dose_diferenca_mg"`
	DoseDiffPct       *float64 `json:"dose_diferenca_pct"`
	TimingDiffMinutes *int     `json:"timing_diferenca_minutos"`
	RedoseDiffMinutes *int     `json:"repique_diferenca_minutos"`

	Notes []string `json:"observacoes,omitempty"`
}

// IsMatched reports whether the surgery was linked to a protocol rule.
func (a *AuditResult) IsMatched() bool {
	return a.MatchedRuleID != nil
}

// IsConforming counts CONFORME and ALERTA as acceptable.
func (a *AuditResult) IsConforming() bool {
	return a.FinalStatus == CONFORME || a.FinalStatus == ALERTA
}
