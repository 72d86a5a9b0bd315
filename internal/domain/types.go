// Package domain contains the core entities of the antibiotic-prophylaxis
// audit: protocol rules, surgery records, audit results and the conformity
// vocabulary shared by every validator.
//
// Status and reason values are kept in Portuguese because they are the
// terms used by the institutional protocol and by the audit reports.
package domain

import "errors"

// ConformityStatus is the verdict of one audit criterion or of the whole audit.
type ConformityStatus string

const (
	CONFORME      ConformityStatus = "CONFORME"
	ALERTA        ConformityStatus = "ALERTA"
	NAO_CONFORME  ConformityStatus = "NAO_CONFORME"
	INDETERMINADO ConformityStatus = "INDETERMINADO"
)

// MatchMethod records how a surgery was linked to a protocol rule.
type MatchMethod string

const (
	MatchExact           MatchMethod = "exact"
	MatchFuzzy           MatchMethod = "fuzzy"
	MatchTranslatedExact MatchMethod = "translated_exact"
	MatchTranslatedFuzzy MatchMethod = "translated_fuzzy"
	MatchNone            MatchMethod = "no_match"
)

// Administration is the tri-state "antibiotic administered" flag of a record.
type Administration string

const (
	AdministeredYes     Administration = "SIM"
	AdministeredNo      Administration = "NAO"
	AdministeredUnknown Administration = ""
)

// Validation errors for conformity data
var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicateRuleID        = errors.New("duplicate rule_id")
	ErrInvalidAliasDictionary = errors.New("invalid drug alias dictionary")
	ErrUnknownDoseUnit        = errors.New("unknown dose unit")
	ErrWeightRequired         = errors.New("patient weight required for weight-based dose")
	ErrInvalidClockTime       = errors.New("invalid clock time")
)

// IsValid reports whether the status belongs to the four-value enumeration.
func (s ConformityStatus) IsValid() bool {
	switch s {
	case CONFORME, ALERTA, NAO_CONFORME, INDETERMINADO:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s ConformityStatus) String() string {
	return string(s)
}

// Description returns the human-readable meaning used in reports.
func (s ConformityStatus) Description() string {
	switch s {
	case CONFORME:
		return "Procedimento em conformidade com o protocolo"
	case ALERTA:
		return "Pequena diferenca detectada - revisar"
	case NAO_CONFORME:
		return "Procedimento nao conforme - requer acao corretiva"
	case INDETERMINADO:
		return "Nao foi possivel determinar conformidade"
	default:
		return "Status desconhecido"
	}
}

// Severity orders statuses by how strongly they dominate a combination:
// NAO_CONFORME > ALERTA > INDETERMINADO > CONFORME.
func (s ConformityStatus) Severity() int {
	switch s {
	case NAO_CONFORME:
		return 3
	case ALERTA:
		return 2
	case INDETERMINADO:
		return 1
	default:
		return 0
	}
}

// RequiresReview is true for verdicts a pharmacist has to look at.
func (s ConformityStatus) RequiresReview() bool {
	return s == ALERTA || s == NAO_CONFORME
}

// LogFields returns structured logging fields for audit trails.
func (s ConformityStatus) LogFields() map[string]any {
	return map[string]any{
		"status":          string(s),
		"is_valid":        s.IsValid(),
		"severity":        s.Severity(),
		"requires_review": s.RequiresReview(),
	}
}

// IsMatched reports whether the method linked the surgery to a rule.
func (m MatchMethod) IsMatched() bool {
	return m != "" && m != MatchNone
}

// IsKnown is false when the administration flag was absent or unreadable.
func (a Administration) IsKnown() bool {
	return a == AdministeredYes || a == AdministeredNo
}

// Given reports a confirmed administration.
func (a Administration) Given() bool {
	return a == AdministeredYes
}
