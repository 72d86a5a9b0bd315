// Package rules provides read-only protocol rule snapshot sources: the
// rules.json file produced by protocol extraction and a SQLite snapshot
// store imported from it.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/pkg/textnorm"
	"github.com/prophylaxis-audit/pkg/units"
)

// drugDocument is a drug entry as written in rules.json. Doses are free
// text ("2g", "30 mg/kg") and are parsed on load.
type drugDocument struct {
	Name   string `json:"name"`
	Dose   string `json:"dose,omitempty"`
	Route  string `json:"route,omitempty"`
	Timing string `json:"timing,omitempty"`
}

type recommendationDocument struct {
	Drugs   []drugDocument `json:"drugs"`
	RawText string         `json:"raw_text,omitempty"`
	Notes   string         `json:"notes,omitempty"`
}

type ruleDocument struct {
	RuleID                string                 `json:"rule_id"`
	Section               string                 `json:"section"`
	Procedure             string                 `json:"procedure"`
	ProcedureNormalized   string                 `json:"procedure_normalized,omitempty"`
	IsProphylaxisRequired bool                   `json:"is_prophylaxis_required"`
	PrimaryRecommendation recommendationDocument `json:"primary_recommendation"`
	AllergyRecommendation recommendationDocument `json:"allergy_recommendation"`
	Postoperative         string                 `json:"postoperative,omitempty"`
}

// Metadata describes a rule snapshot.
type Metadata struct {
	SHA256      string    `json:"sha256"`
	RulesCount  int       `json:"rules_count"`
	Source      string    `json:"source,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Digest returns the hex sha256 of snapshot content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DecodeRules reads a rules.json document: a JSON array of rules.
func DecodeRules(r io.Reader) ([]domain.ProtocolRule, error) {
	var docs []ruleDocument
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	rules := make([]domain.ProtocolRule, 0, len(docs))
	for i := range docs {
		rule, err := docs[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("rule at position %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// EncodeRules writes rules in the rules.json layout.
func EncodeRules(w io.Writer, rules []domain.ProtocolRule) error {
	docs := make([]ruleDocument, 0, len(rules))
	for i := range rules {
		docs = append(docs, fromDomain(&rules[i]))
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(docs)
}

func (d *ruleDocument) toDomain() (domain.ProtocolRule, error) {
	primary, err := d.PrimaryRecommendation.toDomain()
	if err != nil {
		return domain.ProtocolRule{}, err
	}
	allergy, err := d.AllergyRecommendation.toDomain()
	if err != nil {
		return domain.ProtocolRule{}, err
	}

	normalized := d.ProcedureNormalized
	if normalized == "" {
		normalized = textnorm.Normalize(d.Procedure)
	}

	rule := domain.ProtocolRule{
		RuleID:                strings.TrimSpace(d.RuleID),
		Section:               d.Section,
		Procedure:             d.Procedure,
		ProcedureNormalized:   normalized,
		IsProphylaxisRequired: d.IsProphylaxisRequired,
		PrimaryRecommendation: primary,
		AllergyRecommendation: allergy,
		Postoperative:         d.Postoperative,
	}
	if err := rule.Validate(); err != nil {
		return domain.ProtocolRule{}, err
	}
	return rule, nil
}

func (r *recommendationDocument) toDomain() (domain.Recommendation, error) {
	rec := domain.Recommendation{Notes: r.Notes}
	for _, drug := range r.Drugs {
		dose, err := parseProtocolDose(drug.Dose)
		if err != nil {
			return domain.Recommendation{}, fmt.Errorf("drug %s: %w", drug.Name, err)
		}
		rec.Drugs = append(rec.Drugs, domain.DrugSpec{
			Name:       strings.ToUpper(strings.TrimSpace(drug.Name)),
			Dose:       dose,
			Route:      drug.Route,
			TimingHint: drug.Timing,
		})
	}
	return rec, nil
}

// parseProtocolDose keeps unparseable or unit-less dose text as Raw only;
// the dose criterion then reports the missing reference instead of failing
// the whole snapshot.
func parseProtocolDose(text string) (domain.Dose, error) {
	dose, err := units.ParseDose(text)
	switch {
	case err == nil:
		return dose, nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownDoseUnit):
		return domain.Dose{Raw: strings.TrimSpace(text)}, nil
	default:
		return domain.Dose{}, err
	}
}

func fromDomain(rule *domain.ProtocolRule) ruleDocument {
	return ruleDocument{
		RuleID:                rule.RuleID,
		Section:               rule.Section,
		Procedure:             rule.Procedure,
		ProcedureNormalized:   rule.ProcedureNormalized,
		IsProphylaxisRequired: rule.IsProphylaxisRequired,
		PrimaryRecommendation: recommendationFromDomain(rule.PrimaryRecommendation),
		AllergyRecommendation: recommendationFromDomain(rule.AllergyRecommendation),
		Postoperative:         rule.Postoperative,
	}
}

func recommendationFromDomain(rec domain.Recommendation) recommendationDocument {
	doc := recommendationDocument{Drugs: []drugDocument{}, Notes: rec.Notes}
	for _, d := range rec.Drugs {
		doc.Drugs = append(doc.Drugs, drugDocument{
			Name:   d.Name,
			Dose:   doseText(d.Dose),
			Route:  d.Route,
			Timing: d.TimingHint,
		})
	}
	return doc
}

func doseText(d domain.Dose) string {
	if d.Raw != "" {
		return d.Raw
	}
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%g%s", d.Amount, d.Unit)
}
