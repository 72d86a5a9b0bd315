package service

import (
	"sort"
	"strings"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/pkg/textnorm"
)

// RuleIndex holds the protocol rules of one audit session.
// It is immutable after NewRuleIndex and safe for concurrent reads.
type RuleIndex struct {
	rules   []domain.ProtocolRule
	byID    map[string]int
	byNorm  map[string]int // first rule in load order per normalized procedure
	tokens  [][]string     // normalized procedure tokens, parallel to rules
	section map[string]int
}

// NewRuleIndex copies rules, derives each normalized procedure and rejects
// duplicate or invalid rule identifiers.
func NewRuleIndex(rules []domain.ProtocolRule) (*RuleIndex, error) {
	idx := &RuleIndex{
		rules:   make([]domain.ProtocolRule, len(rules)),
		byID:    make(map[string]int, len(rules)),
		byNorm:  make(map[string]int, len(rules)),
		tokens:  make([][]string, len(rules)),
		section: make(map[string]int),
	}

	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if first, dup := idx.byID[r.RuleID]; dup {
			return nil, &domain.DuplicateRuleIDError{RuleID: r.RuleID, FirstIndex: first, SecondIndex: i}
		}

		r.ProcedureNormalized = textnorm.Normalize(r.Procedure)
		r.PrimaryRecommendation = copyRecommendation(r.PrimaryRecommendation)
		r.AllergyRecommendation = copyRecommendation(r.AllergyRecommendation)

		idx.rules[i] = r
		idx.byID[r.RuleID] = i
		if _, ok := idx.byNorm[r.ProcedureNormalized]; !ok {
			idx.byNorm[r.ProcedureNormalized] = i
		}
		idx.tokens[i] = strings.Fields(r.ProcedureNormalized)
		idx.section[r.Section]++
	}
	return idx, nil
}

// Len returns the number of rules.
func (idx *RuleIndex) Len() int {
	return len(idx.rules)
}

// LookupExact returns the first rule, in load order, whose normalized
// procedure equals normalized.
func (idx *RuleIndex) LookupExact(normalized string) (*domain.ProtocolRule, bool) {
	i, ok := idx.byNorm[normalized]
	if !ok {
		return nil, false
	}
	return &idx.rules[i], true
}

// Get returns the rule with the given identifier.
func (idx *RuleIndex) Get(ruleID string) (*domain.ProtocolRule, bool) {
	i, ok := idx.byID[ruleID]
	if !ok {
		return nil, false
	}
	return &idx.rules[i], true
}

// AllRules returns the rules in load order. The slice is a copy; the rules
// themselves must be treated as read-only.
func (idx *RuleIndex) AllRules() []domain.ProtocolRule {
	return append([]domain.ProtocolRule(nil), idx.rules...)
}

// RuleStats summarises a rule set.
type RuleStats struct {
	Total                int            `json:"total"`
	ProphylaxisRequired  int            `json:"prophylaxis_required"`
	ProphylaxisNotNeeded int            `json:"prophylaxis_not_required"`
	BySection            map[string]int `json:"by_section"`
	Sections             []string       `json:"sections"`
}

// Stats counts rules per prophylaxis flag and per section.
func (idx *RuleIndex) Stats() RuleStats {
	s := RuleStats{
		Total:     len(idx.rules),
		BySection: make(map[string]int, len(idx.section)),
	}
	for _, r := range idx.rules {
		if r.IsProphylaxisRequired {
			s.ProphylaxisRequired++
		} else {
			s.ProphylaxisNotNeeded++
		}
	}
	for name, n := range idx.section {
		s.BySection[name] = n
		s.Sections = append(s.Sections, name)
	}
	sort.Strings(s.Sections)
	return s
}

func copyRecommendation(r domain.Recommendation) domain.Recommendation {
	out := r
	out.Drugs = append([]domain.DrugSpec(nil), r.Drugs...)
	return out
}
