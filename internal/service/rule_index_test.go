package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prophylaxis-audit/internal/domain"
)

func TestNewRuleIndex(t *testing.T) {
	rules := testRules()
	rules[0].ProcedureNormalized = "stale value"

	idx := mustIndex(t, rules)

	assert.Equal(t, 4, idx.Len())

	rule, ok := idx.LookupExact("colecistectomia videolaparoscopica")
	require.True(t, ok)
	assert.Equal(t, "CG-01", rule.RuleID)
	assert.Equal(t, "colecistectomia videolaparoscopica", rule.ProcedureNormalized)

	_, ok = idx.LookupExact("Colecistectomia videolaparoscópica")
	assert.False(t, ok, "lookup expects a normalized key")

	got, ok := idx.Get("OR-01")
	require.True(t, ok)
	assert.Equal(t, "Artroplastia total de quadril", got.Procedure)

	_, ok = idx.Get("missing")
	assert.False(t, ok)
}

func TestRuleIndex_AllRulesKeepsLoadOrder(t *testing.T) {
	idx := mustIndex(t, testRules())

	var ids []string
	for _, r := range idx.AllRules() {
		ids = append(ids, r.RuleID)
	}
	assert.Equal(t, []string{"CG-01", "CG-02", "CG-03", "OR-01"}, ids)
}

func TestRuleIndex_IsIsolatedFromInput(t *testing.T) {
	rules := testRules()
	idx := mustIndex(t, rules)

	rules[0].Procedure = "changed"
	rules[0].PrimaryRecommendation.Drugs[0].Name = "VANCOMICINA"

	rule, ok := idx.Get("CG-01")
	require.True(t, ok)
	assert.Equal(t, "Colecistectomia videolaparoscópica", rule.Procedure)
	assert.Equal(t, "CEFAZOLINA", rule.PrimaryRecommendation.Drugs[0].Name)
}

func TestRuleIndex_ExactLookupPrefersFirstLoaded(t *testing.T) {
	rules := []domain.ProtocolRule{
		{RuleID: "Z-1", Procedure: "Mastectomia"},
		{RuleID: "A-1", Procedure: "MASTECTOMIA"},
	}
	idx := mustIndex(t, rules)

	rule, ok := idx.LookupExact("mastectomia")
	require.True(t, ok)
	assert.Equal(t, "Z-1", rule.RuleID)
}

func TestNewRuleIndex_DuplicateRuleID(t *testing.T) {
	rules := testRules()
	rules = append(rules, domain.ProtocolRule{RuleID: "CG-02", Procedure: "Outra"})

	idx, err := NewRuleIndex(rules)
	assert.Nil(t, idx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateRuleID))

	var dup *domain.DuplicateRuleIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "CG-02", dup.RuleID)
	assert.Equal(t, 1, dup.FirstIndex)
	assert.Equal(t, 4, dup.SecondIndex)
}

func TestNewRuleIndex_InvalidRule(t *testing.T) {
	_, err := NewRuleIndex([]domain.ProtocolRule{{RuleID: "", Procedure: "Mastectomia"}})

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "rule_id", verr.Field)
}

func TestRuleIndex_Stats(t *testing.T) {
	stats := mustIndex(t, testRules()).Stats()

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.ProphylaxisRequired)
	assert.Equal(t, 1, stats.ProphylaxisNotNeeded)
	assert.Equal(t, map[string]int{"Cirurgia Geral": 3, "Ortopedia": 1}, stats.BySection)
	assert.Equal(t, []string{"Cirurgia Geral", "Ortopedia"}, stats.Sections)
}
