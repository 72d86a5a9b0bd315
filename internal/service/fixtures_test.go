package service

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/prophylaxis-audit/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func drug(name string, amount float64, unit domain.DoseUnit, raw string) domain.DrugSpec {
	return domain.DrugSpec{Name: name, Dose: domain.Dose{Amount: amount, Unit: unit, Raw: raw}, Route: "EV"}
}

func testRules() []domain.ProtocolRule {
	return []domain.ProtocolRule{
		{
			RuleID:                "CG-01",
			Section:               "Cirurgia Geral",
			Procedure:             "Colecistectomia videolaparoscópica",
			IsProphylaxisRequired: true,
			PrimaryRecommendation: domain.Recommendation{Drugs: []domain.DrugSpec{
				drug("CEFAZOLINA", 2, domain.UnitGram, "2g"),
			}},
			AllergyRecommendation: domain.Recommendation{Drugs: []domain.DrugSpec{
				drug("CLINDAMICINA", 900, domain.UnitMilligram, "900mg"),
			}},
		},
		{
			RuleID:                "CG-02",
			Section:               "Cirurgia Geral",
			Procedure:             "Herniorrafia inguinal",
			IsProphylaxisRequired: false,
		},
		{
			RuleID:                "CG-03",
			Section:               "Cirurgia Geral",
			Procedure:             "Apendicectomia",
			IsProphylaxisRequired: true,
			PrimaryRecommendation: domain.Recommendation{Drugs: []domain.DrugSpec{
				drug("CEFAZOLINA", 2, domain.UnitGram, "2g"),
				drug("METRONIDAZOL", 500, domain.UnitMilligram, "500mg"),
			}},
		},
		{
			RuleID:                "OR-01",
			Section:               "Ortopedia",
			Procedure:             "Artroplastia total de quadril",
			IsProphylaxisRequired: true,
			PrimaryRecommendation: domain.Recommendation{Drugs: []domain.DrugSpec{
				drug("CEFAZOLINA", 30, domain.UnitMilligramPerKg, "30 mg/kg"),
			}},
			AllergyRecommendation: domain.Recommendation{Drugs: []domain.DrugSpec{
				drug("VANCOMICINA", 15, domain.UnitMilligramPerKg, "15 mg/kg"),
			}},
		},
	}
}

func mustIndex(t *testing.T, rules []domain.ProtocolRule) *RuleIndex {
	t.Helper()
	idx, err := NewRuleIndex(rules)
	if err != nil {
		t.Fatalf("building rule index: %v", err)
	}
	return idx
}

func weight(kg float64) *float64 {
	return &kg
}
