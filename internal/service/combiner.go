package service

import (
	"strings"

	"github.com/prophylaxis-audit/internal/domain"
)

// Combine merges the choice, dose and timing verdicts. Precedence:
// NAO_CONFORME, then ALERTA, then INDETERMINADO, then CONFORME.
func Combine(choice, dose, timing domain.ConformityStatus) domain.ConformityStatus {
	final := domain.CONFORME
	for _, s := range []domain.ConformityStatus{choice, dose, timing} {
		if !s.IsValid() {
			s = domain.INDETERMINADO
		}
		if s.Severity() > final.Severity() {
			final = s
		}
	}
	return final
}

// CombineCriteria combines three criteria and explains the verdict with the
// distinct reasons of the criteria carrying the final status.
func CombineCriteria(choice, dose, timing CriterionResult) (domain.ConformityStatus, string) {
	final := Combine(choice.Status, dose.Status, timing.Status)
	if final == domain.CONFORME {
		return final, domain.ReasonAllConforming.String()
	}

	var reasons []string
	seen := make(map[domain.ReasonCode]struct{}, 3)
	for _, c := range []CriterionResult{choice, dose, timing} {
		status := c.Status
		if !status.IsValid() {
			status = domain.INDETERMINADO
		}
		if status != final {
			continue
		}
		if _, dup := seen[c.Reason]; dup || c.Reason == "" {
			continue
		}
		seen[c.Reason] = struct{}{}
		reasons = append(reasons, c.Reason.String())
	}
	if len(reasons) == 0 {
		return final, domain.ReasonInsufficient.String()
	}
	return final, strings.Join(reasons, ", ")
}
