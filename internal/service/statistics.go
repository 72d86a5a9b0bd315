package service

import (
	"github.com/prophylaxis-audit/internal/domain"
)

// MatchQuality buckets match scores.
type MatchQuality struct {
	High    int `json:"alta"`  // score >= 0.9
	Good    int `json:"boa"`   // 0.7 <= score < 0.9
	Weak    int `json:"fraca"` // 0 < score < 0.7
	NoMatch int `json:"sem_match"`
}

// CriterionCounts counts CONFORME (and ALERTA for dose) per criterion.
type CriterionCounts struct {
	ChoiceConforming int `json:"escolha_conforme"`
	DoseConforming   int `json:"dose_conforme"`
	DoseAlert        int `json:"dose_alerta"`
	TimingConforming int `json:"timing_conforme"`
	RedoseConforming int `json:"repique_conforme"`
}

// AuditStatistics summarises a batch of audit results. ConformityRate
// counts CONFORME and ALERTA, StrictConformityRate only CONFORME; both are
// percentages of Total.
type AuditStatistics struct {
	Total                int                             `json:"total"`
	ByStatus             map[domain.ConformityStatus]int `json:"por_status"`
	Criteria             CriterionCounts                 `json:"por_criterio"`
	MatchQuality         MatchQuality                    `json:"qualidade_match"`
	ConformityRate       float64                         `json:"taxa_conformidade"`
	StrictConformityRate float64                         `json:"taxa_conformidade_estrita"`
}

// ComputeStatistics aggregates results. An empty batch yields zero rates.
func ComputeStatistics(results []domain.AuditResult) AuditStatistics {
	stats := AuditStatistics{
		Total: len(results),
		ByStatus: map[domain.ConformityStatus]int{
			domain.CONFORME:      0,
			domain.ALERTA:        0,
			domain.NAO_CONFORME:  0,
			domain.INDETERMINADO: 0,
		},
	}

	for i := range results {
		r := &results[i]
		stats.ByStatus[r.FinalStatus]++

		if r.ChoiceStatus == domain.CONFORME {
			stats.Criteria.ChoiceConforming++
		}
		switch r.DoseStatus {
		case domain.CONFORME:
			stats.Criteria.DoseConforming++
		case domain.ALERTA:
			stats.Criteria.DoseAlert++
		}
		if r.TimingStatus == domain.CONFORME {
			stats.Criteria.TimingConforming++
		}
		if r.RedoseStatus == domain.CONFORME {
			stats.Criteria.RedoseConforming++
		}

		switch {
		case !r.IsMatched() || r.MatchScore <= 0:
			stats.MatchQuality.NoMatch++
		case r.MatchScore >= 0.9:
			stats.MatchQuality.High++
		case r.MatchScore >= 0.7:
			stats.MatchQuality.Good++
		default:
			stats.MatchQuality.Weak++
		}
	}

	if stats.Total > 0 {
		total := float64(stats.Total)
		conforming := stats.ByStatus[domain.CONFORME] + stats.ByStatus[domain.ALERTA]
		stats.ConformityRate = roundTo(float64(conforming)*100/total, 2)
		stats.StrictConformityRate = roundTo(float64(stats.ByStatus[domain.CONFORME])*100/total, 2)
	}
	return stats
}
