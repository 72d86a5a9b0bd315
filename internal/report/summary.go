package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/internal/service"
)

const (
	summaryWidth   = 70
	topReasonCount = 3
)

type reasonCount struct {
	reason domain.ReasonCode
	count  int
}

// WriteSummary writes the human-readable audit summary.
func WriteSummary(out io.Writer, batch *service.BatchResult, generatedAt time.Time) error {
	w := bufio.NewWriter(out)
	stats := batch.Statistics
	total := stats.Total

	rule := func(c string) { fmt.Fprintln(w, strings.Repeat(c, summaryWidth)) }

	rule("=")
	fmt.Fprintln(w, "RELATORIO DE AUDITORIA - PROFILAXIA ANTIMICROBIANA")
	rule("=")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Data do Relatorio: %s\n", generatedAt.Format("02/01/2006 15:04"))
	fmt.Fprintf(w, "Execucao: %s\n", batch.RunID)
	fmt.Fprintf(w, "Total de Cirurgias Auditadas: %d\n", total)
	fmt.Fprintln(w)

	rule("-")
	fmt.Fprintln(w, "RESUMO DE CONFORMIDADE")
	rule("-")
	for _, s := range []struct {
		label  string
		status domain.ConformityStatus
	}{
		{"Conforme", domain.CONFORME},
		{"Alerta", domain.ALERTA},
		{"Nao Conforme", domain.NAO_CONFORME},
		{"Indeterminado", domain.INDETERMINADO},
	} {
		n := stats.ByStatus[s.status]
		fmt.Fprintf(w, "  %-22s %4d (%5.1f%%)\n", s.label+":", n, percent(n, total))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Taxa de Conformidade Total:   %.1f%%\n", stats.ConformityRate)
	fmt.Fprintf(w, "  Taxa de Conformidade Estrita: %.1f%%\n", stats.StrictConformityRate)
	fmt.Fprintln(w)

	rule("-")
	fmt.Fprintln(w, "CONFORMIDADE POR CRITERIO")
	rule("-")
	for _, c := range []struct {
		label string
		n     int
	}{
		{"Escolha de Antibiotico:", stats.Criteria.ChoiceConforming},
		{"Dose Correta:", stats.Criteria.DoseConforming},
		{"Timing Adequado:", stats.Criteria.TimingConforming},
		{"Repique Adequado:", stats.Criteria.RedoseConforming},
	} {
		fmt.Fprintf(w, "  %-24s %d/%d (%.1f%%)\n", c.label, c.n, total, percent(c.n, total))
	}
	fmt.Fprintln(w)

	rule("-")
	fmt.Fprintln(w, "QUALIDADE DO MATCH")
	rule("-")
	fmt.Fprintf(w, "  Alta (>= 0.90):  %d\n", stats.MatchQuality.High)
	fmt.Fprintf(w, "  Boa (>= 0.70):   %d\n", stats.MatchQuality.Good)
	fmt.Fprintf(w, "  Fraca:           %d\n", stats.MatchQuality.Weak)
	fmt.Fprintf(w, "  Sem match:       %d\n", stats.MatchQuality.NoMatch)
	fmt.Fprintln(w)

	rule("-")
	fmt.Fprintln(w, "PRINCIPAIS NAO CONFORMIDADES")
	rule("-")
	if stats.ByStatus[domain.NAO_CONFORME] == 0 {
		fmt.Fprintln(w, "  Nenhuma nao conformidade detectada.")
	} else {
		sections := []struct {
			label  string
			reason func(*domain.AuditResult) (domain.ConformityStatus, domain.ReasonCode)
		}{
			{"Problemas de Escolha", func(r *domain.AuditResult) (domain.ConformityStatus, domain.ReasonCode) {
				return r.ChoiceStatus, r.ChoiceReason
			}},
			{"Problemas de Dose", func(r *domain.AuditResult) (domain.ConformityStatus, domain.ReasonCode) {
				return r.DoseStatus, r.DoseReason
			}},
			{"Problemas de Timing", func(r *domain.AuditResult) (domain.ConformityStatus, domain.ReasonCode) {
				return r.TimingStatus, r.TimingReason
			}},
		}
		for _, section := range sections {
			top := topReasons(batch.Results, section.reason)
			if len(top) == 0 {
				continue
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  %s:\n", section.label)
			for _, rc := range top {
				fmt.Fprintf(w, "    - %s: %d casos\n", rc.reason.Description(), rc.count)
			}
		}
	}
	fmt.Fprintln(w)
	rule("=")

	return w.Flush()
}

// topReasons counts the NAO_CONFORME reasons of one criterion among
// non-conforming results.
func topReasons(results []domain.AuditResult, pick func(*domain.AuditResult) (domain.ConformityStatus, domain.ReasonCode)) []reasonCount {
	counts := make(map[domain.ReasonCode]int)
	for i := range results {
		if results[i].FinalStatus != domain.NAO_CONFORME {
			continue
		}
		status, reason := pick(&results[i])
		if status == domain.NAO_CONFORME && reason != "" {
			counts[reason]++
		}
	}

	list := make([]reasonCount, 0, len(counts))
	for reason, n := range counts {
		list = append(list, reasonCount{reason: reason, count: n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].reason < list[j].reason
	})
	if len(list) > topReasonCount {
		list = list[:topReasonCount]
	}
	return list
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}
