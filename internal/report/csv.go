package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/prophylaxis-audit/internal/domain"
)

var csvHeader = []string{
	"linha", "data", "cirurgia", "especialidade", "hr_incisao",
	"atb_administrado", "antibiotico", "hr_antibiotico", "repique", "hr_repique",
	"peso_kg", "alergia",
	"matched_rule_id", "match_score", "match_method",
	"protocolo_secao", "protocolo_procedimento", "protocolo_requer_profilaxia",
	"protocolo_atb_recomendados", "protocolo_dose_esperada",
	"detected_drugs", "dose_administrada_mg",
	"conf_escolha", "conf_escolha_razao",
	"conf_dose", "conf_dose_razao", "dose_diferenca_mg", "dose_diferenca_pct",
	"conf_timing", "conf_timing_razao", "timing_diferenca_minutos",
	"conf_repique", "conf_repique_razao", "repique_diferenca_minutos",
	"conf_final", "conf_final_razao", "observacoes",
	"run_id",
}

// WriteCSV writes one line per result. Multi-valued cells are joined
// with "; ", absent numbers are empty cells.
func WriteCSV(out io.Writer, results []domain.AuditResult) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for i := range results {
		if err := w.Write(csvRow(&results[i])); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func csvRow(r *domain.AuditResult) []string {
	rec := r.Record
	if rec == nil {
		rec = &domain.SurgeryRecord{}
	}

	date := ""
	if !rec.Date.IsZero() {
		date = rec.Date.Format("2006-01-02")
	}
	ruleID := ""
	if r.MatchedRuleID != nil {
		ruleID = *r.MatchedRuleID
	}

	return []string{
		strconv.Itoa(rec.RowIndex), date, rec.Procedure, rec.Specialty, rec.IncisionTime,
		string(rec.Administration), rec.AntibioticText, rec.AdministrationTime,
		yesNo(rec.RedoseGiven), rec.RedoseTime,
		floatCell(rec.WeightKg), yesNo(rec.PatientAllergic),
		ruleID, strconv.FormatFloat(r.MatchScore, 'f', 4, 64), string(r.MatchMethod),
		r.ProtocolSection, r.ProtocolProcedure, yesNo(r.ProtocolRequiresProphylaxis),
		strings.Join(r.ProtocolDrugs, "; "), r.ProtocolExpectedDose,
		strings.Join(r.DetectedDrugs, "; "), floatCell(r.AdministeredDoseMg),
		r.ChoiceStatus.String(), r.ChoiceReason.String(),
		r.DoseStatus.String(), r.DoseReason.String(), floatCell(r.DoseDiffMg), floatCell(r.DoseDiffPct),
		r.TimingStatus.String(), r.TimingReason.String(), intCell(r.TimingDiffMinutes),
		r.RedoseStatus.String(), r.RedoseReason.String(), intCell(r.RedoseDiffMinutes),
		r.FinalStatus.String(), r.FinalReason, strings.Join(r.Notes, "; "),
		r.RunID,
	}
}

func yesNo(b bool) string {
	if b {
		return string(domain.AdministeredYes)
	}
	return string(domain.AdministeredNo)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
