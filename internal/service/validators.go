package service

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/pkg/units"
)

// CriterionResult is the verdict of one audit criterion.
type CriterionResult struct {
	Status domain.ConformityStatus
	Reason domain.ReasonCode
}

// DoseEvaluation carries the dose verdict and the values behind it.
// Numeric fields are nil when the dose could not be compared.
type DoseEvaluation struct {
	CriterionResult
	Drug           string
	Expected       string
	RecommendedMg  *float64
	AdministeredMg *float64
	DiffMg         *float64
	DiffPct        *float64
}

// TimingEvaluation carries the timing verdict. DiffMinutes is incision
// minus administration; positive means the antibiotic came first.
type TimingEvaluation struct {
	CriterionResult
	DiffMinutes *int
}

// RedoseEvaluation carries the redose verdict. DiffMinutes is redose minus
// administration.
type RedoseEvaluation struct {
	CriterionResult
	DiffMinutes *int
}

// ConformityEvaluator holds the choice, dose, timing and redose checks.
// Every method is a pure function of its arguments and the configuration.
type ConformityEvaluator struct {
	cfg domain.AuditConfig
}

// NewConformityEvaluator creates an evaluator for cfg.
func NewConformityEvaluator(cfg domain.AuditConfig) *ConformityEvaluator {
	return &ConformityEvaluator{cfg: cfg}
}

func criterion(status domain.ConformityStatus, reason domain.ReasonCode) CriterionResult {
	return CriterionResult{Status: status, Reason: reason}
}

// notGiven resolves dose and timing for a record whose antibiotic was not
// confirmed as administered: there is nothing to measure, whether or not
// the protocol asks for prophylaxis. ok is false when the antibiotic was given.
func notGiven(record *domain.SurgeryRecord) (CriterionResult, bool) {
	switch {
	case !record.Administration.IsKnown():
		return criterion(domain.INDETERMINADO, domain.ReasonAdministrationUnknown), true
	case record.Administration.Given():
		return CriterionResult{}, false
	default:
		return criterion(domain.INDETERMINADO, domain.ReasonNotAdministered), true
	}
}

// EvaluateChoice checks the administered drugs against the applicable
// recommendation list.
func (e *ConformityEvaluator) EvaluateChoice(record *domain.SurgeryRecord, rule *domain.ProtocolRule, detected []string) CriterionResult {
	if rule == nil {
		return criterion(domain.INDETERMINADO, domain.ReasonNoProtocolMatch)
	}
	if !record.Administration.IsKnown() {
		return criterion(domain.INDETERMINADO, domain.ReasonAdministrationUnknown)
	}
	if !record.Administration.Given() {
		if rule.IsProphylaxisRequired {
			return criterion(domain.NAO_CONFORME, domain.ReasonNotAdministered)
		}
		return criterion(domain.CONFORME, domain.ReasonProphylaxisNotRequired)
	}

	rec := rule.ApplicableRecommendation(record.PatientAllergic)
	if !rule.IsProphylaxisRequired && len(rec.Drugs) == 0 {
		return criterion(domain.ALERTA, domain.ReasonProphylaxisNotIndicated)
	}
	if len(detected) == 0 {
		return criterion(domain.INDETERMINADO, domain.ReasonDrugNotIdentified)
	}
	if len(rec.Drugs) == 0 {
		return criterion(domain.INDETERMINADO, domain.ReasonNoProtocolReference)
	}

	for _, d := range detected {
		if _, ok := rec.Find(d); ok {
			return criterion(domain.CONFORME, domain.ReasonRecommendedDrug)
		}
	}
	return criterion(domain.NAO_CONFORME, domain.ReasonDrugNotRecommended)
}

// EvaluateDose compares the administered amount with the recommended one.
// The reference drug is the first detected drug present in the applicable
// recommendation, or the first recommended drug otherwise.
func (e *ConformityEvaluator) EvaluateDose(record *domain.SurgeryRecord, rule *domain.ProtocolRule, detected []string) DoseEvaluation {
	if rule == nil {
		return DoseEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonNoProtocolMatch)}
	}
	if res, ok := notGiven(record); ok {
		return DoseEvaluation{CriterionResult: res}
	}

	rec := rule.ApplicableRecommendation(record.PatientAllergic)
	if len(rec.Drugs) == 0 {
		return DoseEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonDoseNoReference)}
	}
	spec := referenceDrug(rec, detected)
	ev := DoseEvaluation{Drug: strings.ToUpper(spec.Name), Expected: expectedDoseText(spec.Dose)}

	if spec.Dose.Unit == "" {
		if strings.TrimSpace(spec.Dose.Raw) != "" {
			ev.CriterionResult = criterion(domain.INDETERMINADO, domain.ReasonDoseUnrecognizedUnit)
		} else {
			ev.CriterionResult = criterion(domain.INDETERMINADO, domain.ReasonDoseNoReference)
		}
		return ev
	}

	weight := 0.0
	if record.HasWeight() {
		weight = *record.WeightKg
	}
	maxMg := 0.0
	if c, ok := e.cfg.DoseCaps[ev.Drug]; ok {
		maxMg = c.Limit(weight)
	}

	recommended, err := units.ToMilligrams(spec.Dose, weight, maxMg)
	switch {
	case errors.Is(err, domain.ErrWeightRequired):
		ev.CriterionResult = criterion(domain.INDETERMINADO, domain.ReasonDoseNoWeight)
		return ev
	case err != nil:
		ev.CriterionResult = criterion(domain.INDETERMINADO, domain.ReasonDoseUnrecognizedUnit)
		return ev
	case recommended <= 0:
		ev.CriterionResult = criterion(domain.INDETERMINADO, domain.ReasonDoseNoReference)
		return ev
	}
	ev.RecommendedMg = &recommended

	administered, ok := units.AdministeredMilligrams(record.AntibioticText)
	if !ok {
		ev.CriterionResult = criterion(domain.INDETERMINADO, domain.ReasonDoseNotInformed)
		return ev
	}
	ev.AdministeredMg = &administered

	diffMg := administered - recommended
	exactPct := math.Abs(diffMg) * 100 / recommended
	diffPct := roundTo(exactPct, 4)
	ev.DiffMg = &diffMg
	ev.DiffPct = &diffPct

	status := ClassifyDoseDeviation(exactPct, e.cfg.AlertDoseTolerancePercent, e.cfg.DoseTolerancePercent)
	switch {
	case status == domain.CONFORME:
		ev.CriterionResult = criterion(status, domain.ReasonDoseCorrect)
	case status == domain.ALERTA:
		ev.CriterionResult = criterion(status, domain.ReasonDoseSmallDifference)
	case diffMg < 0:
		ev.CriterionResult = criterion(status, domain.ReasonDoseTooLow)
	default:
		ev.CriterionResult = criterion(status, domain.ReasonDoseTooHigh)
	}
	return ev
}

// bandEpsilon is the floating-point slack allowed at a tolerance band edge.
const bandEpsilon = 1e-9

// ClassifyDoseDeviation maps an absolute percent deviation onto the
// tolerance bands: <= alert is CONFORME, <= tolerance is ALERTA, above is
// NAO_CONFORME.
func ClassifyDoseDeviation(diffPct, alertTolerance, tolerance float64) domain.ConformityStatus {
	switch {
	case diffPct <= alertTolerance+bandEpsilon:
		return domain.CONFORME
	case diffPct <= tolerance+bandEpsilon:
		return domain.ALERTA
	default:
		return domain.NAO_CONFORME
	}
}

// EvaluateTiming checks that the antibiotic was given before the incision
// and within the configured window.
func (e *ConformityEvaluator) EvaluateTiming(record *domain.SurgeryRecord, rule *domain.ProtocolRule) TimingEvaluation {
	if rule == nil {
		return TimingEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonNoProtocolMatch)}
	}
	if res, ok := notGiven(record); ok {
		return TimingEvaluation{CriterionResult: res}
	}
	if strings.TrimSpace(record.AdministrationTime) == "" || strings.TrimSpace(record.IncisionTime) == "" {
		return TimingEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonTimesNotInformed)}
	}

	admin, err := units.ParseClock(record.AdministrationTime)
	if err != nil {
		return TimingEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonTimeUnparseable)}
	}
	incision, err := units.ParseClock(record.IncisionTime)
	if err != nil {
		return TimingEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonTimeUnparseable)}
	}

	diff := units.MinutesBetween(admin, incision)
	ev := TimingEvaluation{DiffMinutes: &diff}
	status := ClassifyTimingDelta(diff, e.cfg.TimingWindowMinutes)
	switch {
	case diff < 0:
		ev.CriterionResult = criterion(status, domain.ReasonTimingAfterIncision)
	case status == domain.NAO_CONFORME:
		ev.CriterionResult = criterion(status, domain.ReasonTimingOutOfWindow)
	default:
		ev.CriterionResult = criterion(status, domain.ReasonTimingCorrect)
	}
	return ev
}

// ClassifyTimingDelta classifies minutes between administration and
// incision: negative or beyond window is NAO_CONFORME.
func ClassifyTimingDelta(diffMinutes, windowMinutes int) domain.ConformityStatus {
	if diffMinutes < 0 || diffMinutes > windowMinutes {
		return domain.NAO_CONFORME
	}
	return domain.CONFORME
}

// EvaluateRedose checks the redose against the drug's redosing interval.
// The result is informational and does not enter the final verdict.
func (e *ConformityEvaluator) EvaluateRedose(record *domain.SurgeryRecord, rule *domain.ProtocolRule, detected []string) RedoseEvaluation {
	if !record.Administration.Given() {
		return RedoseEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonNotAdministered)}
	}
	if !record.RedoseGiven {
		return RedoseEvaluation{CriterionResult: criterion(domain.CONFORME, domain.ReasonRedoseNotApplicable)}
	}

	drug := ""
	if len(detected) > 0 {
		drug = detected[0]
	} else if rule != nil {
		if names := rule.ApplicableRecommendation(record.PatientAllergic).DrugNames(); len(names) > 0 {
			drug = names[0]
		}
	}
	if drug == "" {
		return RedoseEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonDrugNotIdentified)}
	}

	interval := e.cfg.RedosingIntervals[strings.ToUpper(drug)]
	if interval <= 0 {
		return RedoseEvaluation{CriterionResult: criterion(domain.CONFORME, domain.ReasonRedoseNotApplicable)}
	}

	admin, err := units.ParseClock(record.AdministrationTime)
	if err != nil {
		return RedoseEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonRedoseNoTimes)}
	}
	redose, err := units.ParseClock(record.RedoseTime)
	if err != nil {
		return RedoseEvaluation{CriterionResult: criterion(domain.INDETERMINADO, domain.ReasonRedoseNoTimes)}
	}

	diff := units.MinutesBetween(admin, redose)
	ev := RedoseEvaluation{DiffMinutes: &diff}
	if abs(diff-interval) <= e.cfg.RedoseToleranceMinutes {
		ev.CriterionResult = criterion(domain.CONFORME, domain.ReasonRedoseInInterval)
	} else {
		ev.CriterionResult = criterion(domain.NAO_CONFORME, domain.ReasonRedoseOutOfInterval)
	}
	return ev
}

func referenceDrug(rec domain.Recommendation, detected []string) domain.DrugSpec {
	for _, d := range detected {
		if spec, ok := rec.Find(d); ok {
			return spec
		}
	}
	return rec.Drugs[0]
}

func expectedDoseText(d domain.Dose) string {
	if strings.TrimSpace(d.Raw) != "" {
		return strings.TrimSpace(d.Raw)
	}
	if d.Unit == "" {
		return ""
	}
	return strconv.FormatFloat(d.Amount, 'f', -1, 64) + string(d.Unit)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
