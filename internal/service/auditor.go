package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/pkg/textnorm"
)

// ResultObserver is notified once per audited record. Implementations must
// be safe for concurrent use.
type ResultObserver interface {
	ObserveResult(result *domain.AuditResult, elapsed time.Duration)
}

// BatchResult is the outcome of one audit run.
type BatchResult struct {
	RunID      string               `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	Duration   time.Duration        `json:"duration"`
	Results    []domain.AuditResult `json:"results"`
	Statistics AuditStatistics      `json:"statistics"`
}

// Auditor sequences matching, drug detection, validation and combination
// for each surgery record. Its index, matcher and resolver are built once
// and shared read-only by every record.
type Auditor struct {
	logger    *logrus.Logger
	cfg       domain.AuditConfig
	index     *RuleIndex
	matcher   *ProcedureMatcher
	resolver  *DrugAliasResolver
	evaluator *ConformityEvaluator
	observers []ResultObserver
}

// NewAuditor validates the configuration and builds the rule index and the
// alias resolver. Any failure is returned as a *domain.AuditError before a
// single record is audited.
func NewAuditor(logger *logrus.Logger, rules []domain.ProtocolRule, cfg domain.AuditConfig) (*Auditor, error) {
	cfg = cfg.Canonicalize()
	if err := cfg.Validate(); err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeConfiguration, "invalid audit configuration", err, "")
	}

	index, err := NewRuleIndex(rules)
	if err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeIntegrity, "rule index construction failed", err, "")
	}

	resolver, err := NewDrugAliasResolver(cfg.DrugAliases, cfg.DrugFuzzyThreshold)
	if err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeConfiguration, "invalid drug alias dictionary", err, "")
	}

	logger.WithFields(logrus.Fields{
		"rules":           index.Len(),
		"drugs":           len(resolver.CanonicalNames()),
		"match_threshold": cfg.MatchThreshold,
		"translations":    len(cfg.ProcedureTranslations),
	}).Info("Audit engine initialized")

	return &Auditor{
		logger:    logger,
		cfg:       cfg,
		index:     index,
		matcher:   NewProcedureMatcher(index, cfg),
		resolver:  resolver,
		evaluator: NewConformityEvaluator(cfg),
	}, nil
}

// AddObserver registers an observer for subsequent batches.
func (a *Auditor) AddObserver(o ResultObserver) {
	a.observers = append(a.observers, o)
}

// Index returns the rule index of the session.
func (a *Auditor) Index() *RuleIndex { return a.index }

// Matcher returns the procedure matcher of the session.
func (a *Auditor) Matcher() *ProcedureMatcher { return a.matcher }

// Resolver returns the drug alias resolver of the session.
func (a *Auditor) Resolver() *DrugAliasResolver { return a.resolver }

// AuditRecord audits a single record outside of a batch.
func (a *Auditor) AuditRecord(record *domain.SurgeryRecord) domain.AuditResult {
	return a.audit(record, nil, "")
}

// AuditBatch audits every record and returns one result per record in input
// order. Records are processed concurrently by cfg.Workers goroutines. The
// only error is cancellation of ctx, in which case no results are returned.
func (a *Auditor) AuditBatch(ctx context.Context, records []domain.SurgeryRecord) (*BatchResult, error) {
	runID := uuid.New().String()
	started := time.Now()

	cache, err := textnorm.NewCache(a.cfg.NormalizationCacheSize)
	if err != nil {
		return nil, domain.NewAuditError(domain.ErrCodeInternal, "normalization cache", err, runID)
	}

	a.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"records": len(records),
		"workers": a.cfg.Workers,
	}).Info("Starting audit batch")

	results := make([]domain.AuditResult, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)

	for i := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			begin := time.Now()
			results[i] = a.audit(&records[i], cache, runID)
			for _, o := range a.observers {
				o.ObserveResult(&results[i], time.Since(begin))
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		// the loop may stop launching work without any goroutine failing
		err = ctx.Err()
	}
	if err != nil {
		a.logger.WithError(err).WithField("run_id", runID).Warn("Audit batch abandoned")
		return nil, fmt.Errorf("audit batch %s: %w", runID, err)
	}

	batch := &BatchResult{
		RunID:      runID,
		StartedAt:  started,
		Duration:   time.Since(started),
		Results:    results,
		Statistics: ComputeStatistics(results),
	}

	a.logger.WithFields(logrus.Fields{
		"run_id":        runID,
		"records":       len(results),
		"conforme":      batch.Statistics.ByStatus[domain.CONFORME],
		"alerta":        batch.Statistics.ByStatus[domain.ALERTA],
		"nao_conforme":  batch.Statistics.ByStatus[domain.NAO_CONFORME],
		"indeterminado": batch.Statistics.ByStatus[domain.INDETERMINADO],
		"cache_entries": cache.Len(),
		"duration":      batch.Duration,
	}).Info("Audit batch completed")

	return batch, nil
}

func (a *Auditor) audit(record *domain.SurgeryRecord, cache *textnorm.Cache, runID string) domain.AuditResult {
	result := domain.AuditResult{
		Record:      record,
		RunID:       runID,
		MatchMethod: domain.MatchNone,
	}

	match := a.matcher.MatchNormalized(cache.Normalize(record.Procedure))
	rule := match.Rule
	if match.Matched() {
		result.MatchedRuleID = match.RuleID()
		result.MatchScore = match.Score
		result.MatchMethod = match.Method
		result.ProtocolSection = rule.Section
		result.ProtocolProcedure = rule.Procedure
		result.ProtocolRequiresProphylaxis = rule.IsProphylaxisRequired
		result.ProtocolDrugs = rule.PrimaryRecommendation.DrugNames()
		if len(rule.PrimaryRecommendation.Drugs) > 0 {
			result.ProtocolExpectedDose = expectedDoseText(rule.PrimaryRecommendation.Drugs[0].Dose)
		}
		if match.Method == domain.MatchFuzzy || match.Method == domain.MatchTranslatedFuzzy {
			result.Notes = append(result.Notes, fmt.Sprintf("Match aproximado com %q (score %.2f)", rule.Procedure, match.Score))
		}
	} else {
		result.Notes = append(result.Notes, domain.ReasonNoProtocolMatch.Description())
	}

	detected := []string{}
	if record.Administration.Given() {
		detected = a.resolver.ExtractNormalized(cache.Normalize(record.AntibioticText))
		if len(detected) == 0 && record.AntibioticText != "" {
			result.Notes = append(result.Notes, fmt.Sprintf("Antibiotico nao reconhecido: %q", record.AntibioticText))
		}
	}
	result.DetectedDrugs = detected

	choice := a.evaluator.EvaluateChoice(record, rule, detected)
	dose := a.evaluator.EvaluateDose(record, rule, detected)
	timing := a.evaluator.EvaluateTiming(record, rule)
	redose := a.evaluator.EvaluateRedose(record, rule, detected)

	result.ChoiceStatus, result.ChoiceReason = choice.Status, choice.Reason
	result.DoseStatus, result.DoseReason = dose.Status, dose.Reason
	result.TimingStatus, result.TimingReason = timing.Status, timing.Reason
	result.RedoseStatus, result.RedoseReason = redose.Status, redose.Reason
	result.AdministeredDoseMg = dose.AdministeredMg
	result.DoseDiffMg = dose.DiffMg
	result.DoseDiffPct = dose.DiffPct
	result.TimingDiffMinutes = timing.DiffMinutes
	result.RedoseDiffMinutes = redose.DiffMinutes

	result.FinalStatus, result.FinalReason = CombineCriteria(choice, dose.CriterionResult, timing.CriterionResult)

	fields := logrus.Fields(result.FinalStatus.LogFields())
	fields["run_id"] = runID
	fields["row"] = record.RowIndex
	fields["procedure"] = record.Procedure
	fields["matched"] = result.MatchMethod.IsMatched()
	fields["match_method"] = result.MatchMethod
	fields["match_score"] = result.MatchScore
	a.logger.WithFields(fields).Debug("Record audited")

	return result
}
