package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prophylaxis-audit/internal/domain"
)

type countingObserver struct {
	mu     sync.Mutex
	counts map[domain.ConformityStatus]int
}

func (o *countingObserver) ObserveResult(result *domain.AuditResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[result.FinalStatus]++
}

func newTestAuditor(t *testing.T, mutate func(*domain.AuditConfig)) *Auditor {
	t.Helper()
	cfg := domain.DefaultAuditConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := NewAuditor(testLogger(), testRules(), cfg)
	require.NoError(t, err)
	return a
}

func TestAuditor_EndToEndConforming(t *testing.T) {
	a := newTestAuditor(t, nil)
	record := &domain.SurgeryRecord{
		Procedure:          "Colecistectomia videolaparoscópica",
		Administration:     domain.AdministeredYes,
		AntibioticText:     "KEFAZOL 2G",
		AdministrationTime: "09:15",
		IncisionTime:       "10:00",
	}

	res := a.AuditRecord(record)

	require.NotNil(t, res.MatchedRuleID)
	assert.Equal(t, "CG-01", *res.MatchedRuleID)
	assert.Equal(t, 1.0, res.MatchScore)
	assert.Equal(t, domain.MatchExact, res.MatchMethod)
	assert.Same(t, record, res.Record)
	assert.Equal(t, []string{"CEFAZOLINA"}, res.DetectedDrugs)

	assert.Equal(t, domain.CONFORME, res.ChoiceStatus)
	assert.Equal(t, domain.CONFORME, res.DoseStatus)
	assert.Equal(t, domain.CONFORME, res.TimingStatus)
	assert.Equal(t, domain.CONFORME, res.FinalStatus)
	assert.Equal(t, "todos_criterios_conformes", res.FinalReason)

	require.NotNil(t, res.TimingDiffMinutes)
	assert.Equal(t, 45, *res.TimingDiffMinutes)
	require.NotNil(t, res.DoseDiffPct)
	assert.Equal(t, 0.0, *res.DoseDiffPct)
	require.NotNil(t, res.AdministeredDoseMg)
	assert.Equal(t, 2000.0, *res.AdministeredDoseMg)

	assert.Equal(t, "Cirurgia Geral", res.ProtocolSection)
	assert.Equal(t, []string{"CEFAZOLINA"}, res.ProtocolDrugs)
	assert.Equal(t, "2g", res.ProtocolExpectedDose)
	assert.True(t, res.ProtocolRequiresProphylaxis)
}

func TestAuditor_UnmatchedProcedure(t *testing.T) {
	a := newTestAuditor(t, nil)

	res := a.AuditRecord(&domain.SurgeryRecord{
		Procedure:          "Transplante cardiaco",
		Administration:     domain.AdministeredYes,
		AntibioticText:     "Kefazol 2g",
		AdministrationTime: "09:15",
		IncisionTime:       "10:00",
	})

	assert.Nil(t, res.MatchedRuleID)
	assert.Equal(t, 0.0, res.MatchScore)
	assert.Equal(t, domain.MatchNone, res.MatchMethod)
	assert.Equal(t, domain.INDETERMINADO, res.ChoiceStatus)
	assert.Equal(t, domain.INDETERMINADO, res.DoseStatus)
	assert.Equal(t, domain.INDETERMINADO, res.TimingStatus)
	assert.Equal(t, domain.INDETERMINADO, res.FinalStatus)
	assert.Equal(t, "sem_match_protocolo", res.FinalReason)
	assert.Nil(t, res.DoseDiffPct)
	assert.Nil(t, res.TimingDiffMinutes)
	assert.NotEmpty(t, res.Notes)
}

func TestAuditor_NotRequiredAndNotGiven(t *testing.T) {
	a := newTestAuditor(t, nil)

	res := a.AuditRecord(&domain.SurgeryRecord{
		Procedure:      "Herniorrafia inguinal",
		Administration: domain.AdministeredNo,
	})

	assert.Equal(t, domain.CONFORME, res.ChoiceStatus)
	assert.Equal(t, domain.ReasonProphylaxisNotRequired, res.ChoiceReason)
	assert.Equal(t, domain.INDETERMINADO, res.DoseStatus)
	assert.Equal(t, domain.ReasonNotAdministered, res.DoseReason)
	assert.Equal(t, domain.INDETERMINADO, res.TimingStatus)
	assert.Equal(t, domain.ReasonNotAdministered, res.TimingReason)
	assert.Equal(t, domain.INDETERMINADO, res.FinalStatus)
	assert.Equal(t, "atb_nao_administrado", res.FinalReason)
	assert.Nil(t, res.AdministeredDoseMg)
	assert.Empty(t, res.DetectedDrugs)
}

func TestAuditor_RequiredButNotGiven(t *testing.T) {
	a := newTestAuditor(t, nil)

	res := a.AuditRecord(&domain.SurgeryRecord{
		Procedure:          "Apendicectomia",
		Administration:     domain.AdministeredNo,
		AntibioticText:     "Kefazol 2g",
		AdministrationTime: "12:00",
	})

	assert.Equal(t, domain.NAO_CONFORME, res.ChoiceStatus)
	assert.Equal(t, domain.NAO_CONFORME, res.FinalStatus)
	assert.Equal(t, "atb_nao_administrado", res.FinalReason)
	assert.Empty(t, res.DetectedDrugs, "antibiotic text is not authoritative when nothing was given")
}

func TestAuditor_MalformedTimeOnlyAffectsTiming(t *testing.T) {
	a := newTestAuditor(t, nil)

	res := a.AuditRecord(&domain.SurgeryRecord{
		Procedure:          "Colecistectomia videolaparoscópica",
		Administration:     domain.AdministeredYes,
		AntibioticText:     "KEFAZOL 2G",
		AdministrationTime: "nove e quinze",
		IncisionTime:       "10:00",
	})

	assert.Equal(t, domain.CONFORME, res.ChoiceStatus)
	assert.Equal(t, domain.CONFORME, res.DoseStatus)
	assert.Equal(t, domain.INDETERMINADO, res.TimingStatus)
	assert.Equal(t, domain.ReasonTimeUnparseable, res.TimingReason)
	assert.Equal(t, domain.INDETERMINADO, res.FinalStatus)
}

func TestNewAuditor_SetupFailures(t *testing.T) {
	t.Run("duplicate rule id", func(t *testing.T) {
		rules := append(testRules(), domain.ProtocolRule{RuleID: "CG-01", Procedure: "Outra"})
		a, err := NewAuditor(testLogger(), rules, domain.DefaultAuditConfig())
		assert.Nil(t, a)

		var auditErr *domain.AuditError
		require.True(t, errors.As(err, &auditErr))
		assert.Equal(t, domain.ErrCodeIntegrity, auditErr.Code)
		assert.True(t, errors.Is(err, domain.ErrDuplicateRuleID))
	})

	t.Run("malformed alias dictionary", func(t *testing.T) {
		cfg := domain.DefaultAuditConfig()
		cfg.DrugAliases = map[string][]string{"CEFAZOLINA": {}}
		_, err := NewAuditor(testLogger(), testRules(), cfg)

		var auditErr *domain.AuditError
		require.True(t, errors.As(err, &auditErr))
		assert.Equal(t, domain.ErrCodeConfiguration, auditErr.Code)
		assert.True(t, errors.Is(err, domain.ErrInvalidAliasDictionary))
	})

	t.Run("invalid tolerance bands", func(t *testing.T) {
		cfg := domain.DefaultAuditConfig()
		cfg.AlertDoseTolerancePercent = 20
		_, err := NewAuditor(testLogger(), testRules(), cfg)

		var auditErr *domain.AuditError
		require.True(t, errors.As(err, &auditErr))
		assert.Equal(t, domain.ErrCodeConfiguration, auditErr.Code)
	})
}

func TestAuditor_AuditBatch(t *testing.T) {
	a := newTestAuditor(t, func(c *domain.AuditConfig) { c.Workers = 3 })
	observer := &countingObserver{counts: make(map[domain.ConformityStatus]int)}
	a.AddObserver(observer)

	var records []domain.SurgeryRecord
	for i := 0; i < 20; i++ {
		rec := domain.SurgeryRecord{
			RowIndex:           i,
			Procedure:          "Colecistectomia videolaparoscópica",
			Administration:     domain.AdministeredYes,
			AntibioticText:     "KEFAZOL 2G",
			AdministrationTime: "09:15",
			IncisionTime:       "10:00",
		}
		if i%4 == 0 {
			rec.Procedure = "Transplante cardiaco"
		}
		records = append(records, rec)
	}

	batch, err := a.AuditBatch(context.Background(), records)
	require.NoError(t, err)

	_, err = uuid.Parse(batch.RunID)
	assert.NoError(t, err)
	require.Len(t, batch.Results, len(records))

	for i := range batch.Results {
		res := batch.Results[i]
		assert.Same(t, &records[i], res.Record, "results keep input order and record identity")
		assert.Equal(t, batch.RunID, res.RunID)
		if i%4 == 0 {
			assert.Equal(t, domain.INDETERMINADO, res.FinalStatus)
		} else {
			assert.Equal(t, domain.CONFORME, res.FinalStatus)
		}
	}

	assert.Equal(t, 15, batch.Statistics.ByStatus[domain.CONFORME])
	assert.Equal(t, 5, batch.Statistics.ByStatus[domain.INDETERMINADO])
	assert.Equal(t, 15, observer.counts[domain.CONFORME])
	assert.Equal(t, 5, observer.counts[domain.INDETERMINADO])
}

func TestAuditor_AuditBatchCancelled(t *testing.T) {
	a := newTestAuditor(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []domain.SurgeryRecord{{Procedure: "Apendicectomia", Administration: domain.AdministeredNo}}
	batch, err := a.AuditBatch(ctx, records)

	assert.Nil(t, batch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuditor_AuditBatchEmpty(t *testing.T) {
	a := newTestAuditor(t, nil)

	batch, err := a.AuditBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
	assert.Equal(t, 0, batch.Statistics.Total)
}

func TestAuditor_RecordAuditTrail(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	a, err := NewAuditor(logger, testRules(), domain.DefaultAuditConfig())
	require.NoError(t, err)

	a.AuditRecord(&domain.SurgeryRecord{
		RowIndex:       7,
		Procedure:      "Apendicectomia",
		Administration: domain.AdministeredNo,
	})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, "Record audited", entry.Message)
	assert.Equal(t, "NAO_CONFORME", entry.Data["status"])
	assert.Equal(t, 3, entry.Data["severity"])
	assert.Equal(t, true, entry.Data["requires_review"])
	assert.Equal(t, true, entry.Data["matched"])
	assert.Equal(t, domain.MatchExact, entry.Data["match_method"])
	assert.Equal(t, 7, entry.Data["row"])
}
