// Package surgery loads surgery batches exported from the hospital system.
package surgery

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/pkg/textnorm"
)

// minProcedureLength drops rows whose procedure cell is noise ("-", "x").
const minProcedureLength = 3

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02/01/06", "02-01-2006", "2006-01-02 15:04:05"}

// CSVLoader reads surgery records from a delimited file with a header row.
// Header names are matched after normalization, so accents and case in the
// export do not matter.
type CSVLoader struct {
	logger  *logrus.Logger
	cfg     domain.InputConfig
	columns domain.ColumnMap
	yes     map[string]struct{}
}

// NewCSVLoader creates a loader. Empty column names fall back to
// domain.DefaultColumnMap.
func NewCSVLoader(logger *logrus.Logger, cfg domain.InputConfig) *CSVLoader {
	columns := mergeColumns(cfg.Columns, domain.DefaultColumnMap())

	yesValues := cfg.YesValues
	if len(yesValues) == 0 {
		yesValues = domain.DefaultYesValues()
	}
	yes := make(map[string]struct{}, len(yesValues))
	for _, v := range yesValues {
		yes[strings.ToUpper(strings.TrimSpace(v))] = struct{}{}
	}

	return &CSVLoader{logger: logger, cfg: cfg, columns: columns, yes: yes}
}

// LoadSurgeries reads the configured file.
func (l *CSVLoader) LoadSurgeries(ctx context.Context) ([]domain.SurgeryRecord, error) {
	f, err := os.Open(l.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open surgery batch: %w", err)
	}
	defer f.Close()

	return l.Read(ctx, f)
}

// Read parses records from r. Rows with an unusable procedure are skipped
// with a warning; a missing procedure column is an error.
func (l *CSVLoader) Read(ctx context.Context, r io.Reader) ([]domain.SurgeryRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if d := l.cfg.Delimiter; d != "" {
		delim, _ := utf8.DecodeRuneInString(d)
		reader.Comma = delim
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, domain.NewValidationError("input.header", "surgery batch is empty", l.cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	positions := headerPositions(header)
	index := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := positions[textnorm.Normalize(name)]; ok {
			return i
		}
		return -1
	}

	cols := struct {
		date, procedure, specialty, incision, administered, antibiotic, adminTime, redose, redoseTime, weight, allergy int
	}{
		index(l.columns.Date), index(l.columns.Procedure), index(l.columns.Specialty),
		index(l.columns.IncisionTime), index(l.columns.Administered), index(l.columns.Antibiotic),
		index(l.columns.AdministrationTime), index(l.columns.Redose), index(l.columns.RedoseTime),
		index(l.columns.Weight), index(l.columns.Allergy),
	}
	if cols.procedure < 0 {
		return nil, domain.NewValidationError("input.columns.procedure", "procedure column not found in header", l.columns.Procedure)
	}

	missing := l.missingColumns(index)
	if len(missing) > 0 {
		l.logger.WithField("columns", missing).Warn("Surgery batch is missing columns")
	}

	var records []domain.SurgeryRecord
	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				l.logger.WithError(err).WithField("row", row).Warn("Skipping malformed surgery row")
				continue
			}
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}

		cell := func(i int) string {
			if i < 0 || i >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[i])
		}

		procedure := cell(cols.procedure)
		if utf8.RuneCountInString(procedure) < minProcedureLength {
			l.logger.WithField("row", row).Debug("Skipping row without procedure")
			continue
		}

		record := domain.SurgeryRecord{
			RowIndex:           row,
			Procedure:          procedure,
			Specialty:          cell(cols.specialty),
			IncisionTime:       cell(cols.incision),
			Administration:     l.administration(cell(cols.administered)),
			AntibioticText:     cell(cols.antibiotic),
			AdministrationTime: cell(cols.adminTime),
			RedoseGiven:        l.isYes(cell(cols.redose)),
			RedoseTime:         cell(cols.redoseTime),
			WeightKg:           parseWeight(cell(cols.weight)),
			PatientAllergic:    l.isYes(cell(cols.allergy)),
		}
		if d, ok := parseDate(cell(cols.date)); ok {
			record.Date = d
		}
		records = append(records, record)
	}

	l.logger.WithFields(logrus.Fields{
		"path":    l.cfg.Path,
		"records": len(records),
	}).Info("Surgery batch loaded")

	return records, nil
}

// administration maps a cell onto the tri-state: blank is unknown, a
// configured yes value is yes, anything else is no.
func (l *CSVLoader) administration(value string) domain.Administration {
	if value == "" {
		return domain.AdministeredUnknown
	}
	if l.isYes(value) {
		return domain.AdministeredYes
	}
	return domain.AdministeredNo
}

func (l *CSVLoader) isYes(value string) bool {
	_, ok := l.yes[strings.ToUpper(strings.TrimSpace(value))]
	return ok
}

func (l *CSVLoader) missingColumns(index func(string) int) []string {
	var missing []string
	for _, name := range []string{
		l.columns.Date, l.columns.IncisionTime, l.columns.Administered, l.columns.Antibiotic,
		l.columns.AdministrationTime, l.columns.Redose, l.columns.RedoseTime,
	} {
		if index(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

func headerPositions(header []string) map[string]int {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := textnorm.Normalize(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}
	return positions
}

func mergeColumns(cfg, defaults domain.ColumnMap) domain.ColumnMap {
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	return domain.ColumnMap{
		Date:               pick(cfg.Date, defaults.Date),
		Procedure:          pick(cfg.Procedure, defaults.Procedure),
		Specialty:          pick(cfg.Specialty, defaults.Specialty),
		IncisionTime:       pick(cfg.IncisionTime, defaults.IncisionTime),
		Administered:       pick(cfg.Administered, defaults.Administered),
		Antibiotic:         pick(cfg.Antibiotic, defaults.Antibiotic),
		AdministrationTime: pick(cfg.AdministrationTime, defaults.AdministrationTime),
		Redose:             pick(cfg.Redose, defaults.Redose),
		RedoseTime:         pick(cfg.RedoseTime, defaults.RedoseTime),
		Weight:             pick(cfg.Weight, defaults.Weight),
		Allergy:            pick(cfg.Allergy, defaults.Allergy),
	}
}

func parseWeight(text string) *float64 {
	if text == "" {
		return nil
	}
	w, err := strconv.ParseFloat(strings.Replace(text, ",", ".", 1), 64)
	if err != nil || w <= 0 {
		return nil
	}
	return &w
}

func parseDate(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
