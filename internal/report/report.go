// Package report exports audit results as JSON, CSV and a plain-text summary.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/internal/service"
)

const (
	DefaultJSONFile    = "auditoria_resultado.json"
	DefaultCSVFile     = "auditoria_resultado.csv"
	DefaultSummaryFile = "auditoria_resumo.txt"
)

// Document is the JSON export layout.
type Document struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Statistics  service.AuditStatistics `json:"statistics"`
	Results     []Row                   `json:"results"`
}

// Row pairs the audited surgery with its result.
type Row struct {
	Surgery *domain.SurgeryRecord `json:"cirurgia"`
	domain.AuditResult
}

// Paths lists the files written for one batch.
type Paths struct {
	JSON    string
	CSV     string
	Summary string
}

// Writer writes the report files of a batch into the output directory.
type Writer struct {
	logger *logrus.Logger
	cfg    domain.OutputConfig
	now    func() time.Time
}

// NewWriter creates a report writer. Empty file names use the defaults.
func NewWriter(logger *logrus.Logger, cfg domain.OutputConfig) *Writer {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.JSONFile == "" {
		cfg.JSONFile = DefaultJSONFile
	}
	if cfg.CSVFile == "" {
		cfg.CSVFile = DefaultCSVFile
	}
	if cfg.SummaryTxt == "" {
		cfg.SummaryTxt = DefaultSummaryFile
	}
	return &Writer{logger: logger, cfg: cfg, now: time.Now}
}

// WriteResults implements domain.ResultWriter for results produced outside
// of a batch run.
func (w *Writer) WriteResults(ctx context.Context, results []domain.AuditResult) error {
	runID := ""
	if len(results) > 0 {
		runID = results[0].RunID
	}
	_, err := w.WriteBatch(ctx, &service.BatchResult{
		RunID:      runID,
		StartedAt:  w.now(),
		Results:    results,
		Statistics: service.ComputeStatistics(results),
	})
	return err
}

// WriteBatch writes the JSON, CSV and summary files for batch.
func (w *Writer) WriteBatch(ctx context.Context, batch *service.BatchResult) (*Paths, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := &Paths{
		JSON:    filepath.Join(w.cfg.Dir, w.cfg.JSONFile),
		CSV:     filepath.Join(w.cfg.Dir, w.cfg.CSVFile),
		Summary: filepath.Join(w.cfg.Dir, w.cfg.SummaryTxt),
	}

	steps := []struct {
		path  string
		write func(io.Writer) error
	}{
		{paths.JSON, func(out io.Writer) error { return WriteJSON(out, batch, w.now()) }},
		{paths.CSV, func(out io.Writer) error { return WriteCSV(out, batch.Results) }},
		{paths.Summary, func(out io.Writer) error { return WriteSummary(out, batch, w.now()) }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeFile(step.path, step.write); err != nil {
			return nil, err
		}
		w.logger.WithField("path", step.path).Info("Report written")
	}
	return paths, nil
}

// WriteJSON writes the batch as an indented Document.
func WriteJSON(out io.Writer, batch *service.BatchResult, generatedAt time.Time) error {
	doc := Document{
		RunID:       batch.RunID,
		GeneratedAt: generatedAt.UTC(),
		Statistics:  batch.Statistics,
		Results:     make([]Row, 0, len(batch.Results)),
	}
	for i := range batch.Results {
		doc.Results = append(doc.Results, Row{Surgery: batch.Results[i].Record, AuditResult: batch.Results[i]})
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
