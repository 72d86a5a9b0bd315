package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/internal/metrics"
	"github.com/prophylaxis-audit/internal/report"
	"github.com/prophylaxis-audit/internal/surgery"
)

func auditCmd(opts *rootOptions) *cobra.Command {
	var (
		surgeries string
		outputDir string
		delimiter string
		workers   int
		textfile  string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit a surgery batch and write the result reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg
			if surgeries != "" {
				cfg.Input.Path = surgeries
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}
			if delimiter != "" {
				cfg.Input.Delimiter = delimiter
			}
			if workers > 0 {
				cfg.Audit.Workers = workers
			}
			if textfile != "" {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Textfile = textfile
			}
			if cfg.Input.Path == "" {
				return domain.NewValidationError("input.path", "a surgery batch is required (--surgeries)", "")
			}

			ctx := cmd.Context()
			auditor, err := a.newAuditor(ctx)
			if err != nil {
				return err
			}

			var recorder *metrics.Recorder
			if cfg.Metrics.Enabled {
				recorder, err = metrics.NewRecorder()
				if err != nil {
					return err
				}
				auditor.AddObserver(recorder)
			}

			records, err := surgery.NewCSVLoader(a.logger, cfg.Input).LoadSurgeries(ctx)
			if err != nil {
				return domain.NewAuditError(domain.ErrCodeInvalidInput, "failed to load surgery batch", err, "")
			}

			batch, err := auditor.AuditBatch(ctx, records)
			if err != nil {
				return err
			}

			paths, err := report.NewWriter(a.logger, cfg.Output).WriteBatch(ctx, batch)
			if err != nil {
				return domain.NewAuditError(domain.ErrCodeInternal, "failed to write reports", err, batch.RunID)
			}

			if recorder != nil {
				recorder.ObserveBatch(batch)
				if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
					a.logger.WithError(err).Warn("Metrics textfile not written")
				}
			}

			out := cmd.OutOrStdout()
			stats := batch.Statistics
			fmt.Fprintf(out, "Run %s: %d records audited\n", batch.RunID, stats.Total)
			fmt.Fprintf(out, "  CONFORME %d | ALERTA %d | NAO_CONFORME %d | INDETERMINADO %d\n",
				stats.ByStatus[domain.CONFORME], stats.ByStatus[domain.ALERTA],
				stats.ByStatus[domain.NAO_CONFORME], stats.ByStatus[domain.INDETERMINADO])
			fmt.Fprintf(out, "  Conformity %.1f%% (strict %.1f%%)\n", stats.ConformityRate, stats.StrictConformityRate)
			fmt.Fprintf(out, "Reports: %s, %s, %s\n", paths.JSON, paths.CSV, paths.Summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&surgeries, "surgeries", "", "surgery batch CSV file")
	cmd.Flags().StringVar(&outputDir, "output", "", "output directory for the reports")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "CSV delimiter of the surgery batch")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent audit workers")
	cmd.Flags().StringVar(&textfile, "metrics-textfile", "", "write Prometheus metrics to this textfile")
	return cmd
}
