package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/internal/rules"
	"github.com/prophylaxis-audit/internal/service"
)

func rulesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage protocol rule snapshots",
	}
	cmd.AddCommand(rulesImportCmd(opts))
	cmd.AddCommand(rulesStatsCmd(opts))
	return cmd
}

func rulesImportCmd(opts *rootOptions) *cobra.Command {
	var from, dbPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a rules.json file into a SQLite snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			source := rules.NewJSONSource(from)
			loaded, err := source.LoadRules(ctx)
			if err != nil {
				return domain.NewAuditError(domain.ErrCodeRuleSource, "failed to parse rules file", err, "")
			}

			// Refuse snapshots the audit engine would reject.
			if _, err := service.NewRuleIndex(loaded); err != nil {
				return domain.NewAuditError(domain.ErrCodeIntegrity, "rule snapshot is inconsistent", err, "")
			}

			store, err := rules.NewSQLiteStore(dbPath)
			if err != nil {
				return domain.NewAuditError(domain.ErrCodeRuleSource, "failed to open snapshot store", err, "")
			}
			defer store.Close()

			meta := source.Metadata()
			if err := store.ImportRules(ctx, loaded, *meta); err != nil {
				return domain.NewAuditError(domain.ErrCodeRuleSource, "failed to import rules", err, "")
			}

			a.logger.WithField("sha256", meta.SHA256).Info("Rule snapshot imported")
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rules into %s (sha256 %s)\n", len(loaded), dbPath, meta.SHA256)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "rules.json", "rules.json file to import")
	cmd.Flags().StringVar(&dbPath, "db", "rules.db", "SQLite snapshot file")
	return cmd
}

func rulesStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the configured rule snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			loaded, err := a.loadRules(cmd.Context())
			if err != nil {
				return err
			}
			index, err := service.NewRuleIndex(loaded)
			if err != nil {
				return domain.NewAuditError(domain.ErrCodeIntegrity, "rule snapshot is inconsistent", err, "")
			}

			stats := index.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rules: %d\n", stats.Total)
			fmt.Fprintf(out, "  Prophylaxis required:     %d\n", stats.ProphylaxisRequired)
			fmt.Fprintf(out, "  Prophylaxis not required: %d\n", stats.ProphylaxisNotNeeded)
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SECTION\tRULES")
			for _, section := range stats.Sections {
				fmt.Fprintf(tw, "%s\t%d\n", section, stats.BySection[section])
			}
			return tw.Flush()
		},
	}
}
