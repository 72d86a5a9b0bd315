package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd checks configuration and rule snapshot without auditing.
func validateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the rule snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			auditor, err := a.newAuditor(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rules:      %s (%d rules)\n", a.cfg.Rules.Path, auditor.Index().Len())
			fmt.Fprintf(out, "Threshold:  %.2f\n", a.cfg.Audit.MatchThreshold)
			fmt.Fprintf(out, "Aliases:    %d drugs\n", len(a.cfg.Audit.DrugAliases))
			fmt.Fprintln(out, "Configuration OK")
			return nil
		},
	}
}
