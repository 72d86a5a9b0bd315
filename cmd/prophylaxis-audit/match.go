package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func matchCmd(opts *rootOptions) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "match <procedure>",
		Short: "Show how a procedure name resolves against the protocol",
		Args:  cobra.MinimumNArgs(1),
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

			procedure := strings.Join(args, " ")
			result := auditor.Matcher().Match(procedure)

			out := cmd.OutOrStdout()
			if result.Matched() {
				fmt.Fprintf(out, "%q -> %s %q (score %.3f, %s)\n",
					procedure, result.Rule.RuleID, result.Rule.Procedure, result.Score, result.Method)
			} else {
				fmt.Fprintf(out, "%q -> no match (threshold %.2f)\n", procedure, a.cfg.Audit.MatchThreshold)
			}

			candidates := auditor.Matcher().Candidates(procedure, top)
			if len(candidates) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RULE\tSCORE\tSECTION\tPROCEDURE")
			for _, c := range candidates {
				fmt.Fprintf(tw, "%s\t%.3f\t%s\t%s\n", c.RuleID, c.Score, c.Section, c.Procedure)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&top, "top", 5, "number of candidate rules to list")
	return cmd
}
