package main

import (
	"github.com/spf13/cobra"

	"github-analyzer/internal/syncer"
)

var repoContributors int

var repoCmd = &cobra.Command{
	Use:   "repo OWNER/NAME",
	Short: "Fetch and store a single repository with its top contributors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := syncer.ParseRepoIdentifier(args[0])
		if err != nil {
			return err
		}

		s, cleanup, err := newSyncer(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer cleanup()

		summary, runErr := s.AnalyzeRepository(cmd.Context(), key.Owner, key.Name, repoContributors)
		if summary != nil {
			if outputJSON {
				if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			} else {
				renderSummary(cmd.OutOrStdout(), summary, true)
			}
		}
		return runErr
	},
}

func init() {
	repoCmd.Flags().IntVarP(&repoContributors, "contributors", "c", 100, "maximum contributors to fetch")
	rootCmd.AddCommand(repoCmd)
}
