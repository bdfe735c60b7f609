package main

import (
	"github.com/spf13/cobra"

	"github-analyzer/internal/syncer"
)

var (
	analyzeLimit        int
	analyzeContributors int
	analyzeSave         bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze TOPIC [TOPIC...]",
	Short: "Fetch the top repositories for one or more topics",
	Long: `Fetch the most starred repositories for each topic and, unless
--contributors is 0, their top contributors. With --save the results are
written to the configured store.`,
	Example: `  analyzer analyze machine-learning golang --limit 20 --save
  analyzer analyze kubernetes --contributors 0`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeLimit, "limit", "l", 50, "maximum repositories per topic (defaults to MAX_REPOSITORIES_PER_TOPIC when unset)")
	analyzeCmd.Flags().IntVarP(&analyzeContributors, "contributors", "c", 25, "contributors per repository, 0 to skip (defaults to MAX_CONTRIBUTORS_PER_REPO when unset)")
	analyzeCmd.Flags().BoolVarP(&analyzeSave, "save", "s", false, "save results to the store")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	repoLimit := analyzeLimit
	if !cmd.Flags().Changed("limit") {
		repoLimit = cfg.MaxReposPerTopic
	}
	contributorLimit := analyzeContributors
	if !cmd.Flags().Changed("contributors") {
		contributorLimit = cfg.MaxContributors
	}

	s, cleanup, err := newSyncer(cmd.Context(), analyzeSave)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, runErr := s.Analyze(cmd.Context(), syncer.AnalyzeRequest{
		Topics:           args,
		RepoLimit:        repoLimit,
		ContributorLimit: contributorLimit,
		Save:             analyzeSave,
	})
	if summary != nil {
		if outputJSON {
			if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
		} else {
			renderSummary(cmd.OutOrStdout(), summary, analyzeSave)
		}
	}
	return runErr
}
