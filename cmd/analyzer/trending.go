package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github-analyzer/internal/syncer"
)

var (
	trendingLanguage string
	trendingSince    string
	trendingLimit    int
	trendingSave     bool
)

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Show the most starred repositories created recently",
	Example: `  analyzer trending --language go --since daily
  analyzer trending --since monthly --limit 50 --save`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		since, err := syncer.ParseSince(trendingSince)
		if err != nil {
			return err
		}

		s, cleanup, err := newSyncer(cmd.Context(), trendingSave)
		if err != nil {
			return err
		}
		defer cleanup()

		repos, err := s.Trending(cmd.Context(), syncer.TrendingRequest{
			Language: trendingLanguage,
			Since:    since,
			Limit:    trendingLimit,
			Save:     trendingSave,
		})
		if err != nil {
			return err
		}

		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), repos)
		}
		title := fmt.Sprintf("Trending repositories (%s)", since)
		if trendingLanguage != "" {
			title = fmt.Sprintf("Trending %s repositories (%s)", trendingLanguage, since)
		}
		renderRepositories(cmd.OutOrStdout(), title, repos)
		return nil
	},
}

func init() {
	trendingCmd.Flags().StringVarP(&trendingLanguage, "language", "l", "", "filter by programming language")
	trendingCmd.Flags().StringVar(&trendingSince, "since", string(syncer.SinceWeekly), "time window: daily, weekly or monthly")
	trendingCmd.Flags().IntVar(&trendingLimit, "limit", 20, "number of repositories to show")
	trendingCmd.Flags().BoolVarP(&trendingSave, "save", "s", false, "save results to the store")
	rootCmd.AddCommand(trendingCmd)
}
