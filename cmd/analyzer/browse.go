package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
	"github-analyzer/internal/syncer"
)

var (
	listTopic         string
	listLanguage      string
	listLimit         int
	contributorsLimit int
	topicsLimit       int
	clearConfirm      bool
)

var errClearNotConfirmed = errors.New("refusing to clear the store without --confirm")

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored repositories ordered by stars",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter := model.RepositoryFilter{Language: listLanguage, Limit: listLimit}
		if listTopic != "" {
			topic, err := syncer.ValidateTopic(listTopic)
			if err != nil {
				return err
			}
			filter.Topic = topic
		}
		if err := syncer.ValidateLimit("limit", listLimit); err != nil {
			return err
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			repos, err := st.ListRepositories(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), repos)
			}
			title := "Stored repositories"
			if filter.Topic != "" {
				title = fmt.Sprintf("Stored repositories for topic %q", filter.Topic)
			}
			renderRepositories(cmd.OutOrStdout(), title, repos)
			return nil
		})
	},
}

var contributorsCmd = &cobra.Command{
	Use:   "contributors OWNER/NAME",
	Short: "Show the stored top contributors of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := syncer.ParseRepoIdentifier(args[0])
		if err != nil {
			return err
		}
		if err := syncer.ValidateLimit("limit", contributorsLimit); err != nil {
			return err
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			if _, err := st.GetRepository(cmd.Context(), key); err != nil {
				return err
			}
			contributors, err := st.TopContributors(cmd.Context(), key, contributorsLimit)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), contributors)
			}
			renderContributors(cmd.OutOrStdout(), key, contributors)
			return nil
		})
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List stored topics by repository count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			topics, err := st.ListTopics(cmd.Context(), topicsLimit)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), topics)
			}
			renderTopics(cmd.OutOrStdout(), topics)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show counts and the top languages of the stored data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			renderStats(cmd.OutOrStdout(), stats)
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored repositories, contributors and topics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearConfirm {
			return errClearNotConfirmed
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			if err := st.Clear(cmd.Context()); err != nil {
				return err
			}
			cmd.Println(successStyle.Render("Store cleared"))
			return nil
		})
	},
}

func init() {
	listCmd.Flags().StringVarP(&listTopic, "topic", "t", "", "only repositories carrying this topic")
	listCmd.Flags().StringVar(&listLanguage, "language", "", "only repositories with this primary language")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", store.DefaultListLimit, "number of repositories to show")

	contributorsCmd.Flags().IntVarP(&contributorsLimit, "limit", "l", store.DefaultListLimit, "number of contributors to show")

	topicsCmd.Flags().IntVarP(&topicsLimit, "limit", "l", store.DefaultListLimit, "number of topics to show")

	clearCmd.Flags().BoolVar(&clearConfirm, "confirm", false, "confirm deletion of all stored data")

	rootCmd.AddCommand(listCmd, contributorsCmd, topicsCmd, statsCmd, clearCmd)
}
