// Package storetest holds behaviour every store.Store implementation must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

var created = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

func repository(owner, name string, stars int, language string, topics ...string) *model.Repository {
	return &model.Repository{
		GithubID:      "R_" + owner + "_" + name,
		Owner:         owner,
		Name:          name,
		Description:   "description of " + name,
		URL:           "https://github.com/" + owner + "/" + name,
		StarsCount:    stars,
		ForksCount:    stars / 2,
		WatchersCount: 3,
		Language:      language,
		Topics:        topics,
		RepoCreatedAt: created,
		RepoUpdatedAt: created.Add(24 * time.Hour),
		LastAnalyzed:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Run exercises s. The store must be empty when Run starts.
func Run(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
	})

	t.Run("repository upsert keeps one record, github_id and created_at", func(t *testing.T) {
		t.Cleanup(func() { require.NoError(t, s.Clear(ctx)) })

		inserted, err := s.UpsertRepository(ctx, repository("golang", "go", 10, "Go", "go", "language"))
		require.NoError(t, err)
		assert.True(t, inserted)

		update := repository("golang", "go", 20, "Go", "go")
		update.RepoCreatedAt = created.Add(time.Hour)
		update.GithubID = "R_renamed"
		update.IsArchived = true
		inserted, err = s.UpsertRepository(ctx, update)
		require.NoError(t, err)
		assert.False(t, inserted)

		got, err := s.GetRepository(ctx, model.RepoKey{Owner: "golang", Name: "go"})
		require.NoError(t, err)
		assert.Equal(t, 20, got.StarsCount)
		assert.Equal(t, []string{"go"}, got.Topics)
		assert.True(t, got.IsArchived)
		assert.True(t, created.Equal(got.RepoCreatedAt), "created_at changed to %s", got.RepoCreatedAt)
		assert.Equal(t, "R_golang_go", got.GithubID, "github_id is set on insert only")
		assert.Equal(t, "description of go", got.Description)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Repositories)
	})

	t.Run("missing repository", func(t *testing.T) {
		_, err := s.GetRepository(ctx, model.RepoKey{Owner: "nobody", Name: "nothing"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("list filters and orders by stars", func(t *testing.T) {
		t.Cleanup(func() { require.NoError(t, s.Clear(ctx)) })
		for _, r := range []*model.Repository{
			repository("a", "low", 1, "Go", "cli"),
			repository("a", "high", 100, "Rust", "cli", "web"),
			repository("b", "mid", 50, "Go", "web"),
		} {
			_, err := s.UpsertRepository(ctx, r)
			require.NoError(t, err)
		}

		all, err := s.ListRepositories(ctx, model.RepositoryFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "high", all[0].Name)
		assert.Equal(t, "low", all[2].Name)

		cli, err := s.ListRepositories(ctx, model.RepositoryFilter{Topic: "cli"})
		require.NoError(t, err)
		assert.Len(t, cli, 2)

		goRepos, err := s.ListRepositories(ctx, model.RepositoryFilter{Language: "Go", Limit: 1})
		require.NoError(t, err)
		require.Len(t, goRepos, 1)
		assert.Equal(t, "mid", goRepos[0].Name)
	})

	t.Run("contributors are keyed by repository and login", func(t *testing.T) {
		t.Cleanup(func() { require.NoError(t, s.Clear(ctx)) })
		key := model.RepoKey{Owner: "a", Name: "one"}
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		n, err := s.UpsertContributors(ctx, key, []model.Contributor{
			{RepositoryOwner: "a", RepositoryName: "one", Login: "alice", Contributions: 5, Type: model.AccountUser, LastUpdated: now},
			{RepositoryOwner: "a", RepositoryName: "one", Login: "bob", Contributions: 7, Type: model.AccountUser, LastUpdated: now},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.UpsertContributors(ctx, key, []model.Contributor{
			{RepositoryOwner: "a", RepositoryName: "one", Login: "alice", Contributions: 9, Type: model.AccountUser, LastUpdated: now},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = s.UpsertContributors(ctx, model.RepoKey{Owner: "b", Name: "two"}, []model.Contributor{
			{RepositoryOwner: "b", RepositoryName: "two", Login: "alice", Contributions: 1, Type: model.AccountBot, LastUpdated: now},
		})
		require.NoError(t, err)

		top, err := s.TopContributors(ctx, key, 10)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "alice", top[0].Login)
		assert.Equal(t, 9, top[0].Contributions)
		assert.Equal(t, "bob", top[1].Login)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Contributors)
	})

	t.Run("concurrent upserts of one key leave one record", func(t *testing.T) {
		t.Cleanup(func() { require.NoError(t, s.Clear(ctx)) })

		var wg sync.WaitGroup
		for i := 1; i <= 8; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.UpsertRepository(ctx, repository("race", "repo", i, "Go"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Repositories)
	})

	t.Run("topics and language stats", func(t *testing.T) {
		t.Cleanup(func() { require.NoError(t, s.Clear(ctx)) })
		for _, r := range []*model.Repository{
			repository("o", "a", 3, "Go", "cli", "go"),
			repository("o", "b", 2, "Go", "go"),
			repository("o", "c", 1, "Rust", "cli"),
			repository("o", "d", 0, "", "misc"),
		} {
			_, err := s.UpsertRepository(ctx, r)
			require.NoError(t, err)
		}

		topic, err := s.RefreshTopic(ctx, "go")
		require.NoError(t, err)
		assert.Equal(t, 2, topic.RepositoryCount)
		_, err = s.RefreshTopic(ctx, "misc")
		require.NoError(t, err)
		_, err = s.RefreshTopic(ctx, "go")
		require.NoError(t, err)

		topics, err := s.ListTopics(ctx, 10)
		require.NoError(t, err)
		require.Len(t, topics, 2)
		assert.Equal(t, "go", topics[0].Name)
		assert.Equal(t, 2, topics[0].RepositoryCount)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Repositories)
		assert.Equal(t, 2, stats.Topics)
		assert.Equal(t, []model.LanguageCount{
			{Language: "Go", Repositories: 2},
			{Language: "Rust", Repositories: 1},
		}, stats.TopLanguages)
	})

	t.Run("clear empties the store", func(t *testing.T) {
		_, err := s.UpsertRepository(ctx, repository("o", "a", 1, "Go"))
		require.NoError(t, err)
		require.NoError(t, s.Clear(ctx))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.Stats{TopLanguages: []model.LanguageCount{}}, *stats)
	})
}
