//go:build integration

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github-analyzer/internal/github"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store/postgres"
	"github-analyzer/internal/syncer"
)

func setupTestDatabase(ctx context.Context, t *testing.T) string {
	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("test-db"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, pgContainer)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestSyncer_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	connStr := setupTestDatabase(ctx, t)

	// Setup a mock GitHub API server
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/graphql":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"rateLimit": map[string]any{
						"limit": 5000, "cost": 1, "remaining": 4999,
						"resetAt": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
					},
					"repository": map[string]any{
						"id":               "R_123",
						"name":             "test-repo",
						"owner":            map[string]any{"login": "test-owner"},
						"description":      "A repository under test",
						"url":              "https://github.com/test-owner/test-repo",
						"stargazerCount":   10,
						"forkCount":        2,
						"watchers":         map[string]any{"totalCount": 4},
						"primaryLanguage":  map[string]any{"name": "Go"},
						"repositoryTopics": map[string]any{"nodes": []any{map[string]any{"topic": map[string]any{"name": "testing"}}}},
						"createdAt":        "2020-01-01T00:00:00Z",
						"updatedAt":        "2024-01-01T00:00:00Z",
					},
				},
			})
		case "/repos/test-owner/test-repo/contributors":
			w.Write([]byte(`[
				{"login": "alice", "id": 1, "html_url": "https://github.com/alice", "contributions": 30, "type": "User"},
				{"login": "dependabot[bot]", "id": 2, "html_url": "https://github.com/apps/dependabot", "contributions": 12, "type": "Bot"}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	server := httptest.NewServer(handler)
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ghClient, err := github.NewClient(github.Config{
		BaseURL:         server.URL,
		Token:           "test-token",
		RequestInterval: time.Millisecond,
		MaxAttempts:     2,
		InitialBackoff:  time.Millisecond,
	}, logger)
	require.NoError(t, err)

	st, err := postgres.New(ctx, connStr, logger)
	require.NoError(t, err)
	defer st.Close(ctx)

	appSyncer := syncer.New(ghClient, st, logger, syncer.Options{Concurrency: 1})

	// --- ACT ---
	summary, err := appSyncer.AnalyzeRepository(ctx, "test-owner", "test-repo", 10)
	require.NoError(t, err)

	// --- ASSERT ---
	require.Len(t, summary.Units, 1)
	assert.False(t, summary.Units[0].Failed())
	assert.Equal(t, 2, summary.ContributorsSaved)

	key := model.RepoKey{Owner: "test-owner", Name: "test-repo"}
	repo, err := st.GetRepository(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "R_123", repo.GithubID)
	assert.Equal(t, 10, repo.StarsCount)
	assert.Equal(t, []string{"testing"}, repo.Topics)

	contributors, err := st.TopContributors(ctx, key, 10)
	require.NoError(t, err)
	require.Len(t, contributors, 2)
	assert.Equal(t, "alice", contributors[0].Login) // Order is by contributions DESC
	assert.Equal(t, model.AccountBot, contributors[1].Type)

	// A second run updates in place.
	_, err = appSyncer.AnalyzeRepository(ctx, "test-owner", "test-repo", 10)
	require.NoError(t, err)
	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Repositories)
	assert.Equal(t, 2, stats.Contributors)
}
