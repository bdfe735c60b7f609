package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-analyzer/internal/model"
)

// execute runs the root command with args and restores every flag afterwards,
// since cobra keeps flag state on the package-level commands.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--config-dir", t.TempDir()))
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestSetLogLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range testCases {
		v := new(slog.LevelVar)
		setLogLevel(in, v)
		assert.Equal(t, want, v.Level(), in)
	}
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "a b c", truncateText("a\n b\tc", 10))
	assert.Equal(t, "abcdefg...", truncateText("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncateText("abcdef", 2))
}

func TestRenderRepositories(t *testing.T) {
	var buf bytes.Buffer
	renderRepositories(&buf, "Stored repositories", []model.Repository{
		{Owner: "golang", Name: "go", StarsCount: 120, Language: "Go", Description: "The Go programming language"},
		{Owner: "octo", Name: "docs", StarsCount: 3},
	})

	out := buf.String()
	assert.Contains(t, out, "Stored repositories")
	assert.Contains(t, out, "Repository")
	assert.Contains(t, out, "golang/go")
	assert.Contains(t, out, "120")
	assert.Contains(t, out, "N/A")
	assert.Less(t, strings.Index(out, "golang/go"), strings.Index(out, "octo/docs"))
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderRepositories(&buf, "ignored", nil)
	renderContributors(&buf, model.RepoKey{Owner: "a", Name: "b"}, nil)
	renderTopics(&buf, nil)

	out := buf.String()
	assert.Contains(t, out, "No repositories found")
	assert.Contains(t, out, "No contributors found for a/b")
	assert.Contains(t, out, "No topics found")
	assert.NotContains(t, out, "ignored")
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, &model.Summary{
		RunID:             "run-1",
		RepositoriesSeen:  3,
		RepositoriesSaved: 2,
		Units: []model.UnitSummary{
			{Kind: model.UnitTopic, Name: "go", Pages: 1, RepositoriesSeen: 3, RepositoriesSaved: 2},
			{Kind: model.UnitTopic, Name: "rust", Error: "github unavailable"},
		},
		Warnings: []string{"octo/broken: missing owner"},
	}, true)

	out := buf.String()
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "topic go")
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "github unavailable")
	assert.Contains(t, out, "warning: octo/broken: missing owner")
}

func TestClear_RequiresConfirm(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	_, err := execute(t, "clear")
	require.ErrorIs(t, err, errClearNotConfirmed)

	out, err := execute(t, "clear", "--confirm")
	require.NoError(t, err)
	assert.Contains(t, out, "Store cleared")
}

func TestStats_MemoryStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	out, err := execute(t, "stats", "--json")

	require.NoError(t, err)
	var stats model.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Zero(t, stats.Repositories)
	assert.Empty(t, stats.TopLanguages)
}

func TestContributors_InvalidIdentifier(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	_, err := execute(t, "contributors", "not-a-repo")

	assert.Error(t, err)
}

func TestAnalyze_RequiresToken(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("GITHUB_TOKEN", "")

	_, err := execute(t, "analyze", "go")

	assert.ErrorContains(t, err, "GITHUB_TOKEN")
}

func TestAnalyze_EndToEnd(t *testing.T) {
	var searches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/graphql" {
			http.NotFound(w, r)
			return
		}
		searches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchResponse("cli-tool", "go-kit")))
	}))
	t.Cleanup(server.Close)

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("GITHUB_TOKEN", "test-token")
	t.Setenv("GITHUB_API_URL", server.URL+"/")
	t.Setenv("REQUEST_INTERVAL", "1ms")
	t.Setenv("INITIAL_BACKOFF", "1ms")

	out, err := execute(t, "analyze", "Go", "--limit", "5", "--contributors", "0", "--save", "--json")

	require.NoError(t, err)
	assert.Equal(t, int32(1), searches.Load())

	var summary model.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.RepositoriesSeen)
	assert.Equal(t, 2, summary.RepositoriesSaved)
	require.Len(t, summary.Units, 1)
	assert.Equal(t, "go", summary.Units[0].Name)
	assert.False(t, summary.Units[0].Failed())
}

// searchResponse is a single, final page of a GraphQL repository search.
func searchResponse(names ...string) string {
	nodes := make([]map[string]any, 0, len(names))
	for i, n := range names {
		nodes = append(nodes, map[string]any{
			"id":               "R_" + n,
			"name":             n,
			"owner":            map[string]any{"login": "octo"},
			"url":              "https://github.com/octo/" + n,
			"stargazerCount":   100 - i,
			"forkCount":        1,
			"watchers":         map[string]any{"totalCount": 1},
			"primaryLanguage":  map[string]any{"name": "Go"},
			"repositoryTopics": map[string]any{"nodes": []any{map[string]any{"topic": map[string]any{"name": "go"}}}},
			"createdAt":        "2020-01-01T00:00:00Z",
			"updatedAt":        "2024-01-01T00:00:00Z",
		})
	}
	b, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"rateLimit": map[string]any{
				"limit": 5000, "cost": 1, "remaining": 4999,
				"resetAt": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			},
			"search": map[string]any{
				"repositoryCount": len(names),
				"pageInfo":        map[string]any{"hasNextPage": false, "endCursor": nil},
				"nodes":           nodes,
			},
		},
	})
	return string(b)
}
