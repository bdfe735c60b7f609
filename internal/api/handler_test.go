package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-analyzer/internal/model"
	"github-analyzer/internal/store/memory"
)

type brokenStore struct {
	*memory.Store
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("connection reset")
}

func (brokenStore) Stats(context.Context) (*model.Stats, error) {
	return nil, errors.New("connection reset")
}

func seededRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	for _, r := range []model.Repository{
		{Owner: "golang", Name: "go", StarsCount: 120, Language: "Go", Topics: []string{"go", "language"}},
		{Owner: "rust-lang", Name: "rust", StarsCount: 100, Language: "Rust", Topics: []string{"language"}},
	} {
		_, err := st.UpsertRepository(ctx, &r)
		require.NoError(t, err)
	}
	_, err := st.UpsertContributors(ctx, model.RepoKey{Owner: "golang", Name: "go"}, []model.Contributor{
		{Login: "rsc", Contributions: 900, LastUpdated: time.Now()},
		{Login: "ianlancetaylor", Contributions: 800, LastUpdated: time.Now()},
		{Login: "gopherbot", Contributions: 700, Type: model.AccountBot, LastUpdated: time.Now()},
	})
	require.NoError(t, err)
	_, err = st.RefreshTopic(ctx, "language")
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewRouter(st, logger)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter(t *testing.T) {
	h := seededRouter(t)

	t.Run("health", func(t *testing.T) {
		rec := get(t, h, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("list repositories by topic", func(t *testing.T) {
		rec := get(t, h, "/v1/repositories?topic=language&limit=1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var repos []model.Repository
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &repos))
		require.Len(t, repos, 1)
		assert.Equal(t, "go", repos[0].Name)
	})

	t.Run("get repository", func(t *testing.T) {
		rec := get(t, h, "/v1/repos/rust-lang/rust")
		require.Equal(t, http.StatusOK, rec.Code)

		var repo model.Repository
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &repo))
		assert.Equal(t, 100, repo.StarsCount)
	})

	t.Run("unknown repository", func(t *testing.T) {
		rec := get(t, h, "/v1/repos/nobody/nothing/contributors")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"Repository not found"}`, rec.Body.String())
	})

	t.Run("top contributors", func(t *testing.T) {
		rec := get(t, h, "/v1/repos/golang/go/contributors?limit=2")
		require.Equal(t, http.StatusOK, rec.Code)

		var contributors []model.Contributor
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contributors))
		require.Len(t, contributors, 2)
		assert.Equal(t, "rsc", contributors[0].Login)
		assert.Equal(t, "ianlancetaylor", contributors[1].Login)
	})

	t.Run("invalid limit", func(t *testing.T) {
		for _, limit := range []string{"0", "-1", "abc", "1001"} {
			rec := get(t, h, "/v1/repos/golang/go/contributors?limit="+limit)
			assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
		}
	})

	t.Run("topics", func(t *testing.T) {
		rec := get(t, h, "/v1/topics")
		require.Equal(t, http.StatusOK, rec.Code)

		var topics []model.Topic
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &topics))
		require.Len(t, topics, 1)
		assert.Equal(t, 2, topics[0].RepositoryCount)
	})

	t.Run("stats", func(t *testing.T) {
		rec := get(t, h, "/v1/stats")
		require.Equal(t, http.StatusOK, rec.Code)

		var stats model.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, 2, stats.Repositories)
		assert.Equal(t, 3, stats.Contributors)
		assert.Len(t, stats.TopLanguages, 2)
	})
}

func TestRouter_StoreFailures(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	h := NewRouter(brokenStore{memory.New()}, logger)

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(t, h, "/v1/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}
