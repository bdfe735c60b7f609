//go:build integration

package mongo

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/store/storetest"
)

func setupTestStore(ctx context.Context, t *testing.T) *Store {
	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	testcontainers.CleanupContainer(t, mongoContainer)
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := New(ctx, uri, "analyzer_test", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	s := setupTestStore(ctx, t)

	storetest.Run(t, s)

	t.Run("indexes are idempotent", func(t *testing.T) {
		assert.NoError(t, s.ensureIndexes(ctx))
	})
}

func TestNew_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	_, err := New(ctx, "mongodb://127.0.0.1:1", "analyzer_test", logger)

	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}
