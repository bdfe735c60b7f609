// Package store defines the persistence boundary of the analyzer. Every write
// is an upsert keyed by a natural key, so a run interrupted at any point leaves
// the store consistent.
package store

import (
	"context"

	"github-analyzer/internal/model"
)

// DefaultListLimit is used when a caller passes a non-positive limit.
const DefaultListLimit = 20

// Store persists repositories, contributors and the topic side index.
type Store interface {
	// Ping fails with errors.ErrStoreUnavailable when the backend cannot be reached.
	Ping(ctx context.Context) error

	// UpsertRepository inserts the repository or overwrites its mutable fields.
	// inserted reports whether the key was new.
	UpsertRepository(ctx context.Context, repo *model.Repository) (inserted bool, err error)

	// UpsertContributors writes each contributor keyed by (repository, login) and
	// returns how many were written.
	UpsertContributors(ctx context.Context, repo model.RepoKey, contributors []model.Contributor) (int, error)

	// RefreshTopic recounts the stored repositories tagged with name and upserts the aggregate.
	RefreshTopic(ctx context.Context, name string) (model.Topic, error)

	ListRepositories(ctx context.Context, filter model.RepositoryFilter) ([]model.Repository, error)
	GetRepository(ctx context.Context, key model.RepoKey) (*model.Repository, error)
	TopContributors(ctx context.Context, key model.RepoKey, limit int) ([]model.Contributor, error)
	ListTopics(ctx context.Context, limit int) ([]model.Topic, error)
	Stats(ctx context.Context) (*model.Stats, error)

	// Clear removes every stored document.
	Clear(ctx context.Context) error
	Close(ctx context.Context) error
}

// Limit normalises a caller supplied limit.
func Limit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}

// TopLanguagesLimit is how many languages Stats reports.
const TopLanguagesLimit = 10
