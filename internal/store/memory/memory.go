// Package memory is an in-process Store used by tests and by runs that should not persist.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

type contributorKey struct {
	repo  model.RepoKey
	login string
}

// Store keeps every record in maps guarded by a single mutex.
type Store struct {
	mu           sync.RWMutex
	repositories map[model.RepoKey]model.Repository
	contributors map[contributorKey]model.Contributor
	topics       map[string]model.Topic
	now          func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		repositories: make(map[model.RepoKey]model.Repository),
		contributors: make(map[contributorKey]model.Contributor),
		topics:       make(map[string]model.Topic),
		now:          time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) UpsertRepository(_ context.Context, repo *model.Repository) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := repo.Key()
	next := *repo
	next.Topics = slices.Clone(repo.Topics)

	existing, ok := s.repositories[key]
	if ok {
		// github_id and created_at are written on insert only.
		next.GithubID = existing.GithubID
		if !existing.RepoCreatedAt.IsZero() {
			next.RepoCreatedAt = existing.RepoCreatedAt
		}
	}
	s.repositories[key] = next
	return !ok, nil
}

func (s *Store) UpsertContributors(_ context.Context, repo model.RepoKey, contributors []model.Contributor) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range contributors {
		c.RepositoryOwner, c.RepositoryName = repo.Owner, repo.Name
		s.contributors[contributorKey{repo: repo, login: c.Login}] = c
	}
	return len(contributors), nil
}

func (s *Store) RefreshTopic(_ context.Context, name string) (model.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.repositories {
		if slices.Contains(r.Topics, name) {
			count++
		}
	}
	t := model.Topic{Name: name, RepositoryCount: count, LastUpdated: s.now().UTC()}
	s.topics[name] = t
	return t, nil
}

func (s *Store) ListRepositories(_ context.Context, filter model.RepositoryFilter) ([]model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Repository, 0)
	for _, r := range s.repositories {
		if filter.Topic != "" && !slices.Contains(r.Topics, filter.Topic) {
			continue
		}
		if filter.Language != "" && r.Language != filter.Language {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StarsCount != out[j].StarsCount {
			return out[i].StarsCount > out[j].StarsCount
		}
		return out[i].Key().String() < out[j].Key().String()
	})
	return truncate(out, store.Limit(filter.Limit)), nil
}

func (s *Store) GetRepository(_ context.Context, key model.RepoKey) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.repositories[key]
	if !ok {
		return nil, fmt.Errorf("repository %s: %w", key, apperrors.ErrNotFound)
	}
	return &r, nil
}

func (s *Store) TopContributors(_ context.Context, key model.RepoKey, limit int) ([]model.Contributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Contributor, 0)
	for k, c := range s.contributors {
		if k.repo == key {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Contributions != out[j].Contributions {
			return out[i].Contributions > out[j].Contributions
		}
		return out[i].Login < out[j].Login
	})
	return truncate(out, store.Limit(limit)), nil
}

func (s *Store) ListTopics(_ context.Context, limit int) ([]model.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RepositoryCount != out[j].RepositoryCount {
			return out[i].RepositoryCount > out[j].RepositoryCount
		}
		return out[i].Name < out[j].Name
	})
	return truncate(out, store.Limit(limit)), nil
}

func (s *Store) Stats(context.Context) (*model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byLanguage := make(map[string]int)
	for _, r := range s.repositories {
		if r.Language != "" {
			byLanguage[r.Language]++
		}
	}
	langs := make([]model.LanguageCount, 0, len(byLanguage))
	for l, n := range byLanguage {
		langs = append(langs, model.LanguageCount{Language: l, Repositories: n})
	}
	sort.Slice(langs, func(i, j int) bool {
		if langs[i].Repositories != langs[j].Repositories {
			return langs[i].Repositories > langs[j].Repositories
		}
		return langs[i].Language < langs[j].Language
	})

	return &model.Stats{
		Repositories: len(s.repositories),
		Contributors: len(s.contributors),
		Topics:       len(s.topics),
		TopLanguages: truncate(langs, store.TopLanguagesLimit),
	}, nil
}

func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.repositories)
	clear(s.contributors)
	clear(s.topics)
	return nil
}

func truncate[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
