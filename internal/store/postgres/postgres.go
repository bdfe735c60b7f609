// Package postgres is a store.Store on PostgreSQL. The schema ships with the
// binary and is migrated on start.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a store.Store backed by a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New connects to dbURL and applies pending migrations.
func New(ctx context.Context, dbURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to database: %w", apperrors.ErrStoreUnavailable, err)
	}
	s := &Store{pool: pool, logger: logger, now: time.Now}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("Database connection established")

	if err := runMigrations(dbURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")
	return s, nil
}

func runMigrations(dbURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

const upsertRepository = `
INSERT INTO repositories (
    owner, name, github_id, description, url, stars_count, forks_count, watchers_count,
    language, topics, created_at, updated_at, is_fork, is_archived, last_analyzed
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (owner, name) DO UPDATE SET
    description    = EXCLUDED.description,
    url            = EXCLUDED.url,
    stars_count    = EXCLUDED.stars_count,
    forks_count    = EXCLUDED.forks_count,
    watchers_count = EXCLUDED.watchers_count,
    language       = EXCLUDED.language,
    topics         = EXCLUDED.topics,
    updated_at     = EXCLUDED.updated_at,
    is_fork        = EXCLUDED.is_fork,
    is_archived    = EXCLUDED.is_archived,
    last_analyzed  = EXCLUDED.last_analyzed
RETURNING (xmax = 0) AS inserted`

func (s *Store) UpsertRepository(ctx context.Context, repo *model.Repository) (bool, error) {
	topics := repo.Topics
	if topics == nil {
		topics = []string{}
	}

	var inserted bool
	err := s.pool.QueryRow(ctx, upsertRepository,
		repo.Owner, repo.Name, repo.GithubID, repo.Description, repo.URL,
		repo.StarsCount, repo.ForksCount, repo.WatchersCount,
		repo.Language, topics, repo.RepoCreatedAt, repo.RepoUpdatedAt,
		repo.IsFork, repo.IsArchived, repo.LastAnalyzed,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert repository %s: %w", repo.Key(), err)
	}
	return inserted, nil
}

const upsertContributor = `
INSERT INTO contributors (
    repository_owner, repository_name, login, github_id, avatar_url, profile_url,
    contributions, type, last_updated
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (repository_owner, repository_name, login) DO UPDATE SET
    github_id     = EXCLUDED.github_id,
    avatar_url    = EXCLUDED.avatar_url,
    profile_url   = EXCLUDED.profile_url,
    contributions = EXCLUDED.contributions,
    type          = EXCLUDED.type,
    last_updated  = EXCLUDED.last_updated`

func (s *Store) UpsertContributors(ctx context.Context, repo model.RepoKey, contributors []model.Contributor) (int, error) {
	if len(contributors) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range contributors {
		batch.Queue(upsertContributor,
			repo.Owner, repo.Name, c.Login, c.GithubID, c.AvatarURL, c.ProfileURL,
			c.Contributions, string(c.Type), c.LastUpdated)
	}

	br := s.pool.SendBatch(ctx, batch)
	saved := 0
	for range contributors {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return saved, fmt.Errorf("upsert contributors of %s: %w", repo, err)
		}
		saved += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return saved, fmt.Errorf("upsert contributors of %s: %w", repo, err)
	}
	return saved, nil
}

const refreshTopic = `
INSERT INTO topics (name, repository_count, last_updated)
SELECT $1::text, count(*), $2 FROM repositories WHERE $1::text = ANY(topics)
ON CONFLICT (name) DO UPDATE SET
    repository_count = EXCLUDED.repository_count,
    last_updated     = EXCLUDED.last_updated
RETURNING repository_count`

func (s *Store) RefreshTopic(ctx context.Context, name string) (model.Topic, error) {
	t := model.Topic{Name: name, LastUpdated: s.now().UTC()}
	if err := s.pool.QueryRow(ctx, refreshTopic, name, t.LastUpdated).Scan(&t.RepositoryCount); err != nil {
		return model.Topic{}, fmt.Errorf("refresh topic %s: %w", name, err)
	}
	return t, nil
}

const repositoryColumns = `owner, name, github_id, description, url, stars_count, forks_count, watchers_count,
    language, topics, created_at, updated_at, is_fork, is_archived, last_analyzed`

func scanRepository(row pgx.CollectableRow) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(
		&r.Owner, &r.Name, &r.GithubID, &r.Description, &r.URL,
		&r.StarsCount, &r.ForksCount, &r.WatchersCount,
		&r.Language, &r.Topics, &r.RepoCreatedAt, &r.RepoUpdatedAt,
		&r.IsFork, &r.IsArchived, &r.LastAnalyzed,
	)
	return r, err
}

func (s *Store) ListRepositories(ctx context.Context, filter model.RepositoryFilter) ([]model.Repository, error) {
	var (
		where []string
		args  []any
	)
	if filter.Topic != "" {
		args = append(args, filter.Topic)
		where = append(where, fmt.Sprintf("$%d = ANY(topics)", len(args)))
	}
	if filter.Language != "" {
		args = append(args, filter.Language)
		where = append(where, fmt.Sprintf("language = $%d", len(args)))
	}
	args = append(args, store.Limit(filter.Limit))

	query := "SELECT " + repositoryColumns + " FROM repositories"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY stars_count DESC, owner, name LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	repos, err := pgx.CollectRows(rows, scanRepository)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	return repos, nil
}

func (s *Store) GetRepository(ctx context.Context, key model.RepoKey) (*model.Repository, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+repositoryColumns+" FROM repositories WHERE owner = $1 AND name = $2", key.Owner, key.Name)
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", key, err)
	}
	repo, err := pgx.CollectExactlyOneRow(rows, scanRepository)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("repository %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", key, err)
	}
	return &repo, nil
}

func (s *Store) TopContributors(ctx context.Context, key model.RepoKey, limit int) ([]model.Contributor, error) {
	rows, err := s.pool.Query(ctx, `
SELECT repository_owner, repository_name, login, github_id, avatar_url, profile_url,
       contributions, type, last_updated
FROM contributors
WHERE repository_owner = $1 AND repository_name = $2
ORDER BY contributions DESC, login
LIMIT $3`, key.Owner, key.Name, store.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("list contributors of %s: %w", key, err)
	}

	contributors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Contributor, error) {
		var (
			c           model.Contributor
			accountType string
		)
		err := row.Scan(&c.RepositoryOwner, &c.RepositoryName, &c.Login, &c.GithubID, &c.AvatarURL,
			&c.ProfileURL, &c.Contributions, &accountType, &c.LastUpdated)
		c.Type = model.AccountType(accountType)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("list contributors of %s: %w", key, err)
	}
	return contributors, nil
}

func (s *Store) ListTopics(ctx context.Context, limit int) ([]model.Topic, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT name, repository_count, last_updated FROM topics ORDER BY repository_count DESC, name LIMIT $1",
		store.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	topics, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Topic, error) {
		var t model.Topic
		err := row.Scan(&t.Name, &t.RepositoryCount, &t.LastUpdated)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{}
	err := s.pool.QueryRow(ctx, `
SELECT (SELECT count(*) FROM repositories),
       (SELECT count(*) FROM contributors),
       (SELECT count(*) FROM topics)`).Scan(&stats.Repositories, &stats.Contributors, &stats.Topics)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
SELECT language, count(*) FROM repositories
WHERE language <> ''
GROUP BY language
ORDER BY count(*) DESC, language
LIMIT $1`, store.TopLanguagesLimit)
	if err != nil {
		return nil, fmt.Errorf("aggregate languages: %w", err)
	}
	stats.TopLanguages, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.LanguageCount, error) {
		var lc model.LanguageCount
		err := row.Scan(&lc.Language, &lc.Repositories)
		return lc, err
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate languages: %w", err)
	}
	return stats, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE repositories, contributors, topics"); err != nil {
		return fmt.Errorf("clear tables: %w", err)
	}
	s.logger.Info("Tables cleared")
	return nil
}
