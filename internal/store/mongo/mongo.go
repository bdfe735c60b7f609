// Package mongo stores the analyzer's documents in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

const (
	repositoriesCollection = "repositories"
	contributorsCollection = "contributors"
	topicsCollection       = "topics"

	connectTimeout = 10 * time.Second
)

// Store is a store.Store backed by a MongoDB database.
type Store struct {
	client       *mongo.Client
	repositories *mongo.Collection
	contributors *mongo.Collection
	topics       *mongo.Collection
	logger       *slog.Logger
	now          func() time.Time
}

var _ store.Store = (*Store)(nil)

// New connects to uri, verifies the connection and creates the indexes the
// upserts rely on.
func New(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: connect to mongodb: %w", apperrors.ErrStoreUnavailable, err)
	}

	db := client.Database(database)
	s := &Store{
		client:       client,
		repositories: db.Collection(repositoriesCollection),
		contributors: db.Collection(contributorsCollection),
		topics:       db.Collection(topicsCollection),
		logger:       logger,
		now:          time.Now,
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	logger.Info("MongoDB connection established", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.repositories: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "topics", Value: 1}}},
			{Keys: bson.D{{Key: "stars_count", Value: -1}}},
			{Keys: bson.D{{Key: "language", Value: 1}}},
		},
		s.contributors: {
			{
				Keys: bson.D{
					{Key: "repository_owner", Value: 1},
					{Key: "repository_name", Value: 1},
					{Key: "login", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "contributions", Value: -1}}},
		},
		s.topics: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func repositoryKeyFilter(key model.RepoKey) bson.D {
	return bson.D{{Key: "owner", Value: key.Owner}, {Key: "name", Value: key.Name}}
}

func (s *Store) UpsertRepository(ctx context.Context, repo *model.Repository) (bool, error) {
	topics := repo.Topics
	if topics == nil {
		topics = []string{}
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "description", Value: repo.Description},
			{Key: "url", Value: repo.URL},
			{Key: "stars_count", Value: repo.StarsCount},
			{Key: "forks_count", Value: repo.ForksCount},
			{Key: "watchers_count", Value: repo.WatchersCount},
			{Key: "language", Value: repo.Language},
			{Key: "topics", Value: topics},
			{Key: "updated_at", Value: repo.RepoUpdatedAt},
			{Key: "is_fork", Value: repo.IsFork},
			{Key: "is_archived", Value: repo.IsArchived},
			{Key: "last_analyzed", Value: repo.LastAnalyzed},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "github_id", Value: repo.GithubID},
			{Key: "created_at", Value: repo.RepoCreatedAt},
		}},
	}

	var res *mongo.UpdateResult
	err := retryOnDuplicateKey(func() error {
		var err error
		res, err = s.repositories.UpdateOne(ctx, repositoryKeyFilter(repo.Key()), update, options.Update().SetUpsert(true))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("upsert repository %s: %w", repo.Key(), err)
	}
	return res.UpsertedCount > 0, nil
}

func (s *Store) UpsertContributors(ctx context.Context, repo model.RepoKey, contributors []model.Contributor) (int, error) {
	if len(contributors) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(contributors))
	for _, c := range contributors {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.D{
				{Key: "repository_owner", Value: repo.Owner},
				{Key: "repository_name", Value: repo.Name},
				{Key: "login", Value: c.Login},
			}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{
				{Key: "github_id", Value: c.GithubID},
				{Key: "avatar_url", Value: c.AvatarURL},
				{Key: "profile_url", Value: c.ProfileURL},
				{Key: "contributions", Value: c.Contributions},
				{Key: "type", Value: c.Type},
				{Key: "last_updated", Value: c.LastUpdated},
			}}}).
			SetUpsert(true))
	}

	var res *mongo.BulkWriteResult
	err := retryOnDuplicateKey(func() error {
		var err error
		res, err = s.contributors.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("upsert contributors of %s: %w", repo, err)
	}
	return int(res.UpsertedCount + res.MatchedCount), nil
}

// retryOnDuplicateKey retries once when a concurrent upsert won the race to
// insert the same key; the second attempt then matches the existing document.
func retryOnDuplicateKey(op func() error) error {
	err := op()
	if mongo.IsDuplicateKeyError(err) {
		err = op()
	}
	return err
}

func (s *Store) RefreshTopic(ctx context.Context, name string) (model.Topic, error) {
	n, err := s.repositories.CountDocuments(ctx, bson.D{{Key: "topics", Value: name}})
	if err != nil {
		return model.Topic{}, fmt.Errorf("count repositories for topic %s: %w", name, err)
	}

	t := model.Topic{Name: name, RepositoryCount: int(n), LastUpdated: s.now().UTC()}
	_, err = s.topics.UpdateOne(ctx,
		bson.D{{Key: "name", Value: name}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "repository_count", Value: t.RepositoryCount},
			{Key: "last_updated", Value: t.LastUpdated},
		}}},
		options.Update().SetUpsert(true))
	if err != nil {
		return model.Topic{}, fmt.Errorf("upsert topic %s: %w", name, err)
	}
	return t, nil
}

func (s *Store) ListRepositories(ctx context.Context, filter model.RepositoryFilter) ([]model.Repository, error) {
	query := bson.D{}
	if filter.Topic != "" {
		query = append(query, bson.E{Key: "topics", Value: filter.Topic})
	}
	if filter.Language != "" {
		query = append(query, bson.E{Key: "language", Value: filter.Language})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "stars_count", Value: -1}, {Key: "owner", Value: 1}, {Key: "name", Value: 1}}).
		SetLimit(int64(store.Limit(filter.Limit)))
	cur, err := s.repositories.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	out := make([]model.Repository, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode repositories: %w", err)
	}
	return out, nil
}

func (s *Store) GetRepository(ctx context.Context, key model.RepoKey) (*model.Repository, error) {
	var repo model.Repository
	err := s.repositories.FindOne(ctx, repositoryKeyFilter(key)).Decode(&repo)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("repository %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", key, err)
	}
	return &repo, nil
}

func (s *Store) TopContributors(ctx context.Context, key model.RepoKey, limit int) ([]model.Contributor, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "contributions", Value: -1}, {Key: "login", Value: 1}}).
		SetLimit(int64(store.Limit(limit)))
	cur, err := s.contributors.Find(ctx, bson.D{
		{Key: "repository_owner", Value: key.Owner},
		{Key: "repository_name", Value: key.Name},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("list contributors of %s: %w", key, err)
	}

	out := make([]model.Contributor, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode contributors: %w", err)
	}
	return out, nil
}

func (s *Store) ListTopics(ctx context.Context, limit int) ([]model.Topic, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "repository_count", Value: -1}, {Key: "name", Value: 1}}).
		SetLimit(int64(store.Limit(limit)))
	cur, err := s.topics.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	out := make([]model.Topic, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{}
	counts := []struct {
		coll *mongo.Collection
		dst  *int
	}{
		{s.repositories, &stats.Repositories},
		{s.contributors, &stats.Contributors},
		{s.topics, &stats.Topics},
	}
	for _, c := range counts {
		n, err := c.coll.CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c.coll.Name(), err)
		}
		*c.dst = int(n)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "language", Value: bson.D{{Key: "$nin", Value: bson.A{nil, ""}}}}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$language"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: store.TopLanguagesLimit}},
	}
	cur, err := s.repositories.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate languages: %w", err)
	}
	stats.TopLanguages = make([]model.LanguageCount, 0, store.TopLanguagesLimit)
	if err := cur.All(ctx, &stats.TopLanguages); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}
	return stats, nil
}

func (s *Store) Clear(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{s.repositories, s.contributors, s.topics} {
		res, err := coll.DeleteMany(ctx, bson.D{})
		if err != nil {
			return fmt.Errorf("clear %s: %w", coll.Name(), err)
		}
		s.logger.Info("Collection cleared", "collection", coll.Name(), "deleted", res.DeletedCount)
	}
	return nil
}
