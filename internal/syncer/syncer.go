// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/github"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

// Source is the paginated remote API the pipeline drives one page at a time.
type Source interface {
	SearchRepositories(ctx context.Context, query string, first int, after string) (*github.Page[github.RepositoryNode], error)
	GetRepository(ctx context.Context, owner, name string) (*github.RepositoryNode, error)
	ListContributors(ctx context.Context, owner, name string, perPage int, cursor string) (*github.Page[github.ContributorNode], error)
}

// Options tunes the pipeline.
type Options struct {
	// Concurrency is how many topics are analysed in parallel. Values below 1 mean 1.
	Concurrency int
}

// Syncer orchestrates fetching from GitHub and storing the results.
type Syncer struct {
	source      Source
	store       store.Store
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
	newRunID    func() string
}

// New creates a Syncer. st may be nil when every request is made with Save unset.
func New(source Source, st store.Store, logger *slog.Logger, opts Options) *Syncer {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Syncer{
		source:      source,
		store:       st,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
}

// AnalyzeRequest asks for the top repositories of each topic and, when
// ContributorLimit is positive, their top contributors.
type AnalyzeRequest struct {
	Topics           []string
	RepoLimit        int
	ContributorLimit int
	Save             bool
}

type unitResult struct {
	ran      bool
	unit     model.UnitSummary
	warnings []string
	err      error
}

// Analyze runs the topic pipeline. Every topic is an independent unit of work:
// a failing topic is recorded in the summary and its siblings continue. An
// authentication failure or cancellation aborts the run; the partial summary is
// returned together with the error.
func (s *Syncer) Analyze(ctx context.Context, req AnalyzeRequest) (*model.Summary, error) {
	topics, err := NormalizeTopics(req.Topics)
	if err != nil {
		return nil, err
	}
	if err := ValidateLimit("repository limit", req.RepoLimit); err != nil {
		return nil, err
	}
	if req.ContributorLimit != 0 {
		if err := ValidateLimit("contributor limit", req.ContributorLimit); err != nil {
			return nil, err
		}
	}
	if req.Save {
		if err := s.ping(ctx); err != nil {
			return nil, err
		}
	}

	summary := s.newSummary()
	logger := s.logger.With("run_id", summary.RunID)
	logger.Info("Starting topic analysis",
		"topics", topics, "repo_limit", req.RepoLimit, "contributor_limit", req.ContributorLimit,
		"save", req.Save, "concurrency", s.concurrency)

	results := make([]unitResult, len(topics))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, topic := range topics {
		i, topic := i, topic
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = s.analyzeTopic(gctx, logger.With("topic", topic), topic, req)
			if apperrors.IsTerminalForRun(results[i].err) {
				return results[i].err
			}
			return nil
		})
	}

	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	for i, topic := range topics {
		r := results[i]
		if !r.ran {
			r.unit = model.UnitSummary{Kind: model.UnitTopic, Name: topic, Error: "skipped: run aborted"}
		}
		summary.Add(r.unit, r.warnings)
	}

	if runErr != nil {
		logger.Error("Topic analysis aborted", "error", runErr)
		return summary, fmt.Errorf("analyze: %w", runErr)
	}
	logSummary(logger, "Topic analysis finished", summary)
	return summary, nil
}

// analyzeTopic pages through the topic's search results until the limit is
// reached or GitHub reports no further page.
func (s *Syncer) analyzeTopic(ctx context.Context, logger *slog.Logger, topic string, req AnalyzeRequest) unitResult {
	res := unitResult{ran: true, unit: model.UnitSummary{Kind: model.UnitTopic, Name: topic}}
	logger.Info("Analyzing topic")

	query := fmt.Sprintf("topic:%s sort:stars-desc", topic)
	cursor := ""
	for res.unit.RepositoriesSeen < req.RepoLimit {
		page, err := s.source.SearchRepositories(ctx, query, min(req.RepoLimit-res.unit.RepositoriesSeen, github.MaxPageSize), cursor)
		if err != nil {
			return res.fail(logger, fmt.Errorf("search topic %s: %w", topic, err))
		}
		res.unit.Pages++

		for i := range page.Items {
			if res.unit.RepositoriesSeen >= req.RepoLimit {
				break
			}
			res.unit.RepositoriesSeen++

			repo, err := normalizeRepository(&page.Items[i], s.now())
			if err != nil {
				res.warn(logger, fmt.Sprintf("topic %s: dropped repository #%d: %v", topic, res.unit.RepositoriesSeen, err))
				continue
			}
			if req.Save {
				if err := s.saveRepository(ctx, logger, &res, repo); err != nil {
					return res.fail(logger, err)
				}
			}
			if req.ContributorLimit <= 0 {
				continue
			}
			if err := s.syncContributors(ctx, logger, &res, repo.Key(), req.ContributorLimit, req.Save); err != nil {
				// Inside a topic a repository whose contributors cannot be listed is
				// only a warning; storage and run-terminal failures stop the topic.
				if errors.Is(err, errSave) || apperrors.IsTerminalForRun(err) || ctx.Err() != nil {
					return res.fail(logger, err)
				}
				res.warn(logger, fmt.Sprintf("repository %s: contributors not analyzed: %v", repo.Key(), err))
			}
		}

		if !page.HasNext() || len(page.Items) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	if req.Save {
		t, err := s.store.RefreshTopic(ctx, topic)
		if err != nil {
			return res.fail(logger, fmt.Errorf("refresh topic %s: %w", topic, err))
		}
		logger.Debug("Topic index refreshed", "repository_count", t.RepositoryCount)
	}

	logger.Info("Topic analyzed",
		"pages", res.unit.Pages, "repositories_seen", res.unit.RepositoriesSeen,
		"repositories_saved", res.unit.RepositoriesSaved, "contributors_saved", res.unit.ContributorsSaved)
	return res
}

// errSave marks storage write failures so callers can tell them apart from fetch failures.
var errSave = errors.New("storage write failed")

func (s *Syncer) saveRepository(ctx context.Context, logger *slog.Logger, res *unitResult, repo *model.Repository) error {
	inserted, err := s.store.UpsertRepository(ctx, repo)
	if err != nil {
		return fmt.Errorf("%w: repository %s: %w", errSave, repo.Key(), err)
	}
	res.unit.RepositoriesSaved++
	logger.Debug("Repository saved", "repository", repo.Key().String(), "inserted", inserted)
	return nil
}

func (s *Syncer) syncContributors(ctx context.Context, logger *slog.Logger, res *unitResult, key model.RepoKey, limit int, save bool) error {
	// REST pagination is by page number, so the page size must stay fixed across pages.
	perPage := min(limit, github.MaxPageSize)
	seen := 0
	cursor := ""
	for seen < limit {
		page, err := s.source.ListContributors(ctx, key.Owner, key.Name, perPage, cursor)
		if err != nil {
			return fmt.Errorf("list contributors of %s: %w", key, err)
		}

		batch := make([]model.Contributor, 0, len(page.Items))
		for i := range page.Items {
			if seen >= limit {
				break
			}
			seen++
			res.unit.ContributorsSeen++

			c, err := normalizeContributor(&page.Items[i], key, s.now())
			if err != nil {
				res.warn(logger, fmt.Sprintf("repository %s: dropped contributor #%d: %v", key, seen, err))
				continue
			}
			batch = append(batch, *c)
		}

		if save && len(batch) > 0 {
			n, err := s.store.UpsertContributors(ctx, key, batch)
			if err != nil {
				return fmt.Errorf("%w: contributors of %s: %w", errSave, key, err)
			}
			res.unit.ContributorsSaved += n
		}

		if !page.HasNext() || len(page.Items) == 0 {
			break
		}
		cursor = page.NextCursor
	}
	logger.Debug("Contributors analyzed", "repository", key.String(), "seen", seen)
	return nil
}

// AnalyzeRepository fetches and stores one repository and its top contributors.
// A repository GitHub does not know is reported as a failed unit, not an error.
func (s *Syncer) AnalyzeRepository(ctx context.Context, owner, name string, contributorLimit int) (*model.Summary, error) {
	key, err := ParseRepoIdentifier(owner + "/" + name)
	if err != nil {
		return nil, err
	}
	if err := ValidateLimit("contributor limit", contributorLimit); err != nil {
		return nil, err
	}
	if err := s.ping(ctx); err != nil {
		return nil, err
	}

	summary := s.newSummary()
	logger := s.logger.With("run_id", summary.RunID, "owner", key.Owner, "repo", key.Name)
	logger.Info("Analyzing repository", "contributor_limit", contributorLimit)

	res := s.analyzeRepository(ctx, logger, key, contributorLimit)
	summary.Add(res.unit, res.warnings)

	runErr := ctx.Err()
	if apperrors.IsTerminalForRun(res.err) {
		runErr = res.err
	}
	if runErr != nil {
		return summary, fmt.Errorf("analyze repository %s: %w", key, runErr)
	}
	logSummary(logger, "Repository analysis finished", summary)
	return summary, nil
}

// analyzeRepository treats the repository as the unit of work, so any fetch or
// storage failure fails the unit.
func (s *Syncer) analyzeRepository(ctx context.Context, logger *slog.Logger, key model.RepoKey, contributorLimit int) unitResult {
	res := unitResult{ran: true, unit: model.UnitSummary{Kind: model.UnitRepository, Name: key.String()}}

	node, err := s.source.GetRepository(ctx, key.Owner, key.Name)
	if err != nil {
		return res.fail(logger, fmt.Errorf("get repository %s: %w", key, err))
	}
	res.unit.Pages++
	res.unit.RepositoriesSeen++

	repo, err := normalizeRepository(node, s.now())
	if err != nil {
		return res.fail(logger, fmt.Errorf("repository %s: %w", key, err))
	}
	if err := s.saveRepository(ctx, logger, &res, repo); err != nil {
		return res.fail(logger, err)
	}
	if err := s.syncContributors(ctx, logger, &res, repo.Key(), contributorLimit, true); err != nil {
		return res.fail(logger, err)
	}
	return res
}

func (res *unitResult) fail(logger *slog.Logger, err error) unitResult {
	res.err = err
	res.unit.Error = err.Error()
	if errors.Is(err, context.Canceled) {
		logger.Warn("Unit cancelled", "error", err)
	} else {
		logger.Error("Unit failed", "error", err)
	}
	return *res
}

func (res *unitResult) warn(logger *slog.Logger, msg string) {
	logger.Warn("Warning recorded", "warning", msg)
	res.warnings = append(res.warnings, msg)
}

func (s *Syncer) ping(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("%w: no store configured", apperrors.ErrStoreUnavailable)
	}
	if err := s.store.Ping(ctx); err != nil {
		if errors.Is(err, apperrors.ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Syncer) newSummary() *model.Summary {
	return &model.Summary{
		RunID:    s.newRunID(),
		Units:    []model.UnitSummary{},
		Warnings: []string{},
	}
}

func logSummary(logger *slog.Logger, msg string, summary *model.Summary) {
	logger.Info(msg,
		"repositories_seen", summary.RepositoriesSeen,
		"repositories_saved", summary.RepositoriesSaved,
		"contributors_seen", summary.ContributorsSeen,
		"contributors_saved", summary.ContributorsSaved,
		"warnings", len(summary.Warnings))
}
