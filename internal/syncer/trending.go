package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github-analyzer/internal/github"
	"github-analyzer/internal/model"
)

// Since is the window of repository creation dates Trending looks at.
type Since string

const (
	SinceDaily   Since = "daily"
	SinceWeekly  Since = "weekly"
	SinceMonthly Since = "monthly"
)

// ParseSince accepts daily, weekly or monthly. An empty value means weekly.
func ParseSince(s string) (Since, error) {
	switch v := Since(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SinceWeekly, nil
	case SinceDaily, SinceWeekly, SinceMonthly:
		return v, nil
	default:
		return "", fmt.Errorf("invalid period %q, expected daily, weekly or monthly", s)
	}
}

func (s Since) window() time.Duration {
	switch s {
	case SinceDaily:
		return 24 * time.Hour
	case SinceMonthly:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// TrendingRequest selects the most starred repositories created within Since.
type TrendingRequest struct {
	Language string
	Since    Since
	Limit    int
	Save     bool
}

// Trending returns the most starred recently created repositories, optionally
// storing them. Items missing identity fields are skipped.
func (s *Syncer) Trending(ctx context.Context, req TrendingRequest) ([]model.Repository, error) {
	if err := ValidateLimit("limit", req.Limit); err != nil {
		return nil, err
	}
	language := strings.TrimSpace(req.Language)
	if language != "" {
		if err := ValidateLanguage(language); err != nil {
			return nil, err
		}
	}
	if req.Save {
		if err := s.ping(ctx); err != nil {
			return nil, err
		}
	}

	query := trendingQuery(language, req.Since, s.now())
	logger := s.logger.With("run_id", s.newRunID(), "query", query)
	logger.Info("Fetching trending repositories", "limit", req.Limit, "save", req.Save)

	out := make([]model.Repository, 0, min(req.Limit, github.MaxPageSize))
	seen := 0
	cursor := ""
	for seen < req.Limit {
		page, err := s.source.SearchRepositories(ctx, query, min(req.Limit-seen, github.MaxPageSize), cursor)
		if err != nil {
			return out, fmt.Errorf("trending: %w", err)
		}
		for i := range page.Items {
			if seen >= req.Limit {
				break
			}
			seen++
			repo, err := normalizeRepository(&page.Items[i], s.now())
			if err != nil {
				logger.Warn("Skipping trending repository", "position", seen, "error", err)
				continue
			}
			if req.Save {
				if _, err := s.store.UpsertRepository(ctx, repo); err != nil {
					return out, fmt.Errorf("trending: save repository %s: %w", repo.Key(), err)
				}
			}
			out = append(out, *repo)
		}
		if !page.HasNext() || len(page.Items) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	logger.Info("Trending repositories fetched", "count", len(out))
	return out, nil
}

func trendingQuery(language string, since Since, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "created:>%s", now.Add(-since.window()).UTC().Format(time.DateOnly))
	if language != "" {
		if strings.Contains(language, " ") {
			fmt.Fprintf(&b, " language:%q", language)
		} else {
			fmt.Fprintf(&b, " language:%s", language)
		}
	}
	b.WriteString(" sort:stars-desc")
	return b.String()
}
