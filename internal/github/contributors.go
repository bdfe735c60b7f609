package github

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/go-github/v62/github"

	apperrors "github-analyzer/internal/errors"
)

// ListContributors fetches one page of a repository's contributors. GitHub's
// GraphQL schema has no contributors field, so this uses the REST endpoint;
// the cursor is the REST page number.
func (c *Client) ListContributors(ctx context.Context, owner, name string, perPage int, cursor string) (*Page[ContributorNode], error) {
	page := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: invalid contributors cursor %q", apperrors.ErrInvalidQuery, cursor)
		}
		page = n
	}

	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: clampPageSize(perPage)},
	}

	var (
		contributors []*github.Contributor
		nextPage     int
	)
	err := c.call(ctx, ResourceCore, "list contributors", func(ctx context.Context) error {
		result, resp, err := c.gh.Repositories.ListContributors(ctx, owner, name, opts)
		c.limiter.UpdateFromResponse(ResourceCore, resp)
		if err != nil {
			return err
		}
		contributors = result
		nextPage = resp.NextPage
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &Page[ContributorNode]{Items: make([]ContributorNode, 0, len(contributors))}
	for _, ct := range contributors {
		if ct == nil {
			out.Items = append(out.Items, ContributorNode{})
			continue
		}
		out.Items = append(out.Items, ContributorNode{
			Login:         ct.Login,
			ID:            ct.ID,
			AvatarURL:     ct.AvatarURL,
			HTMLURL:       ct.HTMLURL,
			Contributions: ct.Contributions,
			Type:          ct.Type,
		})
	}
	if nextPage != 0 {
		out.NextCursor = strconv.Itoa(nextPage)
	}

	c.logger.Debug("Fetched contributors page",
		"owner", owner, "repo", name, "page", page, "items", len(out.Items), "has_next", out.HasNext())
	return out, nil
}
