package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github-analyzer/internal/errors"
)

const repositoryFields = `
fragment RepositoryFields on Repository {
  id
  name
  owner { login }
  description
  url
  stargazerCount
  forkCount
  watchers { totalCount }
  primaryLanguage { name }
  repositoryTopics(first: 20) { nodes { topic { name } } }
  createdAt
  updatedAt
  isFork
  isArchived
}`

const searchRepositoriesQuery = `
query SearchRepositories($query: String!, $first: Int!, $after: String) {
  rateLimit { limit cost remaining resetAt }
  search(query: $query, type: REPOSITORY, first: $first, after: $after) {
    repositoryCount
    pageInfo { hasNextPage endCursor }
    nodes { ...RepositoryFields }
  }
}` + repositoryFields

const getRepositoryQuery = `
query GetRepository($owner: String!, $name: String!) {
  rateLimit { limit cost remaining resetAt }
  repository(owner: $owner, name: $name) { ...RepositoryFields }
}` + repositoryFields

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type graphqlError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

type rateLimitNode struct {
	Limit     int       `json:"limit"`
	Cost      int       `json:"cost"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

type rateLimitEnvelope struct {
	RateLimit *rateLimitNode `json:"rateLimit"`
}

type pageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type searchData struct {
	Search struct {
		RepositoryCount int              `json:"repositoryCount"`
		PageInfo        pageInfo         `json:"pageInfo"`
		Nodes           []RepositoryNode `json:"nodes"`
	} `json:"search"`
}

type repositoryData struct {
	Repository *RepositoryNode `json:"repository"`
}

// SearchRepositories fetches one page of repository search results. after is
// the cursor returned by the previous page, or empty for the first page.
func (c *Client) SearchRepositories(ctx context.Context, query string, first int, after string) (*Page[RepositoryNode], error) {
	vars := map[string]any{
		"query": query,
		"first": clampPageSize(first),
	}
	if after != "" {
		vars["after"] = after
	}

	var data searchData
	if err := c.query(ctx, "search repositories", searchRepositoriesQuery, vars, &data); err != nil {
		return nil, err
	}

	page := &Page[RepositoryNode]{
		Items:      data.Search.Nodes,
		TotalCount: data.Search.RepositoryCount,
	}
	if data.Search.PageInfo.HasNextPage && data.Search.PageInfo.EndCursor != nil {
		page.NextCursor = *data.Search.PageInfo.EndCursor
	}

	c.logger.Debug("Fetched repository search page",
		"query", query, "items", len(page.Items), "total", page.TotalCount, "has_next", page.HasNext())
	return page, nil
}

// GetRepository fetches a single repository's metadata.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*RepositoryNode, error) {
	vars := map[string]any{"owner": owner, "name": name}

	var data repositoryData
	if err := c.query(ctx, "get repository", getRepositoryQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Repository == nil {
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, name, apperrors.ErrNotFound)
	}
	return data.Repository, nil
}

// query posts a GraphQL document and decodes its data into out.
func (c *Client) query(ctx context.Context, op, query string, vars map[string]any, out any) error {
	return c.call(ctx, ResourceGraphQL, op, func(ctx context.Context) error {
		req, err := c.gh.NewRequest(http.MethodPost, "graphql", &graphqlRequest{Query: query, Variables: vars})
		if err != nil {
			return err
		}

		var body graphqlResponse
		resp, err := c.gh.Do(ctx, req, &body)
		c.limiter.UpdateFromResponse(ResourceGraphQL, resp)
		if err != nil {
			return err
		}

		var env rateLimitEnvelope
		if len(body.Data) > 0 && string(body.Data) != "null" {
			if err := json.Unmarshal(body.Data, &env); err != nil {
				return fmt.Errorf("decode rate limit: %w", err)
			}
		}
		if env.RateLimit != nil {
			rl := env.RateLimit
			c.limiter.Update(ResourceGraphQL, rl.Limit, rl.Remaining, rl.Cost, rl.ResetAt)
		}

		if len(body.Errors) > 0 {
			return graphQLError(body.Errors, env.RateLimit)
		}
		if len(body.Data) == 0 || string(body.Data) == "null" {
			return fmt.Errorf("%w: response carried no data", apperrors.ErrInvalidQuery)
		}
		return json.Unmarshal(body.Data, out)
	})
}

// graphQLError maps the first error GitHub reported to our error types.
func graphQLError(errs []graphqlError, rl *rateLimitNode) error {
	first := errs[0]
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	msg := strings.Join(messages, "; ")

	switch first.Type {
	case "NOT_FOUND":
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, msg)
	case "RATE_LIMITED":
		e := &apperrors.RateLimitError{}
		if rl != nil {
			e.ResetAt, e.Remaining, e.Limit = rl.ResetAt, rl.Remaining, rl.Limit
		}
		return e
	case "FORBIDDEN":
		return &apperrors.APIError{StatusCode: http.StatusForbidden, Type: first.Type, Message: msg}
	case "INTERNAL", "SERVICE_UNAVAILABLE", "TIMEOUT":
		return &apperrors.APIError{StatusCode: http.StatusBadGateway, Type: first.Type, Message: msg}
	}
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidQuery, msg)
}

func clampPageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
