package github

import "time"

// Page is one page of a cursor-paginated listing.
type Page[T any] struct {
	Items []T
	// NextCursor is empty when there are no further pages.
	NextCursor string
	// TotalCount is the size of the full result set when GitHub reports it.
	TotalCount int
}

// HasNext reports whether another page can be fetched.
func (p *Page[T]) HasNext() bool {
	return p.NextCursor != ""
}

// RepositoryNode is a repository as returned by GitHub's GraphQL API. Every
// field is optional on the wire; absent values stay nil.
type RepositoryNode struct {
	ID               *string          `json:"id"`
	Name             *string          `json:"name"`
	Owner            *Actor           `json:"owner"`
	Description      *string          `json:"description"`
	URL              *string          `json:"url"`
	StargazerCount   *int             `json:"stargazerCount"`
	ForkCount        *int             `json:"forkCount"`
	Watchers         *Count           `json:"watchers"`
	PrimaryLanguage  *Language        `json:"primaryLanguage"`
	RepositoryTopics *TopicConnection `json:"repositoryTopics"`
	CreatedAt        *time.Time       `json:"createdAt"`
	UpdatedAt        *time.Time       `json:"updatedAt"`
	IsFork           *bool            `json:"isFork"`
	IsArchived       *bool            `json:"isArchived"`
}

type Actor struct {
	Login *string `json:"login"`
}

type Count struct {
	TotalCount *int `json:"totalCount"`
}

type Language struct {
	Name *string `json:"name"`
}

type TopicConnection struct {
	Nodes []TopicNode `json:"nodes"`
}

type TopicNode struct {
	Topic *Language `json:"topic"`
}

// ContributorNode is one entry of the REST contributors listing.
type ContributorNode struct {
	Login         *string
	ID            *int64
	AvatarURL     *string
	HTMLURL       *string
	Contributions *int
	Type          *string
}
