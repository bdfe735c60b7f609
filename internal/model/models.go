// internal/model/models.go
package model

import (
	"fmt"
	"time"
)

// RepoKey is the natural key of a repository.
type RepoKey struct {
	Owner string `json:"owner" bson:"owner"`
	Name  string `json:"name" bson:"name"`
}

func (k RepoKey) String() string {
	return fmt.Sprintf("%s/%s", k.Owner, k.Name)
}

// Repository represents the metadata of a GitHub repository as stored by the analyzer.
type Repository struct {
	GithubID      string    `json:"github_id" bson:"github_id"`
	Owner         string    `json:"owner" bson:"owner"`
	Name          string    `json:"name" bson:"name"`
	Description   string    `json:"description" bson:"description"`
	URL           string    `json:"url" bson:"url"`
	StarsCount    int       `json:"stars_count" bson:"stars_count"`
	ForksCount    int       `json:"forks_count" bson:"forks_count"`
	WatchersCount int       `json:"watchers_count" bson:"watchers_count"`
	Language      string    `json:"language,omitempty" bson:"language,omitempty"`
	Topics        []string  `json:"topics" bson:"topics"`
	RepoCreatedAt time.Time `json:"created_at" bson:"created_at"`
	RepoUpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	IsFork        bool      `json:"is_fork" bson:"is_fork"`
	IsArchived    bool      `json:"is_archived" bson:"is_archived"`
	LastAnalyzed  time.Time `json:"last_analyzed" bson:"last_analyzed"`
}

// Key returns the natural key of the repository.
func (r *Repository) Key() RepoKey {
	return RepoKey{Owner: r.Owner, Name: r.Name}
}

// AccountType distinguishes human contributors from automated accounts.
type AccountType string

const (
	AccountUser         AccountType = "User"
	AccountBot          AccountType = "Bot"
	AccountOrganization AccountType = "Organization"
)

// Contributor is one contributor of one repository.
type Contributor struct {
	RepositoryOwner string      `json:"repository_owner" bson:"repository_owner"`
	RepositoryName  string      `json:"repository_name" bson:"repository_name"`
	Login           string      `json:"login" bson:"login"`
	GithubID        int64       `json:"github_id" bson:"github_id"`
	AvatarURL       string      `json:"avatar_url" bson:"avatar_url"`
	ProfileURL      string      `json:"profile_url" bson:"profile_url"`
	Contributions   int         `json:"contributions" bson:"contributions"`
	Type            AccountType `json:"type" bson:"type"`
	LastUpdated     time.Time   `json:"last_updated" bson:"last_updated"`
}

// Topic is the side index of how many stored repositories carry a topic.
type Topic struct {
	Name            string    `json:"name" bson:"name"`
	RepositoryCount int       `json:"repository_count" bson:"repository_count"`
	LastUpdated     time.Time `json:"last_updated" bson:"last_updated"`
}

// LanguageCount is one row of the language breakdown in Stats.
type LanguageCount struct {
	Language     string `json:"language" bson:"_id"`
	Repositories int    `json:"repositories" bson:"count"`
}

// Stats summarises the stored data set.
type Stats struct {
	Repositories int             `json:"repositories"`
	Contributors int             `json:"contributors"`
	Topics       int             `json:"topics"`
	TopLanguages []LanguageCount `json:"top_languages"`
}

// RepositoryFilter narrows ListRepositories.
type RepositoryFilter struct {
	Topic    string
	Language string
	Limit    int
}
