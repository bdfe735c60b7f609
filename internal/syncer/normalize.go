package syncer

import (
	"errors"
	"strings"
	"time"

	"github-analyzer/internal/github"
	"github-analyzer/internal/model"
)

var (
	errMissingOwner = errors.New("missing owner")
	errMissingName  = errors.New("missing name")
	errMissingLogin = errors.New("missing login")
)

// normalizeRepository maps a wire node onto the storage schema. Absent optional
// fields get zero values; a node without owner or name is rejected.
func normalizeRepository(n *github.RepositoryNode, now time.Time) (*model.Repository, error) {
	owner := ""
	if n.Owner != nil {
		owner = str(n.Owner.Login)
	}
	if owner == "" {
		return nil, errMissingOwner
	}
	name := str(n.Name)
	if name == "" {
		return nil, errMissingName
	}

	repo := &model.Repository{
		GithubID:      str(n.ID),
		Owner:         owner,
		Name:          name,
		Description:   str(n.Description),
		URL:           str(n.URL),
		StarsCount:    count(n.StargazerCount),
		ForksCount:    count(n.ForkCount),
		Topics:        []string{},
		IsFork:        n.IsFork != nil && *n.IsFork,
		IsArchived:    n.IsArchived != nil && *n.IsArchived,
		LastAnalyzed:  now.UTC(),
		RepoCreatedAt: timestamp(n.CreatedAt),
		RepoUpdatedAt: timestamp(n.UpdatedAt),
	}
	if n.Watchers != nil {
		repo.WatchersCount = count(n.Watchers.TotalCount)
	}
	if n.PrimaryLanguage != nil {
		repo.Language = str(n.PrimaryLanguage.Name)
	}
	if n.RepositoryTopics != nil {
		seen := make(map[string]struct{})
		for _, tn := range n.RepositoryTopics.Nodes {
			if tn.Topic == nil {
				continue
			}
			t := strings.ToLower(str(tn.Topic.Name))
			if _, dup := seen[t]; t == "" || dup {
				continue
			}
			seen[t] = struct{}{}
			repo.Topics = append(repo.Topics, t)
		}
	}
	return repo, nil
}

func normalizeContributor(n *github.ContributorNode, repo model.RepoKey, now time.Time) (*model.Contributor, error) {
	login := str(n.Login)
	if login == "" {
		return nil, errMissingLogin
	}

	c := &model.Contributor{
		RepositoryOwner: repo.Owner,
		RepositoryName:  repo.Name,
		Login:           login,
		AvatarURL:       str(n.AvatarURL),
		ProfileURL:      str(n.HTMLURL),
		Contributions:   count(n.Contributions),
		Type:            accountType(str(n.Type), login),
		LastUpdated:     now.UTC(),
	}
	if n.ID != nil {
		c.GithubID = *n.ID
	}
	return c, nil
}

func accountType(t, login string) model.AccountType {
	switch {
	case t == string(model.AccountBot), strings.HasSuffix(login, "[bot]"):
		return model.AccountBot
	case t == string(model.AccountOrganization):
		return model.AccountOrganization
	default:
		return model.AccountUser
	}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// count treats absent and negative values as zero.
func count(n *int) int {
	if n == nil || *n < 0 {
		return 0
	}
	return *n
}

func timestamp(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
