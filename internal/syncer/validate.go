package syncer

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
)

const (
	MaxTopicLength = 50
	MinLimit       = 1
	MaxLimit       = 1000
)

var (
	topicPattern    = regexp.MustCompile(`^[a-z0-9-]+$`)
	ownerPattern    = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)
	repoPattern     = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	languagePattern = regexp.MustCompile(`^[a-zA-Z0-9+#. -]+$`)
)

// ValidateTopic lowercases topic and checks it against GitHub's topic rules.
func ValidateTopic(topic string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(topic))
	switch {
	case t == "":
		return "", &apperrors.ErrInvalidTopic{Topic: topic, Reason: "topic cannot be empty"}
	case len(t) > MaxTopicLength:
		return "", &apperrors.ErrInvalidTopic{Topic: topic, Reason: fmt.Sprintf("longer than %d characters", MaxTopicLength)}
	case !topicPattern.MatchString(t):
		return "", &apperrors.ErrInvalidTopic{Topic: topic, Reason: "only lowercase letters, digits and hyphens are allowed"}
	}
	return t, nil
}

// NormalizeTopics validates every topic and removes duplicates, keeping the first occurrence.
func NormalizeTopics(topics []string) ([]string, error) {
	if len(topics) == 0 {
		return nil, &apperrors.ErrInvalidTopic{Reason: "at least one topic is required"}
	}

	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, raw := range topics {
		t, err := ValidateTopic(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// ParseRepoIdentifier parses an 'owner/name' string.
func ParseRepoIdentifier(s string) (model.RepoKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || !ownerPattern.MatchString(parts[0]) || !repoPattern.MatchString(parts[1]) {
		return model.RepoKey{}, &apperrors.ErrInvalidRepoFormat{Repo: s}
	}
	return model.RepoKey{Owner: parts[0], Name: parts[1]}, nil
}

// ValidateLimit checks that n is within [MinLimit, MaxLimit].
func ValidateLimit(name string, n int) error {
	if n < MinLimit || n > MaxLimit {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, MinLimit, MaxLimit, n)
	}
	return nil
}

// ValidateLanguage accepts language names such as "go", "c++", "c#" or "jupyter notebook".
func ValidateLanguage(language string) error {
	if !languagePattern.MatchString(language) {
		return fmt.Errorf("invalid language %q", language)
	}
	return nil
}
