package syncer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
)

func TestNormalizeTopics(t *testing.T) {
	testCases := []struct {
		name    string
		input   []string
		want    []string
		wantErr bool
	}{
		{name: "lowercases and deduplicates in order", input: []string{"Go", "rust", " go ", "web-dev"}, want: []string{"go", "rust", "web-dev"}},
		{name: "empty list", input: nil, wantErr: true},
		{name: "blank topic", input: []string{"go", "  "}, wantErr: true},
		{name: "underscore", input: []string{"machine_learning"}, wantErr: true},
		{name: "too long", input: []string{strings.Repeat("a", MaxTopicLength+1)}, wantErr: true},
		{name: "max length", input: []string{strings.Repeat("a", MaxTopicLength)}, want: []string{strings.Repeat("a", MaxTopicLength)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeTopics(tc.input)
			if tc.wantErr {
				var topicErr *apperrors.ErrInvalidTopic
				assert.ErrorAs(t, err, &topicErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRepoIdentifier(t *testing.T) {
	testCases := []struct {
		input   string
		want    model.RepoKey
		wantErr bool
	}{
		{input: "golang/go", want: model.RepoKey{Owner: "golang", Name: "go"}},
		{input: "my-org/repo.name_v2", want: model.RepoKey{Owner: "my-org", Name: "repo.name_v2"}},
		{input: "golang", wantErr: true},
		{input: "golang/go/extra", wantErr: true},
		{input: "/go", wantErr: true},
		{input: "golang/", wantErr: true},
		{input: "-bad/go", wantErr: true},
		{input: "golang/go lang", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseRepoIdentifier(tc.input)
			if tc.wantErr {
				var formatErr *apperrors.ErrInvalidRepoFormat
				require.ErrorAs(t, err, &formatErr)
				assert.Equal(t, tc.input, formatErr.Repo)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateLimit(t *testing.T) {
	assert.NoError(t, ValidateLimit("limit", MinLimit))
	assert.NoError(t, ValidateLimit("limit", MaxLimit))
	assert.Error(t, ValidateLimit("limit", 0))
	assert.ErrorContains(t, ValidateLimit("contributor limit", MaxLimit+1), "contributor limit must be between 1 and 1000")
}

func TestValidateLanguage(t *testing.T) {
	for _, ok := range []string{"go", "C++", "C#", "F#", "jupyter notebook", "objective-c"} {
		assert.NoError(t, ValidateLanguage(ok), ok)
	}
	for _, bad := range []string{"", "go;drop", "lang:go"} {
		assert.Error(t, ValidateLanguage(bad), bad)
	}
}
