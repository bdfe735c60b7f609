package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github-analyzer/internal/model"
)

const descriptionWidth = 50

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderRepositories(w io.Writer, title string, repos []model.Repository) {
	if len(repos) == 0 {
		fmt.Fprintln(w, warningStyle.Render("No repositories found"))
		return
	}
	t := newTable("Repository", "Stars", "Language", "Description")
	for _, r := range repos {
		language := r.Language
		if language == "" {
			language = "N/A"
		}
		t.Row(r.Key().String(), strconv.Itoa(r.StarsCount), language, truncateText(r.Description, descriptionWidth))
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, t.Render())
}

func renderContributors(w io.Writer, key model.RepoKey, contributors []model.Contributor) {
	if len(contributors) == 0 {
		fmt.Fprintln(w, warningStyle.Render("No contributors found for "+key.String()))
		return
	}
	t := newTable("Contributor", "Contributions", "Profile")
	for _, c := range contributors {
		t.Row(c.Login, strconv.Itoa(c.Contributions), c.ProfileURL)
	}
	fmt.Fprintf(w, "Top contributors for %s\n", key)
	fmt.Fprintln(w, t.Render())
}

func renderStats(w io.Writer, stats *model.Stats) {
	fmt.Fprintf(w, "Repositories: %d\n", stats.Repositories)
	fmt.Fprintf(w, "Contributors: %d\n", stats.Contributors)
	fmt.Fprintf(w, "Topics:       %d\n", stats.Topics)
	if len(stats.TopLanguages) == 0 {
		return
	}
	t := newTable("Language", "Repositories")
	for _, l := range stats.TopLanguages {
		t.Row(l.Language, strconv.Itoa(l.Repositories))
	}
	fmt.Fprintln(w, t.Render())
}

func renderTopics(w io.Writer, topics []model.Topic) {
	if len(topics) == 0 {
		fmt.Fprintln(w, warningStyle.Render("No topics found"))
		return
	}
	t := newTable("Topic", "Repositories", "Last updated")
	for _, tp := range topics {
		t.Row(tp.Name, strconv.Itoa(tp.RepositoryCount), tp.LastUpdated.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w, t.Render())
}

func renderSummary(w io.Writer, summary *model.Summary, saved bool) {
	t := newTable("Unit", "Pages", "Repositories", "Contributors", "Status")
	for _, u := range summary.Units {
		repos := strconv.Itoa(u.RepositoriesSeen)
		contributors := strconv.Itoa(u.ContributorsSeen)
		if saved {
			repos = fmt.Sprintf("%d/%d", u.RepositoriesSaved, u.RepositoriesSeen)
			contributors = fmt.Sprintf("%d/%d", u.ContributorsSaved, u.ContributorsSeen)
		}
		status := successStyle.Render("ok")
		if u.Failed() {
			status = errorStyle.Render(truncateText(u.Error, descriptionWidth))
		}
		t.Row(string(u.Kind)+" "+u.Name, strconv.Itoa(u.Pages), repos, contributors, status)
	}
	fmt.Fprintf(w, "Run %s\n", summary.RunID)
	fmt.Fprintln(w, t.Render())

	fmt.Fprintf(w, "Repositories seen: %d, saved: %d\n", summary.RepositoriesSeen, summary.RepositoriesSaved)
	fmt.Fprintf(w, "Contributors seen: %d, saved: %d\n", summary.ContributorsSeen, summary.ContributorsSaved)
	for _, warning := range summary.Warnings {
		fmt.Fprintln(w, warningStyle.Render("warning: "+warning))
	}
}

// truncateText shortens s to at most n runes, marking the cut with "...".
func truncateText(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
