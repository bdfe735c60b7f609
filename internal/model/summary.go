package model

// UnitKind names what a UnitSummary describes.
type UnitKind string

const (
	UnitTopic      UnitKind = "topic"
	UnitRepository UnitKind = "repository"
)

// UnitSummary is the per-topic or per-repository breakdown of a run.
type UnitSummary struct {
	Kind              UnitKind `json:"kind"`
	Name              string   `json:"name"`
	Pages             int      `json:"pages"`
	RepositoriesSeen  int      `json:"repositories_seen"`
	RepositoriesSaved int      `json:"repositories_saved"`
	ContributorsSeen  int      `json:"contributors_seen"`
	ContributorsSaved int      `json:"contributors_saved"`
	Error             string   `json:"error,omitempty"`
}

// Failed reports whether the unit stopped on an error.
func (u *UnitSummary) Failed() bool {
	return u.Error != ""
}

// Summary is what a pipeline run reports back to its caller.
type Summary struct {
	RunID             string        `json:"run_id"`
	RepositoriesSeen  int           `json:"repositories_seen"`
	RepositoriesSaved int           `json:"repositories_saved"`
	ContributorsSeen  int           `json:"contributors_seen"`
	ContributorsSaved int           `json:"contributors_saved"`
	Units             []UnitSummary `json:"units"`
	Warnings          []string      `json:"warnings"`
}

// Add folds a finished unit into the totals.
func (s *Summary) Add(u UnitSummary, warnings []string) {
	s.RepositoriesSeen += u.RepositoriesSeen
	s.RepositoriesSaved += u.RepositoriesSaved
	s.ContributorsSeen += u.ContributorsSeen
	s.ContributorsSaved += u.ContributorsSaved
	s.Units = append(s.Units, u)
	s.Warnings = append(s.Warnings, warnings...)
}
