package models

// Question is one classified exam question extracted from an ingested
// document. Path holds the subject classification from broad to narrow,
// e.g. ["Constitutional Law", "Fundamental Rights"]. An empty Path means
// the classifier could not place the question.
type Question struct {
	ID          string   `json:"id"`
	Statement   string   `json:"statement"`
	Path        []string `json:"path,omitempty"`
	Year        int      `json:"year,omitempty"`
	Board       string   `json:"board,omitempty"`
	NeedsReview bool     `json:"needsReview,omitempty"`
}
