package archivematchrun

import "opposite-match-workers/internal/matching"

type Input struct {
	MatchRunID  string                `json:"matchRunId"`
	SurveyID    string                `json:"surveyId"`
	Strategy    string                `json:"strategy"`
	Assignments []matching.Assignment `json:"assignments"`
	Unmatched   []string              `json:"unmatched"`
}

// archiveDocument is the shape indexed into Elasticsearch.
type archiveDocument struct {
	MatchRunID      string                `json:"matchRunId"`
	SurveyID        string                `json:"surveyId"`
	Strategy        string                `json:"strategy"`
	Assignments     []matching.Assignment `json:"assignments"`
	Unmatched       []string              `json:"unmatched"`
	RespondentCount int                   `json:"respondentCount"`
	AssignmentCount int                   `json:"assignmentCount"`
	UnmatchedCount  int                   `json:"unmatchedCount"`
	ArchivedAt      string                `json:"archivedAt"`
}

type Output struct {
	MatchRunID string `json:"matchRunId"`
	IndexName  string `json:"indexName"`
	Archived   bool   `json:"archived"`
	ArchivedAt string `json:"archivedAt"`
}
