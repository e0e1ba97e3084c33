package runoppositematch

import "opposite-match-workers/internal/matching"

type Input struct {
	SurveyID    string                `json:"surveyId"`
	Strategy    string                `json:"strategy,omitempty"`
	Respondents []matching.Respondent `json:"respondents"`
}

type Output struct {
	MatchRunID      string                `json:"matchRunId"`
	SurveyID        string                `json:"surveyId"`
	Strategy        string                `json:"strategy"`
	Assignments     []matching.Assignment `json:"assignments"`
	Unmatched       []string              `json:"unmatched"`
	RespondentCount int                   `json:"respondentCount"`
	AssignmentCount int                   `json:"assignmentCount"`
	UnmatchedCount  int                   `json:"unmatchedCount"`
}
