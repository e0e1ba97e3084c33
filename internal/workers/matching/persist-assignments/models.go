package persistassignments

import "opposite-match-workers/internal/matching"

type Input struct {
	MatchRunID  string                `json:"matchRunId"`
	SurveyID    string                `json:"surveyId"`
	Strategy    string                `json:"strategy"`
	Assignments []matching.Assignment `json:"assignments"`
	Unmatched   []string              `json:"unmatched"`
}

type Output struct {
	MatchRunID           string `json:"matchRunId"`
	AssignmentsPersisted int    `json:"assignmentsPersisted"`
	RespondentsMarked    int    `json:"respondentsMarked"`
}
