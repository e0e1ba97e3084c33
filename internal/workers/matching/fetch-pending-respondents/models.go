package fetchpendingrespondents

import "opposite-match-workers/internal/matching"

type Input struct {
	SurveyID string `json:"surveyId"`
	Limit    int    `json:"limit,omitempty"`
}

type Output struct {
	SurveyID    string                `json:"surveyId"`
	Respondents []matching.Respondent `json:"respondents"`
	Count       int                   `json:"count"`
	FromCache   bool                  `json:"fromCache"`
}
