package models

import "time"

// MatchRun summarizes one execution of the matching engine for a survey.
type MatchRun struct {
	ID              string    `json:"id"`
	SurveyID        string    `json:"surveyId"`
	Strategy        string    `json:"strategy"`
	RespondentCount int       `json:"respondentCount"`
	AssignmentCount int       `json:"assignmentCount"`
	UnmatchedCount  int       `json:"unmatchedCount"`
	Status          string    `json:"status"`
	CompletedAt     time.Time `json:"completedAt"`
}

// MatchAssignmentRecord is the persisted form of one committed pair.
type MatchAssignmentRecord struct {
	ID              string `json:"id"`
	MatchRunID      string `json:"matchRunId"`
	LeftID          string `json:"leftId"`
	RightID         string `json:"rightId"`
	TotalDiff       int    `json:"totalDiff"`
	PerQuestionDiff []int  `json:"perQuestionDiff"`
}

// Match run status values.
const (
	MatchRunStatusCompleted = "COMPLETED"
	MatchRunStatusFailed    = "FAILED"
	MatchRunStatusArchived  = "ARCHIVED"
)
