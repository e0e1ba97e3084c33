// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Matching input errors. These are business errors: the input is bad
	// and retrying the job will not fix it.
	ErrCodeDuplicateRespondent  ErrorCode = "DUPLICATE_RESPONDENT"
	ErrCodeAnswerLengthMismatch ErrorCode = "ANSWER_LENGTH_MISMATCH"
	ErrCodeAnswerOutOfRange     ErrorCode = "ANSWER_OUT_OF_RANGE"
	ErrCodeEmptyAnswers         ErrorCode = "EMPTY_ANSWERS"
	ErrCodeInvalidStrategy      ErrorCode = "INVALID_STRATEGY"
	ErrCodeMatchRunFailed       ErrorCode = "MATCH_RUN_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateMatchRun        ErrorCode = "DUPLICATE_MATCH_RUN"
	ErrCodeRespondentNotFound       ErrorCode = "RESPONDENT_NOT_FOUND"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeArchiveFailed                 ErrorCode = "ARCHIVE_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewDuplicateRespondentError creates a non-retryable input error listing the
// duplicated respondent identifiers.
func NewDuplicateRespondentError(ids []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateRespondent,
		Message:   "Duplicate respondent identifiers in match input",
		Details:   fmt.Sprintf("respondentIds: %s", strings.Join(ids, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"respondentIds": ids},
		Timestamp: time.Now().UTC(),
	}
}

// NewAnswerLengthMismatchError creates a non-retryable input error listing the
// respondents whose answer vectors disagree in length.
func NewAnswerLengthMismatchError(ids []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnswerLengthMismatch,
		Message:   "Respondent answer vectors have mismatched lengths",
		Details:   fmt.Sprintf("respondentIds: %s", strings.Join(ids, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"respondentIds": ids},
		Timestamp: time.Now().UTC(),
	}
}

// NewAnswerOutOfRangeError creates a non-retryable input error for answers
// outside the configured scale.
func NewAnswerOutOfRangeError(ids []string, scaleMin, scaleMax int) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnswerOutOfRange,
		Message:   fmt.Sprintf("Respondent answers outside scale %d-%d", scaleMin, scaleMax),
		Details:   fmt.Sprintf("respondentIds: %s", strings.Join(ids, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"respondentIds": ids},
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyAnswersError creates a non-retryable input error for respondents
// with no answers at all.
func NewEmptyAnswersError(ids []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyAnswers,
		Message:   "Respondents submitted empty answer vectors",
		Details:   fmt.Sprintf("respondentIds: %s", strings.Join(ids, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"respondentIds": ids},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStrategyError creates a non-retryable error for unknown scoring strategies.
func NewInvalidStrategyError(strategy string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStrategy,
		Message:   "Unsupported scoring strategy",
		Details:   fmt.Sprintf("strategy: %s", strategy),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMatchRunFailedError creates a non-retryable error for match engine failures.
func NewMatchRunFailedError(matchRunID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMatchRunFailed,
		Message:   "Match run execution failed",
		Details:   fmt.Sprintf("matchRunId: %s, error: %s", matchRunID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateMatchRunError creates a non-retryable duplicate match run error.
func NewDuplicateMatchRunError(matchRunID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateMatchRun,
		Message:   "Match run already persisted",
		Details:   fmt.Sprintf("matchRunId: %s", matchRunID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRespondentNotFoundError creates a non-retryable missing respondent error.
func NewRespondentNotFoundError(respondentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRespondentNotFound,
		Message:   "Respondent not found",
		Details:   fmt.Sprintf("respondentId: %s", respondentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewArchiveFailedError creates a retryable archive indexing error.
func NewArchiveFailedError(matchRunID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArchiveFailed,
		Message:   "Match run archive indexing failed",
		Details:   fmt.Sprintf("matchRunId: %s, error: %s", matchRunID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
// Input validation errors collapse onto the INVALID_INPUT boundary event so
// the process model needs a single catch for all of them.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeDuplicateRespondent:  "INVALID_INPUT",
	ErrCodeAnswerLengthMismatch: "INVALID_INPUT",
	ErrCodeAnswerOutOfRange:     "INVALID_INPUT",
	ErrCodeEmptyAnswers:         "INVALID_INPUT",
	ErrCodeInvalidStrategy:      "INVALID_INPUT",

	ErrCodeMatchRunFailed:                "MATCH_RUN_FAILED",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:                  "QUERY_TIMEOUT",
	ErrCodeDatabaseInsertFailed:          "DATABASE_INSERT_FAILED",
	ErrCodeDuplicateMatchRun:             "DUPLICATE_MATCH_RUN",
	ErrCodeRespondentNotFound:            "RESPONDENT_NOT_FOUND",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeArchiveFailed:                 "ARCHIVE_FAILED",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeArchiveFailed,
		ErrCodeNotificationSendFailed:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	errorVars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		errorVars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: errorVars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "RESPONDENT") || strings.Contains(codeStr, "ANSWER") || strings.Contains(codeStr, "STRATEGY"):
		return "INPUT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "ARCHIVE"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "MATCH"):
		return "MATCHING"
	default:
		return "OTHER"
	}
}
