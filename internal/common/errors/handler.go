package errors

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the slice of the logging interface the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler routes a handler failure to the workflow engine: transient
// failures fail the job with retries left for the broker to redeliver,
// everything else surfaces as a BPMN error the process can catch.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError normalizes err, logs it, and reports it to the broker.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := normalizeError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          bpmnErr.Retries,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})

	if bpmnErr.Retries > 0 && job.Retries > 0 {
		h.failJobWithRetries(ctx, client, job, bpmnErr)
	} else {
		h.throwBPMNError(ctx, client, job, bpmnErr)
	}
}

// normalizeError returns the StandardError inside err, or wraps an
// unclassified failure as a non-retryable internal error.
func normalizeError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) failJobWithRetries(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	// Never grant more retries than the job has left.
	retries := bpmnErr.Retries
	if job.Retries > 0 && int(job.Retries) < retries {
		retries = int(job.Retries)
	}

	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retries)).
		ErrorMessage(bpmnErr.Message)

	if vars := errorVariablesJSON(bpmnErr); vars != "" {
		if cmdWithVars, err := cmd.VariablesFromString(vars); err == nil {
			_, _ = cmdWithVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if vars := errorVariablesJSON(bpmnErr); vars != "" {
		if cmdWithVars, err := cmd.VariablesFromString(vars); err == nil {
			_, _ = cmdWithVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}

// errorVariablesJSON renders the BPMN error variables, or "" when there
// is nothing worth attaching.
func errorVariablesJSON(bpmnErr *BPMNError) string {
	vars := bpmnErr.ToErrorVariables()
	if len(vars) == 0 {
		return ""
	}
	raw, err := json.Marshal(vars)
	if err != nil || string(raw) == "null" {
		return ""
	}
	return string(raw)
}
