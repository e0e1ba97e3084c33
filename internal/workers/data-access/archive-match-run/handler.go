package archivematchrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"opposite-match-workers/internal/common/database"
	"opposite-match-workers/internal/common/logger"
)

const (
	TaskType = "archive-match-run"
)

var (
	ErrElasticsearchConnectionFailed = errors.New("ELASTICSEARCH_CONNECTION_FAILED")
	ErrArchiveFailed                 = errors.New("ARCHIVE_FAILED")
	ErrArchiveTimeout                = errors.New("ARCHIVE_TIMEOUT")
)

type Handler struct {
	config *Config
	es     *database.ElasticsearchClient
	logger logger.Logger
}

func NewHandler(config *Config, es *database.ElasticsearchClient, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		es:     es,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, h.mapErrorToCode(err), err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.MatchRunID == "" {
		return nil, fmt.Errorf("%w: matchRunId is required", ErrArchiveFailed)
	}

	archivedAt := time.Now().UTC().Format(time.RFC3339)
	doc := archiveDocument{
		MatchRunID:      input.MatchRunID,
		SurveyID:        input.SurveyID,
		Strategy:        input.Strategy,
		Assignments:     input.Assignments,
		Unmatched:       input.Unmatched,
		RespondentCount: 2*len(input.Assignments) + len(input.Unmatched),
		AssignmentCount: len(input.Assignments),
		UnmatchedCount:  len(input.Unmatched),
		ArchivedAt:      archivedAt,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal document: %v", ErrArchiveFailed, err)
	}

	// Idempotent per run: the run ID is the document ID, so a retried
	// job overwrites its own document instead of duplicating it.
	if err := h.es.IndexDocument(ctx, h.config.IndexName, input.MatchRunID, body); err != nil {
		var statusErr *database.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: index responded %s", ErrArchiveFailed, statusErr.Status)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrArchiveTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrElasticsearchConnectionFailed, err)
	}

	h.logger.Info("match run archived", map[string]interface{}{
		"matchRunId": input.MatchRunID,
		"indexName":  h.config.IndexName,
	})

	return &Output{
		MatchRunID: input.MatchRunID,
		IndexName:  h.config.IndexName,
		Archived:   true,
		ArchivedAt: archivedAt,
	}, nil
}

func (h *Handler) mapErrorToCode(err error) string {
	if errors.Is(err, ErrArchiveTimeout) {
		return "ARCHIVE_TIMEOUT"
	} else if errors.Is(err, ErrElasticsearchConnectionFailed) {
		return "ELASTICSEARCH_CONNECTION_FAILED"
	} else if errors.Is(err, ErrArchiveFailed) {
		return "ARCHIVE_FAILED"
	}
	return "UNKNOWN_ERROR"
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
