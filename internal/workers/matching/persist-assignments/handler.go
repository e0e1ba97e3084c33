package persistassignments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	commonerrors "opposite-match-workers/internal/common/errors"
	"opposite-match-workers/internal/common/logger"
	"opposite-match-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "persist-assignments"
)

type Handler struct {
	config *Config
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
	errs   *commonerrors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, redisClient *redis.Client, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		db:     db,
		redis:  redisClient,
		logger: scoped,
		errs:   commonerrors.NewErrorHandler(scoped),
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.QueryTimeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errs.HandleJobError(context.Background(), client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.MatchRunID == "" {
		return nil, commonerrors.NewBusinessRuleError("matchRunId is required", "")
	}
	if input.SurveyID == "" {
		return nil, commonerrors.NewBusinessRuleError("surveyId is required", "")
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, commonerrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	run := models.MatchRun{
		ID:              input.MatchRunID,
		SurveyID:        input.SurveyID,
		Strategy:        input.Strategy,
		RespondentCount: 2*len(input.Assignments) + len(input.Unmatched),
		AssignmentCount: len(input.Assignments),
		UnmatchedCount:  len(input.Unmatched),
		Status:          models.MatchRunStatusCompleted,
		CompletedAt:     time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_runs (id, survey_id, strategy, respondent_count, assignment_count, unmatched_count, status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.SurveyID, run.Strategy,
		run.RespondentCount, run.AssignmentCount, run.UnmatchedCount,
		run.Status, run.CompletedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, commonerrors.NewDuplicateMatchRunError(input.MatchRunID)
		}
		return nil, commonerrors.NewDatabaseInsertFailedError(err)
	}

	matchedIDs := make([]string, 0, 2*len(input.Assignments))
	for _, a := range input.Assignments {
		rec := models.MatchAssignmentRecord{
			ID:              uuid.NewString(),
			MatchRunID:      run.ID,
			LeftID:          a.LeftID,
			RightID:         a.RightID,
			TotalDiff:       a.TotalDiff,
			PerQuestionDiff: a.PerQuestionDiff,
		}
		breakdown, err := json.Marshal(rec.PerQuestionDiff)
		if err != nil {
			return nil, commonerrors.NewDatabaseInsertFailedError(err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_assignments (id, match_run_id, left_id, right_id, total_diff, per_question_diff)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.ID, rec.MatchRunID, rec.LeftID, rec.RightID, rec.TotalDiff, breakdown)
		if err != nil {
			return nil, commonerrors.NewDatabaseInsertFailedError(err)
		}
		matchedIDs = append(matchedIDs, rec.LeftID, rec.RightID)
	}

	marked := 0
	if len(matchedIDs) > 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE respondents SET matched = TRUE WHERE id = ANY($1)`,
			pq.Array(matchedIDs))
		if err != nil {
			return nil, commonerrors.NewQueryExecutionFailedError("mark respondents matched", err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			marked = int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, commonerrors.NewDatabaseInsertFailedError(err)
	}

	h.invalidateCache(ctx, input.SurveyID)

	h.logger.Info("match run persisted", map[string]interface{}{
		"matchRunId":  input.MatchRunID,
		"surveyId":    input.SurveyID,
		"assignments": len(input.Assignments),
		"unmatched":   len(input.Unmatched),
	})

	return &Output{
		MatchRunID:           input.MatchRunID,
		AssignmentsPersisted: len(input.Assignments),
		RespondentsMarked:    marked,
	}, nil
}

// invalidateCache drops the pending-respondents cache entry so the next
// fetch sees the updated matched flags.
func (h *Handler) invalidateCache(ctx context.Context, surveyID string) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Del(ctx, "survey:pending:"+surveyID).Err(); err != nil {
		h.logger.Warn("failed to invalidate pending cache", map[string]interface{}{
			"surveyId": surveyID,
			"error":    err,
		})
	}
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
