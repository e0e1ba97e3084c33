package fetchpendingrespondents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	commonerrors "opposite-match-workers/internal/common/errors"
	"opposite-match-workers/internal/common/logger"
	"opposite-match-workers/internal/matching"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "fetch-pending-respondents"
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
	if input.SurveyID == "" {
		return nil, commonerrors.NewBusinessRuleError("surveyId is required", "")
	}

	limit := input.Limit
	if limit <= 0 || limit > h.config.MaxRespondents {
		limit = h.config.MaxRespondents
	}

	if cached, ok := h.fromCache(ctx, input.SurveyID); ok && len(cached) <= limit {
		h.logger.Debug("pending respondents served from cache", map[string]interface{}{
			"surveyId": input.SurveyID,
			"count":    len(cached),
		})
		return &Output{
			SurveyID:    input.SurveyID,
			Respondents: cached,
			Count:       len(cached),
			FromCache:   true,
		}, nil
	}

	respondents, err := h.queryPending(ctx, input.SurveyID, limit)
	if err != nil {
		return nil, err
	}

	h.cache(ctx, input.SurveyID, respondents)

	h.logger.Info("pending respondents fetched", map[string]interface{}{
		"surveyId": input.SurveyID,
		"count":    len(respondents),
	})

	return &Output{
		SurveyID:    input.SurveyID,
		Respondents: respondents,
		Count:       len(respondents),
		FromCache:   false,
	}, nil
}

// queryPending loads unmatched respondents in submission order. The
// order is significant downstream: tie-breaks in the matcher follow
// the order respondents arrive in.
func (h *Handler) queryPending(ctx context.Context, surveyID string, limit int) ([]matching.Respondent, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, answers
		FROM respondents
		WHERE survey_id = $1 AND matched = FALSE
		ORDER BY submitted_at, id
		LIMIT $2`, surveyID, limit)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, commonerrors.NewQueryTimeoutError("fetch-pending-respondents")
		}
		return nil, commonerrors.NewQueryExecutionFailedError("fetch-pending-respondents", err)
	}
	defer rows.Close()

	respondents := make([]matching.Respondent, 0)
	for rows.Next() {
		var (
			r       matching.Respondent
			answers []byte
		)
		if err := rows.Scan(&r.ID, &answers); err != nil {
			return nil, commonerrors.NewQueryExecutionFailedError("scan respondent", err)
		}
		if err := json.Unmarshal(answers, &r.Answers); err != nil {
			return nil, commonerrors.NewQueryExecutionFailedError("decode answers", err)
		}
		respondents = append(respondents, r)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewQueryExecutionFailedError("iterate respondents", err)
	}

	return respondents, nil
}

func cacheKey(surveyID string) string {
	return "survey:pending:" + surveyID
}

func (h *Handler) fromCache(ctx context.Context, surveyID string) ([]matching.Respondent, bool) {
	if h.redis == nil {
		return nil, false
	}
	val, err := h.redis.Get(ctx, cacheKey(surveyID)).Result()
	if err != nil {
		return nil, false
	}
	var respondents []matching.Respondent
	if err := json.Unmarshal([]byte(val), &respondents); err != nil {
		return nil, false
	}
	return respondents, true
}

func (h *Handler) cache(ctx context.Context, surveyID string, respondents []matching.Respondent) {
	if h.redis == nil {
		return
	}
	data, err := json.Marshal(respondents)
	if err != nil {
		return
	}
	if err := h.redis.Set(ctx, cacheKey(surveyID), data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("failed to cache pending respondents", map[string]interface{}{
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
