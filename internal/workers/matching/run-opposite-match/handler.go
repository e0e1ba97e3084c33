package runoppositematch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"opposite-match-workers/internal/common/logger"
	"opposite-match-workers/internal/common/metrics"
	"opposite-match-workers/internal/common/observability"
	"opposite-match-workers/internal/matching"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "run-opposite-match"
)

type Handler struct {
	config *Config
	obs    *observability.Observability
	logger logger.Logger
}

func NewHandler(config *Config, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	result, err := inputSchema.ValidateJSON([]byte(job.Variables))
	if err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("validate input: %v", err))
		return
	}
	if !result.Valid {
		h.failJob(client, job, "INVALID_INPUT", strings.Join(result.GetErrorMessages(), "; "))
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		var invalid *matching.InvalidInputError
		if errors.As(err, &invalid) {
			h.failJob(client, job, "INVALID_INPUT",
				fmt.Sprintf("%s: %s", invalid.Code, strings.Join(invalid.IDs, ", ")))
			return
		}
		h.failJob(client, job, "MATCH_RUN_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	strategy := input.Strategy
	if strategy == "" {
		strategy = h.config.Strategy
	}

	matcher := matching.NewMatcher(
		matching.WithScale(h.config.ScaleMin, h.config.ScaleMax),
		matching.WithScoringWorkers(h.config.ScoringWorkers),
	)

	start := time.Now()
	metrics.MatchRunRespondents.WithLabelValues(strategy).Observe(float64(len(input.Respondents)))
	h.obs.RecordMatchPoolSize(ctx, len(input.Respondents), strategy)

	assignments, unmatched, err := h.runStrategy(matcher, strategy, input.Respondents)
	if err != nil {
		metrics.MatchRunsTotal.WithLabelValues(strategy, "failed").Inc()
		return nil, err
	}

	metrics.MatchRunsTotal.WithLabelValues(strategy, "completed").Inc()
	metrics.MatchRunDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	metrics.MatchUnmatchedRespondents.Add(float64(len(unmatched)))

	n := len(input.Respondents)
	if n >= 2 {
		metrics.MatchPairsScored.Add(float64(n * (n - 1) / 2))
	}

	output := &Output{
		MatchRunID:      uuid.NewString(),
		SurveyID:        input.SurveyID,
		Strategy:        strategy,
		Assignments:     assignments,
		Unmatched:       unmatched,
		RespondentCount: n,
		AssignmentCount: len(assignments),
		UnmatchedCount:  len(unmatched),
	}

	h.logger.Info("match run completed", map[string]interface{}{
		"matchRunId":  output.MatchRunID,
		"surveyId":    output.SurveyID,
		"strategy":    strategy,
		"respondents": output.RespondentCount,
		"assignments": output.AssignmentCount,
		"unmatched":   output.UnmatchedCount,
	})

	return output, nil
}

// runStrategy dispatches to the exact-integer pipeline for the default
// strategy and the scorer pipeline for everything else. Either way the
// returned assignments carry exact per-question breakdowns.
func (h *Handler) runStrategy(matcher *matching.Matcher, strategy string, respondents []matching.Respondent) ([]matching.Assignment, []string, error) {
	if strategy == matching.StrategyAbsoluteDifference {
		result, err := matcher.Match(respondents)
		if err != nil {
			return nil, nil, err
		}
		return result.Assignments, result.Unmatched, nil
	}

	scorer, err := h.scorerFor(strategy)
	if err != nil {
		return nil, nil, err
	}

	result, err := matcher.MatchWith(scorer, respondents)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string][]int, len(respondents))
	for _, r := range respondents {
		byID[r.ID] = r.Answers
	}

	assignments := make([]matching.Assignment, 0, len(result.Pairings))
	for _, p := range result.Pairings {
		left, right := byID[p.LeftID], byID[p.RightID]
		perQuestion := make([]int, len(left))
		total := 0
		for i := range left {
			d := left[i] - right[i]
			if d < 0 {
				d = -d
			}
			perQuestion[i] = d
			total += d
		}
		assignments = append(assignments, matching.Assignment{
			LeftID:          p.LeftID,
			RightID:         p.RightID,
			TotalDiff:       total,
			PerQuestionDiff: perQuestion,
		})
	}

	return assignments, result.Unmatched, nil
}

func (h *Handler) scorerFor(strategy string) (matching.Scorer, error) {
	switch strategy {
	case matching.StrategyPolarization:
		return matching.NewPolarizationScorer(
			h.config.ExtremeWeight,
			h.config.LeanWeight,
			h.config.ModerateWeight,
		), nil
	case matching.StrategyWeighted:
		scorer, err := matching.NewWeightedScorer(h.config.QuestionWeights)
		if err != nil {
			return nil, err
		}
		return scorer, nil
	default:
		return matching.ScorerFor(strategy, h.config.QuestionWeights)
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

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

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
