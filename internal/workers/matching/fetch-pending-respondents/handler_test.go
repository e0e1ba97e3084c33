package fetchpendingrespondents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	commonerrors "opposite-match-workers/internal/common/errors"
	"opposite-match-workers/internal/common/logger"
	"opposite-match-workers/internal/matching"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func setupMockRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func createTestHandler(t *testing.T, db *sql.DB, redisClient *redis.Client) *Handler {
	cfg := &Config{
		CacheTTL:       time.Minute,
		QueryTimeout:   5 * time.Second,
		MaxRespondents: 100,
	}
	return NewHandler(cfg, db, redisClient, logger.NewTestLogger(t))
}

func answersJSON(t *testing.T, answers []int) []byte {
	data, err := json.Marshal(answers)
	require.NoError(t, err)
	return data
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_FetchFromDatabase(t *testing.T) {
	db, mock := setupMockDB(t)
	redisClient := setupMockRedis(t)
	handler := createTestHandler(t, db, redisClient)

	rows := sqlmock.NewRows([]string{"id", "answers"}).
		AddRow("r1", answersJSON(t, []int{1, 2, 3})).
		AddRow("r2", answersJSON(t, []int{7, 6, 5}))
	mock.ExpectQuery(`SELECT id, answers`).
		WithArgs("survey-1", 100).
		WillReturnRows(rows)

	output, err := handler.Execute(context.Background(), &Input{SurveyID: "survey-1"})
	require.NoError(t, err)

	assert.False(t, output.FromCache)
	assert.Equal(t, 2, output.Count)
	require.Len(t, output.Respondents, 2)
	assert.Equal(t, "r1", output.Respondents[0].ID)
	assert.Equal(t, []int{1, 2, 3}, output.Respondents[0].Answers)
	assert.Equal(t, "r2", output.Respondents[1].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_PopulatesCache(t *testing.T) {
	db, mock := setupMockDB(t)
	redisClient := setupMockRedis(t)
	handler := createTestHandler(t, db, redisClient)

	rows := sqlmock.NewRows([]string{"id", "answers"}).
		AddRow("r1", answersJSON(t, []int{4, 4}))
	mock.ExpectQuery(`SELECT id, answers`).
		WithArgs("survey-2", 100).
		WillReturnRows(rows)

	_, err := handler.Execute(context.Background(), &Input{SurveyID: "survey-2"})
	require.NoError(t, err)

	cached, err := redisClient.Get(context.Background(), "survey:pending:survey-2").Result()
	require.NoError(t, err)

	var respondents []matching.Respondent
	require.NoError(t, json.Unmarshal([]byte(cached), &respondents))
	require.Len(t, respondents, 1)
	assert.Equal(t, "r1", respondents[0].ID)
}

func TestHandler_Execute_CacheHitSkipsDatabase(t *testing.T) {
	db, mock := setupMockDB(t)
	redisClient := setupMockRedis(t)
	handler := createTestHandler(t, db, redisClient)

	cached := []matching.Respondent{{ID: "cached-1", Answers: []int{1, 7}}}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, redisClient.Set(context.Background(), "survey:pending:survey-3", data, time.Minute).Err())

	output, err := handler.Execute(context.Background(), &Input{SurveyID: "survey-3"})
	require.NoError(t, err)

	assert.True(t, output.FromCache)
	require.Len(t, output.Respondents, 1)
	assert.Equal(t, "cached-1", output.Respondents[0].ID)

	// No query expectations were registered, so any DB call would fail.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_LimitForwardedToQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	handler := createTestHandler(t, db, nil)

	mock.ExpectQuery(`SELECT id, answers`).
		WithArgs("survey-4", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "answers"}))

	output, err := handler.Execute(context.Background(), &Input{SurveyID: "survey-4", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, output.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_MissingSurveyID(t *testing.T) {
	db, _ := setupMockDB(t)
	handler := createTestHandler(t, db, nil)

	_, err := handler.Execute(context.Background(), &Input{})
	require.Error(t, err)

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrorCode("BUSINESS_RULE_VIOLATION"), stdErr.Code)
}

func TestHandler_Execute_QueryFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	handler := createTestHandler(t, db, nil)

	mock.ExpectQuery(`SELECT id, answers`).
		WithArgs("survey-5", 100).
		WillReturnError(fmt.Errorf("connection reset"))

	_, err := handler.Execute(context.Background(), &Input{SurveyID: "survey-5"})
	require.Error(t, err)

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeQueryExecutionFailed, stdErr.Code)
}

func TestHandler_Execute_MalformedAnswers(t *testing.T) {
	db, mock := setupMockDB(t)
	handler := createTestHandler(t, db, nil)

	rows := sqlmock.NewRows([]string{"id", "answers"}).
		AddRow("r1", []byte(`not json`))
	mock.ExpectQuery(`SELECT id, answers`).
		WithArgs("survey-6", 100).
		WillReturnRows(rows)

	_, err := handler.Execute(context.Background(), &Input{SurveyID: "survey-6"})
	require.Error(t, err)

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeQueryExecutionFailed, stdErr.Code)
}

func TestHandler_Execute_RedisDownFallsBackToDatabase(t *testing.T) {
	db, mock := setupMockDB(t)
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()
	handler := createTestHandler(t, db, redisClient)

	rows := sqlmock.NewRows([]string{"id", "answers"}).
		AddRow("r1", answersJSON(t, []int{2, 5}))
	mock.ExpectQuery(`SELECT id, answers`).
		WithArgs("survey-7", 100).
		WillReturnRows(rows)

	output, err := handler.Execute(context.Background(), &Input{SurveyID: "survey-7"})
	require.NoError(t, err)
	assert.False(t, output.FromCache)
	assert.Equal(t, 1, output.Count)
}

func TestHandler_Execute_RowIterationError(t *testing.T) {
	db, mock := setupMockDB(t)
	handler := createTestHandler(t, db, nil)

	rows := sqlmock.NewRows([]string{"id", "answers"}).
		AddRow("r1", answersJSON(t, []int{1, 1})).
		RowError(0, errors.New("read failed"))
	mock.ExpectQuery(`SELECT id, answers`).
		WithArgs("survey-8", 100).
		WillReturnRows(rows)

	_, err := handler.Execute(context.Background(), &Input{SurveyID: "survey-8"})
	require.Error(t, err)
}
