// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"opposite-match-workers/internal/common/camunda"
	"opposite-match-workers/internal/common/config"
	"opposite-match-workers/internal/common/database"
	"opposite-match-workers/internal/common/logger"
	"opposite-match-workers/internal/common/observability"

	// Matching Workers (3)
	fpr "opposite-match-workers/internal/workers/matching/fetch-pending-respondents"
	pa "opposite-match-workers/internal/workers/matching/persist-assignments"
	rom "opposite-match-workers/internal/workers/matching/run-opposite-match"

	// Data Access Workers (1)
	amr "opposite-match-workers/internal/workers/data-access/archive-match-run"

	// Communication Workers (1)
	np "opposite-match-workers/internal/workers/communication/notify-participants"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Register Workers ---
	var jobWorkers []*camunda.CamundaWorker

	// --- 1. Matching Workers (3) ---
	if cfg.Workers[fpr.TaskType].Enabled {
		handler := fpr.NewHandler(
			&fpr.Config{
				CacheTTL:       config.GetDuration(cfg.Matching.CacheTTL),
				QueryTimeout:   config.GetDuration(cfg.Workers[fpr.TaskType].Timeout),
				MaxRespondents: cfg.Matching.MaxRespondents,
			},
			pg.DB, redis.Client, log,
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, fpr.TaskType, cfg.Workers[fpr.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[rom.TaskType].Enabled {
		handler := rom.NewHandler(
			&rom.Config{
				Strategy:        cfg.Matching.Strategy,
				ScaleMin:        cfg.Matching.ScaleMin,
				ScaleMax:        cfg.Matching.ScaleMax,
				ScoringWorkers:  cfg.Matching.ScoringWorkers,
				QuestionWeights: cfg.Matching.QuestionWeights,
				ExtremeWeight:   cfg.Matching.ExtremeWeight,
				LeanWeight:      cfg.Matching.LeanWeight,
				ModerateWeight:  cfg.Matching.ModerateWeight,
				Timeout:         config.GetDuration(cfg.Workers[rom.TaskType].Timeout),
			},
			obs, log,
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, rom.TaskType, cfg.Workers[rom.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[pa.TaskType].Enabled {
		handler := pa.NewHandler(
			&pa.Config{
				QueryTimeout: config.GetDuration(cfg.Workers[pa.TaskType].Timeout),
			},
			pg.DB, redis.Client, log,
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, pa.TaskType, cfg.Workers[pa.TaskType], handler.Handle, zapLog))
	}

	// --- 2. Data Access Workers (1) ---
	if cfg.Workers[amr.TaskType].Enabled {
		handler := amr.NewHandler(
			&amr.Config{
				IndexName: cfg.Database.Elasticsearch.MatchRunIndex,
				Timeout:   config.GetDuration(cfg.Workers[amr.TaskType].Timeout),
			},
			esClient, log,
		)
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, amr.TaskType, cfg.Workers[amr.TaskType], handler.Handle, zapLog))
	}

	// --- 3. Communication Workers (1) ---
	if cfg.Workers[np.TaskType].Enabled {
		handler, err := np.NewHandler(
			ctx,
			&np.Config{
				EmailEnabled: cfg.Notifications.Email.Enabled,
				SMSEnabled:   cfg.Notifications.SMS.Enabled,
				FromEmail:    cfg.Notifications.Email.FromEmail,
				AWSRegion:    cfg.Notifications.AWS.Region,
				Timeout:      config.GetDuration(cfg.Workers[np.TaskType].Timeout),
			},
			pg.DB, log,
		)
		if err != nil {
			zapLog.Fatal("failed to create notify-participants handler", zap.Error(err))
		}
		jobWorkers = append(jobWorkers, startWorker(zeebeClient, np.TaskType, cfg.Workers[np.TaskType], handler.Handle, zapLog))
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := camundaClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	for _, w := range jobWorkers {
		w.Close()
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc camunda.HandlerFunc, log *zap.Logger) *camunda.CamundaWorker {
	return camunda.NewWorker(client, taskType, wcfg.MaxJobsActive, time.Duration(wcfg.Timeout)*time.Millisecond, handlerFunc, log)
}
