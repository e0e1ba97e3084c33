package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// HandlerFunc matches the signature the Zeebe job worker expects.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// CamundaWorker owns one open job subscription.
type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

func NewWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	timeout time.Duration,
	handlerFunc HandlerFunc,
	logger *zap.Logger,
) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handlerFunc)).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Open()

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", maxJobsActive),
		zap.Duration("timeout", timeout),
	)

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   logger,
		taskType: taskType,
	}
}

// Close drains and closes the job subscription.
func (w *CamundaWorker) Close() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
}
