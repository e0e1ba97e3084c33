package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	MatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_runs_total",
			Help: "Total number of match runs executed",
		},
		[]string{"strategy", "status"},
	)

	MatchRunRespondents = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_run_respondents",
			Help:    "Respondent pool size per match run",
			Buckets: prometheus.ExponentialBuckets(2, 2, 12),
		},
		[]string{"strategy"},
	)

	MatchRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "match_run_duration_seconds",
			Help: "Duration of match engine execution in seconds",
		},
		[]string{"strategy"},
	)

	MatchPairsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_pairs_scored_total",
			Help: "Total number of respondent pairs scored",
		},
	)

	MatchUnmatchedRespondents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_unmatched_respondents_total",
			Help: "Total number of respondents left unmatched across runs",
		},
	)
)
