package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// Buckets.
var (
	DefaultStageDurationBuckets = []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30, 60}
	DefaultScoreBuckets         = []float64{10, 20, 30, 40, 50, 60, 70, 75, 80, 90, 100}
)

// PipelineMetrics holds the metrics of one batch run.
type PipelineMetrics struct {
	StageDuration        HistogramVec
	LeadsTotal           CounterVec
	LeadScore            HistogramVec
	LeadScoreQuantiles   SummaryVec
	RecommendationsTotal CounterVec
	IssuesTotal          CounterVec
	SourceRecords        GaugeVec
	ProjectCoverage      GaugeVec
	RunsTotal            CounterVec
	RunDuration          GaugeVec
	LastSuccessTimestamp GaugeVec

	collector MetricsCollector
	pusher    *push.Pusher
	logger    logging.Logger
}

// PushConfig names the Pushgateway target.  An empty URL disables push.
type PushConfig struct {
	URL     string
	JobName string
}

// NewPipelineMetrics registers the run metrics on collector.
func NewPipelineMetrics(collector MetricsCollector, pc PushConfig, logger logging.Logger) *PipelineMetrics {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	m := &PipelineMetrics{collector: collector, logger: logger.Named("metrics")}

	m.StageDuration = collector.RegisterHistogram("stage_duration_seconds", "Pipeline stage duration", DefaultStageDurationBuckets, "stage")
	m.LeadsTotal = collector.RegisterCounter("leads_total", "Leads generated", "type", "priority")
	m.LeadScore = collector.RegisterHistogram("lead_score", "Lead score distribution", DefaultScoreBuckets, "type")
	m.LeadScoreQuantiles = collector.RegisterSummary("lead_score_quantiles", "Lead score quantiles", nil, "type")
	m.RecommendationsTotal = collector.RegisterCounter("recommendations_total", "Recommendations produced", "match_layer")
	m.IssuesTotal = collector.RegisterCounter("record_issues_total", "Per-record data quality issues", "code")
	m.SourceRecords = collector.RegisterGauge("source_records", "Records in the last ingested snapshot", "table")
	m.ProjectCoverage = collector.RegisterGauge("project_link_ratio", "Share of projects linked through each join path", "path")
	m.RunsTotal = collector.RegisterCounter("runs_total", "Pipeline runs", "status")
	m.RunDuration = collector.RegisterGauge("run_duration_seconds", "Duration of the last run", "status")
	m.LastSuccessTimestamp = collector.RegisterGauge("last_success_timestamp_seconds", "Unix time of the last successful run")

	if pc.URL != "" {
		job := pc.JobName
		if job == "" {
			job = "leadscope"
		}
		m.pusher = push.New(pc.URL, job).Gatherer(collector.Gatherer())
	}
	return m
}

func (m *PipelineMetrics) ObserveStage(stage string, elapsed time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) ObserveLead(leadType, priority string, score float64) {
	m.LeadsTotal.WithLabelValues(leadType, priority).Inc()
	m.LeadScore.WithLabelValues(leadType).Observe(score)
	m.LeadScoreQuantiles.WithLabelValues(leadType).Observe(score)
}

func (m *PipelineMetrics) ObserveRecommendation(layer string) {
	m.RecommendationsTotal.WithLabelValues(layer).Inc()
}

func (m *PipelineMetrics) ObserveIssue(code string) {
	m.IssuesTotal.WithLabelValues(code).Inc()
}

func (m *PipelineMetrics) SetRecords(table string, n int) {
	m.SourceRecords.WithLabelValues(table).Set(float64(n))
}

func (m *PipelineMetrics) SetCoverage(path string, ratio float64) {
	m.ProjectCoverage.WithLabelValues(path).Set(ratio)
}

// RunCompleted records the outcome of a run.
func (m *PipelineMetrics) RunCompleted(success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Set(elapsed.Seconds())
	if success {
		m.LastSuccessTimestamp.WithLabelValues().Set(float64(time.Now().Unix()))
	}
}

// Push sends every registered metric to the Pushgateway.  It is a no-op
// when no gateway is configured.
func (m *PipelineMetrics) Push(ctx context.Context) error {
	if m.pusher == nil {
		return nil
	}
	if err := m.pusher.PushContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "pushgateway push failed")
	}
	m.logger.Debug("metrics pushed")
	return nil
}
