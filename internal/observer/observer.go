// Package observer emits structured lifecycle events for a run (start/end of
// run/job/step) and exposes Prometheus counters, served on /metrics by the
// companion cmd/aetherflow-scheduler binary, grounded on the teacher's
// telemetry package.
package observer

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aetherflow",
		Name:      "jobs_total",
		Help:      "Count of job completions by terminal status.",
	}, []string{"status"})

	stepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aetherflow",
		Name:      "steps_total",
		Help:      "Count of step completions by terminal status.",
	}, []string{"status"})

	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aetherflow",
		Name:      "runs_total",
		Help:      "Count of completed runs.",
	}, []string{})
)

// Registry is the set of collectors that cmd/aetherflow-scheduler's /metrics
// endpoint exposes; a package-level registerer keeps repeated runs (e.g. in
// tests) from panicking on duplicate registration.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(jobsTotal, stepsTotal, runsTotal)
}

// Observer reports lifecycle events for one run.
type Observer struct {
	log    *slog.Logger
	flowID string
	runID  string
}

func New(ctx context.Context, flowID, runID string) *Observer {
	return &Observer{log: FromContext(ctx), flowID: flowID, runID: runID}
}

func (o *Observer) RunStart(flowPath string) {
	o.log.Info("run_start", "flow_id", o.flowID, "run_id", o.runID, "flow_path", flowPath)
}

func (o *Observer) RunEnd(statusCounts map[string]int) {
	o.log.Info("run_summary", "flow_id", o.flowID, "run_id", o.runID, "status_counts", statusCounts)
	runsTotal.WithLabelValues().Inc()
}

func (o *Observer) JobStart(jobID string) {
	o.log.Info("job_start", "job_id", jobID)
}

func (o *Observer) JobEnd(jobID, status string) {
	o.log.Info("job_end", "job_id", jobID, "status", status)
	jobsTotal.WithLabelValues(status).Inc()
}

func (o *Observer) StepStart(jobID, stepID, stepType string) {
	o.log.Info("step_start", "job_id", jobID, "step_id", stepID, "step_type", stepType)
}

func (o *Observer) StepEnd(jobID, stepID, stepType, status string) {
	o.log.Info("step_end", "job_id", jobID, "step_id", stepID, "step_type", stepType, "status", status)
	stepsTotal.WithLabelValues(status).Inc()
}
