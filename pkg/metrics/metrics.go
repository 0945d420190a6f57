// Package metrics provides Prometheus metrics for safeedit operations.
//
// The CLI is short-lived, so metrics are exported by writing the registry to a
// node_exporter textfile at the end of a run rather than by serving /metrics.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "safeedit"

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide metrics registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Registry holds all safeedit metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	rewrites      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	changeRatio   prometheus.Histogram
	safetyIssues  *prometheus.CounterVec
	rollbacks     *prometheus.CounterVec
	restores      *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		rewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewrites_total",
			Help:      "Rewrite attempts by terminal stage and result.",
		}, []string{"stage", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		changeRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "change_ratio",
			Help:      "Fraction of original tokens removed by a rewrite.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		safetyIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_issues_total",
			Help:      "Safety validator findings by phase and kind.",
		}, []string{"phase", "kind"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Rollback invocations by result.",
		}, []string{"result"}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Backup restorations by result.",
		}, []string{"result"}),
	}
	r.reg.MustRegister(r.rewrites, r.stageDuration, r.changeRatio, r.safetyIssues, r.rollbacks, r.restores)
	return r
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordRewrite records a finished rewrite attempt.
func (r *Registry) RecordRewrite(stage string, success bool) {
	r.rewrites.WithLabelValues(stage, result(success)).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveChangeRatio records the change ratio of a written rewrite.
func (r *Registry) ObserveChangeRatio(ratio float64) {
	r.changeRatio.Observe(ratio)
}

// RecordSafetyIssue counts a validator finding; phase is "pre" or "post".
func (r *Registry) RecordSafetyIssue(phase, kind string) {
	r.safetyIssues.WithLabelValues(phase, kind).Inc()
}

// RecordRollback records a rollback operation.
func (r *Registry) RecordRollback(success bool) {
	r.rollbacks.WithLabelValues(result(success)).Inc()
}

// RecordRestore records a restoration from backup.
func (r *Registry) RecordRestore(success bool) {
	r.restores.WithLabelValues(result(success)).Inc()
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes all metrics in the text exposition format to path.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
