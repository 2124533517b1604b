package metrics

import (
	"net/http"
	"time"

	"taskdash/internal/pkg/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskdash"

// Collector exports scheduler metrics to Prometheus
type Collector struct {
	queueSize      *prometheus.GaugeVec
	tasksByStatus  *prometheus.GaugeVec
	operations     *prometheus.CounterVec
	retries        *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	queueResidence *prometheus.GaugeVec
}

var _ scheduler.MetricsCollector = (*Collector)(nil)

// NewCollector creates the scheduler metrics and registers them with reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		queueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_size",
			Help:      "Number of tasks waiting in each priority queue.",
		}, []string{"priority"}),
		tasksByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks",
			Help:      "Number of stored tasks by status.",
		}, []string{"status"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Scheduler operations by outcome and task type.",
		}, []string{"operation", "status", "type"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Failed attempts that were scheduled for retry.",
		}, []string{"type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from first start to completion or final failure.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"type", "status"}),
		queueResidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_residence_seconds",
			Help:      "How long the most recently started task waited in its queue.",
		}, []string{"priority"}),
	}

	for _, m := range []prometheus.Collector{
		c.queueSize, c.tasksByStatus, c.operations, c.retries, c.duration, c.queueResidence,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) SetQueueSize(p scheduler.Priority, n int) {
	c.queueSize.WithLabelValues(p.String()).Set(float64(n))
}

func (c *Collector) SetTasksByStatus(s scheduler.Status, n int) {
	c.tasksByStatus.WithLabelValues(string(s)).Set(float64(n))
}

func (c *Collector) IncOperation(operation, outcome, taskType string) {
	c.operations.WithLabelValues(operation, outcome, taskType).Inc()
}

func (c *Collector) IncRetry(taskType string) {
	c.retries.WithLabelValues(taskType).Inc()
}

func (c *Collector) ObserveTaskDuration(taskType string, s scheduler.Status, d time.Duration) {
	c.duration.WithLabelValues(taskType, string(s)).Observe(d.Seconds())
}

func (c *Collector) SetQueueResidence(p scheduler.Priority, age time.Duration) {
	c.queueResidence.WithLabelValues(p.String()).Set(age.Seconds())
}

// NewRegistry returns a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
