package scheduler

import "time"

// Operation names reported through IncOperation
const (
	OpCreate  = "create"
	OpCancel  = "cancel"
	OpExecute = "execute"
	OpSweep   = "sweep"
)

// Operation outcomes reported through IncOperation
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeRetry   = "retry"
)

// MetricsCollector defines the metrics interface for the scheduler.
type MetricsCollector interface {
	// Gauges, refreshed after every tick, sweep and store mutation
	SetQueueSize(priority Priority, size int)
	SetTasksByStatus(status Status, count int)

	// Counters
	IncOperation(operation, outcome, taskType string)
	IncRetry(taskType string)

	// Samples
	ObserveTaskDuration(taskType string, status Status, d time.Duration)
	SetQueueResidence(priority Priority, age time.Duration)
}

// NoOpMetrics is a metrics collector that does nothing.
type NoOpMetrics struct{}

func (NoOpMetrics) SetQueueSize(Priority, int)                        {}
func (NoOpMetrics) SetTasksByStatus(Status, int)                      {}
func (NoOpMetrics) IncOperation(string, string, string)               {}
func (NoOpMetrics) IncRetry(string)                                   {}
func (NoOpMetrics) ObserveTaskDuration(string, Status, time.Duration) {}
func (NoOpMetrics) SetQueueResidence(Priority, time.Duration)         {}
