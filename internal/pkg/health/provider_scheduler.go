package health

import (
	"context"
	"time"

	"taskdash/internal/pkg/scheduler"
)

// SchedulerChecker is the part of the scheduler the health check needs
type SchedulerChecker interface {
	IsRunning() bool
	Stats() scheduler.Stats
}

// SchedulerProviderConfig configures the scheduler health provider
type SchedulerProviderConfig struct {
	Name      string
	Scheduler SchedulerChecker
	// MaxQueued is the backlog at which the scheduler reports DOWN. Zero
	// disables backlog checks.
	MaxQueued int
	// DegradedQueued defaults to 80% of MaxQueued
	DegradedQueued int
}

// SchedulerProvider reports whether the dispatcher loop is running and how
// deep the priority queues are.
type SchedulerProvider struct {
	cfg SchedulerProviderConfig
}

// NewSchedulerProvider creates a scheduler health provider
func NewSchedulerProvider(cfg SchedulerProviderConfig) *SchedulerProvider {
	if cfg.Name == "" {
		cfg.Name = "scheduler"
	}
	if cfg.DegradedQueued == 0 && cfg.MaxQueued > 0 {
		cfg.DegradedQueued = cfg.MaxQueued * 8 / 10
	}
	return &SchedulerProvider{cfg: cfg}
}

func (p *SchedulerProvider) Name() string {
	return p.cfg.Name
}

func (p *SchedulerProvider) Check(context.Context) CheckResult {
	stats := p.cfg.Scheduler.Stats()
	res := CheckResult{
		Name:      p.cfg.Name,
		Status:    StatusUp,
		CheckedAt: time.Now(),
		Details: map[string]any{
			"running": stats.Running,
			"total":   stats.Total,
			"queued":  stats.Queued,
		},
	}
	for prio, n := range stats.QueueSizes {
		res.Details["queue_"+prio.String()] = n
	}
	for status, n := range stats.ByStatus {
		res.Details["tasks_"+string(status)] = n
	}

	if !p.cfg.Scheduler.IsRunning() {
		res.Status = StatusDown
		res.Error = "scheduler is not running"
		return res
	}
	if p.cfg.MaxQueued > 0 {
		switch {
		case stats.Queued >= p.cfg.MaxQueued:
			res.Status = StatusDown
			res.Error = "task backlog is full"
		case stats.Queued >= p.cfg.DegradedQueued:
			res.Status = StatusDegraded
			res.Details["reason"] = "task backlog approaching limit"
		}
	}
	return res
}
