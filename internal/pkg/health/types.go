package health

import (
	"context"
	"time"
)

// Status is the health of a single component or of the whole service
type Status string

const (
	StatusUp       Status = "UP"
	StatusDown     Status = "DOWN"
	StatusDegraded Status = "DEGRADED"
)

// CheckResult is the outcome of one provider check
type CheckResult struct {
	Name      string         `json:"name"`
	Status    Status         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
	Error     string         `json:"error,omitempty"`
}

// Provider checks one dependency
type Provider interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Strategy decides how provider statuses combine into the overall status
type Strategy string

const (
	// StrategyAll is DOWN if any provider is DOWN
	StrategyAll Strategy = "ALL"
	// StrategyCritical is DOWN only if a critical provider is DOWN; other
	// failures degrade.
	StrategyCritical Strategy = "CRITICAL"
)

// Response is the body served by the readiness endpoint
type Response struct {
	Status    Status         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Checks    []CheckResult  `json:"checks"`
	Details   map[string]any `json:"details,omitempty"`
}
