package scheduler

import (
	"context"

	"taskdash/internal/pkg/logger"

	"go.uber.org/fx"
)

// Module provides the scheduler for fx and ties its loops to the app lifecycle.
// The Config must be supplied by the service.
var Module = fx.Module("scheduler",
	fx.Provide(NewFromParams),
)

// Params holds dependencies for creating a scheduler.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
	Logger    *logger.Logger
	Metrics   MetricsCollector `optional:"true"`
	Options   []Option         `group:"scheduler_options"`
}

// NewFromParams creates the scheduler and registers start/stop hooks.
// Handlers registered from fx.Invoke are in place before the loops start.
func NewFromParams(p Params) (*Scheduler, error) {
	s, err := New(p.Config, p.Logger.Named("scheduler"), p.Metrics, p.Options...)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
	return s, nil
}
