package health

import (
	"context"
	"time"

	"taskdash/internal/pkg/logger"
	"taskdash/internal/pkg/scheduler"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Module exports the health module for FX
var Module = fx.Module("health",
	fx.Provide(NewHealthService),
	fx.Invoke(registerHooks),
)

// ServiceParams defines the dependencies for the health service
type ServiceParams struct {
	fx.In

	Logger    *logger.Logger
	Scheduler *scheduler.Scheduler `optional:"true"`
	Redis     *redisv9.Client      `optional:"true"`
}

// NewHealthService builds a background health service with a provider for
// each available dependency. The scheduler is critical; Redis only degrades.
func NewHealthService(p ServiceParams) *Service {
	cfg := DefaultConfig()
	cfg.AsyncMode = true
	cfg.CheckInterval = 15 * time.Second
	cfg.Strategy = StrategyCritical

	cfg.Critical = []string{"scheduler"}

	svc := NewService(cfg)
	if p.Scheduler != nil {
		svc.Register(NewSchedulerProvider(SchedulerProviderConfig{Scheduler: p.Scheduler}))
	}
	if p.Redis != nil {
		svc.Register(NewRedisProvider(RedisProviderConfig{Client: p.Redis}))
	}
	p.Logger.Info("Health service initialized")
	return svc
}

func registerHooks(lc fx.Lifecycle, svc *Service, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			svc.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			log.Info("Stopping health service")
			svc.Stop()
			return nil
		},
	})
}
