package taskd

import (
	"context"

	"taskdash/internal/pkg/config"
	"taskdash/internal/pkg/eventsink"
	"taskdash/internal/pkg/health"
	"taskdash/internal/pkg/logger"
	"taskdash/internal/pkg/metrics"
	"taskdash/internal/pkg/redis"
	"taskdash/internal/pkg/scheduler"
	"taskdash/internal/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TaskdApp provides the scheduler, its HTTP API and all infrastructure
var TaskdApp = fx.Options(
	config.Module,
	logger.Module,
	redis.Module,
	metrics.Module,
	scheduler.Module,
	eventsink.Module,
	health.Module,
	server.Module,

	fx.Provide(
		NewServiceConfig,
		schedulerConfig,
		eventSinkConfig,
		NewTaskHandler,
		fx.Annotate(handlerLogging, fx.ResultTags(`group:"scheduler_options"`)),
	),

	fx.Invoke(
		RegisterBuiltins,
		registerTaskRoutes,
		watchConfig,
	),
)

// Options builds the full application for a config directory and optional
// explicit config file.
func Options(dir, file string) fx.Option {
	return fx.Options(
		config.WithService(config.ServiceOptions{
			Dir:      dir,
			File:     file,
			Defaults: DefaultValues(),
		}),
		TaskdApp,
	)
}

func registerTaskRoutes(srv *server.Server, h *TaskHandler, cfg *ServiceConfig, hs *health.Service, reg *prometheus.Registry) {
	RegisterRoutes(srv.Echo(), h, cfg.API, hs, reg)
}

// handlerLogging traces every handler invocation at debug level
func handlerLogging(log *logger.Logger) scheduler.Option {
	return scheduler.WithMiddleware(scheduler.LoggingMiddleware(log.Named("handler")))
}

// watchConfig applies logger level changes from edited config files. The
// scheduler keeps the configuration it started with.
func watchConfig(lc fx.Lifecycle, mgr config.ConfigManager, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return mgr.Watch(func() {
				var cfg ServiceConfig
				if err := mgr.Unmarshal(&cfg); err != nil {
					log.Warn("ignoring invalid configuration reload", zap.Error(err))
					return
				}
				if err := log.SetLevel(cfg.Logger.Level); err != nil {
					log.Warn("failed to apply log level", zap.Error(err))
					return
				}
				log.Info("configuration reloaded", zap.String("log_level", cfg.Logger.Level))
			})
		},
	})
}
