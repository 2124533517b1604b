package server

import (
	"context"
	"time"

	"taskdash/internal/pkg/config"
	"taskdash/internal/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module exports the server module for FX
var Module = fx.Module("server",
	fx.Provide(NewEchoServer),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, server *Server, cfg *config.Config, log *logger.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.Start(); err != nil {
					log.Error("HTTP server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}
