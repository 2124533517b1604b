package logger

import (
	"context"

	"go.uber.org/fx"
)

func registerSync(lc fx.Lifecycle, log *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// stdout/stderr return EINVAL on Sync on some platforms.
			_ = log.Sync()
			return nil
		},
	})
}

// Module exports the logger module for FX
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
	fx.Invoke(registerSync),
)
