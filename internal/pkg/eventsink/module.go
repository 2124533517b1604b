package eventsink

import (
	"taskdash/internal/pkg/config"
	"taskdash/internal/pkg/logger"
	"taskdash/internal/pkg/redis"
	"taskdash/internal/pkg/redis/dlq"
	"taskdash/internal/pkg/redis/keys"
	"taskdash/internal/pkg/scheduler"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module subscribes the Redis stream sink to the scheduler when Redis is
// configured. The service supplies the sink Config.
var Module = fx.Module("eventsink",
	fx.Invoke(Register),
)

// Params holds dependencies for registering the sink
type Params struct {
	fx.In

	Config    Config
	App       *config.Config
	Scheduler *scheduler.Scheduler
	Redis     *redisv9.Client `optional:"true"`
	Logger    *logger.Logger
}

// Register subscribes the sink. It is a no-op when Redis or the sink is disabled.
func Register(p Params) error {
	if p.Redis == nil || !p.Config.Enabled {
		p.Logger.Info("event sink disabled")
		return nil
	}

	cfg := p.Config
	if cfg.Stream == "" {
		cfg.Stream = keys.EventStream(p.App.App.Name)
	}
	if cfg.DeadLetter == "" {
		cfg.DeadLetter = keys.DeadLetterStream(p.App.App.Name)
	}

	stream := redis.NewStreamClient(p.Redis)
	dead := dlq.New(stream, cfg.DeadLetter, cfg.MaxLen)
	sink := New(stream, dead, cfg, p.Logger.Named("eventsink"))
	if _, err := sink.Subscribe(p.Scheduler); err != nil {
		return err
	}

	p.Logger.Info("event sink subscribed",
		zap.String("stream", cfg.Stream),
		zap.String("dead_letter", dead.Stream()),
	)
	return nil
}
