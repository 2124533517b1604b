package taskd

import (
	"taskdash/internal/pkg/config"
	"taskdash/internal/pkg/eventsink"
	"taskdash/internal/pkg/scheduler"
)

// ServiceConfig is the full taskd configuration: the shared sections plus
// the scheduler, event sink and API sections.
type ServiceConfig struct {
	config.Config `mapstructure:",squash" yaml:",inline"`

	Scheduler scheduler.Config `mapstructure:"scheduler" yaml:"scheduler"`
	EventSink eventsink.Config `mapstructure:"event_sink" yaml:"event_sink"`
	API       APIConfig        `mapstructure:"api" yaml:"api"`
}

// APIConfig controls the HTTP task API
type APIConfig struct {
	// JWTSecret enables HS256 bearer auth on /api/v1 when set
	JWTSecret        string  `mapstructure:"jwt_secret" yaml:"-"`
	CreateRatePerSec float64 `mapstructure:"create_rate_per_sec" yaml:"create_rate_per_sec" validate:"gte=0"`
	CreateBurst      int     `mapstructure:"create_burst" yaml:"create_burst" validate:"gte=0"`
	// MaxListed caps GET /api/v1/tasks
	MaxListed int `mapstructure:"max_listed" yaml:"max_listed" validate:"gte=1"`
}

// DefaultValues returns the taskd sections layered over config.DefaultValues
func DefaultValues() map[string]any {
	return map[string]any{
		"app":        map[string]any{"name": "taskd"},
		"scheduler":  scheduler.DefaultValues(),
		"event_sink": eventsink.DefaultValues(),
		"api": map[string]any{
			"jwt_secret":          "",
			"create_rate_per_sec": 0,
			"create_burst":        0,
			"max_listed":          1000,
		},
	}
}

// NewServiceConfig decodes and validates the taskd configuration
func NewServiceConfig(mgr config.ConfigManager) (*ServiceConfig, error) {
	var cfg ServiceConfig
	if err := mgr.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func schedulerConfig(cfg *ServiceConfig) scheduler.Config { return cfg.Scheduler }

func eventSinkConfig(cfg *ServiceConfig) eventsink.Config { return cfg.EventSink }

// LoadServiceConfig loads the taskd configuration outside of fx, for CLI
// commands that do not start the service.
func LoadServiceConfig(dir, file string) (*ServiceConfig, error) {
	mgr, err := config.NewManager(config.ManagerParams{
		Options: config.ServiceOptions{Dir: dir, File: file, Defaults: DefaultValues()},
	})
	if err != nil {
		return nil, err
	}
	defer mgr.Close()
	return NewServiceConfig(mgr)
}
