package config

import (
	"context"

	"go.uber.org/fx"
)

// ServiceOptions tells the manager where a service keeps its configuration
type ServiceOptions struct {
	// Dir is the service directory; <Dir>/config/config*.yaml are merged over the global files.
	Dir string
	// File is an explicit config file merged last, typically from a --config flag.
	File string
	// Defaults are merged over DefaultValues before any file is read.
	Defaults map[string]any
	// EnvPrefix overrides the APP_ environment prefix.
	EnvPrefix string
}

// WithService supplies the service options to the config module
func WithService(opts ServiceOptions) fx.Option {
	return fx.Supply(opts)
}

// ManagerParams holds the optional inputs of NewManager
type ManagerParams struct {
	fx.In
	Options   ServiceOptions `optional:"true"`
	Lifecycle fx.Lifecycle   `optional:"true"`
}

// NewManager builds and loads a manager for the service described by params
func NewManager(params ManagerParams) (ConfigManager, error) {
	opts := params.Options
	m := New(
		WithProvider(NewDefaultProvider(mergeMaps(DefaultValues(), opts.Defaults))),
		WithProvider(NewFileProvider(opts.Dir, opts.File)),
		WithProvider(NewEnvProvider(opts.EnvPrefix)),
	)
	if err := m.Load(); err != nil {
		return nil, err
	}

	if params.Lifecycle != nil {
		params.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return m.Close()
			},
		})
	}
	return m, nil
}

// NewConfig decodes the common configuration
func NewConfig(mgr ConfigManager) (*Config, error) {
	var cfg Config
	if err := mgr.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Module exports the config module for FX
var Module = fx.Module("config",
	fx.Provide(NewManager, NewConfig),
)
