package config

// Config holds the configuration shared by every taskdash service
type Config struct {
	App    AppConfig    `mapstructure:"app" yaml:"app" validate:"required"`
	Server ServerConfig `mapstructure:"server" yaml:"server" validate:"required"`
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger" validate:"required"`
	Redis  RedisConfig  `mapstructure:"redis" yaml:"redis"`
}

// AppConfig identifies the running service
type AppConfig struct {
	Name string `mapstructure:"name" yaml:"name" validate:"required"`
	Env  string `mapstructure:"env" yaml:"env"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" validate:"required"`
	Port            int    `mapstructure:"port" yaml:"port" validate:"required,gt=0,lte=65535"`
	ReadTimeout     int    `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    int    `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" yaml:"format" validate:"required,oneof=json console"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path" validate:"required"`
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	Username        string `mapstructure:"username" yaml:"username"`
	Password        string `mapstructure:"password" yaml:"-"`
	DB              int    `mapstructure:"db" yaml:"db" validate:"gte=0"`
	PoolSize        int    `mapstructure:"pool_size" yaml:"pool_size" validate:"gte=1"`
	MinIdleConns    int    `mapstructure:"min_idle_conns" yaml:"min_idle_conns" validate:"gte=0"`
	DialTimeoutSec  int    `mapstructure:"dial_timeout_sec" yaml:"dial_timeout_sec" validate:"gte=0"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec" validate:"gte=0"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec" validate:"gte=0"`
	TLS             bool   `mapstructure:"tls" yaml:"tls"`
}

// Enabled reports whether a Redis address has been configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// DefaultValues returns the default configuration tree used by the default provider
func DefaultValues() map[string]any {
	return map[string]any{
		"app": map[string]any{
			"name": "taskdash",
			"env":  "development",
		},
		"server": map[string]any{
			"host":             "0.0.0.0",
			"port":             8080,
			"read_timeout":     10,
			"write_timeout":    10,
			"shutdown_timeout": 10,
		},
		"logger": map[string]any{
			"level":       "info",
			"format":      "json",
			"output_path": "stdout",
		},
		"redis": map[string]any{
			"addr":              "",
			"db":                0,
			"pool_size":         10,
			"min_idle_conns":    0,
			"dial_timeout_sec":  5,
			"read_timeout_sec":  3,
			"write_timeout_sec": 3,
			"tls":               false,
		},
	}
}
