package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Provider defines the interface for configuration providers
type Provider interface {
	Load() (map[string]any, error)
	Name() string
}

// fileSource is implemented by providers backed by files on disk
type fileSource interface {
	Files() []string
}

// DefaultProvider provides default configuration values
type DefaultProvider struct {
	defaults map[string]any
}

// NewDefaultProvider creates a new default provider
func NewDefaultProvider(defaults map[string]any) *DefaultProvider {
	return &DefaultProvider{defaults: defaults}
}

// Name returns the provider name
func (p *DefaultProvider) Name() string {
	return "default"
}

// Load returns the default configuration
func (p *DefaultProvider) Load() (map[string]any, error) {
	if p.defaults == nil {
		return make(map[string]any), nil
	}
	return p.defaults, nil
}

// FileProvider loads configuration from YAML files
type FileProvider struct {
	env        string
	serviceDir string
	explicit   string

	mu     sync.Mutex
	loaded []string
}

// NewFileProvider creates a new file provider.
// Files are merged in the following order, later files winning:
// 1. Global base: config/config.yaml
// 2. Global env: config/config.<env>.yaml
// 3. Service base: <serviceDir>/config/config.yaml
// 4. Service env: <serviceDir>/config/config.<env>.yaml
// 5. The explicit file, when one is given
func NewFileProvider(serviceDir, explicit string) *FileProvider {
	return &FileProvider{
		env:        getEnv(),
		serviceDir: serviceDir,
		explicit:   explicit,
	}
}

// Name returns the provider name
func (p *FileProvider) Name() string {
	return "file"
}

// Files returns the files read by the last Load
func (p *FileProvider) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.loaded))
	copy(out, p.loaded)
	return out
}

// Load loads configuration from files
func (p *FileProvider) Load() (map[string]any, error) {
	result := make(map[string]any)
	var loaded []string

	merge := func(path string) {
		data, err := loadFile(path)
		if err != nil {
			return
		}
		result = mergeMaps(result, data)
		loaded = append(loaded, path)
	}

	if globalConfigDir := findGlobalConfigDir(); globalConfigDir != "" {
		merge(filepath.Join(globalConfigDir, "config.yaml"))
		if p.env != "" && p.env != "development" {
			merge(filepath.Join(globalConfigDir, fmt.Sprintf("config.%s.yaml", p.env)))
		}
	}

	if p.serviceDir != "" {
		merge(filepath.Join(p.serviceDir, "config", "config.yaml"))
		if p.env != "" && p.env != "development" {
			merge(filepath.Join(p.serviceDir, "config", fmt.Sprintf("config.%s.yaml", p.env)))
		}
	}

	if p.explicit != "" {
		data, err := loadFile(p.explicit)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", p.explicit, err)
		}
		result = mergeMaps(result, data)
		loaded = append(loaded, p.explicit)
	}

	p.mu.Lock()
	p.loaded = loaded
	p.mu.Unlock()

	return result, nil
}

// loadFile loads a single config file
func loadFile(path string) (map[string]any, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return v.AllSettings(), nil
}

// EnvProvider loads configuration from environment variables
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable provider.
// Variables are prefixed with APP_ (e.g. APP_LOGGER__LEVEL) and nested keys
// are separated by a double underscore (e.g. APP_SCHEDULER__WORKER_INTERVAL).
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "APP_"
	}
	return &EnvProvider{prefix: prefix}
}

// Name returns the provider name
func (p *EnvProvider) Name() string {
	return "env"
}

// Load loads configuration from environment variables
func (p *EnvProvider) Load() (map[string]any, error) {
	result := make(map[string]any)

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, p.prefix) {
			continue
		}

		configKey := strings.ToLower(strings.TrimPrefix(key, p.prefix))
		setNestedValue(result, strings.Split(configKey, "__"), value)
	}

	return result, nil
}

// setNestedValue sets a value in a nested map structure
func setNestedValue(m map[string]any, keys []string, value any) {
	if len(keys) == 0 {
		return
	}

	if len(keys) == 1 {
		m[keys[0]] = value
		return
	}

	key := keys[0]
	if _, exists := m[key]; !exists {
		m[key] = make(map[string]any)
	}

	if subMap, ok := m[key].(map[string]any); ok {
		setNestedValue(subMap, keys[1:], value)
	}
}

// mergeMaps merges two maps, with b taking precedence over a
func mergeMaps(a, b map[string]any) map[string]any {
	result := make(map[string]any, len(a)+len(b))

	for k, v := range a {
		result[k] = v
	}

	for k, v := range b {
		if existing, exists := result[k]; exists {
			if existingMap, ok := existing.(map[string]any); ok {
				if newMap, ok := v.(map[string]any); ok {
					result[k] = mergeMaps(existingMap, newMap)
					continue
				}
			}
		}
		result[k] = v
	}

	return result
}

// getEnv gets the environment name from environment variables
func getEnv() string {
	for _, envVar := range []string{"APP_ENV", "GO_ENV", "ENV"} {
		if env := os.Getenv(envVar); env != "" {
			return env
		}
	}
	return "development"
}

// findGlobalConfigDir searches upward from the working directory for config/config.yaml
func findGlobalConfigDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := wd
	for {
		configPath := filepath.Join(dir, "config", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return filepath.Join(dir, "config")
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
