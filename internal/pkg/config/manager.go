package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// ErrWatchActive is returned when Watch is called twice on the same manager
var ErrWatchActive = errors.New("config: watch is already active")

// ConfigManager manages configuration loading and access
type ConfigManager interface {
	Load() error
	Reload() error
	Get(key string) any
	Unmarshal(target any) error
	Watch(callback func()) error
	Files() []string
	Close() error
}

// manager implements ConfigManager
type manager struct {
	mu        sync.RWMutex
	providers []Provider
	data      map[string]any
	validator *validator.Validate

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// New creates a new config manager with the given providers
func New(opts ...Option) ConfigManager {
	m := &manager{
		providers: make([]Provider, 0),
		data:      make(map[string]any),
		validator: validator.New(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Option is a functional option for configuring the manager
type Option func(*manager)

// WithProvider adds a provider to the manager
func WithProvider(provider Provider) Option {
	return func(m *manager) {
		m.providers = append(m.providers, provider)
	}
}

// Load loads configuration from all providers in priority order.
// Later providers override earlier ones: env > file > default.
func (m *manager) Load() error {
	merged := make(map[string]any)

	for _, provider := range m.providers {
		data, err := provider.Load()
		if err != nil {
			return fmt.Errorf("provider %s: %w", provider.Name(), err)
		}
		merged = mergeMaps(merged, data)
	}

	var cfg Config
	if err := decode(merged, &cfg); err != nil {
		return err
	}
	if err := m.validator.Struct(&cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.mu.Lock()
	m.data = merged
	m.mu.Unlock()
	return nil
}

// Reload reloads configuration from all providers
func (m *manager) Reload() error {
	return m.Load()
}

// Get retrieves a configuration value by key (dot-separated path)
func (m *manager) Get(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return getNestedValue(m.data, key)
}

// getNestedValue retrieves a value from a nested map using dot-separated keys
func getNestedValue(m map[string]any, key string) any {
	current := any(m)

	for _, k := range strings.Split(key, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		val, exists := node[k]
		if !exists {
			return nil
		}
		current = val
	}

	return current
}

// Unmarshal decodes the merged configuration into target and validates it
func (m *manager) Unmarshal(target any) error {
	m.mu.RLock()
	data := m.data
	m.mu.RUnlock()

	if err := decode(data, target); err != nil {
		return err
	}
	if err := m.validator.Struct(target); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func decode(data map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// Files returns every config file the file providers read on the last load
func (m *manager) Files() []string {
	var files []string
	for _, p := range m.providers {
		if fs, ok := p.(fileSource); ok {
			files = append(files, fs.Files()...)
		}
	}
	return files
}

// Watch reloads the configuration whenever one of the loaded files is written
// and calls callback after every successful reload. Directories are watched
// rather than files so editors that replace files atomically are still seen.
func (m *manager) Watch(callback func()) error {
	m.mu.Lock()
	if m.watcher != nil {
		m.mu.Unlock()
		return ErrWatchActive
	}

	files := m.Files()
	if len(files) == 0 {
		m.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	watched := make(map[string]struct{}, len(files))
	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		watched[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			m.mu.Unlock()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	m.watcher = watcher
	m.watchDone = make(chan struct{})
	done := m.watchDone
	m.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if _, hit := watched[filepath.Clean(event.Name)]; !hit {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := m.Reload(); err == nil && callback != nil {
					callback()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return nil
}

// Close stops an active watch
func (m *manager) Close() error {
	m.mu.Lock()
	watcher, done := m.watcher, m.watchDone
	m.watcher, m.watchDone = nil, nil
	m.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}
