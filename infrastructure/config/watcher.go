package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// TelemetryWatcher watches the YAML config file and publishes changes to
// its telemetry section.
type TelemetryWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  TelemetryConfig
	mu       sync.RWMutex
	onChange []func(TelemetryConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	debounce time.Duration
}

// NewTelemetryWatcher creates a watcher for path. initial is the telemetry
// section currently in effect.
func NewTelemetryWatcher(path string, initial TelemetryConfig, logger *zap.Logger) (*TelemetryWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so editors that save by rename are picked up.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &TelemetryWatcher{
		path:     path,
		watcher:  watcher,
		current:  initial,
		logger:   logger.Named("config_watcher"),
		stopCh:   make(chan struct{}),
		debounce: 100 * time.Millisecond,
	}, nil
}

// Start begins watching for configuration changes
func (w *TelemetryWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *TelemetryWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *TelemetryWatcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(w.debounce, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

// reload rebuilds the configuration the way LoadConfig does, so environment
// variables still override the file. An unreadable or invalid result keeps
// the current settings.
func (w *TelemetryWatcher) reload() {
	cfg := Defaults()
	if err := cfg.overlayFile(w.path); err != nil {
		w.logger.Error("Failed to reload configuration", zap.Error(err))
		return
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		w.logger.Error("Invalid telemetry configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	if telemetryEqual(old, cfg.Telemetry) {
		w.mu.Unlock()
		return
	}
	w.current = cfg.Telemetry
	handlers := append(([]func(TelemetryConfig))(nil), w.onChange...)
	w.mu.Unlock()

	w.logger.Info("Telemetry configuration changed",
		zap.Int("slowQueryThresholdMs", cfg.Telemetry.SlowQueryThresholdMs),
		zap.Bool("logAllQueries", cfg.Telemetry.LogAllQueries),
		zap.Strings("redactFields", cfg.Telemetry.RedactFields),
		zap.Int("retentionMinutes", cfg.Telemetry.RetentionMinutes),
	)
	for _, handler := range handlers {
		handler(cfg.Telemetry)
	}
}

func telemetryEqual(a, b TelemetryConfig) bool {
	return a.SlowQueryThresholdMs == b.SlowQueryThresholdMs &&
		a.LogAllQueries == b.LogAllQueries &&
		a.RetentionMinutes == b.RetentionMinutes &&
		slices.Equal(a.RedactFields, b.RedactFields)
}

// OnChange registers a callback for telemetry changes
func (w *TelemetryWatcher) OnChange(handler func(TelemetryConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the telemetry settings in effect
func (w *TelemetryWatcher) Current() TelemetryConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
