package am

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/logger"
)

// DefaultReloadDebounce is how long the config file must stay quiet before
// it is reloaded.
const DefaultReloadDebounce = 500 * time.Millisecond

// ReloadCallback receives each successfully reloaded and validated config.
type ReloadCallback func(*Config) error

// ConfigWatcher reloads the configuration when the config file changes.
//
// The directory holding the file is watched, not the file itself, so editors
// that save by renaming a new file into place keep being observed.
type ConfigWatcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce time.Duration

	// ownWrites counts writes made by WriteConfig that must not trigger a
	// reload
	ownWrites atomic.Int32

	mu        sync.Mutex
	callbacks []ReloadCallback
	timer     *time.Timer
}

var (
	globalWatcher   *ConfigWatcher
	globalWatcherMu sync.Mutex
)

// NewConfigWatcher prepares a watcher for configPath. Call Run to start it.
func NewConfigWatcher(configPath string) (*ConfigWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsw.Add(filepath.Dir(configPath)); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch directory of %s", configPath)
	}
	return &ConfigWatcher{
		path:     filepath.Clean(configPath),
		fsw:      fsw,
		debounce: DefaultReloadDebounce,
	}, nil
}

// OnReload registers a callback. Callbacks run in registration order.
func (cw *ConfigWatcher) OnReload(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// MarkOwnWrite makes the watcher skip the next change to the file.
func (cw *ConfigWatcher) MarkOwnWrite() {
	cw.ownWrites.Add(1)
}

// consumeOwnWrite reports whether a pending own write absorbs this event.
func (cw *ConfigWatcher) consumeOwnWrite() bool {
	for {
		n := cw.ownWrites.Load()
		if n <= 0 {
			return false
		}
		if cw.ownWrites.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// Run watches until ctx is done, then releases the underlying watcher.
func (cw *ConfigWatcher) Run(ctx context.Context) error {
	defer func() {
		cw.mu.Lock()
		if cw.timer != nil {
			cw.timer.Stop()
		}
		cw.mu.Unlock()
		cw.fsw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-cw.fsw.Events:
			if !ok {
				return nil
			}
			if !cw.concerns(event) {
				continue
			}
			if cw.consumeOwnWrite() {
				logger.Debugw("Config watcher ignoring own write", logger.FieldFile, event.Name)
				continue
			}
			logger.Infow("Config file changed",
				logger.FieldFile, event.Name,
				"op", event.Op.String())
			cw.scheduleReload()
		case err, ok := <-cw.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("Config watcher error", logger.FieldError, err)
		}
	}
}

// concerns filters events down to writes of the watched file.
func (cw *ConfigWatcher) concerns(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != cw.path || isBackupFile(event.Name) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (cw *ConfigWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, func() {
		cfg, err := reloadConfig()
		if err != nil {
			logger.Errorw("Config reload failed", logger.FieldFile, cw.path, logger.FieldError, err)
			return
		}
		logger.Infow("Config reloaded", logger.FieldFile, cw.path)
		cw.notify(cfg)
	})
}

func (cw *ConfigWatcher) notify(cfg *Config) {
	cw.mu.Lock()
	callbacks := append([]ReloadCallback(nil), cw.callbacks...)
	cw.mu.Unlock()

	for _, callback := range callbacks {
		if err := callback(cfg); err != nil {
			logger.Warnw("Config reload callback failed", logger.FieldError, err)
		}
	}
}

// reloadConfig drops cached state, keeping any --config file, and loads and
// validates the configuration again.
func reloadConfig() (*Config, error) {
	mu.Lock()
	explicit := explicitConfig
	mu.Unlock()

	Reset()
	SetConfigFile(explicit)

	cfg, err := Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "reloaded config is invalid")
	}
	return cfg, nil
}

// isBackupFile reports rotated backups written by WriteConfig (.back1 to .back3)
func isBackupFile(path string) bool {
	return strings.HasPrefix(filepath.Ext(path), ".back")
}

// SetGlobalWatcher registers the watcher WriteConfig marks its own writes on.
// Pass nil to unregister.
func SetGlobalWatcher(watcher *ConfigWatcher) {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	globalWatcher = watcher
}
