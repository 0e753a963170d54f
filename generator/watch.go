package generator

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/logger"
	"github.com/teranos/opgen/resolver"
)

// DefaultDebounce collapses bursts of file events into one pass.
const DefaultDebounce = 300 * time.Millisecond

// WatchConfig configures Watch.
type WatchConfig struct {
	// Roots are the directories watched recursively
	Roots []string
	// Ignore lists files whose changes never trigger a pass, typically the
	// generated file itself
	Ignore []string
	// Debounce is the quiet period after the last event, DefaultDebounce when zero
	Debounce time.Duration
	// OnPass is called after every pass with its result or error
	OnPass func(*Result, error)
}

// Watcher re-runs passes when watched sources change.
type Watcher struct {
	gen     *Generator
	cfg     WatchConfig
	watcher *fsnotify.Watcher
	ignore  map[string]bool

	mu            sync.Mutex
	debounceTimer *time.Timer
	trigger       chan struct{}
}

// NewWatcher creates a watcher over cfg.Roots. Call Run to start it.
func NewWatcher(gen *Generator, cfg WatchConfig) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.NewInvalidConfigError("watch needs at least one directory")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		gen:     gen,
		cfg:     cfg,
		watcher: fw,
		ignore:  make(map[string]bool),
		trigger: make(chan struct{}, 1),
	}
	for _, p := range cfg.Ignore {
		w.ignore[absPath(p)] = true
	}
	for _, root := range cfg.Roots {
		if err := w.addTree(root); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run performs an initial pass, then one pass per debounced burst of
// changes, until ctx is done. Pass failures are reported through OnPass
// and logged; they do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	log := w.gen.log.Named("watch")

	go w.eventLoop(ctx)

	w.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			w.mu.Unlock()
			log.Debugw("Watcher stopped")
			return nil
		case <-w.trigger:
			w.pass(ctx)
		}
	}
}

func (w *Watcher) pass(ctx context.Context) {
	log := w.gen.log.Named("watch")
	res, err := w.gen.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Errorw("Pass failed", logger.FieldError, err)
		}
	} else if memo, ok := w.gen.Cache().(*resolver.MemoCache); ok {
		if dropped := memo.Retain(res.Version); dropped > 0 {
			log.Debugw("Dropped stale resolutions",
				logger.FieldCount, dropped,
				logger.FieldVersion, res.Version)
		}
	}
	if w.cfg.OnPass != nil {
		w.cfg.OnPass(res, err)
	}
}

// eventLoop monitors file system events
func (w *Watcher) eventLoop(ctx context.Context) {
	log := w.gen.log.Named("watch")
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.Warnw("Cannot watch new directory", logger.FieldDir, event.Name, logger.FieldError, err)
					}
				}
			}
			log.Debugw("Source changed",
				logger.FieldFile, event.Name,
				"op", event.Op.String())
			w.schedulePass()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("Watcher error", logger.FieldError, err)
		}
	}
}

// relevant filters out our own writes, editor droppings and test files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if w.ignore[absPath(event.Name)] || isStagingFile(event.Name) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, "_test.go") {
		return false
	}
	return true
}

// schedulePass debounces rapid file changes and triggers a pass
func (w *Watcher) schedulePass() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.cfg.Debounce, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
			// a pass is already queued
		}
	})
}

// addTree watches root and its subdirectories, skipping hidden, vendor,
// testdata and underscore-prefixed directories like the go tool does.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "failed to walk %s", path)
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
			name == "vendor" || name == "testdata") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		return nil
	})
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
