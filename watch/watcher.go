// Package watch monitors a definition source tree and fires a debounced
// callback when matching files change. Events within the debounce window
// coalesce into a single callback carrying the full set of changed paths.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fplgen/fplgen/errors"
	"github.com/fplgen/fplgen/logger"
)

// minRearmDelay floors rescheduling so a zero debounce cannot spin while
// a run is rate limited or still in progress.
const minRearmDelay = 100 * time.Millisecond

// defaultExcludes are never-trigger patterns covering VCS metadata and
// editor noise, applied on top of user-supplied excludes.
var defaultExcludes = []string{
	"**/.git/**",
	"**/.svn/**",
	"**/.hg/**",
	"**/CVS/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// Config holds the parameters for a Watcher.
type Config struct {
	// SourceDir is the absolute root directory to watch.
	SourceDir string

	// Includes are doublestar patterns (relative to SourceDir) selecting
	// which files trigger callbacks. Empty watches all non-excluded files.
	Includes []string

	// Excludes are additional patterns that never trigger callbacks,
	// merged with the built-in defaults.
	Excludes []string

	// Debounce is the quiet period after the last event before the
	// callback fires. Zero fires on every event burst immediately.
	Debounce time.Duration

	// MaxRunsPerMinute limits how often the callback may fire.
	// 0 = unlimited. Deferred runs are rescheduled, not dropped.
	MaxRunsPerMinute int

	// OnChange is called after the debounce window closes with the
	// sorted, deduplicated list of changed paths relative to SourceDir.
	// A nil callback is a no-op. Errors are logged and watching
	// continues.
	OnChange func(ctx context.Context, changed []string) error
}

// Watcher monitors the source tree. Run must be called exactly once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	excludes []string
	limiter  *rate.Limiter
	log      *zap.SugaredLogger
	started  atomic.Bool
}

// New validates the configuration, initialises the underlying fsnotify
// watcher, and registers every non-excluded directory under SourceDir.
func New(cfg Config) (*Watcher, error) {
	if !filepath.IsAbs(cfg.SourceDir) {
		return nil, errors.NewConfigurationError("watch source directory is not absolute: %s", cfg.SourceDir)
	}
	if cfg.Debounce < 0 {
		return nil, errors.NewConfigurationError("watch debounce must be >= 0, got %s", cfg.Debounce)
	}
	if cfg.MaxRunsPerMinute < 0 {
		return nil, errors.NewConfigurationError("watch rate limit must be >= 0, got %d", cfg.MaxRunsPerMinute)
	}
	for _, pattern := range append(append([]string{}, cfg.Includes...), cfg.Excludes...) {
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, errors.NewConfigurationError("invalid watch pattern: %q", pattern)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}

	excludes := make([]string, 0, len(defaultExcludes)+len(cfg.Excludes))
	excludes = append(excludes, defaultExcludes...)
	excludes = append(excludes, cfg.Excludes...)

	var limiter *rate.Limiter
	if cfg.MaxRunsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.MaxRunsPerMinute)/60.0), 1)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		excludes: excludes,
		limiter:  limiter,
		log:      logger.ComponentLogger("watch"),
	}

	if err := w.addDirectories(); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Run blocks until ctx is cancelled, processing filesystem events and
// dispatching debounced callbacks. It returns nil on clean cancellation.
// A second call returns an error immediately.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watcher Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	rearm := func() {
		delay := w.cfg.Debounce
		if delay < minRearmDelay {
			delay = minRearmDelay
		}
		mu.Lock()
		if timer != nil {
			timer.Reset(delay)
		}
		mu.Unlock()
	}

	fire := func() {
		if ctx.Err() != nil {
			return
		}

		if w.limiter != nil && !w.limiter.Allow() {
			w.log.Debugw("Run rate limited, deferring")
			rearm()
			return
		}

		// Skip-if-busy: a run outliving the debounce window must not
		// overlap the next one. Deferred events stay pending.
		if !running.CompareAndSwap(false, true) {
			w.log.Debugw("Previous run still in progress, deferring")
			rearm()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := make([]string, 0, len(pending))
		for rel := range pending {
			changed = append(changed, rel)
		}
		clear(pending)
		mu.Unlock()
		sort.Strings(changed)

		w.log.Infow("Change detected", logger.FieldCount, len(changed), logger.FieldPath, changed[0])
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.log.Errorw("Change callback failed", "error", err)
			}
		}
	}

	schedule := func(rel string) {
		mu.Lock()
		pending[rel] = struct{}{}
		if timer == nil {
			timer = time.AfterFunc(w.cfg.Debounce, fire)
		} else {
			timer.Reset(w.cfg.Debounce)
		}
		mu.Unlock()
	}

	defer func() {
		mu.Lock()
		localTimer := timer
		mu.Unlock()
		if localTimer != nil {
			localTimer.Stop()
		}
		if err := w.fsw.Close(); err != nil {
			w.log.Warnw("Closing fsnotify watcher", "error", err)
		}
	}()

	w.log.Infow("Watching for changes",
		logger.FieldSourceDir, w.cfg.SourceDir,
		logger.FieldPattern, w.cfg.Includes,
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed unexpectedly")
			}

			rel, err := filepath.Rel(w.cfg.SourceDir, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			if w.excluded(rel) {
				continue
			}

			// A created directory is watched immediately and counts as
			// a change: files may have landed inside it before the
			// watch was in place, and only a rescan can tell.
			if evt.Has(fsnotify.Create) && w.maybeAddDir(evt.Name) {
				schedule(rel)
				continue
			}

			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				continue
			}
			if !w.matches(rel) {
				continue
			}

			w.log.Debugw("File changed", logger.FieldFile, rel, "op", evt.Op.String())
			schedule(rel)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed unexpectedly")
			}
			w.log.Warnw("Watcher error", "error", err)
		}
	}
}

// addDirectories walks SourceDir and adds every non-excluded directory to
// the fsnotify watcher. Directories are registered regardless of include
// patterns; filtering applies to events, not watches.
func (w *Watcher) addDirectories() error {
	return filepath.WalkDir(w.cfg.SourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Inaccessible subtrees are skipped, not fatal
			w.log.Warnw("Skipping unwatchable path", logger.FieldPath, path, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.cfg.SourceDir, path)
		if err != nil {
			return nil
		}
		if rel != "." && w.excluded(rel) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			return errors.Wrap(err, "watching directory "+path)
		}
		return nil
	})
}

// maybeAddDir registers a newly created directory and its subdirectories,
// reporting whether path was a directory. Directories created between the
// mkdir and the watch registration are caught by the recursive walk.
func (w *Watcher) maybeAddDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}

	filepath.WalkDir(path, func(sub string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.cfg.SourceDir, sub)
		if err != nil {
			return nil
		}
		if w.excluded(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(sub); err != nil {
			w.log.Warnw("Watching new directory", logger.FieldPath, sub, "error", err)
		}
		return nil
	})
	return true
}

// excluded reports whether rel matches any exclude pattern. Directory
// paths match both as-is and with a trailing slash.
func (w *Watcher) excluded(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pattern := range w.excludes {
		if ok, _ := doublestar.Match(pattern, normalized); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, normalized+"/"); ok {
			return true
		}
	}
	return false
}

// matches reports whether rel matches at least one include pattern.
// With no patterns configured, every path matches.
func (w *Watcher) matches(rel string) bool {
	if len(w.cfg.Includes) == 0 {
		return true
	}
	normalized := filepath.ToSlash(rel)
	for _, pattern := range w.cfg.Includes {
		if ok, _ := doublestar.Match(filepath.ToSlash(pattern), normalized); ok {
			return true
		}
	}
	return false
}
