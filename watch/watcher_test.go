package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fplgen/fplgen/errors"
	fplgentest "github.com/fplgen/fplgen/internal/testing"
	"github.com/fplgen/fplgen/watch"
)

func TestNew_Validation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  watch.Config
	}{
		{name: "relative source dir", cfg: watch.Config{SourceDir: "definitions"}},
		{name: "negative debounce", cfg: watch.Config{SourceDir: dir, Debounce: -time.Second}},
		{name: "negative rate limit", cfg: watch.Config{SourceDir: dir, MaxRunsPerMinute: -1}},
		{name: "bad include pattern", cfg: watch.Config{SourceDir: dir, Includes: []string{"["}}},
		{name: "bad exclude pattern", cfg: watch.Config{SourceDir: dir, Excludes: []string{"["}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := watch.New(tt.cfg)
			assert.True(t, errors.IsConfigurationError(err), "expected configuration error, got %v", err)
		})
	}
}

// startWatcher runs a watcher until the test ends, forwarding callbacks
// into the returned channel.
func startWatcher(t *testing.T, cfg watch.Config) chan []string {
	t.Helper()

	changes := make(chan []string, 8)
	cfg.OnChange = func(_ context.Context, changed []string) error {
		changes <- changed
		return nil
	}

	w, err := watch.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop after cancellation")
		}
	})

	return changes
}

func waitForChange(t *testing.T, changes chan []string) []string {
	t.Helper()
	select {
	case changed := <-changes:
		return changed
	case <-time.After(5 * time.Second):
		t.Fatal("no change callback arrived")
		return nil
	}
}

func assertNoChange(t *testing.T, changes chan []string, window time.Duration) {
	t.Helper()
	select {
	case changed := <-changes:
		t.Fatalf("unexpected change callback: %v", changed)
	case <-time.After(window):
	}
}

func TestWatcher_FiresOnMatchingChange(t *testing.T) {
	dir := t.TempDir()
	fplgentest.WriteFile(t, dir, "a.fpl", "program A {}", time.Time{})

	changes := startWatcher(t, watch.Config{
		SourceDir: dir,
		Includes:  []string{"**/*.fpl"},
		Debounce:  50 * time.Millisecond,
	})

	fplgentest.WriteFile(t, dir, "a.fpl", "program A { changed }", time.Time{})

	changed := waitForChange(t, changes)
	assert.Contains(t, changed, "a.fpl")
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()

	changes := startWatcher(t, watch.Config{
		SourceDir: dir,
		Includes:  []string{"**/*.fpl"},
		Debounce:  150 * time.Millisecond,
	})

	fplgentest.WriteFile(t, dir, "a.fpl", "program A {}", time.Time{})
	fplgentest.WriteFile(t, dir, "b.fpl", "program B {}", time.Time{})
	fplgentest.WriteFile(t, dir, "c.fpl", "program C {}", time.Time{})

	changed := waitForChange(t, changes)
	assert.Subset(t, changed, []string{"a.fpl", "b.fpl", "c.fpl"})
	assert.IsIncreasing(t, changed, "changed paths must be sorted")

	assertNoChange(t, changes, 400*time.Millisecond)
}

func TestWatcher_IgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()

	changes := startWatcher(t, watch.Config{
		SourceDir: dir,
		Includes:  []string{"**/*.fpl"},
		Debounce:  50 * time.Millisecond,
	})

	fplgentest.WriteFile(t, dir, "notes.txt", "not a definition", time.Time{})

	assertNoChange(t, changes, 400*time.Millisecond)
}

func TestWatcher_ExcludedTreesStayQuiet(t *testing.T) {
	dir := t.TempDir()
	fplgentest.WriteFile(t, dir, filepath.Join(".git", "index.fpl"), "noise", time.Time{})
	fplgentest.WriteFile(t, dir, filepath.Join("legacy", "old.fpl"), "program Old {}", time.Time{})

	changes := startWatcher(t, watch.Config{
		SourceDir: dir,
		Includes:  []string{"**/*.fpl"},
		Excludes:  []string{"legacy/**"},
		Debounce:  50 * time.Millisecond,
	})

	fplgentest.WriteFile(t, dir, filepath.Join(".git", "index.fpl"), "more noise", time.Time{})
	fplgentest.WriteFile(t, dir, filepath.Join("legacy", "old.fpl"), "program Old { changed }", time.Time{})

	assertNoChange(t, changes, 400*time.Millisecond)
}

func TestWatcher_NewDirectoryTriggersRescan(t *testing.T) {
	dir := t.TempDir()

	changes := startWatcher(t, watch.Config{
		SourceDir: dir,
		Includes:  []string{"**/*.fpl"},
		Debounce:  100 * time.Millisecond,
	})

	sub := filepath.Join(dir, "grammars")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	fplgentest.WriteFile(t, dir, filepath.Join("grammars", "new.fpl"), "program New {}", time.Time{})

	changed := waitForChange(t, changes)
	assert.NotEmpty(t, changed)
}

func TestWatcher_CallbackErrorKeepsWatching(t *testing.T) {
	dir := t.TempDir()

	calls := make(chan struct{}, 8)
	w, err := watch.New(watch.Config{
		SourceDir: dir,
		Includes:  []string{"**/*.fpl"},
		Debounce:  50 * time.Millisecond,
		OnChange: func(context.Context, []string) error {
			calls <- struct{}{}
			return errors.New("generation failed")
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	fplgentest.WriteFile(t, dir, "a.fpl", "program A {}", time.Time{})
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("first callback never arrived")
	}

	// The error must not stop the watcher
	time.Sleep(100 * time.Millisecond)
	fplgentest.WriteFile(t, dir, "b.fpl", "program B {}", time.Time{})
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher stopped after callback error")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_RateLimitDefersRuns(t *testing.T) {
	dir := t.TempDir()

	changes := startWatcher(t, watch.Config{
		SourceDir:        dir,
		Includes:         []string{"**/*.fpl"},
		Debounce:         50 * time.Millisecond,
		MaxRunsPerMinute: 1,
	})

	fplgentest.WriteFile(t, dir, "a.fpl", "program A {}", time.Time{})
	waitForChange(t, changes)

	// Second burst within the same minute stays deferred
	time.Sleep(150 * time.Millisecond)
	fplgentest.WriteFile(t, dir, "b.fpl", "program B {}", time.Time{})
	assertNoChange(t, changes, 700*time.Millisecond)
}

func TestWatcher_RunTwiceFails(t *testing.T) {
	dir := t.TempDir()

	w, err := watch.New(watch.Config{SourceDir: dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the first Run a moment to claim the watcher
	time.Sleep(50 * time.Millisecond)
	require.Error(t, w.Run(ctx))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
