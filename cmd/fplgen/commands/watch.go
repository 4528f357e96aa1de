package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fplgen/fplgen/fpl"
	"github.com/fplgen/fplgen/logger"
	"github.com/fplgen/fplgen/watch"
)

// WatchCmd represents the watch command
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate continuously as definition files change",
	Long: `Run a full generation pass, then keep watching the source tree and
regenerate whenever definition files change.

Bursts of writes are debounced into a single run, and runs are rate limited
(watch.max_runs_per_minute). A failing generation does not stop the watch:
the next change gets another attempt. Runs until interrupted (Ctrl+C).

Example:
  fplgen watch`,
	RunE: runWatch,
}

func init() {
	addScanFlags(WatchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, projectRoot, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)

	pipeline, err := buildPipeline(cmd, cfg, projectRoot, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initial pass before watching. Failures are reported, not fatal: the
	// watch exists so the next edit can fix them.
	if _, err := pipeline.Run(ctx); err != nil {
		logger.Errorw("Initial generation failed", "error", err)
	}

	sc := cfg.ScanConfig(projectRoot)
	includes := sc.Includes
	if len(includes) == 0 {
		includes = fpl.DefaultIncludes
	}

	watcher, err := watch.New(watch.Config{
		SourceDir:        sc.SourceDir,
		Includes:         includes,
		Excludes:         sc.Excludes,
		Debounce:         cfg.DebounceInterval(),
		MaxRunsPerMinute: cfg.Watch.MaxRunsPerMinute,
		OnChange: func(ctx context.Context, changed []string) error {
			_, err := pipeline.Run(ctx)
			return err
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Watching %s for definition changes (Ctrl+C to stop)\n", sc.SourceDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping watcher...")
		cancel()
	}()

	return watcher.Run(ctx)
}
