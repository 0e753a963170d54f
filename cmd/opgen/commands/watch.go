package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/opgen/am"
	"github.com/teranos/opgen/generator"
	"github.com/teranos/opgen/logger"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the registration file when sources change",
		Long: `Run a pass, then run another one whenever a file under the source
directory changes. Bursts of changes are collapsed into one pass
(watch.debounce_ms). Failed passes are reported and leave the last good file
in place.

Editing the config file in use restarts the watch with the new settings.

Examples:
  opgen watch                        # Watch source.dir
  opgen watch -vv                    # Log every pass in detail`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireFileOutput(cfg, "watch"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := cmd.ErrOrStderr()
	reloads := make(chan struct{}, 1)
	if path := am.GetViper().ConfigFileUsed(); path != "" {
		cw, err := am.NewConfigWatcher(path)
		if err != nil {
			logger.Warnw("Config changes will not restart the watch", logger.FieldError, err)
		} else {
			cw.OnReload(func(*am.Config) error {
				select {
				case reloads <- struct{}{}:
				default:
				}
				return nil
			})
			am.SetGlobalWatcher(cw)
			defer am.SetGlobalWatcher(nil)
			go func() {
				if err := cw.Run(ctx); err != nil {
					logger.Warnw("Config watcher stopped", logger.FieldError, err)
				}
			}()
		}
	}

	configFile, _ := cmd.Flags().GetString("config")
	for {
		runCtx, cancelRun := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func(cfg *am.Config) {
			done <- watchSources(runCtx, cfg, status)
		}(cfg)

		select {
		case err := <-done:
			cancelRun()
			return err
		case <-reloads:
			cancelRun()
			if err := <-done; err != nil {
				return err
			}
		}

		// Rebind flags so command-line overrides survive the reload
		am.SetConfigFile(configFile)
		if err := bindFlags(cmd.Flags()); err != nil {
			return err
		}
		next, err := loadConfig()
		if err != nil {
			pterm.Warning.WithWriter(status).Printfln("Keeping previous configuration: %v", err)
			continue
		}
		cfg = next
		pterm.Info.WithWriter(status).Println("Configuration reloaded")
	}
}

// watchSources runs a source watcher for cfg until ctx is done.
func watchSources(ctx context.Context, cfg *am.Config, status io.Writer) error {
	gen, err := newGenerator(ctx, cfg, generator.NewFilePublisher(cfg.Output.Path))
	if err != nil {
		return err
	}

	roots := []string{cfg.Source.Dir}
	if cfg.Source.Mode == am.SourceModeManifest {
		roots = []string{filepath.Dir(cfg.Source.Manifest)}
	}
	w, err := generator.NewWatcher(gen, generator.WatchConfig{
		Roots:    roots,
		Ignore:   []string{cfg.Output.Path},
		Debounce: cfg.WatchDebounce(),
		OnPass: func(res *generator.Result, err error) {
			if err != nil {
				if ctx.Err() == nil {
					pterm.Error.WithWriter(status).Printfln("Pass failed: %v", err)
				}
				return
			}
			pterm.Success.WithWriter(status).Printfln("Registered %d controller(s) in %s (%s)",
				len(res.Pairs), displayPath(cfg.Output.Path), res.Duration.Round(time.Millisecond))
		},
	})
	if err != nil {
		return err
	}

	pterm.Info.WithWriter(status).Printfln("Watching %s (Ctrl+C to stop)", strings.Join(roots, ", "))
	return w.Run(ctx)
}
