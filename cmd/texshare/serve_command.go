package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"texshare/internal/drmwatch"
	"texshare/internal/gpu"
	"texshare/internal/journal"
	"texshare/internal/logging"
	"texshare/internal/session"
	"texshare/internal/xfer"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Render the test texture and hand it to importers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("count") {
				if count < 0 {
					return xfer.Wrap(xfer.ErrConfiguration, "cli", "serve", "--count must be >= 0", nil)
				}
				cfg.Transfer.Count = count
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			gc, err := gpu.NewHeadless(gpu.Options{
				Backend:    cfg.GPU.Backend,
				RenderNode: cfg.GPU.RenderNode,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			defer gc.Close()

			var store *journal.Store
			if cfg.Journal.Enabled {
				store, err = journal.Open(cfg)
				if err != nil {
					logging.WarnWithContext(logger, "journal unavailable", "journal_open_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check journal.path or set journal.enabled = false"),
						logging.String(logging.FieldImpact, "transfers will not appear in history"),
					)
				} else {
					defer store.Close()
				}
			}

			exporter := &session.Exporter{
				Config:  cfg,
				GPU:     gc,
				Logger:  logger,
				Journal: store,
			}
			if cfg.GPU.WatchDevices {
				watcher := drmwatch.New(logger, cfg.GPU.RenderNode)
				if err := watcher.Start(signalCtx); err != nil {
					return fmt.Errorf("start device watcher: %w", err)
				}
				defer watcher.Stop()
				exporter.Watch = watcher
			}
			return exporter.Serve(signalCtx)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Transfers to serve before exiting (0 serves until interrupted)")
	return cmd
}
