package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"texshare/internal/config"
	"texshare/internal/gpu"
	"texshare/internal/journal"
	"texshare/internal/logging"
	"texshare/internal/session"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var snapshot string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Import the exporter's texture and verify its pixels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
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
				if store, err = journal.Open(cfg); err == nil {
					defer store.Close()
				} else {
					logger.Warn("journal unavailable", logging.Error(err))
					store = nil
				}
			}

			if snapshot = strings.TrimSpace(snapshot); snapshot != "" {
				if snapshot, err = config.ExpandPath(snapshot); err != nil {
					return err
				}
			}

			importer := &session.Importer{
				Config:       cfg,
				GPU:          gc,
				Logger:       logger,
				Journal:      store,
				SnapshotPath: snapshot,
			}
			res, err := importer.Fetch(signalCtx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			source := "config"
			if res.Metadata {
				source = "announce"
			}
			fmt.Fprintf(out, "Transfer:  %s\n", res.TransferID)
			fmt.Fprintf(out, "Peer:      %s\n", describePeer(res.Peer.PID, res.Peer.UID))
			fmt.Fprintf(out, "Size:      %dx%d\n", res.Width, res.Height)
			fmt.Fprintf(out, "Layout:    %s %s stride=%d offset=%d (%s)\n", res.Format, res.Modifier, res.Stride, res.Offset, source)
			if res.Digest != "" {
				fmt.Fprintf(out, "Digest:    %s\n", res.Digest)
			}
			if snapshot != "" {
				fmt.Fprintf(out, "Snapshot:  %s\n", snapshot)
			}
			if !cfg.Transfer.Verify {
				fmt.Fprintln(out, "Verified:  skipped")
				return nil
			}
			fmt.Fprintf(out, "Verified:  %s\n", yesNo(res.Verified))
			if !res.Verified {
				if res.Mismatch != nil {
					return fmt.Errorf("%w: %s", session.ErrVerification, res.Mismatch)
				}
				return session.ErrVerification
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Write the imported pixels to this BMP file")
	return cmd
}
