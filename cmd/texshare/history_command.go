package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"texshare/internal/journal"
	"texshare/internal/xfer"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transfers from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return xfer.Wrap(xfer.ErrConfiguration, "cli", "history", "journal is disabled (journal.enabled = false)", nil)
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No transfers recorded")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.CreatedAt.Local().Format(time.DateTime),
					string(e.Role),
					shortID(e.TransferID),
					describePeer(e.PeerPID, e.PeerUID),
					fmt.Sprintf("%dx%d", e.Width, e.Height),
					e.Format,
					string(e.Status),
					yesNo(e.Verified),
				})
			}
			headers := []string{"ID", "Time", "Role", "Transfer", "Peer", "Size", "Format", "Status", "Verified"}
			aligns := []columnAlignment{alignRight}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 shows all)")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
