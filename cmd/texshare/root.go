package main

import (
	"github.com/spf13/cobra"

	_ "texshare/internal/gpu/egl"
	_ "texshare/internal/gpu/software"
)

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string
	var backendFlag string

	ctx := newCommandContext(&socketFlag, &configFlag, &backendFlag)

	rootCmd := &cobra.Command{
		Use:           "texshare",
		Short:         "Share GPU textures between processes over DMA-BUF",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Socket path (overrides transport.socket_path)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Graphics backend (overrides gpu.backend)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newABICommand())
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
