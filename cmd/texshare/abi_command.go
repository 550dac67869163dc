package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"texshare/internal/cmsg"
	"texshare/internal/gpu"
	"texshare/internal/wire"
)

func newABICommand() *cobra.Command {
	return &cobra.Command{
		Use:         "abi",
		Short:       "Print the control-message layout and compiled-in backends",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"handle size", fmt.Sprint(cmsg.HandleSize)},
				{"rights space", fmt.Sprint(cmsg.RightsSpace)},
				{"rights len", fmt.Sprint(cmsg.RightsLen)},
				{"data offset", fmt.Sprint(cmsg.DataOffset())},
				{"announce version", fmt.Sprint(wire.Version)},
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Bytes"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "Backends: %s\n", strings.Join(gpu.Backends(), ", "))
			return nil
		},
	}
}
