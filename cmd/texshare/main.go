package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"texshare/internal/xfer"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(xfer.ExitOK)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		if hint := xfer.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(xfer.ExitCode(err))
	}
}
