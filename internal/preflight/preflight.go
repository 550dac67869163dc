package preflight

import (
	"context"
	"path/filepath"

	"texshare/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	socketPath := cfg.SocketPath()
	results := []Result{
		CheckDirectoryAccess("Socket directory", filepath.Dir(socketPath)),
		CheckSocket(socketPath),
		CheckBackend(ctx, cfg.GPU.Backend, cfg.GPU.RenderNode),
		CheckRenderNode(cfg.GPU.Backend, cfg.GPU.RenderNode),
	}
	if cfg.Journal.Enabled {
		results = append(results, CheckDirectoryAccess("Journal directory", filepath.Dir(cfg.Journal.Path)))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
