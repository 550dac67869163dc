// Package drmwatch notices when a DRM device disappears so an exporter can
// stop serving buffers that no longer have a backing GPU.
package drmwatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"texshare/internal/logging"
)

// RenderNodeGlob matches DRM render nodes.
const RenderNodeGlob = "/dev/dri/renderD*"

// Watcher listens for udev netlink events and reports DRM device removals.
type Watcher struct {
	logger  *slog.Logger
	node    string
	removed chan string

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// New creates a watcher. node restricts reports to one device path such as
// /dev/dri/renderD128; empty reports every DRM removal.
func New(logger *slog.Logger, node string) *Watcher {
	return &Watcher{
		logger:  logging.NewComponentLogger(logger, "drmwatch"),
		node:    strings.TrimSpace(node),
		removed: make(chan string, 1),
	}
}

// Removed delivers the device path of a removed DRM node. Reports that
// arrive while an earlier one is still unread are dropped.
func (w *Watcher) Removed() <-chan string {
	if w == nil {
		return nil
	}
	return w.removed
}

// Start begins listening for udev netlink events. Failure to open the
// netlink socket is logged and leaves the watcher idle.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("failed to connect to netlink socket; device removal will go unnoticed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the process may open NETLINK_KOBJECT_UEVENT sockets"),
			logging.String(logging.FieldImpact, "exporter keeps serving if the GPU is unplugged"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.monitorLoop(ctx, conn, quit)

	w.logger.Info("drm watcher started",
		logging.String(logging.FieldEventType, "drm_watch_started"),
		logging.String("node", w.node),
	)
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false

	w.logger.Debug("drm watcher stopped",
		logging.String(logging.FieldEventType, "drm_watch_stopped"),
	)
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, w.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.handleEvent(uevent)
		case err := <-errs:
			w.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device removal may go unnoticed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=drm, ACTION=remove.
func (w *Watcher) buildMatcher() netlink.Matcher {
	action := "remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "drm",
		},
	})
	return rules
}

func (w *Watcher) handleEvent(uevent netlink.UEvent) {
	devname := deviceName(uevent)
	if devname == "" {
		w.logger.Debug("ignoring drm event without device name",
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	if w.node != "" && devname != w.node {
		w.logger.Debug("ignoring removal of another drm device",
			logging.String("device", devname),
			logging.String("watched", w.node),
		)
		return
	}

	w.logger.Warn("drm device removed",
		logging.String(logging.FieldEventType, "drm_device_removed"),
		logging.String("device", devname),
		logging.String(logging.FieldErrorHint, "reconnect the GPU and restart the exporter"),
		logging.String(logging.FieldImpact, "buffers from this device can no longer be shared"),
	)
	select {
	case w.removed <- devname:
	default:
	}
}

// deviceName gets the device path from a uevent. Kernel uevents carry
// DEVNAME relative to /dev (e.g. dri/renderD128).
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !filepath.IsAbs(devname) {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	return "/dev/dri/" + filepath.Base(devpath)
}

// RenderNodes lists the DRM render nodes present on the host.
func RenderNodes() ([]string, error) {
	nodes, err := filepath.Glob(RenderNodeGlob)
	if err != nil {
		return nil, err
	}
	sort.Strings(nodes)
	return nodes, nil
}
