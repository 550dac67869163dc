package drmwatch

import (
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestBuildMatcher(t *testing.T) {
	w := New(nil, "")
	matcher := w.buildMatcher()

	removeEvent := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "drm", "DEVNAME": "dri/renderD128"},
	}
	if !matcher.Evaluate(removeEvent) {
		t.Error("expected matcher to accept drm removal")
	}

	addEvent := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "drm", "DEVNAME": "dri/renderD128"},
	}
	if matcher.Evaluate(addEvent) {
		t.Error("expected matcher to reject ADD action")
	}

	blockEvent := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVNAME": "sr0"},
	}
	if matcher.Evaluate(blockEvent) {
		t.Error("expected matcher to reject other subsystems")
	}
}

func TestHandleEventReportsWatchedNode(t *testing.T) {
	w := New(nil, "/dev/dri/renderD128")

	w.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "dri/renderD129"}})
	select {
	case got := <-w.Removed():
		t.Fatalf("unexpected report for other node: %s", got)
	default:
	}

	w.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "dri/renderD128"}})
	select {
	case got := <-w.Removed():
		if got != "/dev/dri/renderD128" {
			t.Fatalf("reported %s", got)
		}
	default:
		t.Fatal("expected a removal report")
	}
}

func TestHandleEventDoesNotBlock(t *testing.T) {
	w := New(nil, "")
	for range 3 {
		w.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVPATH": "/devices/pci0000:00/drm/card0"}})
	}
	if got := <-w.Removed(); got != "/dev/dri/card0" {
		t.Fatalf("reported %s", got)
	}
}

func TestNilWatcherIsInert(t *testing.T) {
	var w *Watcher
	if w.Running() {
		t.Fatal("nil watcher reports running")
	}
	if w.Removed() != nil {
		t.Fatal("nil watcher must return a nil channel")
	}
	w.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	w := New(nil, "")
	w.Stop()
	if w.Running() {
		t.Fatal("unstarted watcher reports running")
	}
}
