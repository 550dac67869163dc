package xfer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"texshare/internal/xfer"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := xfer.Wrap(xfer.ErrTransport, "transport", "send", "short write", base)
	if !errors.Is(err, xfer.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transport", "send", "short write"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRefinedMarkersMatchParents(t *testing.T) {
	cases := []struct {
		err    error
		parent error
	}{
		{xfer.ErrHungUp, xfer.ErrProtocol},
		{xfer.ErrMalformed, xfer.ErrProtocol},
		{xfer.ErrNoHandle, xfer.ErrProtocol},
		{xfer.ErrConnection, xfer.ErrTransport},
		{xfer.ErrImport, xfer.ErrGraphics},
	}
	for _, tc := range cases {
		wrapped := xfer.Wrap(tc.err, "c", "op", "", nil)
		if !errors.Is(wrapped, tc.parent) {
			t.Fatalf("%v should match %v", wrapped, tc.parent)
		}
	}
	if errors.Is(xfer.ErrHungUp, xfer.ErrMalformed) {
		t.Fatal("hung up must stay distinct from malformed")
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, xfer.ExitOK},
		{xfer.Wrap(xfer.ErrHungUp, "transport", "receive", "", nil), xfer.ExitProtocol},
		{xfer.Wrap(xfer.ErrConnection, "transport", "dial", "", nil), xfer.ExitTransport},
		{xfer.Wrap(xfer.ErrUnsupportedFormat, "dmabuf", "export", "", nil), xfer.ExitUnsupported},
		{xfer.Wrap(xfer.ErrImport, "dmabuf", "import", "", nil), xfer.ExitGraphics},
		{xfer.Wrap(xfer.ErrConfiguration, "config", "load", "", nil), xfer.ExitConfig},
		{errors.New("plain"), xfer.ExitFailure},
	}
	for _, tc := range cases {
		if got := xfer.ExitCode(tc.err); got != tc.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := xfer.WithRole(xfer.WithTransferID(context.Background(), "abc"), xfer.RoleImporter)
	if id, ok := xfer.TransferIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("unexpected transfer id %q %v", id, ok)
	}
	if role, ok := xfer.RoleFromContext(ctx); !ok || role != xfer.RoleImporter {
		t.Fatalf("unexpected role %q %v", role, ok)
	}
	if _, ok := xfer.TransferIDFromContext(context.Background()); ok {
		t.Fatal("expected no transfer id on empty context")
	}
}
