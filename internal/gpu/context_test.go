package gpu_test

import (
	"errors"
	"slices"
	"testing"

	"texshare/internal/gpu"
	"texshare/internal/xfer"
)

type closeCounter struct {
	gpu.Driver
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

var failing = errors.New("no display")

func init() {
	gpu.Register("test-failing", func(gpu.Options) (gpu.Driver, error) {
		return nil, failing
	})
	gpu.Register("test-ok", func(gpu.Options) (gpu.Driver, error) {
		return &closeCounter{}, nil
	})
}

func TestNewHeadlessUnknownBackend(t *testing.T) {
	_, err := gpu.NewHeadless(gpu.Options{Backend: "vulkan-someday"})
	if !errors.Is(err, xfer.ErrGraphics) {
		t.Fatalf("expected ErrGraphics, got %v", err)
	}
}

func TestNewHeadlessWrapsOpenerFailure(t *testing.T) {
	_, err := gpu.NewHeadless(gpu.Options{Backend: "test-failing"})
	if !errors.Is(err, xfer.ErrGraphics) {
		t.Fatalf("expected ErrGraphics, got %v", err)
	}
	if !errors.Is(err, failing) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestContextCloseIsIdempotent(t *testing.T) {
	gc, err := gpu.NewHeadless(gpu.Options{Backend: " Test-OK "})
	if err != nil {
		t.Fatalf("NewHeadless: %v", err)
	}
	if gc.Backend() != "test-ok" {
		t.Fatalf("backend = %q", gc.Backend())
	}
	for range 2 {
		if err := gc.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	if n := gc.Driver().(*closeCounter).closes; n != 1 {
		t.Fatalf("driver closed %d times", n)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	gpu.Register("test-ok", func(gpu.Options) (gpu.Driver, error) { return nil, nil })
}

func TestBackendsSorted(t *testing.T) {
	names := gpu.Backends()
	if !slices.IsSorted(names) {
		t.Fatalf("Backends not sorted: %v", names)
	}
	if !slices.Contains(names, "test-ok") {
		t.Fatalf("missing test backend: %v", names)
	}
}

func TestStepErrorNamesStep(t *testing.T) {
	err := gpu.StepError("egl", "choose config", nil)
	if !errors.Is(err, xfer.ErrGraphics) {
		t.Fatalf("expected ErrGraphics, got %v", err)
	}
	if got := err.Error(); got != "graphics error: gpu: egl: choose config" {
		t.Fatalf("unexpected message %q", got)
	}
}
