package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestOtoTransportWithoutDevice covers the paths that never open a device.
func TestOtoTransportWithoutDevice(t *testing.T) {
	tr := NewOtoTransport(OtoConfig{})
	if tr.config.BufferSize != DefaultOtoConfig().BufferSize {
		t.Errorf("expected default buffer size, got %v", tr.config.BufferSize)
	}

	if err := tr.Configure(Format{SampleRate: 0, WordWidth: WordWidth}); err == nil {
		t.Error("expected an error for a zero sample rate")
	}
	if err := tr.Configure(Format{SampleRate: 8000, WordWidth: 16}); err == nil {
		t.Error("expected an error for a 16-bit word")
	}
	if err := tr.Enable(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if err := tr.Disable(); err != nil {
		t.Errorf("Disable() on an idle transport: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}
	if err := tr.Configure(Format{SampleRate: 8000, WordWidth: WordWidth}); !errors.Is(err, ErrTransportClose) {
		t.Errorf("expected ErrTransportClose, got %v", err)
	}
	if err := tr.Enable(); !errors.Is(err, ErrTransportClose) {
		t.Errorf("expected ErrTransportClose, got %v", err)
	}
}

// TestOtoDrainWaitsForDeviceBuffer checks the drain time follows the buffer.
func TestOtoDrainWaitsForDeviceBuffer(t *testing.T) {
	tr := NewOtoTransport(OtoConfig{BufferSize: 20 * time.Millisecond})

	start := time.Now()
	if err := tr.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("drain returned after %v", elapsed)
	}
}
