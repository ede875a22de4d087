package wav

import (
	"errors"
	"testing"
	"time"
)

func minimalMono() []byte {
	h := NewPCMHeader(8000, 1, 4)
	return append(h.Bytes(), 0x01, 0x00, 0x02, 0x00)
}

// TestParse tests decoding of a valid header.
func TestParse(t *testing.T) {
	d, err := Parse(minimalMono())
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	if d.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", d.Channels)
	}
	if d.SampleRate != 8000 {
		t.Errorf("expected sample rate 8000, got %d", d.SampleRate)
	}
	if d.BitsPerSample != 16 {
		t.Errorf("expected 16 bits, got %d", d.BitsPerSample)
	}
	if d.BlockAlign != 2 {
		t.Errorf("expected block align 2, got %d", d.BlockAlign)
	}
	if d.ByteRate != 16000 {
		t.Errorf("expected byte rate 16000, got %d", d.ByteRate)
	}
	if d.DataSize != 4 {
		t.Errorf("expected data size 4, got %d", d.DataSize)
	}
	if d.Remaining() != 4 {
		t.Errorf("expected remaining 4, got %d", d.Remaining())
	}
	if d.FileSize != 40 {
		t.Errorf("expected file size 40, got %d", d.FileSize)
	}
}

// TestParseIsPure tests that identical bytes give identical descriptors.
func TestParseIsPure(t *testing.T) {
	b := minimalMono()
	d1, err := Parse(b)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := Parse(b)
	if err != nil {
		t.Fatal(err)
	}
	if d1.Header != d2.Header {
		t.Errorf("descriptors differ:\n%+v\n%+v", d1.Header, d2.Header)
	}
	if d1.Remaining() != d2.Remaining() {
		t.Errorf("remaining differs: %d vs %d", d1.Remaining(), d2.Remaining())
	}
}

// TestParseStructuralErrors tests the tag checks and their order.
func TestParseStructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(b []byte)
		want    error
		offset  int
	}{
		{
			name:    "outer tag",
			corrupt: func(b []byte) { copy(b[0:4], "RIFX") },
			want:    ErrInvalidContainer,
			offset:  0,
		},
		{
			name:    "wave literal",
			corrupt: func(b []byte) { copy(b[8:12], "AVI ") },
			want:    ErrInvalidContainer,
			offset:  8,
		},
		{
			name:    "format tag",
			corrupt: func(b []byte) { copy(b[12:16], "junk") },
			want:    ErrMissingFormatBlock,
			offset:  12,
		},
		{
			name:    "data tag",
			corrupt: func(b []byte) { copy(b[36:40], "LIST") },
			want:    ErrMissingDataBlock,
			offset:  36,
		},
		{
			name: "outer tag wins over data tag",
			corrupt: func(b []byte) {
				copy(b[0:4], "XXXX")
				copy(b[36:40], "XXXX")
			},
			want:   ErrInvalidContainer,
			offset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := minimalMono()
			tt.corrupt(b)

			d, err := Parse(b)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if d != nil {
				t.Errorf("expected no descriptor, got %+v", d.Header)
			}

			var tagErr *TagError
			if !errors.As(err, &tagErr) {
				t.Fatalf("expected *TagError, got %T", err)
			}
			if tagErr.Offset != tt.offset {
				t.Errorf("expected offset %d, got %d", tt.offset, tagErr.Offset)
			}
		})
	}
}

// TestParseShortWindow tests that windows under 44 bytes are rejected.
func TestParseShortWindow(t *testing.T) {
	b := minimalMono()[:43]
	d, err := Parse(b)
	if !errors.Is(err, ErrShortHeader) {
		t.Errorf("expected ErrShortHeader, got %v", err)
	}
	if d != nil {
		t.Error("expected nil descriptor")
	}
}

// TestParseNoRangeValidation tests that odd but well formed headers parse.
func TestParseNoRangeValidation(t *testing.T) {
	h := NewPCMHeader(12345, 7, 0)
	h.BitsPerSample = 24
	h.AudioFormat = 0x11
	h.FmtSize = 20

	d, err := Parse(h.Bytes())
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if d.Header != h {
		t.Errorf("expected %+v, got %+v", h, d.Header)
	}
}

// TestDescriptorConsume tests the remaining byte accounting.
func TestDescriptorConsume(t *testing.T) {
	d, err := Parse(minimalMono())
	if err != nil {
		t.Fatal(err)
	}

	if rem, ok := d.Consume(2); !ok || rem != 2 {
		t.Errorf("Consume(2) = %d, %v; want 2, true", rem, ok)
	}
	if rem, ok := d.Consume(4); ok || rem != 2 {
		t.Errorf("Consume(4) = %d, %v; want 2, false", rem, ok)
	}
	if rem, ok := d.Consume(2); !ok || rem != 0 {
		t.Errorf("Consume(2) = %d, %v; want 0, true", rem, ok)
	}
	if d.Progress() != 1 {
		t.Errorf("expected progress 1, got %f", d.Progress())
	}
}

// TestDescriptorTruncate tests that truncation only lowers the count.
func TestDescriptorTruncate(t *testing.T) {
	d, err := Parse(minimalMono())
	if err != nil {
		t.Fatal(err)
	}

	d.Truncate(10)
	if d.Remaining() != 4 {
		t.Errorf("expected 4, got %d", d.Remaining())
	}
	d.Truncate(2)
	if d.Remaining() != 2 {
		t.Errorf("expected 2, got %d", d.Remaining())
	}
	d.Drain()
	if d.Remaining() != 0 {
		t.Errorf("expected 0, got %d", d.Remaining())
	}
}

func TestHeaderDuration(t *testing.T) {
	h := NewPCMHeader(8000, 2, 32000)
	if got := h.Duration(); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}
	if got := h.FrameBytes(); got != 4 {
		t.Errorf("expected 4 frame bytes, got %d", got)
	}
}
