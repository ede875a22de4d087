package playback

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dgnsrekt/wavplay/internal/audio"
	"github.com/dgnsrekt/wavplay/internal/storage"
	"github.com/dgnsrekt/wavplay/internal/wav"
)

// TestErrorHierarchy tests which sentinels wrap which.
func TestErrorHierarchy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		parent error
	}{
		{"corrupt header is structural", ErrCorruptHeader, ErrStructural},
		{"missing file is I/O", ErrFileNotFound, ErrIO},
		{"small buffer is a format problem", ErrBufferTooSmall, ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.parent) {
				t.Errorf("%v does not wrap %v", tt.err, tt.parent)
			}
		})
	}
}

// TestClassify tests mapping collaborator errors onto the taxonomy.
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"not found", fmt.Errorf("%w: /a.wav", storage.ErrNotFound), ErrFileNotFound},
		{"storage I/O", fmt.Errorf("%w: read", storage.ErrIO), ErrIO},
		{"short header", wav.ErrShortHeader, ErrCorruptHeader},
		{"bad container", wav.ErrInvalidContainer, ErrStructural},
		{"missing fmt", wav.ErrMissingFormatBlock, ErrCorruptHeader},
		{"pipeline format", audio.ErrUnsupportedFormat, ErrUnsupportedFormat},
		{"reconfigure", audio.ErrReconfigure, ErrUnsupportedFormat},
		{"transport format", audio.ErrInvalidFormat, ErrUnsupportedFormat},
		{"already classified", ErrBufferTooSmall, ErrBufferTooSmall},
		{"anything else", errors.New("bad sector"), ErrIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classify(%v) dropped the original error", tt.err)
			}
		})
	}
}

// TestPlaybackError tests the detailed error type.
func TestPlaybackError(t *testing.T) {
	err := NewPlaybackError(ErrCorruptHeader, "session", "parse header").
		WithState(StateOpening).
		WithContext("path", "/a.wav")

	if !strings.Contains(err.Error(), "session: parse header") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrStructural) {
		t.Error("expected the error to unwrap to ErrStructural")
	}
	if err.Severity != SeverityError {
		t.Errorf("expected severity error, got %s", err.Severity)
	}
	if err.State != StateOpening {
		t.Errorf("expected state opening, got %s", err.State)
	}
	if err.Context["path"] != "/a.wav" {
		t.Errorf("expected path in context, got %v", err.Context)
	}
	if err.IsRecoverable() {
		t.Error("a corrupt header is not recoverable")
	}

	busy := NewPlaybackError(ErrSessionActive, "controller", "").WithSeverity(SeverityWarning)
	if busy.Error() != "controller: "+ErrSessionActive.Error() {
		t.Errorf("unexpected message %q", busy.Error())
	}
	if !busy.IsRecoverable() {
		t.Error("a busy controller is recoverable")
	}

	var empty PlaybackError
	if empty.Error() != "unknown playback error" {
		t.Errorf("unexpected message %q", empty.Error())
	}
}

// TestErrorSeverityString tests severity names.
func TestErrorSeverityString(t *testing.T) {
	tests := []struct {
		severity ErrorSeverity
		expected string
	}{
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{ErrorSeverity(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.severity.String(); got != tt.expected {
			t.Errorf("ErrorSeverity(%d).String() = %q, want %q", tt.severity, got, tt.expected)
		}
	}
}
