package playback

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgnsrekt/wavplay/internal/audio"
	"github.com/dgnsrekt/wavplay/internal/storage"
	"github.com/dgnsrekt/wavplay/internal/wav"
)

// Common errors for playback sessions.
var (
	// Structural errors
	ErrStructural    = errors.New("structural error")
	ErrCorruptHeader = fmt.Errorf("%w: corrupt header", ErrStructural)

	// Storage errors
	ErrIO           = errors.New("I/O error")
	ErrFileNotFound = fmt.Errorf("%w: file not found", ErrIO)

	// Format errors
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrBufferTooSmall    = fmt.Errorf("%w: buffer shorter than worst case refill latency", ErrUnsupportedFormat)

	// Session errors
	ErrSessionActive = errors.New("a session is already open")
	ErrInvalidState  = errors.New("invalid state transition")

	// ErrBufferUnderrun is reported by Stats.Err. Playback goes on through
	// an underrun.
	ErrBufferUnderrun = errors.New("buffer underrun")
)

// IsRecoverableError checks if an error is recoverable. Every session error
// is fatal to the session; only a busy controller is worth retrying.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, ErrSessionActive) || errors.Is(err, ErrBufferUnderrun)
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for warnings that don't prevent operation.
	SeverityWarning
	// SeverityError is for errors that end a session.
	SeverityError
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// PlaybackError provides detailed error information.
type PlaybackError struct {
	Err       error          // The underlying error
	Component string         // Component that generated the error
	Action    string         // Action being performed when error occurred
	State     StateType      // Session state when the error occurred
	Severity  ErrorSeverity  // Severity of the error
	Timestamp time.Time      // When the error occurred
	Context   map[string]any // Additional context
}

// Error implements the error interface.
func (e *PlaybackError) Error() string {
	if e.Err == nil {
		return "unknown playback error"
	}
	if e.Action != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable.
func (e *PlaybackError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

// NewPlaybackError creates a new playback error with context.
func NewPlaybackError(err error, component, action string) *PlaybackError {
	return &PlaybackError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now(),
		Context:   make(map[string]any),
	}
}

// WithSeverity sets the error severity.
func (e *PlaybackError) WithSeverity(severity ErrorSeverity) *PlaybackError {
	e.Severity = severity
	return e
}

// WithState records the session state the error occurred in.
func (e *PlaybackError) WithState(state StateType) *PlaybackError {
	e.State = state
	return e
}

// WithContext adds context to the error.
func (e *PlaybackError) WithContext(key string, value any) *PlaybackError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// classify maps collaborator errors onto the session taxonomy, keeping the
// original error in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStructural), errors.Is(err, ErrIO), errors.Is(err, ErrUnsupportedFormat):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrFileNotFound, err)
	case errors.Is(err, storage.ErrIO), errors.Is(err, storage.ErrUnsupported):
		return fmt.Errorf("%w: %w", ErrIO, err)
	case errors.Is(err, wav.ErrShortHeader),
		errors.Is(err, wav.ErrInvalidContainer),
		errors.Is(err, wav.ErrMissingFormatBlock),
		errors.Is(err, wav.ErrMissingDataBlock):
		return fmt.Errorf("%w: %w", ErrCorruptHeader, err)
	case errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrReconfigure),
		errors.Is(err, audio.ErrInvalidFormat):
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}
