package playback

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// CancelSource is the asynchronous stop request shared between an input
// source (a key press, a signal handler) and the controller. Anyone may
// raise it; only the controller clears it.
type CancelSource struct {
	flag     atomic.Bool
	c        chan struct{}
	debounce *rate.Sometimes
}

// NewCancelSource creates a cancellation source. Requests arriving within
// debounce of an accepted request are ignored, like a bouncing switch.
func NewCancelSource(debounce time.Duration) *CancelSource {
	s := &CancelSource{c: make(chan struct{}, 1)}
	if debounce > 0 {
		s.debounce = &rate.Sometimes{Interval: debounce}
	}
	return s
}

// Request raises the flag. It never blocks.
func (s *CancelSource) Request() {
	if s.debounce == nil {
		s.raise()
		return
	}
	s.debounce.Do(s.raise)
}

func (s *CancelSource) raise() {
	s.flag.Store(true)
	select {
	case s.c <- struct{}{}:
	default:
	}
}

// Requested reports whether the flag is set.
func (s *CancelSource) Requested() bool {
	return s.flag.Load()
}

// C returns a channel that receives a value when the flag is raised.
func (s *CancelSource) C() <-chan struct{} {
	return s.c
}

// Clear lowers the flag and drops a pending notification.
func (s *CancelSource) Clear() {
	s.flag.Store(false)
	select {
	case <-s.c:
	default:
	}
}
