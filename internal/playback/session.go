package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgnsrekt/wavplay/internal/audio"
	"github.com/dgnsrekt/wavplay/internal/storage"
	"github.com/dgnsrekt/wavplay/internal/wav"
	"github.com/google/uuid"
)

// Stats summarizes a session.
type Stats struct {
	Words      uint64        // transport words produced
	Ticks      uint64        // tick events served
	Underruns  uint64        // ticks that found the buffer empty
	Refills    uint64        // buffer refills, including the prime
	ShortReads uint64        // refills that hit the end of the file
	Prefetches uint64        // blocks read ahead at the watermark
	Elapsed    time.Duration // time between Enable and Disable
	Cancelled  bool          // stopped by a cancellation request
}

// String returns a one line summary.
func (s Stats) String() string {
	return fmt.Sprintf("words=%d ticks=%d underruns=%d refills=%d short=%d prefetched=%d elapsed=%s",
		s.Words, s.Ticks, s.Underruns, s.Refills, s.ShortReads, s.Prefetches, s.Elapsed.Round(time.Millisecond))
}

// Err reports ErrBufferUnderrun when any tick found the buffer empty.
func (s Stats) Err() error {
	if s.Underruns == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d ticks found the buffer empty", ErrBufferUnderrun, s.Underruns)
}

// Session is one pass over one file.
type Session struct {
	ID   string
	Path string

	machine *StateMachine

	mu       sync.RWMutex
	handle   storage.Handle
	desc     *wav.Descriptor
	buf      *audio.StreamBuffer
	pipeline *audio.Pipeline
	started  time.Time
	stopped  time.Time
	enabled  bool
	canceled bool
	err      error
}

func newSession(path string) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Path:    path,
		machine: NewStateMachine(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() StateType {
	return s.machine.Current()
}

// Header returns the parsed header. It reports false before the header has
// been validated.
func (s *Session) Header() (wav.Header, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.desc == nil {
		return wav.Header{}, false
	}
	return s.desc.Header, true
}

// Progress returns the played fraction of the data chunk.
func (s *Session) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.desc == nil {
		return 0
	}
	return s.desc.Progress()
}

// Remaining returns the number of data bytes not yet played.
func (s *Session) Remaining() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.desc == nil {
		return 0
	}
	return s.desc.Remaining()
}

// Err returns the error the session failed with, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	if s.pipeline != nil {
		ps := s.pipeline.Stats()
		st.Words, st.Ticks, st.Underruns = ps.Words, ps.Ticks, ps.Underruns
	}
	if s.buf != nil {
		bs := s.buf.Stats()
		st.Refills, st.ShortReads, st.Prefetches = bs.Refills, bs.ShortReads, bs.Prefetches
	}
	switch {
	case s.started.IsZero():
	case s.stopped.IsZero():
		st.Elapsed = time.Since(s.started)
	default:
		st.Elapsed = s.stopped.Sub(s.started)
	}
	st.Cancelled = s.canceled
	return st
}
