package storage

import "time"

// Latency wraps a Storage so that every read first waits for a fixed delay,
// like a block device with a slow access time.
type Latency struct {
	Storage
	Delay time.Duration
}

// WithLatency returns s with a per-read delay. A zero delay returns s.
func WithLatency(s Storage, delay time.Duration) Storage {
	if delay <= 0 {
		return s
	}
	return &Latency{Storage: s, Delay: delay}
}

// Open opens path on the wrapped storage.
func (l *Latency) Open(path string) (Handle, error) {
	h, err := l.Storage.Open(path)
	if err != nil {
		return nil, err
	}
	return &slowHandle{Handle: h, delay: l.Delay}, nil
}

type slowHandle struct {
	Handle
	delay time.Duration
}

func (h *slowHandle) Read(p []byte) (int, error) {
	time.Sleep(h.delay)
	return h.Handle.Read(p)
}
