package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockTransport implements Transport for testing purposes. Ticks happen only
// when the test pumps them, or on a clock started with Run.
type MockTransport struct {
	gate tickGate

	mu         sync.Mutex
	format     Format
	configured bool
	closed     bool
	words      []uint32
	events     []string

	// Test callbacks
	callbacks MockCallbacks

	// Failure injection
	configureErr error
	enableErr    error

	// Metrics for testing
	configureCount atomic.Int64
	enableCount    atomic.Int64
	disableCount   atomic.Int64
	closeCount     atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnConfigure func(f Format)
	OnEnable    func()
	OnDisable   func()
	OnWord      func(w uint32)
	// OnTick runs inside each tick, before the handler, with the tick
	// number counted from one.
	OnTick func(n uint64)
}

// MockTransportMetrics contains call counts for testing.
type MockTransportMetrics struct {
	ConfigureCount int64
	EnableCount    int64
	DisableCount   int64
	CloseCount     int64
	Ticks          uint64
}

// NewMockTransport creates a new mock transport with custom callbacks.
func NewMockTransport(callbacks MockCallbacks) *MockTransport {
	return &MockTransport{callbacks: callbacks}
}

// Configure records the format.
func (m *MockTransport) Configure(f Format) error {
	m.configureCount.Add(1)
	if err := f.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.configureErr != nil {
		err := m.configureErr
		m.mu.Unlock()
		return err
	}
	if m.gate.enabled.Load() {
		m.mu.Unlock()
		return ErrReconfigure
	}
	m.format = f
	m.configured = true
	m.events = append(m.events, "configure")
	m.mu.Unlock()

	if m.callbacks.OnConfigure != nil {
		m.callbacks.OnConfigure(f)
	}
	return nil
}

// SetTickHandler registers the periodic callback.
func (m *MockTransport) SetTickHandler(fn TickFunc) {
	if fn != nil && m.callbacks.OnTick != nil {
		handler := fn
		fn = func(w WordWriter) error {
			m.callbacks.OnTick(m.gate.ticks.Load())
			return handler(w)
		}
	}
	m.gate.setHandler(fn)
}

// Faults reports failures injected with Fail or returned by the handler.
func (m *MockTransport) Faults() <-chan error {
	return m.gate.faultChan()
}

// Fail stops the clock as a broken device would.
func (m *MockTransport) Fail(err error) {
	m.gate.fail(err)
}

// Enable allows ticks to run.
func (m *MockTransport) Enable() error {
	m.enableCount.Add(1)

	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrTransportClose
	case !m.configured:
		m.mu.Unlock()
		return ErrNotConfigured
	case m.enableErr != nil:
		err := m.enableErr
		m.mu.Unlock()
		return err
	}
	m.events = append(m.events, "enable")
	m.mu.Unlock()

	m.gate.enable()
	if m.callbacks.OnEnable != nil {
		m.callbacks.OnEnable()
	}
	return nil
}

// Disable stops ticks, waiting for one in flight.
func (m *MockTransport) Disable() error {
	m.disableCount.Add(1)
	m.gate.disable()
	m.collect()

	m.mu.Lock()
	m.events = append(m.events, "disable")
	m.mu.Unlock()
	if m.callbacks.OnDisable != nil {
		m.callbacks.OnDisable()
	}
	return nil
}

// WriteWord queues a word as if it came from a tick.
func (m *MockTransport) WriteWord(w uint32) error {
	m.gate.mu.Lock()
	err := m.gate.fifo.WriteWord(w)
	m.gate.mu.Unlock()
	if err != nil {
		return err
	}
	m.collect()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.closeCount.Add(1)
	m.gate.disable()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.events = append(m.events, "close")
	return nil
}

// Pump runs up to n ticks synchronously and returns how many ran. It stops
// early once the transport is disabled.
func (m *MockTransport) Pump(n int) int {
	ran := 0
	for i := 0; i < n; i++ {
		if !m.gate.tick() {
			break
		}
		ran++
		m.collect()
	}
	return ran
}

// Run ticks every interval until ctx is done. Ticks are skipped while the
// transport is disabled.
func (m *MockTransport) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.gate.tick() {
				m.collect()
			}
		}
	}
}

// WaitForEnd waits until a tick handler reports end of stream.
func (m *MockTransport) WaitForEnd(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.gate.ended.Load() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return m.gate.ended.Load()
}

// Words returns a copy of every word written so far.
func (m *MockTransport) Words() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	words := make([]uint32, len(m.words))
	copy(words, m.words)
	return words
}

// Events returns the order of configure/enable/disable/close calls.
func (m *MockTransport) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]string, len(m.events))
	copy(events, m.events)
	return events
}

// Enabled reports whether ticks may run.
func (m *MockTransport) Enabled() bool {
	return m.gate.enabled.Load()
}

// Ended reports whether a tick handler returned end of stream.
func (m *MockTransport) Ended() bool {
	return m.gate.ended.Load()
}

// Format returns the last configured format.
func (m *MockTransport) Format() Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format
}

// SetConfigureError makes Configure fail with err.
func (m *MockTransport) SetConfigureError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configureErr = err
}

// SetEnableError makes Enable fail with err.
func (m *MockTransport) SetEnableError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enableErr = err
}

// GetMetrics returns call counts for testing.
func (m *MockTransport) GetMetrics() MockTransportMetrics {
	return MockTransportMetrics{
		ConfigureCount: m.configureCount.Load(),
		EnableCount:    m.enableCount.Load(),
		DisableCount:   m.disableCount.Load(),
		CloseCount:     m.closeCount.Load(),
		Ticks:          m.gate.ticks.Load(),
	}
}

func (m *MockTransport) collect() {
	m.gate.drain(func(w uint32) {
		m.mu.Lock()
		m.words = append(m.words, w)
		m.mu.Unlock()
		if m.callbacks.OnWord != nil {
			m.callbacks.OnWord(w)
		}
	})
}
