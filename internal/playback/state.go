package playback

import "sync"

// StateType represents where a session is in its lifecycle.
type StateType int

const (
	// StateIdle indicates no file has been requested yet.
	StateIdle StateType = iota
	// StateOpening indicates the file is being opened.
	StateOpening
	// StateHeaderValidated indicates the header parsed cleanly.
	StateHeaderValidated
	// StateConfiguring indicates the transport is being set up.
	StateConfiguring
	// StateStreaming indicates samples are flowing to the transport.
	StateStreaming
	// StateDraining indicates the transport is being stopped.
	StateDraining
	// StateClosed indicates the session released its resources.
	StateClosed
	// StateFailed indicates the session ended with an error.
	StateFailed
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateHeaderValidated:
		return "header-validated"
	case StateConfiguring:
		return "configuring"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves the state.
func (s StateType) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// StateMachine manages state transitions for a session.
type StateMachine struct {
	mu          sync.RWMutex
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
	onChange    func(from, to StateType)
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:            {StateOpening, StateFailed},
			StateOpening:         {StateHeaderValidated, StateFailed},
			StateHeaderValidated: {StateConfiguring, StateFailed},
			StateConfiguring:     {StateStreaming, StateFailed},
			StateStreaming:       {StateDraining, StateFailed},
			StateDraining:        {StateClosed, StateFailed},
		},
		onEnter: make(map[StateType]func()),
	}
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to StateType) bool {
	sm.mu.Lock()
	from := sm.current
	valid := false
	for _, state := range sm.transitions[from] {
		if state == to {
			valid = true
			break
		}
	}
	if !valid {
		sm.mu.Unlock()
		return false
	}
	sm.current = to
	enterFn := sm.onEnter[to]
	changeFn := sm.onChange
	sm.mu.Unlock()

	if enterFn != nil {
		enterFn()
	}
	if changeFn != nil {
		changeFn(from, to)
	}
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onEnter[state] = fn
}

// OnChange registers a callback run after every transition.
func (sm *StateMachine) OnChange(fn func(from, to StateType)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onChange = fn
}
