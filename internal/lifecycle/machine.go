package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/metascope/backend/internal/proxy"
)

// Phase is one of the six lifecycle states. Exactly one is active at a time.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseFetching   Phase = "fetching"
	PhaseParsing    Phase = "parsing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// ErrInvalidTransition is returned for a transition the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// State is a snapshot of the machine. URL and StartedAt are meaningful while
// fetching, TimingMillis on completion, Code/Message/Suggestion on error.
type State struct {
	Phase        Phase
	URL          string
	StartedAt    time.Time
	TimingMillis int64
	Code         proxy.Code
	Message      string
	Suggestion   string
}

// Machine drives one fetch attempt from trigger to terminal state.
// Transitions are one-directional per attempt; starting a new attempt always
// resets the elapsed counter, never resumes a stale fetch.
type Machine struct {
	mu    sync.Mutex
	state State

	now          func() time.Time
	tickInterval time.Duration
	onTick       func(State, time.Duration)
	tickStop     chan struct{}
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithTicker installs a display callback invoked on a fixed interval while a
// fetch is in flight. The callback receives the current state and elapsed
// time; it must not block.
func WithTicker(interval time.Duration, onTick func(State, time.Duration)) Option {
	return func(m *Machine) {
		m.tickInterval = interval
		m.onTick = onTick
	}
}

// NewMachine creates a Machine in the Idle state.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state:        State{Phase: PhaseIdle},
		now:          time.Now,
		tickInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Elapsed returns the time since the fetch started, zero outside a fetch.
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked()
}

func (m *Machine) elapsedLocked() time.Duration {
	if m.state.StartedAt.IsZero() {
		return 0
	}
	return m.now().Sub(m.state.StartedAt)
}

// StartAttempt begins a fresh attempt. Legal from Idle and from both
// terminal states; an attempt already in flight must finish or be Reset
// first.
func (m *Machine) StartAttempt(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state.Phase {
	case PhaseIdle, PhaseComplete, PhaseError:
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state.Phase, PhaseValidating)
	}
	m.state = State{Phase: PhaseValidating, URL: url}
	return nil
}

// BeginFetch marks validation as passed, records the start timestamp and
// starts the display ticker.
func (m *Machine) BeginFetch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseValidating {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state.Phase, PhaseFetching)
	}
	m.state.Phase = PhaseFetching
	m.state.StartedAt = m.now()
	m.startTickerLocked()
	return nil
}

// BeginParse marks the response as received. The elapsed counter keeps
// running; only terminal transitions stop it.
func (m *Machine) BeginParse() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseFetching {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state.Phase, PhaseParsing)
	}
	m.state.Phase = PhaseParsing
	return nil
}

// Complete ends the attempt successfully and stops the ticker.
func (m *Machine) Complete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state.Phase {
	case PhaseFetching, PhaseParsing:
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state.Phase, PhaseComplete)
	}
	m.state.TimingMillis = m.elapsedLocked().Milliseconds()
	m.state.Phase = PhaseComplete
	m.stopTickerLocked()
	return nil
}

// Fail ends the attempt with a classified error and stops the ticker.
func (m *Machine) Fail(code proxy.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state.Phase {
	case PhaseValidating, PhaseFetching, PhaseParsing:
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state.Phase, PhaseError)
	}
	p := Present(code)
	m.state.TimingMillis = m.elapsedLocked().Milliseconds()
	m.state.Phase = PhaseError
	m.state.Code = code
	m.state.Message = p.Message
	m.state.Suggestion = p.Suggestion
	m.stopTickerLocked()
	return nil
}

// FailFromResponse classifies a raw (statusCode, message) pair from the
// proxy response and fails with the resulting code.
func (m *Machine) FailFromResponse(statusCode int, message string) error {
	return m.Fail(proxy.Classify(statusCode, message))
}

// Reset returns the machine to Idle from any state and stops the ticker.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{Phase: PhaseIdle}
	m.stopTickerLocked()
}

func (m *Machine) startTickerLocked() {
	if m.onTick == nil || m.tickStop != nil {
		return
	}
	stop := make(chan struct{})
	m.tickStop = stop
	go func() {
		t := time.NewTicker(m.tickInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				m.onTick(m.State(), m.Elapsed())
			}
		}
	}()
}

// stopTickerLocked stops the display ticker. Idempotent, so every terminal
// transition and Reset can call it without double-close.
func (m *Machine) stopTickerLocked() {
	if m.tickStop != nil {
		close(m.tickStop)
		m.tickStop = nil
	}
}
