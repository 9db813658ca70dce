package lifecycle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metascope/backend/internal/proxy"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMachineHappyPath(t *testing.T) {
	clock := newFakeClock()
	m := NewMachine(WithClock(clock.Now))
	assert.Equal(t, PhaseIdle, m.State().Phase)

	require.NoError(t, m.StartAttempt("https://example.com"))
	assert.Equal(t, PhaseValidating, m.State().Phase)
	assert.Equal(t, "https://example.com", m.State().URL)

	require.NoError(t, m.BeginFetch())
	assert.Equal(t, PhaseFetching, m.State().Phase)

	clock.Advance(1200 * time.Millisecond)
	require.NoError(t, m.BeginParse())
	assert.Equal(t, PhaseParsing, m.State().Phase)

	clock.Advance(300 * time.Millisecond)
	require.NoError(t, m.Complete())
	state := m.State()
	assert.Equal(t, PhaseComplete, state.Phase)
	assert.Equal(t, int64(1500), state.TimingMillis)
}

func TestMachineRejectsIllegalTransitions(t *testing.T) {
	m := NewMachine()

	// Nothing in flight yet.
	assert.ErrorIs(t, m.BeginFetch(), ErrInvalidTransition)
	assert.ErrorIs(t, m.BeginParse(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Complete(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Fail(proxy.CodeTimeout), ErrInvalidTransition)

	require.NoError(t, m.StartAttempt("https://example.com"))
	// Cannot restart or skip ahead mid-attempt.
	assert.ErrorIs(t, m.StartAttempt("https://other.com"), ErrInvalidTransition)
	assert.ErrorIs(t, m.BeginParse(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Complete(), ErrInvalidTransition)

	require.NoError(t, m.BeginFetch())
	require.NoError(t, m.BeginParse())
	require.NoError(t, m.Complete())
	// Terminal states only restart.
	assert.ErrorIs(t, m.BeginFetch(), ErrInvalidTransition)
	assert.NoError(t, m.StartAttempt("https://example.com"))
}

func TestMachineFailDuringValidation(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.StartAttempt("not a url"))
	require.NoError(t, m.Fail(proxy.CodeInvalidURL))

	state := m.State()
	assert.Equal(t, PhaseError, state.Phase)
	assert.Equal(t, proxy.CodeInvalidURL, state.Code)
	assert.NotEmpty(t, state.Message)
	assert.NotEmpty(t, state.Suggestion)
}

func TestMachineFailFromResponse(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.StartAttempt("https://example.com"))
	require.NoError(t, m.BeginFetch())
	require.NoError(t, m.FailFromResponse(429, ""))

	state := m.State()
	assert.Equal(t, PhaseError, state.Phase)
	assert.Equal(t, proxy.CodeRateLimited, state.Code)
	assert.Equal(t, "Too many requests right now.", state.Message)
}

func TestMachineNewAttemptResetsElapsed(t *testing.T) {
	clock := newFakeClock()
	m := NewMachine(WithClock(clock.Now))

	require.NoError(t, m.StartAttempt("https://a.test"))
	require.NoError(t, m.BeginFetch())
	clock.Advance(7 * time.Second)
	require.NoError(t, m.Fail(proxy.CodeTimeout))
	assert.Equal(t, int64(7000), m.State().TimingMillis)

	// The retry starts from zero; it never resumes the stale counter.
	require.NoError(t, m.StartAttempt("https://a.test"))
	assert.Equal(t, time.Duration(0), m.Elapsed())
	require.NoError(t, m.BeginFetch())
	clock.Advance(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, m.Elapsed())
}

func TestMachineResetFromAnyState(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.StartAttempt("https://example.com"))
	require.NoError(t, m.BeginFetch())
	m.Reset()
	assert.Equal(t, PhaseIdle, m.State().Phase)
	assert.Equal(t, "", m.State().URL)

	// Reset is safe when already idle.
	m.Reset()
	assert.Equal(t, PhaseIdle, m.State().Phase)
}

func TestMachineTickerRunsDuringFetchOnly(t *testing.T) {
	var ticks atomic.Int64
	m := NewMachine(WithTicker(5*time.Millisecond, func(State, time.Duration) {
		ticks.Add(1)
	}))

	require.NoError(t, m.StartAttempt("https://example.com"))
	assert.Zero(t, ticks.Load())

	require.NoError(t, m.BeginFetch())
	assert.Eventually(t, func() bool { return ticks.Load() >= 2 },
		time.Second, time.Millisecond)

	require.NoError(t, m.Complete())
	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, ticks.Load(), "ticker must stop at the terminal transition")
}

func TestMachineTickerStopIsIdempotent(t *testing.T) {
	m := NewMachine(WithTicker(time.Millisecond, func(State, time.Duration) {}))
	require.NoError(t, m.StartAttempt("https://example.com"))
	require.NoError(t, m.BeginFetch())

	// Terminal transition then Reset both stop the ticker; the second stop
	// must not panic on a closed channel.
	require.NoError(t, m.Complete())
	m.Reset()
	m.Reset()
}

func TestMachineConcurrentSnapshots(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.StartAttempt("https://example.com"))
	require.NoError(t, m.BeginFetch())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.State()
				_ = m.Elapsed()
			}
		}()
	}
	require.NoError(t, m.Complete())
	wg.Wait()
}
