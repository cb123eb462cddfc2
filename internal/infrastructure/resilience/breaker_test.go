package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(settings Settings) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := New("test", settings)
	b.now = clock.now
	b.newGeneration(clock.now())
	return b, clock
}

func tripAfter(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

func outcome(ok bool) func() error {
	return func() error {
		if ok {
			return nil
		}
		return errFailed
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{Timeout: time.Minute},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(3)},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "success resets the failure streak",
			settings:      Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(2)},
			requests:      []bool{false, true, false, true},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(tt.settings)
			for _, ok := range tt.requests {
				_ = b.Do(outcome(ok))
			}
			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	b, _ := newTestBreaker(Settings{Interval: time.Minute})

	require.NoError(t, b.Do(outcome(true)))
	counts := b.Counts()
	assert.Equal(t, Counts{Requests: 1, TotalSuccesses: 1, ConsecutiveSuccesses: 1}, counts)

	assert.ErrorIs(t, b.Do(outcome(false)), errFailed)
	counts = b.Counts()
	assert.Equal(t, Counts{Requests: 2, TotalSuccesses: 1, TotalFailures: 1, ConsecutiveFailures: 1}, counts)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	b, clock := newTestBreaker(Settings{Interval: time.Minute, ReadyToTrip: tripAfter(2)})

	_ = b.Do(outcome(false))
	clock.advance(2 * time.Minute)
	_ = b.Do(outcome(false))

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerOpenRejects(t *testing.T) {
	b, _ := newTestBreaker(Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(2)})

	_ = b.Do(outcome(false))
	_ = b.Do(outcome(false))
	require.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpen(t *testing.T) {
	b, clock := newTestBreaker(Settings{
		MaxRequests: 2,
		Timeout:     50 * time.Millisecond,
		ReadyToTrip: tripAfter(2),
	})

	_ = b.Do(outcome(false))
	_ = b.Do(outcome(false))
	require.Equal(t, StateOpen, b.State())

	clock.advance(60 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(outcome(true)))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(outcome(true)))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1)})

	_ = b.Do(outcome(false))
	clock.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	_ = b.Do(outcome(false))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	b, clock := newTestBreaker(Settings{MaxRequests: 1, Timeout: time.Second, ReadyToTrip: tripAfter(1)})

	_ = b.Do(outcome(false))
	clock.advance(2 * time.Second)

	err := b.Do(func() error {
		// a second probe while the first is still in flight
		assert.ErrorIs(t, b.Do(outcome(true)), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIsSuccessful(t *testing.T) {
	errCaller := errors.New("caller mistake")
	b, _ := newTestBreaker(Settings{
		Timeout:      time.Minute,
		ReadyToTrip:  tripAfter(1),
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errCaller) },
	})

	assert.ErrorIs(t, b.Do(func() error { return errCaller }), errCaller)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().TotalSuccesses)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(1)})

	assert.Panics(t, func() {
		_ = b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestExecute(t *testing.T) {
	b, _ := newTestBreaker(Settings{})

	v, err := Execute(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = Execute(b, func() (string, error) { return "", errFailed })
	assert.ErrorIs(t, err, errFailed)
}

func TestBreakerCallbacks(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(Settings{
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: tripAfter(2),
		OnStateChange: func(name string, from State, to State) {
			assert.Equal(t, "test", name)
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Do(outcome(false))
	_ = b.Do(outcome(false))
	clock.advance(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(outcome(true)))

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
