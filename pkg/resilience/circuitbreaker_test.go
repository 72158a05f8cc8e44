package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 2, Cooldown: time.Second})
	b.now = func() time.Time { return now }
	boom := errors.New("boom")

	calls := 0
	fail := func() error { calls++; return boom }
	ok := func() error { calls++; return nil }

	assert.ErrorIs(t, b.Do(fail), boom)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(fail), boom)
	assert.Equal(t, StateOpen, b.State())

	assert.ErrorIs(t, b.Do(ok), ErrCircuitOpen)
	assert.Equal(t, 2, calls, "open breaker skips the call")

	now = now.Add(time.Second)
	assert.ErrorIs(t, b.Do(fail), boom, "probe runs after the cooldown")
	assert.Equal(t, StateOpen, b.State(), "failed probe reopens")
	assert.ErrorIs(t, b.Do(ok), ErrCircuitOpen)

	now = now.Add(time.Second)
	require.NoError(t, b.Do(ok))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 4, calls)
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 2})
	boom := errors.New("boom")
	_ = b.Do(func() error { return boom })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return boom })
	assert.Equal(t, StateClosed, b.State())
}

func TestNilBreaker(t *testing.T) {
	var b *Breaker
	called := false
	require.NoError(t, b.Do(func() error { called = true; return nil }))
	assert.True(t, called)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
