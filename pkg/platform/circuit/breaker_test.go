package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run feeds a script of 'F' (failure) and 'S' (success) to b and returns the
// state after each call.
func run(b *Breaker, script string) []State {
	states := make([]State, 0, len(script))
	for _, c := range script {
		if c == 'F' {
			b.RecordFailure()
		} else {
			b.RecordSuccess()
		}
		states = append(states, b.State())
	}
	return states
}

func TestBreakerTransitions(t *testing.T) {
	const (
		c = StateClosed
		o = StateOpen
	)
	tests := []struct {
		name   string
		opts   []Option
		script string
		want   []State
	}{
		{"defaults open on the fifth failure", nil, "FFFFF", []State{c, c, c, c, o}},
		{"success clears the failure streak", []Option{WithFailureThreshold(3)}, "FFSFFF", []State{c, c, c, c, c, o}},
		{"closing needs consecutive successes", []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, "FSS", []State{o, o, c}},
		{"failure while open restarts the success streak", []Option{WithFailureThreshold(1), WithSuccessThreshold(3)}, "FSSFSSS", []State{o, o, o, o, o, o, c}},
		{"non-positive options keep defaults", []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)}, "FFFFFS", []State{c, c, c, c, o, c}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := New("ledger-node", tc.opts...)
			assert.Equal(t, tc.want, run(b, tc.script))
		})
	}
}

func TestBreakerReportsChanges(t *testing.T) {
	b := New("event-sink", WithFailureThreshold(2))
	assert.Equal(t, "event-sink", b.Name())

	failFast, change := b.RecordFailure()
	assert.False(t, failFast)
	assert.Equal(t, StateChange{}, change)

	failFast, change = b.RecordFailure()
	assert.True(t, failFast)
	assert.True(t, change.Opened)

	failFast, change = b.RecordFailure()
	assert.True(t, failFast, "open breaker keeps failing fast")
	assert.False(t, change.Opened, "no second open transition")

	closed, change := b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.Equal(t, "closed", b.State().String())

	run(b, "FF")
	require.True(t, b.IsOpen())
	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, []State{StateClosed}, run(b, "F"), "reset clears the failure streak")
}

func TestBreakerCooldownGatesProbes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := New("ledger-node",
		WithFailureThreshold(2),
		WithCooldown(10*time.Second),
		WithClock(func() time.Time { return now }),
	)

	require.True(t, b.Allow())
	run(b, "FF")
	assert.False(t, b.Allow(), "rejects during cooldown")

	now = now.Add(10 * time.Second)
	assert.True(t, b.Allow(), "probe allowed once cooldown elapsed")

	b.RecordFailure()
	assert.False(t, b.Allow(), "failed probe restarts the cooldown")

	now = now.Add(11 * time.Second)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())
}
