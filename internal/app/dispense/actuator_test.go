package dispense

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/PourFlow/internal/domain"
)

const testPoll = 10 * time.Millisecond

func newTestActuator(drv *recordingDriver) (*Actuator, *EpochController) {
	epochs := NewEpochController(drv, nil)
	return NewActuator(drv, epochs, nil, Timing{PollInterval: testPoll}), epochs
}

func TestActuatorCompletesAndClosesOnce(t *testing.T) {
	drv := newRecordingDriver()
	act, epochs := newTestActuator(drv)
	ch := domain.Channel{Index: 3, Rate: 1000} // 30 ml -> 30ms

	start := time.Now()
	outcome, err := act.Run(ch, 30, epochs.Current())
	require.NoError(t, err)
	assert.Equal(t, domain.Completed, outcome)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	events := drv.onChannel(3)
	require.Len(t, events, 2)
	assert.True(t, events[0].flowing)
	assert.False(t, events[1].flowing)
}

func TestActuatorClampsVolume(t *testing.T) {
	assert.Equal(t, 100.0, (&Actuator{timing: Timing{}.withDefaults()}).Clamp(150))
	assert.Equal(t, 0.0, (&Actuator{timing: Timing{}.withDefaults()}).Clamp(-3))

	ch := domain.Channel{Index: 0, Rate: 2000} // 100 ml -> 50ms

	spans := make([]time.Duration, 0, 2)
	for _, volume := range []float64{100, 150} {
		drv := newRecordingDriver()
		act, epochs := newTestActuator(drv)
		outcome, err := act.Run(ch, volume, epochs.Current())
		require.NoError(t, err)
		require.Equal(t, domain.Completed, outcome)

		span, ok := drv.openSpan(0)
		require.True(t, ok)
		spans = append(spans, span)
	}

	for _, span := range spans {
		assert.GreaterOrEqual(t, span, 50*time.Millisecond)
		assert.Less(t, span, 50*time.Millisecond+5*testPoll, "150 ml must pour like 100 ml")
	}
}

func TestActuatorZeroVolumeNeverOpens(t *testing.T) {
	drv := newRecordingDriver()
	act, epochs := newTestActuator(drv)

	outcome, err := act.Run(domain.Channel{Index: 6, Rate: 1}, 0, epochs.Current())
	require.NoError(t, err)
	assert.Equal(t, domain.Completed, outcome)

	events := drv.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, levelEvent{index: 6, flowing: false, at: events[0].at}, events[0])
}

func TestActuatorClosesAfterOpenFault(t *testing.T) {
	drv := newRecordingDriver()
	drv.failOpen[2] = errors.New("gpio write failed")
	act, epochs := newTestActuator(drv)

	_, err := act.Run(domain.Channel{Index: 2, Rate: 1}, 10, epochs.Current())
	var hw *domain.HardwareFaultError
	require.True(t, errors.As(err, &hw))
	assert.Equal(t, 2, hw.Channel)
	assert.Equal(t, "open", hw.Op)

	events := drv.onChannel(2)
	require.Len(t, events, 2)
	assert.True(t, events[0].flowing)
	assert.False(t, events[1].flowing, "channel must be closed after a failed open")
}

func TestActuatorSupersededWithinPollInterval(t *testing.T) {
	drv := newRecordingDriver()
	act, epochs := newTestActuator(drv)
	ch := domain.Channel{Index: 1, Rate: 1} // 50 ml -> 50s

	type result struct {
		outcome domain.Outcome
		err     error
		at      time.Time
	}
	done := make(chan result, 1)
	captured := epochs.Current()
	go func() {
		o, err := act.Run(ch, 50, captured)
		done <- result{o, err, time.Now()}
	}()

	time.Sleep(3 * testPoll)
	stoppedAt := time.Now()
	_, err := epochs.StopAll()
	require.NoError(t, err)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, domain.Superseded, r.outcome)
		// bounded staleness: one poll interval plus scheduling slack
		assert.Less(t, r.at.Sub(stoppedAt), testPoll+20*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("actuator did not observe the stop")
	}
	assert.False(t, drv.lastLevels()[1])
}

func TestActuatorStaleEpochNeverOpens(t *testing.T) {
	drv := newRecordingDriver()
	act, epochs := newTestActuator(drv)
	captured := epochs.Current()
	_, _ = epochs.StopAll()
	drv.reset()

	outcome, err := act.Run(domain.Channel{Index: 0, Rate: 1}, 10, captured)
	require.NoError(t, err)
	assert.Equal(t, domain.Superseded, outcome)
	assert.Equal(t, 0, drv.opens())
	assert.Len(t, drv.snapshot(), 1)
}

func TestActuatorSerializesSameChannel(t *testing.T) {
	drv := newRecordingDriver()
	act, epochs := newTestActuator(drv)
	ch := domain.Channel{Index: 4, Rate: 1000}

	first := make(chan struct{})
	captured := epochs.Current()
	go func() {
		defer close(first)
		_, _ = act.Run(ch, 100_000, captured) // clamped, still 100ms
	}()
	time.Sleep(2 * testPoll)

	next, err := epochs.StopAll()
	require.NoError(t, err)

	// 60 ml -> 60ms; the superseded run must close before this one opens,
	// otherwise its close would cut this pour short.
	outcome, err := act.Run(ch, 60, next)
	require.NoError(t, err)
	assert.Equal(t, domain.Completed, outcome)
	<-first

	span, ok := drv.lastOpenSpan(4)
	require.True(t, ok)
	assert.GreaterOrEqual(t, span, 60*time.Millisecond)
}
