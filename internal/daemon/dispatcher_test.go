package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/classbell/internal/audio"
	"github.com/jmylchreest/classbell/internal/model"
)

func testSchedule(entries ...model.Entry) model.Schedule {
	return model.Schedule{Classes: entries}
}

func newTestDispatcher(arbiter *audio.Arbiter, player Player, clock *fakeClock, log *outcomeLog) *Dispatcher {
	cfg := DispatcherConfig{
		SoundPath:    "/sounds/bell.ogg",
		PollInterval: tick,
		Clock:        clock.Now,
	}
	if log != nil {
		cfg.Recorder = log
	}
	return NewDispatcher(arbiter, player, cfg)
}

func TestDispatcher_LaunchBuildsOneWatcherPerEntry(t *testing.T) {
	sched := testSchedule(
		model.Entry{Name: "Maths", Hour: 8, Minute: 30, Weekday: model.Monday},
		model.Entry{Name: "History", Hour: 9, Minute: 0, Weekday: model.Wednesday},
		model.Entry{Name: "Art", Hour: 13, Minute: 15, Weekday: model.Friday},
	)

	d := newTestDispatcher(freeArbiter(audio.ModeExclusive), &fakePlayer{}, fixedClock(at(1, 8, 0, 0)), nil)
	watchers := d.Launch(sched)

	require.Len(t, watchers, 3)
	for i, w := range watchers {
		assert.Equal(t, sched.Classes[i], w.Entry())
		assert.Equal(t, model.StatePollingDevice, w.State())
	}
}

func TestDispatcher_RunReturnsOutcomesInOrder(t *testing.T) {
	// Monday 08:30:20: Maths matches, Registration at 08:29 passed a minute
	// ago and History (Sun 09:00) finished the previous morning.
	sched := testSchedule(
		model.Entry{Name: "Maths", Teacher: "Ms Smith", Hour: 8, Minute: 30, Weekday: model.Monday},
		model.Entry{Name: "Registration", Hour: 8, Minute: 29, Weekday: model.Monday},
		model.Entry{Name: "History", Teacher: "Mr Jones", Hour: 9, Minute: 0, Weekday: model.Sunday},
	)
	player := &fakePlayer{}
	log := &outcomeLog{}

	d := newTestDispatcher(freeArbiter(audio.ModeExclusive), player, fixedClock(at(1, 8, 30, 20)), log)
	d.cfg.Notifier = &outcomeLog{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcomes := d.Run(ctx, sched)

	require.Len(t, outcomes, 3)
	assert.Equal(t, "Maths", outcomes[0].Entry.Name)
	assert.Equal(t, model.StateFired, outcomes[0].State)
	assert.Equal(t, at(1, 8, 30, 0).Unix(), outcomes[0].Target)
	assert.Empty(t, outcomes[0].Error)

	assert.Equal(t, "Registration", outcomes[1].Entry.Name)
	assert.Equal(t, model.StateAbandoned, outcomes[1].State)

	assert.Equal(t, "History", outcomes[2].Entry.Name)
	assert.Equal(t, model.StateAbandoned, outcomes[2].State)
	assert.Equal(t, time.Date(2023, time.December, 31, 9, 0, 0, 0, time.UTC).Unix(), outcomes[2].Target)

	for _, o := range outcomes {
		assert.NotEmpty(t, o.ID)
		assert.True(t, o.State.Terminal())
		assert.Equal(t, at(1, 8, 30, 20).Unix(), o.FinishedAt)
	}

	assert.Equal(t, 1, player.count())
	assert.Len(t, log.all(), 3)
	assert.Len(t, d.cfg.Notifier.(*outcomeLog).all(), 3)
}

func TestDispatcher_EmptySchedule(t *testing.T) {
	log := &outcomeLog{}
	d := newTestDispatcher(freeArbiter(audio.ModeExclusive), &fakePlayer{}, fixedClock(at(1, 8, 0, 0)), log)

	outcomes := d.Run(context.Background(), model.Schedule{})

	assert.Empty(t, outcomes)
	assert.Empty(t, log.all())
}

func TestDispatcher_DuplicateEntriesBothRing(t *testing.T) {
	e := model.Entry{Name: "Maths", Hour: 8, Minute: 30, Weekday: model.Monday}
	player := &fakePlayer{}

	d := newTestDispatcher(freeArbiter(audio.ModeExclusive), player, fixedClock(at(1, 8, 30, 0)), nil)
	outcomes := d.Run(context.Background(), testSchedule(e, e))

	require.Len(t, outcomes, 2)
	assert.Equal(t, model.StateFired, outcomes[0].State)
	assert.Equal(t, model.StateFired, outcomes[1].State)
	assert.NotEqual(t, outcomes[0].ID, outcomes[1].ID)
	assert.Equal(t, 2, player.count())
}

func TestDispatcher_ExclusiveModeNeverOverlaps(t *testing.T) {
	e := model.Entry{Name: "Maths", Hour: 8, Minute: 30, Weekday: model.Monday}
	// Each play waits for a second concurrent play, giving up after 50ms
	player := &fakePlayer{waitFor: 2, hold: 50 * time.Millisecond}

	d := newTestDispatcher(freeArbiter(audio.ModeExclusive), player, fixedClock(at(1, 8, 30, 0)), nil)
	outcomes := d.Run(context.Background(), testSchedule(e, e, e))

	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.Equal(t, model.StateFired, o.State)
	}
	assert.Equal(t, 3, player.count())
	assert.Equal(t, 1, player.peak())
}

func TestDispatcher_AdvisoryModeMayOverlap(t *testing.T) {
	e := model.Entry{Name: "Maths", Hour: 8, Minute: 30, Weekday: model.Monday}
	player := &fakePlayer{waitFor: 2, hold: 2 * time.Second}

	d := newTestDispatcher(freeArbiter(audio.ModeAdvisory), player, fixedClock(at(1, 8, 30, 0)), nil)
	outcomes := d.Run(context.Background(), testSchedule(e, e))

	require.Len(t, outcomes, 2)
	assert.Equal(t, 2, player.count())
	assert.Equal(t, 2, player.peak())
}

func TestDispatcher_PanicBecomesFailed(t *testing.T) {
	e := model.Entry{Name: "Maths", Hour: 8, Minute: 30, Weekday: model.Monday}
	player := &fakePlayer{panicOn: 1}
	log := &outcomeLog{}
	arbiter := freeArbiter(audio.ModeExclusive)

	d := newTestDispatcher(arbiter, player, fixedClock(at(1, 8, 30, 0)), log)
	outcomes := d.Run(context.Background(), testSchedule(e, e))

	require.Len(t, outcomes, 2)

	states := map[model.State]int{}
	for _, o := range outcomes {
		states[o.State]++
		if o.State == model.StateFailed {
			assert.Contains(t, o.Error, "panicked")
			assert.Contains(t, o.Error, "decoder exploded")
		}
	}
	assert.Equal(t, map[model.State]int{model.StateFailed: 1, model.StateFired: 1}, states)

	// The panicking watcher still returned the token
	assert.False(t, arbiter.Busy())
	assert.Len(t, log.all(), 2)
}

func TestDispatcher_SoundFailureRecorded(t *testing.T) {
	e := model.Entry{Name: "Maths", Hour: 8, Minute: 30, Weekday: model.Monday}
	player := &fakePlayer{err: errNoSoundCard}
	log := &outcomeLog{}

	d := newTestDispatcher(freeArbiter(audio.ModeExclusive), player, fixedClock(at(1, 8, 30, 0)), log)
	outcomes := d.Run(context.Background(), testSchedule(e))

	require.Len(t, outcomes, 1)
	assert.Equal(t, model.StateFailed, outcomes[0].State)
	assert.Contains(t, outcomes[0].Error, "no sound card")
	assert.Contains(t, outcomes[0].Error, "/sounds/bell.ogg")

	recorded := log.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, outcomes[0].ID, recorded[0].ID)
}

func TestDispatcher_RecorderErrorDoesNotStopDispatch(t *testing.T) {
	e := model.Entry{Name: "Maths", Hour: 8, Minute: 30, Weekday: model.Monday}
	log := &outcomeLog{err: errNoSoundCard}

	d := newTestDispatcher(freeArbiter(audio.ModeExclusive), &fakePlayer{}, fixedClock(at(1, 8, 30, 0)), log)
	outcomes := d.Run(context.Background(), testSchedule(e))

	require.Len(t, outcomes, 1)
	assert.Equal(t, model.StateFired, outcomes[0].State)
}

func TestDispatcher_CancelStopsWaitingWatchers(t *testing.T) {
	sched := testSchedule(
		model.Entry{Name: "PE", Hour: 10, Minute: 0, Weekday: model.Tuesday},
		model.Entry{Name: "Music", Hour: 14, Minute: 0, Weekday: model.Thursday},
	)

	d := newTestDispatcher(freeArbiter(audio.ModeExclusive), &fakePlayer{}, fixedClock(at(1, 12, 0, 0)), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	outcomes := d.Run(ctx, sched)

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, model.StateCancelled, o.State)
		assert.Empty(t, o.Error)
	}
}
