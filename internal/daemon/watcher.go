package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/classbell/internal/audio"
	"github.com/jmylchreest/classbell/internal/model"
)

// DefaultPollInterval is the watcher tick cadence.
const DefaultPollInterval = time.Second

// Player plays a sound and blocks until it has finished.
type Player interface {
	Play(ctx context.Context, path string) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, path string) error

// Play calls f.
func (f PlayerFunc) Play(ctx context.Context, path string) error {
	return f(ctx, path)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithClock sets the time source.
func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// WithPollInterval sets the tick cadence.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher waits for one timetable entry and rings the bell when it starts.
//
// Each tick it takes a clock snapshot and consults the arbiter. While the
// arbiter flag is set it only probes the device. Once the flag is clear it
// compares the snapshot with the entry: a match plays the sound and ends in
// StateFired (or StateFailed); a target occurrence more than one interval in
// the past ends in StateAbandoned.
type Watcher struct {
	entry     model.Entry
	soundPath string
	arbiter   *audio.Arbiter
	player    Player
	now       func() time.Time
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	state  model.State
	target time.Time
}

// NewWatcher creates a watcher for entry. The entry is copied.
func NewWatcher(entry model.Entry, soundPath string, arbiter *audio.Arbiter, player Player, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		entry:     entry,
		soundPath: soundPath,
		arbiter:   arbiter,
		player:    player,
		now:       time.Now,
		interval:  DefaultPollInterval,
		logger:    slog.Default(),
		state:     model.StatePollingDevice,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("name", entry.Name, "teacher", entry.Teacher)
	return w
}

// Entry returns the watched entry.
func (w *Watcher) Entry() model.Entry {
	return w.entry
}

// State returns the current state.
func (w *Watcher) State() model.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Target returns the occurrence being watched, zero before Run starts.
func (w *Watcher) Target() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

func (w *Watcher) setState(s model.State) {
	w.mu.Lock()
	prev := w.state
	w.state = s
	w.mu.Unlock()

	if prev != s {
		w.logger.Debug("watcher state changed", "from", prev, "to", s)
	}
}

// Run ticks until the watcher reaches a terminal state and returns it.
// The error is set for StateFailed (a *audio.SoundError) and StateCancelled.
func (w *Watcher) Run(ctx context.Context) (model.State, error) {
	target, err := w.entry.Nearest(w.now())
	if err != nil {
		w.setState(model.StateFailed)
		return model.StateFailed, fmt.Errorf("compute target for %s: %w", w.entry, err)
	}

	w.mu.Lock()
	w.target = target
	w.mu.Unlock()
	w.logger.Debug("watcher started", "target", target, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			w.setState(model.StateCancelled)
			return model.StateCancelled, ctx.Err()
		}

		if state, done, err := w.tick(ctx, target); done {
			w.setState(state)
			return state, err
		}

		select {
		case <-ctx.Done():
			w.setState(model.StateCancelled)
			return model.StateCancelled, ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick runs one step of the state machine.
func (w *Watcher) tick(ctx context.Context, target time.Time) (model.State, bool, error) {
	now := w.now()
	snap := model.SnapshotOf(now)

	switch w.arbiter.Check() {
	case audio.GateBusy:
		w.setState(model.StatePollingDevice)
		return "", false, nil
	case audio.GateCleared:
		// The time is checked on the next tick
		w.setState(model.StatePollingTime)
		return "", false, nil
	}
	w.setState(model.StatePollingTime)

	// A daylight saving gap moves the target off the entry's wall time.
	if w.entry.Matches(snap) || now.Truncate(time.Minute).Equal(target) {
		return w.ring(ctx)
	}

	if now.Sub(target) > w.interval {
		w.logger.Debug("class time passed without a match", "target", target, "now", now)
		return model.StateAbandoned, true, nil
	}
	return "", false, nil
}

// ring plays the sound holding the arbiter, then releases it.
func (w *Watcher) ring(ctx context.Context) (model.State, bool, error) {
	if err := w.arbiter.Acquire(ctx); err != nil {
		return model.StateCancelled, true, err
	}
	defer w.arbiter.Release()

	w.logger.Info("ringing class bell", "sound", w.soundPath)

	err := w.player.Play(ctx, w.soundPath)
	switch {
	case err == nil:
		return model.StateFired, true, nil
	case ctx.Err() != nil:
		return model.StateCancelled, true, ctx.Err()
	}

	var soundErr *audio.SoundError
	if !errors.As(err, &soundErr) {
		err = &audio.SoundError{Path: w.soundPath, Err: err}
	}
	return model.StateFailed, true, err
}
