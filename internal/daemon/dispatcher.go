package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/jmylchreest/classbell/internal/audio"
	"github.com/jmylchreest/classbell/internal/model"
)

// Recorder stores terminal outcomes, typically *store.Store.
type Recorder interface {
	Add(o model.Outcome) error
}

// OutcomeNotifier announces terminal outcomes, typically *Notifier.
type OutcomeNotifier interface {
	NotifyOutcome(o model.Outcome)
}

// DispatcherConfig holds the shared settings given to every watcher.
type DispatcherConfig struct {
	SoundPath    string
	PollInterval time.Duration
	Clock        func() time.Time
	Logger       *slog.Logger
	Recorder     Recorder        // Optional
	Notifier     OutcomeNotifier // Optional
}

// Dispatcher launches one watcher per timetable entry and collects outcomes.
type Dispatcher struct {
	arbiter *audio.Arbiter
	player  Player
	cfg     DispatcherConfig
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher whose watchers share arbiter and player.
func NewDispatcher(arbiter *audio.Arbiter, player Player, cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Dispatcher{
		arbiter: arbiter,
		player:  player,
		cfg:     cfg,
		logger:  cfg.Logger,
	}
}

// Launch builds one watcher per entry, all sharing the arbiter, player,
// sound path, clock and poll interval. The watchers are not started.
func (d *Dispatcher) Launch(sched model.Schedule) []*Watcher {
	watchers := make([]*Watcher, 0, sched.Len())
	for _, e := range sched.Classes {
		watchers = append(watchers, NewWatcher(e, d.cfg.SoundPath, d.arbiter, d.player,
			WithClock(d.cfg.Clock),
			WithPollInterval(d.cfg.PollInterval),
			WithLogger(d.logger),
		))
	}
	return watchers
}

// RunAll runs every watcher concurrently and blocks until all are terminal.
// Outcomes are returned in watcher order.
func (d *Dispatcher) RunAll(ctx context.Context, watchers []*Watcher) []model.Outcome {
	outcomes := make([]model.Outcome, len(watchers))

	d.logger.Info("dispatching watchers", "count", len(watchers), "arbiter", d.arbiter.Mode())

	var wg conc.WaitGroup
	for i, w := range watchers {
		wg.Go(func() {
			outcomes[i] = d.runOne(ctx, w)
		})
	}
	wg.Wait()

	return outcomes
}

// Run launches and runs watchers for sched.
func (d *Dispatcher) Run(ctx context.Context, sched model.Schedule) []model.Outcome {
	return d.RunAll(ctx, d.Launch(sched))
}

// runOne runs a single watcher, converting a panic into StateFailed.
func (d *Dispatcher) runOne(ctx context.Context, w *Watcher) model.Outcome {
	started := d.cfg.Clock()

	var state model.State
	var err error

	var pc panics.Catcher
	pc.Try(func() {
		state, err = w.Run(ctx)
	})
	if r := pc.Recovered(); r != nil {
		state = model.StateFailed
		err = fmt.Errorf("watcher panicked: %v", r.Value)
		d.logger.Error("watcher panicked", "name", w.Entry().Name, "teacher", w.Entry().Teacher,
			"panic", r.Value, "stack", string(r.Stack))
	}

	return d.finish(w, state, err, started)
}

// finish builds, logs, records and announces an outcome.
func (d *Dispatcher) finish(w *Watcher, state model.State, err error, started time.Time) model.Outcome {
	e := w.Entry()
	finished := d.cfg.Clock()

	o, idErr := model.NewOutcome(e, state, started, finished)
	if idErr != nil {
		d.logger.Warn("failed to create outcome id", "error", idErr)
		o = model.Outcome{Entry: e, State: state, StartedAt: started.Unix(), FinishedAt: finished.Unix()}
	}
	if target := w.Target(); !target.IsZero() {
		o.Target = target.Unix()
	}
	if err != nil && state == model.StateFailed {
		o.Error = err.Error()
	}

	attrs := []any{"name", e.Name, "teacher", e.Teacher, "state", state}
	switch state {
	case model.StateFailed:
		d.logger.Error("class bell failed", append(attrs, "error", err)...)
	case model.StateFired:
		d.logger.Info("class bell rang", attrs...)
	default:
		d.logger.Info("watcher finished", attrs...)
	}

	if d.cfg.Recorder != nil && o.ID != "" {
		if recErr := d.cfg.Recorder.Add(o); recErr != nil {
			d.logger.Warn("failed to record outcome", "name", e.Name, "error", recErr)
		}
	}
	if d.cfg.Notifier != nil {
		d.cfg.Notifier.NotifyOutcome(o)
	}
	return o
}
