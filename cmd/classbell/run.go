package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/classbell/internal/adapter/input"
	"github.com/jmylchreest/classbell/internal/adapter/output"
	"github.com/jmylchreest/classbell/internal/audio"
	"github.com/jmylchreest/classbell/internal/config"
	"github.com/jmylchreest/classbell/internal/daemon"
	"github.com/jmylchreest/classbell/internal/dbus"
	"github.com/jmylchreest/classbell/internal/model"
	"github.com/jmylchreest/classbell/internal/schedule"
	"github.com/jmylchreest/classbell/internal/tui"
)

var runOpts struct {
	sound    string
	interval time.Duration
	arbiter  string
	watch    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the timetable and ring the class bells",
	Long: `Load the timetable and start one watcher per class.

Each watcher rings the bell once when its class's weekday, hour and minute
match the clock, or gives up once that time has passed. The command exits
when every watcher has finished, or keeps waiting for timetable changes
with --watch.

Examples:
  # Ring today's bells with the configured sound
  classbell run

  # Use a different sound and poll twice a second
  classbell run --sound ~/sounds/bell.ogg --interval 500ms

  # Relaunch watchers whenever the timetable file is edited
  classbell run --watch`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

// addRunFlags registers the run flags; the root command accepts them too.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runOpts.sound, "sound", "",
		"Bell sound file (wav, ogg, mp3); overrides [sound].path")
	cmd.Flags().DurationVar(&runOpts.interval, "interval", 0,
		"Poll interval; overrides [watcher].poll_interval")
	cmd.Flags().StringVar(&runOpts.arbiter, "arbiter", "",
		"Playback arbitration (exclusive, advisory); overrides [arbiter].mode")
	cmd.Flags().BoolVar(&runOpts.watch, "watch", false,
		"Relaunch watchers when the timetable file changes")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	applyRunOverrides(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	mode, err := audio.ParseMode(cfg.Arbiter.Mode)
	if err != nil {
		return err
	}

	st := scheduleStore()
	sched, err := loadOrCollect(ctx, st)
	if err != nil {
		return err
	}

	audioManager := audio.NewManager(cfg.Sound, logger)
	if err := audioManager.Start(ctx); err != nil {
		logger.Warn("failed to start sound watcher", "error", err)
	}
	defer audioManager.Stop()

	notifier, closeNotifier := newNotifier()
	defer closeNotifier()

	dcfg := daemon.DispatcherConfig{
		SoundPath:    audioManager.SoundPath(),
		PollInterval: cfg.Watcher.PollInterval.Duration(),
		Logger:       logger,
		Notifier:     notifier,
	}
	if cfg.History.Enabled {
		history, err := openHistory()
		if err != nil {
			return err
		}
		defer func() {
			if err := history.Close(); err != nil {
				logger.Warn("failed to close history", "error", err)
			}
		}()
		dcfg.Recorder = history
	}

	arbiter := audio.NewArbiter(audioManager, mode, logger)
	dispatcher := daemon.NewDispatcher(arbiter, audioManager, dcfg)

	watch := runOpts.watch || cfg.Schedule.Watch

	g, gctx := errgroup.WithContext(ctx)

	var reloads chan model.Schedule
	if watch {
		reloads = make(chan model.Schedule, 1)
		if err := watchSchedule(gctx, g, st, notifier, reloads); err != nil {
			return err
		}
		watchConfig(gctx, audioManager, notifier)
	}

	var outcomes []model.Outcome
	g.Go(func() error {
		outcomes = superviseDispatch(gctx, dispatcher, sched, reloads)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return reportOutcomes(outcomes)
}

// applyRunOverrides copies explicitly set run flags over the loaded config.
func applyRunOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("sound") {
		cfg.Sound.Path = runOpts.sound
	}
	if flags.Changed("interval") {
		cfg.Watcher.PollInterval = config.Duration(runOpts.interval)
	}
	if flags.Changed("arbiter") {
		cfg.Arbiter.Mode = runOpts.arbiter
	}
}

// loadOrCollect loads the timetable, collecting and saving one first if the
// file does not exist yet.
func loadOrCollect(ctx context.Context, st *schedule.Store) (model.Schedule, error) {
	exists, err := st.Exists()
	if err != nil {
		return model.Schedule{}, fmt.Errorf("failed to check timetable: %w", err)
	}
	if exists {
		sched, err := st.Load()
		if err != nil {
			return model.Schedule{}, err
		}
		logger.Debug("loaded timetable", "path", st.Path(), "classes", sched.Len())
		return sched, nil
	}

	logger.Info("no timetable found, collecting one", "path", st.Path())

	sched, err := collectSchedule(ctx, model.Schedule{}, config.InputMode(cfg.Input.Mode))
	if err != nil {
		return model.Schedule{}, err
	}
	if err := st.Save(sched); err != nil {
		return model.Schedule{}, fmt.Errorf("failed to save timetable: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Saved %d classes to %s\n", sched.Len(), st.Path())

	return sched, nil
}

// collectSchedule runs an interactive front end. The form edits initial in
// place; line prompts append to it.
func collectSchedule(ctx context.Context, initial model.Schedule, mode config.InputMode) (model.Schedule, error) {
	if mode == config.InputForm {
		sched, err := tui.CollectSchedule(ctx, initial, tui.Options{})
		if err != nil {
			return model.Schedule{}, fmt.Errorf("failed to collect timetable: %w", err)
		}
		return sched, nil
	}

	collected, err := input.NewPrompter(os.Stdin, os.Stderr).Collect(ctx)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("failed to collect timetable: %w", err)
	}

	sched := initial.Clone()
	for _, e := range collected.Classes {
		if err := sched.Add(e); err != nil {
			return model.Schedule{}, err
		}
	}
	return sched, nil
}

// newNotifier builds the desktop notifier, preferring the session bus and
// falling back to beeep. The returned func closes the bus connection.
func newNotifier() (*daemon.Notifier, func()) {
	notifier := daemon.NewNotifier(logger)
	notifier.SetEnabled(cfg.Notify.Desktop)
	notifier.SetNotifyOnFire(cfg.Notify.OnFire)

	if !cfg.Notify.Desktop {
		return notifier, func() {}
	}

	client, err := dbus.NewClient(logger)
	if err != nil {
		logger.Debug("session bus unavailable, using beeep for notifications", "error", err)
		notifier.SetNotifyHandler(daemon.BeeepHandler)
		return notifier, func() {}
	}

	notifier.SetNotifyHandler(client.Notify)
	return notifier, func() {
		if err := client.Close(); err != nil {
			logger.Debug("failed to close session bus", "error", err)
		}
	}
}

// watchSchedule reloads the timetable on change and hands each valid one to
// the dispatch loop. An invalid file keeps the current watchers running.
func watchSchedule(ctx context.Context, g *errgroup.Group, st *schedule.Store, notifier *daemon.Notifier, reloads chan model.Schedule) error {
	fw, err := schedule.NewFileWatcher(st.Path(), func() {
		sched, err := st.Load()
		if err != nil {
			logger.Warn("timetable reload failed", "path", st.Path(), "error", err)
			notifier.NotifyScheduleError(err)
			return
		}
		logger.Info("timetable reloaded", "path", st.Path(), "classes", sched.Len())
		notifier.NotifyScheduleReloaded(sched.Len())

		// Only the newest schedule matters; this is the sole sender
		select {
		case <-reloads:
		default:
		}
		reloads <- sched
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create timetable watcher: %w", err)
	}

	g.Go(func() error {
		if err := fw.Start(ctx); err != nil {
			_ = fw.Stop()
			return fmt.Errorf("failed to watch timetable: %w", err)
		}
		<-ctx.Done()
		return fw.Stop()
	})
	return nil
}

// watchConfig applies volume and notification changes from the config file.
func watchConfig(ctx context.Context, audioManager *audio.Manager, notifier *daemon.Notifier) {
	path := globalOpts.configPath
	if path == "" {
		path = config.ConfigPath()
	}

	cw := daemon.NewConfigWatcher(path, logger)
	cw.SetReloadCallback(func(c *config.Config) {
		audioManager.SetVolume(float64(c.Sound.Volume) / 100.0)
		notifier.SetEnabled(c.Notify.Desktop)
		notifier.SetNotifyOnFire(c.Notify.OnFire)
	})
	cw.SetErrorCallback(notifier.NotifyConfigError)

	if err := cw.Start(ctx, cfg); err != nil {
		logger.Warn("failed to watch config", "path", path, "error", err)
	}
}

// superviseDispatch runs watchers for sched until they all finish. When
// reloads is non-nil, a new schedule cancels the running watchers and starts
// a fresh set, and the loop only ends with ctx.
func superviseDispatch(ctx context.Context, d *daemon.Dispatcher, sched model.Schedule, reloads <-chan model.Schedule) []model.Outcome {
	var all []model.Outcome

	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan []model.Outcome, 1)
		go func() {
			done <- d.Run(runCtx, sched)
		}()

		select {
		case outcomes := <-done:
			cancel()
			all = append(all, outcomes...)
			if reloads == nil {
				return all
			}
			select {
			case sched = <-reloads:
			case <-ctx.Done():
				return all
			}

		case next := <-reloads:
			cancel()
			all = append(all, <-done...)
			sched = next

		case <-ctx.Done():
			cancel()
			return append(all, <-done...)
		}
	}
}

// reportOutcomes prints a summary and fails if any bell could not be played.
func reportOutcomes(outcomes []model.Outcome) error {
	if len(outcomes) == 0 {
		fmt.Println("No classes in the timetable")
		return nil
	}

	formatter := output.NewFormatter(output.FormatPlain, output.DefaultFormatterOptions())
	if err := formatter.FormatOutcomes(os.Stdout, outcomes); err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if o.State == model.StateFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d class bells failed", failed, len(outcomes))
	}
	return nil
}
