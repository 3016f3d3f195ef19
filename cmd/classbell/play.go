package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/classbell/internal/audio"
)

var playOpts struct {
	wait time.Duration
}

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Ring the bell once to test the sound",
	Long: `Probe the audio device and play the bell once.

Without a file the configured sound is played, or the generated tone when
no sound is configured. A busy device is probed again until --wait expires.

Examples:
  classbell play
  classbell play ~/sounds/handbell.wav`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().DurationVar(&playOpts.wait, "wait", 5*time.Second,
		"How long to wait for a busy audio device")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	soundCfg := cfg.Sound
	if len(args) > 0 {
		soundCfg.Path = args[0]
	}

	audioManager := audio.NewManager(soundCfg, logger)
	defer audioManager.Stop()

	if err := waitForDevice(ctx, audioManager, playOpts.wait, cfg.Watcher.PollInterval.Duration()); err != nil {
		return err
	}

	path := audioManager.SoundPath()
	if path == "" {
		path = "generated tone"
	}
	logger.Info("playing bell", "sound", path)

	if err := audioManager.Play(ctx, ""); err != nil {
		return fmt.Errorf("failed to play bell: %w", err)
	}
	return nil
}

// waitForDevice probes until the device is free or wait expires.
func waitForDevice(ctx context.Context, prober audio.Prober, wait, interval time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		err := prober.Probe()
		if err == nil {
			return nil
		}
		if !errors.Is(err, audio.ErrDeviceBusy) || time.Now().After(deadline) {
			return fmt.Errorf("audio device unavailable: %w", err)
		}
		logger.Debug("audio device busy, retrying", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
