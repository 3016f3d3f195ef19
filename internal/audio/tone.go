package audio

import (
	"context"
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"
)

// TonePlayer rings a generated tone instead of a sound file.
type TonePlayer struct {
	logger    *slog.Logger
	frequency float64
	duration  time.Duration

	// beep is beeep.Beep, replaceable in tests.
	beep func(freq float64, durationMs int) error
}

// NewTonePlayer creates a tone player. Zero values use beeep's defaults.
func NewTonePlayer(frequency float64, duration time.Duration, logger *slog.Logger) *TonePlayer {
	if logger == nil {
		logger = slog.Default()
	}
	if frequency <= 0 {
		frequency = beeep.DefaultFreq
	}
	if duration <= 0 {
		duration = time.Duration(beeep.DefaultDuration) * time.Millisecond
	}

	return &TonePlayer{
		logger:    logger,
		frequency: frequency,
		duration:  duration,
		beep:      beeep.Beep,
	}
}

// Probe always succeeds; the tone needs no exclusive device.
func (t *TonePlayer) Probe() error {
	return nil
}

// Play rings the tone and blocks until it ends or ctx is done.
// The path is ignored.
func (t *TonePlayer) Play(ctx context.Context, _ string) error {
	done := make(chan error, 1)
	go func() {
		done <- t.beep(t.frequency, int(t.duration/time.Millisecond))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.logger.Warn("failed to ring tone", "frequency", t.frequency, "error", err)
			return &SoundError{Err: err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
