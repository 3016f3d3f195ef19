package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Mode selects how strictly the arbiter serialises playback.
type Mode string

const (
	// ModeExclusive holds a single playback token for the whole play call.
	ModeExclusive Mode = "exclusive"
	// ModeAdvisory only gates on the busy flag. Two watchers matching in the
	// same window can both pass the gate and play overlapping sounds.
	ModeAdvisory Mode = "advisory"
)

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeExclusive, ModeAdvisory:
		return Mode(s), nil
	case "":
		return ModeExclusive, nil
	}
	return "", fmt.Errorf("unknown arbiter mode %q", s)
}

// Gate is the result of one Check.
type Gate int

const (
	// GateBusy means the flag was set and the probe failed; try again later.
	GateBusy Gate = iota
	// GateCleared means the flag was set and the probe succeeded, clearing it.
	GateCleared
	// GateOpen means the flag was already clear.
	GateOpen
)

func (g Gate) String() string {
	switch g {
	case GateBusy:
		return "busy"
	case GateCleared:
		return "cleared"
	case GateOpen:
		return "open"
	default:
		return fmt.Sprintf("gate(%d)", int(g))
	}
}

// Prober checks whether the output device can be obtained.
// A failure should wrap ErrDeviceBusy.
type Prober interface {
	Probe() error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func() error

// Probe calls f.
func (f ProberFunc) Probe() error {
	return f()
}

// Arbiter is the process-wide playback gate shared by all watchers.
//
// Its busy flag starts set: the device is presumed unavailable until a probe
// succeeds. Only a failed probe keeps it set; Release clears it. The mutex
// covers the flag and the probe, never playback itself.
type Arbiter struct {
	mu     sync.Mutex
	logger *slog.Logger
	prober Prober
	mode   Mode
	busy   bool

	token *semaphore.Weighted
	held  int
}

// NewArbiter creates an arbiter that probes the device through prober.
func NewArbiter(prober Prober, mode Mode, logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = ModeExclusive
	}

	return &Arbiter{
		logger: logger,
		prober: prober,
		mode:   mode,
		busy:   true,
		token:  semaphore.NewWeighted(1),
	}
}

// Mode returns the arbitration mode.
func (a *Arbiter) Mode() Mode {
	return a.mode
}

// Busy reports whether the flag is set.
func (a *Arbiter) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy
}

// Check is the watcher's per-tick gate. If the flag is set it probes the
// device: success clears the flag and returns GateCleared, failure leaves it
// set and returns GateBusy. A clear flag returns GateOpen without probing.
func (a *Arbiter) Check() Gate {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.busy {
		return GateOpen
	}

	if a.prober != nil {
		if err := a.prober.Probe(); err != nil {
			a.logger.Debug("audio device probe failed", "error", err)
			return GateBusy
		}
	}

	a.busy = false
	a.logger.Debug("audio device available")
	return GateCleared
}

// Acquire obtains the right to play. In exclusive mode it blocks until no
// other watcher is playing or ctx is done. In advisory mode it returns
// immediately. Every successful Acquire must be followed by one Release.
func (a *Arbiter) Acquire(ctx context.Context) error {
	if a.mode == ModeExclusive {
		if err := a.token.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.held++
	a.mu.Unlock()
	return nil
}

// Release ends a playback attempt. The flag is cleared whatever the outcome
// of the attempt, and the playback token is returned.
func (a *Arbiter) Release() {
	a.mu.Lock()
	a.busy = false
	releaseToken := a.held > 0 && a.mode == ModeExclusive
	if a.held > 0 {
		a.held--
	}
	a.mu.Unlock()

	if releaseToken {
		a.token.Release(1)
	}
}
