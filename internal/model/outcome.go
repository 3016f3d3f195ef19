package model

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// State is a watcher's position in its polling state machine.
type State string

const (
	// StatePollingDevice means the arbiter flag is set and the device is being probed.
	StatePollingDevice State = "polling_device"
	// StatePollingTime means the device is believed free and the clock is being checked.
	StatePollingTime State = "polling_time"
	// StateFired means the class time matched and the sound was played.
	StateFired State = "fired"
	// StateAbandoned means the class time passed without a match.
	StateAbandoned State = "abandoned"
	// StateFailed means the sound could not be opened, decoded or played.
	StateFailed State = "failed"
	// StateCancelled means the watcher was stopped before reaching another terminal state.
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state ends a watcher's loop.
func (s State) Terminal() bool {
	switch s {
	case StateFired, StateAbandoned, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Outcome records how one watcher finished.
type Outcome struct {
	ID         string `json:"id" yaml:"id"`
	Entry      Entry  `json:"entry" yaml:"entry"`
	State      State  `json:"state" yaml:"state"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	Target     int64  `json:"target,omitempty" yaml:"target,omitempty"` // Unix time of the occurrence being watched
	StartedAt  int64  `json:"started_at" yaml:"started_at"`
	FinishedAt int64  `json:"finished_at" yaml:"finished_at"`
}

// NewOutcome creates an Outcome with a generated ULID.
func NewOutcome(e Entry, state State, started, finished time.Time) (Outcome, error) {
	id, err := ulid.New(ulid.Timestamp(finished), rand.Reader)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to generate ULID: %w", err)
	}
	return Outcome{
		ID:         id.String(),
		Entry:      e,
		State:      state,
		StartedAt:  started.Unix(),
		FinishedAt: finished.Unix(),
	}, nil
}

// FinishedTime returns the finish timestamp as a time.Time.
func (o Outcome) FinishedTime() time.Time {
	return time.Unix(o.FinishedAt, 0)
}

// TargetTime returns the watched occurrence, or the zero time if unknown.
func (o Outcome) TargetTime() time.Time {
	if o.Target == 0 {
		return time.Time{}
	}
	return time.Unix(o.Target, 0)
}
