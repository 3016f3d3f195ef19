package audio

import (
	"errors"
	"fmt"
)

// ErrDeviceBusy is returned by a probe when the output device cannot be
// obtained right now. It is transient: callers retry on their next tick.
var ErrDeviceBusy = errors.New("audio device busy")

// SoundError reports that a sound could not be opened, decoded or played.
type SoundError struct {
	Path string
	Err  error
}

func (e *SoundError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("sound: %v", e.Err)
	}
	return fmt.Sprintf("sound %s: %v", e.Path, e.Err)
}

func (e *SoundError) Unwrap() error {
	return e.Err
}
