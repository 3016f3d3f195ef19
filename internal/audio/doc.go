// Package audio provides class bell playback and the arbiter that lets many
// watchers share one output device. Sound files (WAV, OGG, MP3) are played with
// the beep library; a generated tone is used when no file is configured.
package audio
