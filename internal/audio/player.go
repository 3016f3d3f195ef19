package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// DefaultSampleRate is used to open the device before any sound is decoded.
const DefaultSampleRate = beep.SampleRate(44100)

// Player decodes and plays class bell sound files.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Volume control (0.0 to 1.0)
	volume float64

	// Whether speaker has been initialized
	initialized bool

	// Sample rate the speaker was opened with
	sampleRate beep.SampleRate

	// speakerInit is speaker.Init, replaceable in tests.
	speakerInit func(beep.SampleRate, int) error

	// Sound cache
	cache      map[string]*beep.Buffer
	cacheMutex sync.RWMutex
}

// NewPlayer creates a new audio player.
func NewPlayer(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}

	return &Player{
		logger:      logger,
		volume:      1.0,
		sampleRate:  DefaultSampleRate,
		speakerInit: speaker.Init,
		cache:       make(map[string]*beep.Buffer),
	}
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = math.Max(0, math.Min(1, volume))
	p.logger.Debug("volume set", "volume", p.volume)
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Probe opens the output device if it is not open yet.
// A failure wraps ErrDeviceBusy.
func (p *Player) Probe() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.initLocked(p.sampleRate); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceBusy, err)
	}
	return nil
}

// Play decodes path and blocks until the clip has finished playing or ctx is
// done. Supports WAV, OGG and MP3. Errors are *SoundError.
func (p *Player) Play(ctx context.Context, path string) error {
	if path == "" {
		return &SoundError{Err: errors.New("no sound file configured")}
	}
	path = expandPath(path)

	buffer, err := p.load(path)
	if err != nil {
		p.logger.Warn("failed to load sound", "path", path, "error", err)
		return &SoundError{Path: path, Err: err}
	}

	if err := p.playBuffer(ctx, buffer); err != nil {
		return &SoundError{Path: path, Err: err}
	}
	return nil
}

// Preload loads a sound file into the cache for faster playback.
func (p *Player) Preload(path string) error {
	if path == "" {
		return nil
	}
	path = expandPath(path)

	if _, err := p.load(path); err != nil {
		return &SoundError{Path: path, Err: err}
	}
	p.logger.Debug("preloaded sound", "path", path)
	return nil
}

// load returns the cached buffer for path, decoding it on first use.
func (p *Player) load(path string) (*beep.Buffer, error) {
	p.cacheMutex.RLock()
	cached, ok := p.cache[path]
	p.cacheMutex.RUnlock()
	if ok {
		return cached, nil
	}

	buffer, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	p.cacheMutex.Lock()
	p.cache[path] = buffer
	p.cacheMutex.Unlock()
	return buffer, nil
}

// decodeFile loads and decodes a sound file into a buffer.
func decodeFile(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported audio format: %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode sound: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("failed to decode sound: %w", err)
	}
	return buffer, nil
}

// initLocked initializes the speaker if not already done. The caller holds p.mu.
func (p *Player) initLocked(sampleRate beep.SampleRate) error {
	if p.initialized {
		return nil
	}

	// Use a reasonable buffer size for low latency
	bufferSize := sampleRate.N(time.Millisecond * 100)

	if err := p.speakerInit(sampleRate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	p.sampleRate = sampleRate
	p.initialized = true
	p.logger.Debug("speaker initialized", "sample_rate", sampleRate)
	return nil
}

// playBuffer plays a buffered sound and waits for it to finish.
func (p *Player) playBuffer(ctx context.Context, buffer *beep.Buffer) error {
	p.mu.Lock()
	if err := p.initLocked(buffer.Format().SampleRate); err != nil {
		p.mu.Unlock()
		return err
	}
	volume := p.volume
	sampleRate := p.sampleRate
	p.mu.Unlock()

	var streamer beep.Streamer = buffer.Streamer(0, buffer.Len())

	if buffer.Format().SampleRate != sampleRate {
		streamer = beep.Resample(4, buffer.Format().SampleRate, sampleRate, streamer)
	}

	if volume < 1.0 {
		streamer = &effects.Volume{
			Streamer: streamer,
			Base:     2,
			Volume:   volumeExponent(volume),
			Silent:   volume == 0,
		}
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// ClearCache clears the sound cache.
func (p *Player) ClearCache() {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	p.cache = make(map[string]*beep.Buffer)
	p.logger.Debug("sound cache cleared")
}

// InvalidateCache removes a specific path from the cache.
func (p *Player) InvalidateCache(path string) {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	delete(p.cache, expandPath(path))
}

// cached reports whether path is in the cache.
func (p *Player) cached(path string) bool {
	p.cacheMutex.RLock()
	defer p.cacheMutex.RUnlock()
	_, ok := p.cache[expandPath(path)]
	return ok
}

// Close stops all playback and releases resources.
func (p *Player) Close() {
	p.mu.Lock()
	if p.initialized {
		speaker.Close()
		p.initialized = false
	}
	p.mu.Unlock()

	p.ClearCache()
	p.logger.Debug("audio player closed")
}

// volumeExponent converts a linear volume (0-1) to the base-2 exponent used
// by effects.Volume: 0.5 = -1, 0.25 = -2.
func volumeExponent(volume float64) float64 {
	if volume <= 0 {
		return -16 // Effectively silent
	}
	return math.Log2(volume)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
