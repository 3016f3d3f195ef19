package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/jmylchreest/classbell/internal/config"
)

// Manager picks between the sound file player and the tone fallback and keeps
// the decoded sound fresh while a run is in progress.
type Manager struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	player  *Player
	tone    *TonePlayer
	watcher *SoundWatcher

	// Configured sound path, empty for the tone
	soundPath string
}

// NewManager creates a new audio manager from the sound configuration.
func NewManager(cfg config.SoundConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	player := NewPlayer(logger)
	player.SetVolume(float64(cfg.Volume) / 100.0)

	m := &Manager{
		logger:  logger,
		player:  player,
		tone:    NewTonePlayer(cfg.ToneFrequency, cfg.ToneDuration.Duration(), logger),
		watcher: NewSoundWatcher(player, logger),
	}
	m.setSoundPath(cfg.Path)
	return m
}

// setSoundPath validates and stores the configured path.
func (m *Manager) setSoundPath(path string) {
	path = expandPath(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			// A missing file surfaces as a SoundError at play time
			m.logger.Warn("sound file not found", "path", path)
		}
	}
	m.soundPath = path
}

// SoundPath returns the configured sound path, empty when the tone is used.
func (m *Manager) SoundPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.soundPath
}

// Start preloads the sound file and starts watching it for changes.
func (m *Manager) Start(ctx context.Context) error {
	path := m.SoundPath()
	if path == "" {
		m.logger.Debug("no sound file configured, using tone")
		return nil
	}

	if err := m.player.Preload(path); err != nil {
		m.logger.Warn("failed to preload sound", "path", path, "error", err)
	}
	m.watcher.Watch(path)

	if err := m.watcher.Start(ctx); err != nil {
		return err
	}

	m.logger.Debug("audio manager started", "sound", path)
	return nil
}

// Stop shuts down the audio manager.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// Probe checks the device used for the configured sound.
func (m *Manager) Probe() error {
	if m.SoundPath() == "" {
		return m.tone.Probe()
	}
	return m.player.Probe()
}

// Play rings the bell: path if given, else the configured sound, else the tone.
func (m *Manager) Play(ctx context.Context, path string) error {
	if path == "" {
		path = m.SoundPath()
	}
	if path == "" {
		return m.tone.Play(ctx, "")
	}
	return m.player.Play(ctx, path)
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (m *Manager) SetVolume(volume float64) {
	m.player.SetVolume(volume)
}

// Volume returns the current volume.
func (m *Manager) Volume() float64 {
	return m.player.Volume()
}
