package audio

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// cacheInvalidator drops a decoded sound so the next play re-reads the file.
type cacheInvalidator interface {
	InvalidateCache(path string)
}

// SoundWatcher listens for changes to bell sound files and drops the player's
// decoded copy, so a long run rings the edited sound without a restart.
type SoundWatcher struct {
	mu      sync.Mutex
	logger  *slog.Logger
	player  cacheInvalidator
	watcher *fsnotify.Watcher

	// Cleaned path of each sound file to the path the player caches it under
	sounds map[string]string

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewSoundWatcher creates a watcher that reports changes to player.
func NewSoundWatcher(player cacheInvalidator, logger *slog.Logger) *SoundWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SoundWatcher{
		logger: logger,
		player: player,
		sounds: make(map[string]string),
	}
}

// Watch registers a sound file. Its directory is watched rather than the file
// so replacing the file by rename is seen too.
func (w *SoundWatcher) Watch(path string) {
	if path == "" {
		return
	}
	path = expandPath(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.sounds[filepath.Clean(path)] = path
	if w.running {
		w.addDir(filepath.Dir(path))
	}
}

// Unwatch forgets a sound file. Its directory stays watched; events for it
// are ignored.
func (w *SoundWatcher) Unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sounds, filepath.Clean(expandPath(path)))
}

// addDir starts watching dir. Callers hold mu.
func (w *SoundWatcher) addDir(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		// The sound stays playable, it just won't be reloaded on change
		w.logger.Warn("cannot watch sound directory", "dir", dir, "error", err)
	}
}

// Start begins watching the registered sound files.
func (w *SoundWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	dirs := make(map[string]struct{})
	for clean := range w.sounds {
		dirs[filepath.Dir(clean)] = struct{}{}
	}
	for dir := range dirs {
		w.addDir(dir)
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.watch(ctx, watcher, w.stopCh, w.doneCh)

	w.logger.Debug("sound watcher started", "sounds", len(w.sounds))
	return nil
}

func (w *SoundWatcher) watch(ctx context.Context, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("sound watcher error", "error", err)

		case <-ctx.Done():
			return

		case <-stopCh:
			return
		}
	}
}

// handle invalidates the cached sound an event refers to, if any.
func (w *SoundWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}

	w.mu.Lock()
	path, ok := w.sounds[filepath.Clean(event.Name)]
	w.mu.Unlock()
	if !ok {
		return
	}

	w.logger.Debug("sound file changed, invalidating cache", "path", path, "op", event.Op.String())
	if w.player != nil {
		w.player.InvalidateCache(path)
	}
}

// Stop stops watching and waits for the event loop to exit.
func (w *SoundWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	watcher := w.watcher
	w.mu.Unlock()

	if err := watcher.Close(); err != nil {
		w.logger.Debug("closing sound watcher", "error", err)
	}
	<-doneCh
	w.logger.Debug("sound watcher stopped")
}

// IsRunning returns whether the watcher is currently running.
func (w *SoundWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
