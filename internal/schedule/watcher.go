package schedule

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the watcher waits after the last write event
// before reporting a change. Editors often write a file in several steps.
const DefaultSettle = 250 * time.Millisecond

// FileWatcher watches the timetable file and calls back when it changes.
type FileWatcher struct {
	mu       sync.Mutex
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	filePath string
	settle   time.Duration
	onChange func()

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewFileWatcher creates a watcher for filePath. onChange runs on the watcher
// goroutine once writes to the file have settled.
func NewFileWatcher(filePath string, onChange func(), logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		logger:   logger,
		watcher:  watcher,
		filePath: filePath,
		settle:   DefaultSettle,
		onChange: onChange,
	}, nil
}

// SetSettle sets the quiet period before a change is reported.
func (fw *FileWatcher) SetSettle(d time.Duration) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.settle = d
}

// Start begins watching the file for changes.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return nil
	}

	// Watch the directory containing the file (more reliable for writes)
	dir := filepath.Dir(fw.filePath)
	if err := fw.watcher.Add(dir); err != nil {
		fw.mu.Unlock()
		return err
	}

	fw.running = true
	fw.stopCh = make(chan struct{})
	fw.doneCh = make(chan struct{})
	settle := fw.settle
	fw.mu.Unlock()

	go fw.watch(ctx, settle)

	fw.logger.Debug("schedule watcher started", "path", fw.filePath)
	return nil
}

// watch is the main watch loop.
func (fw *FileWatcher) watch(ctx context.Context, settle time.Duration) {
	defer close(fw.doneCh)

	filename := filepath.Base(fw.filePath)

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Only care about our file
			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				fw.logger.Debug("schedule file event", "file", fw.filePath, "op", event.Op.String())
				timer.Reset(settle)
			}

		case <-timer.C:
			fw.logger.Debug("schedule file changed", "file", fw.filePath)
			if fw.onChange != nil {
				fw.onChange()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("schedule watcher error", "error", err)

		case <-ctx.Done():
			return

		case <-fw.stopCh:
			return
		}
	}
}

// Stop stops the file watcher and releases its inotify handle.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return fw.watcher.Close()
	}
	fw.running = false
	close(fw.stopCh)
	doneCh := fw.doneCh
	fw.mu.Unlock()

	err := fw.watcher.Close()
	<-doneCh
	fw.logger.Debug("schedule watcher stopped")
	return err
}
