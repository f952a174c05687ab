package console

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/codegate/internal/logging"
)

// StopFile is the name of the signal file that ends the interactive loop.
const StopFile = "stop"

// StopWatcher watches a signals directory for a stop file.
type StopWatcher struct {
	dir string
	log *logging.Logger

	mu      sync.RWMutex
	stopped bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewStopWatcher creates dir if needed, clears a stale stop file and starts
// watching. If the watcher cannot be started, Stopped falls back to
// checking the file directly.
func NewStopWatcher(dir string, logger *logging.Logger) (*StopWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	sw := &StopWatcher{
		dir:  dir,
		log:  logger.With("signals"),
		done: make(chan struct{}),
	}
	sw.Clear()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		sw.log.Warnf("fsnotify unavailable, polling %s: %v", dir, err)
		return sw, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		sw.log.Warnf("watch %s: %v", dir, err)
		return sw, nil
	}
	sw.watcher = watcher

	go sw.watch()

	return sw, nil
}

func (sw *StopWatcher) watch() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != StopFile {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				sw.mu.Lock()
				sw.stopped = true
				sw.mu.Unlock()
				sw.log.Infof("stop signal detected")
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.log.Warnf("watcher error: %v", err)
		}
	}
}

// Stopped reports whether a stop signal has been seen.
func (sw *StopWatcher) Stopped() bool {
	if _, err := os.Stat(sw.path()); err == nil {
		sw.mu.Lock()
		sw.stopped = true
		sw.mu.Unlock()
	}

	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.stopped
}

// SendStop writes the stop file into dir, asking a session watching dir to
// end after its current run.
func SendStop(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, StopFile), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the stop file and resets the flag.
func (sw *StopWatcher) Clear() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.stopped = false
	os.Remove(sw.path())
}

// Close stops watching. Safe to call more than once.
func (sw *StopWatcher) Close() error {
	var err error
	sw.once.Do(func() {
		close(sw.done)
		if sw.watcher != nil {
			err = sw.watcher.Close()
		}
	})
	return err
}

func (sw *StopWatcher) path() string {
	return filepath.Join(sw.dir, StopFile)
}
