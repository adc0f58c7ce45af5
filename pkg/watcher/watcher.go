package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SNTSVV/Extended-Gator/pkg/logging"
)

var log = logging.New("watcher")

// ChangeType represents which input of a run changed
type ChangeType int

const (
	ChangeTypeFacts ChangeType = iota
	ChangeTypeListeners
	ChangeTypeConfig
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeFacts:
		return "facts"
	case ChangeTypeListeners:
		return "listeners"
	case ChangeTypeConfig:
		return "config"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches the input files of an analysis run. Parent
// directories are watched rather than the files themselves so that editors
// replacing a file by rename are still noticed.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]ChangeType
	events  chan ChangeEvent
	batch   time.Duration
}

// NewFileWatcher creates a watcher for the given files. Empty paths are
// ignored.
func NewFileWatcher(files map[string]ChangeType) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		files:   make(map[string]ChangeType, len(files)),
		events:  make(chan ChangeEvent, 100),
		batch:   100 * time.Millisecond,
	}
	for path, t := range files {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		fw.files[abs] = t
	}
	return fw, nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for path := range fw.files {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	log.Info(ctx, "started watching inputs", "files", len(fw.files), "directories", len(dirs))

	go fw.processEvents(ctx)
	return nil
}

// processEvents batches events of the watched files by type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	pending := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(fw.batch)
	flushTimer.Stop()

	flush := func() {
		types := make([]ChangeType, 0, len(pending))
		for t := range pending {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, t := range types {
			fw.events <- ChangeEvent{Type: t, Paths: pending[t], Timestamp: time.Now()}
		}
		pending = make(map[ChangeType][]string)
	}

	defer close(fw.events)
	for {
		select {
		case <-ctx.Done():
			fw.watcher.Close()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			t, watched := fw.files[filepath.Clean(event.Name)]
			if !watched {
				continue
			}
			log.Debug(ctx, "input changed", "path", event.Name, "type", t, "op", event.Op.String())
			pending[t] = append(pending[t], event.Name)
			flushTimer.Reset(fw.batch)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Error(ctx, "watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events. It is closed once the
// context passed to Start is done.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Close stops the underlying fsnotify watcher
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
