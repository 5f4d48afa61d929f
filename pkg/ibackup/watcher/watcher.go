// Package watcher reports device backups that finish or change under a
// MobileSync backup root.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/ibackup/pkg/ibackup/device"
	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
)

// Op describes what happened to a device backup.
type Op int

const (
	// OpAdded reports a new device directory under the root.
	OpAdded Op = iota
	// OpUpdated reports a write to Manifest.plist or Manifest.db.
	OpUpdated
	// OpRemoved reports a device directory that disappeared.
	OpRemoved
)

// String returns the lowercase name of the operation.
func (o Op) String() string {
	switch o {
	case OpAdded:
		return "added"
	case OpUpdated:
		return "updated"
	case OpRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a change to one device backup.
type Event struct {
	UDID string
	Path string
	Op   Op
}

// Watcher watches a backup root and each device directory directly below it.
// Device directories are not watched recursively; only the manifest files
// that mark a finished backup matter.
type Watcher struct {
	root    string
	accept  device.Predicate
	watcher *fsnotify.Watcher
	paths   map[string]bool
	mu      sync.RWMutex
	closed  bool
}

// New creates a watcher over root. A nil predicate accepts every
// subdirectory as a device.
func New(root string, accept device.Predicate) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if accept == nil {
		accept = device.AcceptAll
	}

	return &Watcher{
		root:    absRoot,
		accept:  accept,
		watcher: fsw,
		paths:   make(map[string]bool),
	}, nil
}

// Start adds watches for the root and every accepted device directory.
func (w *Watcher) Start() error {
	if err := w.addWatch(w.root); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Type()&fs.ModeSymlink != 0 || !w.accept(entry.Name()) {
			continue
		}
		_ = w.addWatch(filepath.Join(w.root, entry.Name()))
	}
	return nil
}

// Watching reports whether path currently has a watch.
func (w *Watcher) Watching(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paths[path]
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

func (w *Watcher) removeWatch(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.paths[path] {
		return false
	}
	_ = w.watcher.Remove(path)
	delete(w.paths, path)
	return true
}

// Run starts the event loop and blocks until ctx is cancelled or the
// watcher is closed. onChange is called for every device-level event.
func (w *Watcher) Run(ctx context.Context, onChange func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev, ok := w.translate(event); ok && onChange != nil {
				onChange(ev)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get("watcher").Error("watcher error", "error", err)
		}
	}
}

// translate maps a raw filesystem event to a device event.
func (w *Watcher) translate(event fsnotify.Event) (Event, bool) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return Event{}, false
	}

	parts := strings.Split(rel, string(filepath.Separator))
	udid := parts[0]
	if !w.accept(udid) {
		return Event{}, false
	}

	switch len(parts) {
	case 1:
		return w.deviceDirEvent(event, udid)
	case 2:
		if parts[1] != device.ManifestPlist && parts[1] != device.ManifestDB {
			return Event{}, false
		}
		if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
			return Event{}, false
		}
		return Event{UDID: udid, Path: event.Name, Op: OpUpdated}, true
	default:
		return Event{}, false
	}
}

func (w *Watcher) deviceDirEvent(event fsnotify.Event, udid string) (Event, bool) {
	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Lstat(event.Name)
		if err != nil || !info.IsDir() {
			return Event{}, false
		}
		_ = w.addWatch(event.Name)
		return Event{UDID: udid, Path: event.Name, Op: OpAdded}, true

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if !w.removeWatch(event.Name) {
			return Event{}, false
		}
		return Event{UDID: udid, Path: event.Name, Op: OpRemoved}, true
	}
	return Event{}, false
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}
