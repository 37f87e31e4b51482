package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"plughost.dev/cli/internal/core/domain"
)

// ErrWatcherClosed is returned when using a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// DefaultDebounce coalesces the bursts of writes editors produce.
const DefaultDebounce = 200 * time.Millisecond

// Op tells whether a descriptor appeared or changed, or went away.
type Op int

const (
	OpChanged Op = iota
	OpRemoved
)

func (o Op) String() string {
	if o == OpRemoved {
		return "removed"
	}
	return "changed"
}

// Event reports one descriptor file.
type Event struct {
	Path string
	Op   Op
}

// DescriptorWatcher watches a plugin directory tree for descriptor files
// being created, written or removed.
type DescriptorWatcher struct {
	watcher  *fsnotify.Watcher
	logger   hclog.Logger
	debounce time.Duration

	events  chan Event
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDescriptorWatcher starts watching root and all of its subdirectories.
func NewDescriptorWatcher(root string, logger hclog.Logger, debounce time.Duration) (*DescriptorWatcher, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &DescriptorWatcher{
		watcher:  fsw,
		logger:   logger.Named("watcher"),
		debounce: debounce,
		events:   make(chan Event, 16),
		closeCh:  make(chan struct{}),
	}

	if _, err := w.watchTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("watching plugin directory", "dir", root)
	return w, nil
}

// Events delivers debounced descriptor events. It is closed by Close.
func (w *DescriptorWatcher) Events() <-chan Event {
	return w.events
}

// Close stops watching and closes the event channel.
func (w *DescriptorWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.closed = true
	w.mu.Unlock()

	close(w.closeCh)
	err := w.watcher.Close()
	w.wg.Wait()
	close(w.events)
	return err
}

// watchTree adds every directory under root and returns the descriptor
// files already present in it.
func (w *DescriptorWatcher) watchTree(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var found []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if addErr := w.watcher.Add(path); addErr != nil {
				w.logger.Warn("cannot watch directory", "dir", path, "error", addErr)
			}
			return nil
		}
		if isDescriptor(path) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

func (w *DescriptorWatcher) loop() {
	defer w.wg.Done()

	pending := make(map[string]Op)
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			timer.Reset(w.debounce)
		}
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.collect(ev, pending) {
				schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-timerC:
			timerC = nil
			if !w.flush(pending) {
				return
			}
			pending = make(map[string]Op)
		}
	}
}

// collect records ev in pending and reports whether anything changed.
func (w *DescriptorWatcher) collect(ev fsnotify.Event, pending map[string]Op) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			found, _ := w.watchTree(ev.Name)
			for _, path := range found {
				pending[path] = OpChanged
			}
			return len(found) > 0
		}
	}

	if !isDescriptor(ev.Name) {
		return false
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		pending[ev.Name] = OpRemoved
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		pending[ev.Name] = OpChanged
	default:
		return false
	}
	return true
}

// flush emits pending events in path order. It reports false when the
// watcher was closed meanwhile.
func (w *DescriptorWatcher) flush(pending map[string]Op) bool {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		ev := Event{Path: path, Op: pending[path]}
		w.logger.Debug("descriptor event", "path", path, "op", ev.Op)
		select {
		case w.events <- ev:
		case <-w.closeCh:
			return false
		}
	}
	return true
}

func isDescriptor(path string) bool {
	return strings.HasSuffix(path, domain.DescriptorSuffix)
}
