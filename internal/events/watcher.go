package events

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/reveriehq/reverie/internal/core/domain"
	"github.com/reveriehq/reverie/internal/logger"
)

// tempFileSuffixes are editor and OS artefacts that never produce
// events.
var tempFileSuffixes = []string{
	".swp", ".swo", ".swn", ".tmp", ".temp", "~", ".4913",
}

// isTempFile reports whether a filename is a temp, swap or hidden file
// that the watcher ignores.
func isTempFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, suffix := range tempFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// pendingChange is the per-path debounce state: the retained change
// kind for the window and the timer that will finalise it.
type pendingChange struct {
	timer *time.Timer
	kind  domain.ChangeKind
}

// Watcher monitors directories for file changes, coalescing bursts on
// the same path into a single event carrying the highest-priority
// change kind observed during the debounce window.
//
// Finalised events are handed to the Events channel with a bounded
// wait; if the consumer cannot accept one within the handoff timeout
// the event is logged and dropped.
type Watcher struct {
	paths          []string
	debounce       time.Duration
	handoffTimeout time.Duration

	fsw *fsnotify.Watcher
	out chan domain.RawEvent

	mu      sync.Mutex
	pending map[string]*pendingChange
	running bool

	done chan struct{}
	wg   sync.WaitGroup

	coalesced atomic.Int64
}

// NewWatcher creates a watcher for the given directories. The watcher
// must be started with Start before it emits events.
func NewWatcher(paths []string, debounce, handoffTimeout time.Duration) *Watcher {
	return &Watcher{
		paths:          paths,
		debounce:       debounce,
		handoffTimeout: handoffTimeout,
		out:            make(chan domain.RawEvent, 64),
		pending:        make(map[string]*pendingChange),
		done:           make(chan struct{}),
	}
}

// Events returns the channel of debounced raw events. The channel is
// never closed; consumers stop through their own context.
func (w *Watcher) Events() <-chan domain.RawEvent {
	return w.out
}

// CoalescedEvents returns the number of raw events absorbed into an
// already-pending debounce window.
func (w *Watcher) CoalescedEvents() int64 {
	return w.coalesced.Load()
}

// Start validates the watch paths and begins monitoring. A missing or
// non-directory path is fatal and returns domain.ErrWatchPath.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	for _, path := range w.paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s does not exist", domain.ErrWatchPath, path)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", domain.ErrWatchPath, path)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	for _, path := range w.paths {
		if err := addRecursive(fsw, path); err != nil {
			fsw.Close()
			return err
		}
		logger.Info("watcher: monitoring %s", path)
	}

	w.fsw = fsw
	w.running = true
	w.wg.Add(1)
	go w.run()

	return nil
}

// addRecursive registers a directory and every subdirectory with the
// fsnotify watcher.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking watch path %s: %w", root, err)
		}
		if d.IsDir() && !isTempFile(d.Name()) {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watching directory %s: %w", path, err)
			}
		}
		return nil
	})
}

// Stop halts monitoring. All pending debounce timers are cancelled
// without flushing: in-flight coalesced events are lost by design.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false

	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.done)
	w.fsw.Close()
	w.wg.Wait()

	logger.Info("watcher: stopped")
}

// run is the observer loop reading fsnotify notifications.
func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher: fsnotify error: %v", err)
		}
	}
}

// handleRaw filters a single fsnotify notification and feeds the
// debouncer. New subdirectories are added to the watch set.
func (w *Watcher) handleRaw(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !isTempFile(filepath.Base(ev.Name)) {
				if err := w.fsw.Add(ev.Name); err != nil {
					logger.Warn("watcher: cannot watch new directory %s: %v", ev.Name, err)
				}
			}
			return
		}
	}

	if isTempFile(filepath.Base(ev.Name)) {
		return
	}

	kind, ok := changeKind(ev.Op)
	if !ok {
		return
	}

	w.debouncePath(ev.Name, kind)
}

// changeKind maps an fsnotify op onto a domain change kind. Chmod and
// other ops are ignored.
func changeKind(op fsnotify.Op) (domain.ChangeKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return domain.ChangeCreated, true
	case op.Has(fsnotify.Write):
		return domain.ChangeModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		// A rename away is a delete; the new name triggers a create.
		return domain.ChangeDeleted, true
	default:
		return 0, false
	}
}

// debouncePath updates the per-path pending state. An existing window
// restarts its timer and retains the higher-priority change kind.
func (w *Watcher) debouncePath(path string, kind domain.ChangeKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		if kind.Priority() > p.kind.Priority() {
			p.kind = kind
		}
		p.timer = time.AfterFunc(w.debounce, func() { w.emit(path) })
		w.coalesced.Add(1)
		return
	}

	p := &pendingChange{kind: kind}
	p.timer = time.AfterFunc(w.debounce, func() { w.emit(path) })
	w.pending[path] = p
}

// emit finalises a debounce window and hands the event across the
// timer-goroutine boundary with a bounded wait. Handoff failure drops
// the event; there is no retry and no buildup.
func (w *Watcher) emit(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	raw := domain.RawEvent{Path: path, Kind: p.kind}

	timeout := time.NewTimer(w.handoffTimeout)
	defer timeout.Stop()

	select {
	case w.out <- raw:
		logger.Debug("watcher: emitted %s %s", raw.Kind, path)
	case <-timeout.C:
		logger.Warn("watcher: handoff timed out, dropping %s %s", raw.Kind, path)
	case <-w.done:
	}
}
