package fs

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/plurinotes/pkg/core"
)

const debounceWindow = 50 * time.Millisecond

// Watch emits an event for every note or relation document changed on disk
// whose key ("notes/<id>" or "relations/<name>") matches the doublestar
// pattern. The channel is closed when ctx is cancelled.
func (v *Vault) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: invalid watch pattern %q", core.ErrInvalidArgument, pattern)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range []string{NotesDir, RelationsDir} {
		if err := watcher.Add(filepath.Join(v.Path, dir)); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	// Absent in gitless vaults.
	_ = watcher.Add(filepath.Join(v.Path, ".git"))

	events := make(chan core.Event)
	w := &watchWorker{
		vault:     v,
		pattern:   pattern,
		events:    events,
		watcher:   watcher,
		debouncer: newDebouncer(debounceWindow),
		snapshot:  v.scan(),
	}
	v.setWatcherActive(true)

	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(func(err error) {
		v.reportError(fmt.Errorf("watcher: %w", err))
	}))
	return events, nil
}

type watchWorker struct {
	vault     *Vault
	pattern   string
	events    chan core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer

	// snapshot maps document keys to modification times, used to
	// reconcile changes made while git held the index lock.
	snapshot map[string]time.Time
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.vault.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", err)
			}
		}
		w.debouncer.stopAndWait(5 * time.Second)
		close(w.events)
	}()
	defer w.vault.setWatcherActive(false)
	defer w.watcher.Close()

	gitLocked := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if isGitLock(event.Name) {
				switch {
				case event.Has(fsnotify.Create):
					gitLocked = true
					logger.Debug("git operation detected, pausing watcher")
				case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
					gitLocked = false
					logger.Debug("git operation finished, reconciling")
					w.reconcile(ctx)
				}
				continue
			}
			if gitLocked {
				continue
			}
			w.handle(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error("fsnotify error", "error", wErr)
			w.vault.reportError(wErr)
		}
	}
}

func isGitLock(name string) bool {
	return filepath.Base(name) == "index.lock" && filepath.Base(filepath.Dir(name)) == ".git"
}

func (w *watchWorker) handle(ctx context.Context, event fsnotify.Event) {
	key, ok := w.vault.docKey(event.Name)
	if !ok {
		return
	}

	var eType core.EventType
	switch {
	case event.Has(fsnotify.Create):
		eType = core.EventCreate
	case event.Has(fsnotify.Write):
		eType = core.EventModify
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		eType = core.EventDelete
	default:
		return
	}

	if eType == core.EventDelete {
		delete(w.snapshot, key)
	} else if info, err := os.Stat(event.Name); err == nil {
		w.snapshot[key] = info.ModTime()
	}
	w.emit(ctx, eType, key)
}

// reconcile rescans the vault and emits the changes missed while paused.
func (w *watchWorker) reconcile(ctx context.Context) {
	current := w.vault.scan()
	for key, mod := range current {
		prev, seen := w.snapshot[key]
		switch {
		case !seen:
			w.emit(ctx, core.EventCreate, key)
		case !prev.Equal(mod):
			w.emit(ctx, core.EventModify, key)
		}
	}
	for key := range w.snapshot {
		if _, ok := current[key]; !ok {
			w.emit(ctx, core.EventDelete, key)
		}
	}
	w.snapshot = current
}

func (w *watchWorker) emit(ctx context.Context, eType core.EventType, key string) {
	if match, _ := doublestar.Match(w.pattern, key); !match {
		return
	}
	_, id, _ := strings.Cut(key, "/")
	event := core.Event{Type: eType, ID: id, Timestamp: time.Now().Unix()}
	w.debouncer.add(key, event, func(e core.Event) {
		// the channel may close under a delivery that outlived stopAndWait
		defer func() { _ = recover() }()
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}

// docKey maps an absolute document path to its watch key.
func (v *Vault) docKey(path string) (string, bool) {
	name := filepath.Base(path)
	if filepath.Ext(name) != docExt || strings.HasPrefix(name, TempFilePrefix) {
		return "", false
	}
	base := strings.TrimSuffix(name, docExt)
	switch filepath.Base(filepath.Dir(path)) {
	case NotesDir:
		return NotesDir + "/" + base, true
	case RelationsDir:
		relName, err := url.PathUnescape(base)
		if err != nil {
			return "", false
		}
		return RelationsDir + "/" + relName, true
	}
	return "", false
}

// scan returns the modification time of every document keyed like docKey.
func (v *Vault) scan() map[string]time.Time {
	out := make(map[string]time.Time)
	for _, dir := range []string{NotesDir, RelationsDir} {
		paths, err := v.listDocs(dir)
		if err != nil {
			continue
		}
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				continue
			}
			if key, ok := v.docKey(p); ok {
				out[key] = info.ModTime()
			}
		}
	}
	return out
}

func (v *Vault) reportError(err error) {
	if v.config.ErrorHandler != nil {
		v.config.ErrorHandler(err)
		return
	}
	v.config.Logger.Error("vault background error", "error", err)
}

func (v *Vault) setWatcherActive(active bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.watcherActive = active
}

// debouncer coalesces bursts of events per key. An atomic write shows up as
// create+write (or rename) in quick succession; only one event survives.
type debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	stopped bool
	wg      sync.WaitGroup
}

type pendingEvent struct {
	event core.Event
	timer *time.Timer
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window, pending: make(map[string]*pendingEvent)}
}

func (d *debouncer) add(key string, e core.Event, fire func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if p, ok := d.pending[key]; ok && p.timer.Stop() {
		// A document created inside the window is still a creation.
		if p.event.Type == core.EventCreate && e.Type == core.EventModify {
			e.Type = core.EventCreate
		}
		p.event = e
		p.timer.Reset(d.window)
		return
	}

	p := &pendingEvent{event: e}
	d.wg.Add(1)
	p.timer = time.AfterFunc(d.window, func() {
		defer d.wg.Done()
		d.mu.Lock()
		ev := p.event
		if d.pending[key] == p {
			delete(d.pending, key)
		}
		d.mu.Unlock()
		fire(ev)
	})
	d.pending[key] = p
}

// stopAndWait drops pending events and waits for in-flight deliveries.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for key, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, key)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
