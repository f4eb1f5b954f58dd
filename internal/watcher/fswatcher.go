package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSWatcher is the fsnotify-backed Watcher implementation: it recursively
// watches a directory tree and emits debounced FileEvents.
type FSWatcher struct {
	opts      Options
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	events    chan FileEvent
	errs      chan error
	done      chan struct{}
	wg        sync.WaitGroup
	root      string

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates an FSWatcher with opts, applying defaults for zero values.
func New(opts Options) *FSWatcher {
	opts = opts.WithDefaults()
	return &FSWatcher{
		opts:   opts,
		events: make(chan FileEvent, opts.EventBufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Start begins watching path recursively (spec SPEC_FULL.md's `dewey
// watch`: debounced fsnotify events drive incremental reindex).
func (w *FSWatcher) Start(ctx context.Context, path string) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.root = path
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.debouncer = NewDebouncer(w.opts.DebounceWindow)

	if err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return w.fsw.Add(p)
		}
		return nil
	}); err != nil {
		_ = fsw.Close()
		return err
	}

	w.wg.Add(2)
	go w.pump(ctx)
	go w.drainDebounced(ctx)

	return nil
}

func (w *FSWatcher) pump(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.debouncer.Add(w.translate(ev))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			case <-w.done:
				return
			default:
			}
		}
	}
}

func (w *FSWatcher) translate(ev fsnotify.Event) FileEvent {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		rel = ev.Name
	}

	op := OpModify
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	case ev.Has(fsnotify.Write):
		op = OpModify
	}

	if filepath.Base(rel) == ".gitignore" {
		op = OpGitignoreChange
	}
	if filepath.Base(rel) == "dewey.yaml" {
		op = OpConfigChange
	}

	return FileEvent{Path: rel, Operation: op, Timestamp: time.Now()}
}

func (w *FSWatcher) drainDebounced(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			for _, ev := range batch {
				select {
				case w.events <- ev:
				case <-ctx.Done():
					return
				case <-w.done:
					return
				}
			}
		}
	}
}

// Stop releases the underlying fsnotify watcher and closes Events()/
// Errors(), as the Watcher interface promises. Safe to call multiple
// times. It signals pump/drainDebounced via done and waits for both to
// exit before closing the output channels, so nothing can send on them
// concurrently with the close.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	fsw := w.fsw
	w.mu.Unlock()

	close(w.done)
	if w.debouncer != nil {
		w.debouncer.Stop()
	}
	var err error
	if fsw != nil {
		err = fsw.Close()
	}
	w.wg.Wait()
	close(w.events)
	close(w.errs)
	return err
}

// Events returns the channel of debounced file events.
func (w *FSWatcher) Events() <-chan FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *FSWatcher) Errors() <-chan error {
	return w.errs
}

var _ Watcher = (*FSWatcher)(nil)
