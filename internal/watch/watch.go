// Package watch keeps an indexed directory current. A fsnotify watcher
// streams file system events through a coalescing window, and the runner
// turns the surviving events into pipeline re-ingestions and deletions.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/UncleTupelo/pulse/internal/scanner"
)

// Op classifies a file system change.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is one coalesced file change. Path is absolute.
type Event struct {
	Path  string
	Op    Op
	IsDir bool
	Time  time.Time
}

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for follow-up events on the same
	// path before emitting. Editors often write a file several times
	// in quick succession.
	Debounce time.Duration

	// BufferSize is the batch channel capacity.
	BufferSize int

	// IncludeGlobs and ExcludeGlobs use the scanner's pattern syntax
	// and apply to file events only, not directories.
	IncludeGlobs []string
	ExcludeGlobs []string
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 250 * time.Millisecond
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	return o
}

// Watcher watches a directory tree recursively and emits batches of
// coalesced events. New subdirectories are added to the watch as they
// appear.
type Watcher struct {
	fsw     *fsnotify.Watcher
	coal    *coalescer
	opts    Options
	root    string
	batches chan []Event
	errs    chan error
	logger  *slog.Logger

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// NewWatcher creates a watcher rooted at dir.
func NewWatcher(dir string, opts Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsw:     fsw,
		coal:    newCoalescer(opts.Debounce),
		opts:    opts,
		root:    abs,
		batches: make(chan []Event, opts.BufferSize),
		errs:    make(chan error, 8),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string { return w.root }

// Batches returns the channel of coalesced event batches. It is closed
// when the watcher stops.
func (w *Watcher) Batches() <-chan []Event { return w.batches }

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Start watches until the context is cancelled or Stop is called.
// It blocks; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("watch directory tree: %w", err)
	}

	go w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.coal.stop()
	return w.fsw.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.ignored(ev.Name, isDir) {
		return
	}

	var op Op
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			if err := w.addTree(ev.Name); err != nil {
				w.emitError(err)
			}
			return
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and friends do not change content.
		return
	}

	w.coal.add(Event{Path: ev.Name, Op: op, IsDir: isDir, Time: time.Now()})
}

// forward owns the batch channel and closes it on exit, so consumers
// see a clean end-of-stream when the watcher stops.
func (w *Watcher) forward(ctx context.Context) {
	defer close(w.batches)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.coal.output():
			if !ok {
				return
			}
			select {
			case w.batches <- batch:
			default:
				w.logger.Warn("event batch dropped, consumer too slow",
					slog.Int("batch_size", len(batch)))
			}
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path, true) {
			return fs.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignored filters events the same way the scanner filters a walk, so
// the watched set matches what an ingest of the same root would visit.
func (w *Watcher) ignored(path string, isDir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	if isDir {
		return scanner.ExcludedDir(rel, w.opts.ExcludeGlobs)
	}
	if scanner.MatchesAny(rel, w.opts.ExcludeGlobs) {
		return true
	}
	if len(w.opts.IncludeGlobs) > 0 && !scanner.MatchesAny(rel, w.opts.IncludeGlobs) {
		return true
	}
	return false
}

func (w *Watcher) emitError(err error) {
	select {
	case w.errs <- err:
	default:
	}
}
