package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

var (
	// ErrWatchInit means the OS watch could not be established.
	ErrWatchInit = errors.New("failed to initialize filesystem watch")

	// ErrRootRemoved means the watched root was deleted or renamed.
	ErrRootRemoved = errors.New("store root removed")
)

// State is the lifecycle state of a Watcher.
type State int32

// Watcher states.
const (
	StateUninitialized State = iota
	StateWatching
	StateDebouncing
	StateReconciling
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateWatching:
		return "watching"
	case StateDebouncing:
		return "debouncing"
	case StateReconciling:
		return "reconciling"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Runner runs one reconciliation pass.
type Runner interface {
	Run(ctx context.Context, trigger indexer.Trigger) (indexer.FileStoreChanges, error)
}

// Config tunes change coalescing.
type Config struct {
	// Debounce is how long the tree must stay quiet before a pass starts.
	Debounce time.Duration
	// Settle is an extra wait after the debounce so in-progress copies can
	// finish.
	Settle time.Duration
	// QueueSize bounds the notification channel.
	QueueSize int
	// SkipHidden ignores notifications for names starting with ".".
	SkipHidden bool
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Debounce:   3 * time.Second,
		Settle:     2 * time.Second,
		QueueSize:  256,
		SkipHidden: true,
	}
}

// Watcher turns filesystem notifications below the store root into
// reconciliation passes.
//
// A reader goroutine drains fsnotify and pushes a count onto a bounded
// channel without blocking. A single consumer goroutine debounces those
// counts and runs one pass at a time.
type Watcher struct {
	root   string
	runner Runner
	config Config

	fsw    *fsnotify.Watcher
	events chan int
	state  atomic.Int32

	mu     sync.Mutex
	err    error
	cancel context.CancelFunc

	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once
}

// New creates a watcher for root. Nothing is watched until Start.
func New(root string, runner Runner, config Config) *Watcher {
	if config.QueueSize < 1 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	if config.Settle < 0 {
		config.Settle = 0
	}

	w := &Watcher{
		root:   root,
		runner: runner,
		config: config,
		events: make(chan int, config.QueueSize),
		done:   make(chan struct{}),
	}
	w.setState(StateUninitialized)
	return w
}

// Start registers watches on the root and every directory below it, then
// starts the reader and consumer goroutines. If the watch cannot be set up
// the watcher moves to StateFailed and the returned error wraps ErrWatchInit.
func (w *Watcher) Start(ctx context.Context) error {
	if w.State() != StateUninitialized {
		return fmt.Errorf("watcher already started (state %s)", w.State())
	}

	root, err := filepath.EvalSymlinks(w.root)
	if err != nil {
		return w.failInit(err)
	}
	w.root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return w.failInit(err)
	}
	w.fsw = fsw

	if err := fsw.Add(root); err != nil {
		_ = fsw.Close()
		return w.failInit(err)
	}
	w.addRecursive(root)

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.setState(StateWatching)
	logging.Info("Watching %s for changes (%d directories, debounce %v, settle %v)",
		root, len(fsw.WatchList()), w.config.Debounce, w.config.Settle)

	w.wg.Add(2)
	go w.read(ctx)
	go w.consume(ctx)
	go func() {
		w.wg.Wait()
		_ = fsw.Close()
		w.closeDone()
	}()

	return nil
}

// Stop ends watching and waits for an in-flight pass to finish.
// It is safe to call more than once and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		cancel := w.cancel
		w.mu.Unlock()

		if cancel == nil {
			w.closeDone()
			return
		}
		cancel()
		<-w.done
		logging.Info("Filesystem watcher stopped")
	})
}

// State returns the current state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Done is closed once the watcher goroutines have exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that moved the watcher to StateFailed, if any.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Watcher) setState(s State) {
	for {
		cur := w.state.Load()
		if State(cur) == StateFailed {
			return
		}
		if w.state.CompareAndSwap(cur, int32(s)) {
			break
		}
	}
	metrics.SetWatcherState(s.String())
}

func (w *Watcher) failInit(err error) error {
	err = fmt.Errorf("%w: %s: %v", ErrWatchInit, w.root, err)
	w.fail(err)
	w.closeDone()
	return err
}

// fail records err and moves the watcher to its terminal state.
func (w *Watcher) fail(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	cancel := w.cancel
	w.mu.Unlock()

	logging.Error("Filesystem watcher failed: %v", err)
	w.setState(StateFailed)
	if cancel != nil {
		cancel()
	}
}

func (w *Watcher) closeDone() {
	w.doneOnce.Do(func() { close(w.done) })
}

// addRecursive watches dir and every directory below it. Directories that
// cannot be watched are logged and skipped.
func (w *Watcher) addRecursive(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Debug("Cannot walk %s for watching: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.hidden(path) {
			return fs.SkipDir
		}
		if path == w.root {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			logging.Warn("Failed to watch %s: %v", path, err)
			metrics.WatcherErrors.Inc()
		}
		return nil
	})
	if err != nil {
		logging.Warn("Failed to register watches below %s: %v", dir, err)
	}
	metrics.WatcherWatchedDirectories.Set(float64(len(w.fsw.WatchList())))
}

func (w *Watcher) hidden(path string) bool {
	return w.config.SkipHidden && strings.HasPrefix(filepath.Base(path), ".")
}

// read drains fsnotify. It never blocks on the consumer.
func (w *Watcher) read(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			metrics.WatcherErrors.Inc()
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logging.Warn("Watcher event queue overflowed, scheduling a pass")
				w.enqueue(1)
				continue
			}
			logging.Warn("Filesystem watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	metrics.WatcherEventsTotal.WithLabelValues(opLabel(event.Op)).Inc()

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	if event.Name == w.root && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		w.fail(fmt.Errorf("%w: %s", ErrRootRemoved, w.root))
		return
	}

	if w.hidden(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			// files may already exist in a directory moved into place
			w.addRecursive(event.Name)
		}
	}

	logging.Debug("Filesystem event: %s", event)
	w.enqueue(1)
}

func (w *Watcher) enqueue(n int) {
	select {
	case w.events <- n:
	default:
		// the queue is full, so a pass is already pending
		metrics.WatcherEventsDropped.Inc()
	}
}

// consume is the only goroutine that schedules passes.
func (w *Watcher) consume(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.config.Debounce)
	timer.Stop()
	defer timer.Stop()

	var (
		pending int
		armed   bool
		retried bool
	)
	arm := func() {
		timer.Reset(w.config.Debounce)
		armed = true
		w.setState(StateDebouncing)
	}

	for {
		var fire <-chan time.Time
		if armed {
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if pending > 0 {
				logging.Debug("Watcher stopping with %d unprocessed changes", pending)
			}
			return

		case n := <-w.events:
			pending += n
			arm()

		case <-fire:
			armed = false
			logging.Info("%d changes detected under %s", pending, w.root)
			pending = 0

			w.setState(StateReconciling)
			if !w.settle(ctx) {
				return
			}

			// an in-flight pass runs to completion even if Stop is called
			_, err := w.runner.Run(context.WithoutCancel(ctx), indexer.TriggerWatcher)
			switch {
			case err == nil:
				retried = false
			case indexer.IsRetryable(err) && !retried:
				retried = true
				logging.Warn("Watcher pass conflicted with another pass, retrying: %v", err)
				arm()
				continue
			default:
				retried = false
				logging.Error("Watcher pass failed: %v", err)
			}
			w.setState(StateWatching)
		}
	}
}

// settle waits the configured delay. It returns false if ctx ends first.
func (w *Watcher) settle(ctx context.Context) bool {
	if w.config.Settle <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(w.config.Settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func opLabel(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "other"
	}
}
