package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmitrijs2005/tradeclub/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// Watcher delivers storage events for shared writes made by other tabs.
//
// SQLite in WAL mode appends to "<db>-wal" and checkpoints into the main
// file, so the watcher listens on the parent directory and reacts to any
// write of a file sharing the database's base name. Each notification is a
// hint only: the change log is the source of truth, and entries written by
// the watcher's own tab are skipped.
type Watcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	dbPath  string
	self    string
	log     ChangeLog
	logger  logging.Logger
	events  chan Event
	lastSeq int64
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	stopped bool
}

func NewWatcher(dbPath string, self string, log ChangeLog, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		fsw:    fsw,
		dbPath: abs,
		self:   self,
		log:    log,
		logger: logger.With("module", "storage_watcher", "tab", self),
		events: make(chan Event, 16),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Events is closed once the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching. Changes already in the log are not replayed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return nil
	}

	seq, err := w.log.LastSeq(ctx)
	if err != nil {
		return err
	}
	w.lastSeq = seq

	if err := w.fsw.Add(filepath.Dir(w.dbPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.dbPath), err)
	}

	w.running = true
	go w.run(ctx)

	w.logger.Debug(ctx, "watching shared storage", "path", w.dbPath, "seq", seq)
	return nil
}

// Stop stops the watcher and waits for its goroutine. Safe to call twice
// and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	running := w.running
	w.mu.Unlock()

	close(w.stopCh)
	if running {
		<-w.doneCh
	} else {
		close(w.events)
	}

	if err := w.fsw.Close(); err != nil {
		w.logger.Warn(context.Background(), "closing fsnotify watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if !w.scan(ctx) {
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		return false
	}
	return strings.HasPrefix(filepath.Base(ev.Name), filepath.Base(w.dbPath))
}

// scan forwards foreign changes past lastSeq. It returns false when the
// watcher is shutting down.
func (w *Watcher) scan(ctx context.Context) bool {
	changes, err := w.log.Changes(ctx, w.lastSeq)
	if err != nil {
		w.logger.Warn(ctx, "reading change log", "error", err)
		return true
	}

	for _, c := range changes {
		w.lastSeq = c.Seq
		if c.Writer == w.self {
			continue
		}
		select {
		case w.events <- c:
		case <-ctx.Done():
			return false
		case <-w.stopCh:
			return false
		}
	}
	return true
}
