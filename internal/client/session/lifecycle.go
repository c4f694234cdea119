package session

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tradeclub/internal/client/storage"
	"github.com/dmitrijs2005/tradeclub/internal/common"
	"golang.org/x/sync/errgroup"
)

// Start syncs once, then runs the poller and (when a Notifier is set) the
// storage event listener until Stop or until ctx is done. A failed initial
// sync is logged, not returned: the poller retries on its own.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	s.cancel = cancel
	s.group = g
	s.mu.Unlock()

	if err := s.SyncFromPersistedStore(gctx); err != nil && gctx.Err() == nil {
		s.logger.Warn(ctx, "initial session sync failed", "error", err)
	}

	// Stop may have run during the initial sync; launching under mu keeps
	// Go and Wait ordered.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}

	g.Go(func() error {
		s.pollLoop(gctx)
		return nil
	})
	if s.notifier != nil {
		events := s.notifier.Events()
		g.Go(func() error {
			s.listen(gctx, events)
			return nil
		})
	}

	s.logger.Debug(ctx, "session sync started", "interval", s.interval, "events", s.notifier != nil)
	return nil
}

// Stop cancels both triggers and waits for them. Safe to call more than
// once, and before Start.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, g := s.cancel, s.group
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = g.Wait()
}

func (s *Synchronizer) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Synchronizer) listen(ctx context.Context, events <-chan storage.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.Debug(ctx, "storage events closed, relying on polling")
				<-ctx.Done()
				return
			}
			if ev.Key != common.SessionStorageKey {
				continue
			}
			if err := s.SyncFromPersistedStore(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn(ctx, "session sync on storage event failed", "error", err, "writer", ev.Writer)
			}
		}
	}
}
