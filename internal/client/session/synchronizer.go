package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/tradeclub/internal/client/models"
	"github.com/dmitrijs2005/tradeclub/internal/client/storage"
	"github.com/dmitrijs2005/tradeclub/internal/common"
	"github.com/dmitrijs2005/tradeclub/internal/logging"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultTTL          = 7 * 24 * time.Hour
)

// Notifier is a source of cross-tab storage events. storage.Watcher
// implements it.
type Notifier interface {
	Events() <-chan storage.Event
}

type Option func(*Synchronizer)

func WithPollInterval(d time.Duration) Option {
	return func(s *Synchronizer) { s.interval = d }
}

// WithTTL bounds the lifetime of the shared record when the shared store
// supports expiry. Zero keeps the record until logout (or token expiry).
func WithTTL(d time.Duration) Option {
	return func(s *Synchronizer) { s.ttl = d }
}

func WithNotifier(n Notifier) Option {
	return func(s *Synchronizer) { s.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

type Synchronizer struct {
	shared   storage.Repository
	tab      storage.Repository
	notifier Notifier
	logger   logging.Logger
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time

	// mu guards the session state. Store reads happen outside it; gen
	// detects local writes that landed while a read was in flight.
	mu         sync.Mutex
	current    *models.User
	lastSynced []byte
	gen        uint64
	listeners  map[int]func(*models.User)
	nextID     int

	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
	stopped bool
}

func New(shared, tab storage.Repository, logger logging.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		shared:    shared,
		tab:       tab,
		logger:    logger.With("module", "session"),
		interval:  DefaultPollInterval,
		ttl:       DefaultTTL,
		now:       time.Now,
		listeners: make(map[int]func(*models.User)),
	}
	for _, o := range opts {
		o(s)
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}
	return s
}

// Current returns a copy of the in-memory session, nil when logged out.
func (s *Synchronizer) Current() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.current)
}

func (s *Synchronizer) IsAuthenticated() bool {
	return s.Current() != nil
}

// Subscribe registers fn to be called with the new session every time the
// in-memory session changes. The returned func unregisters it.
func (s *Synchronizer) Subscribe(fn func(*models.User)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// LoginSuccess replaces the session with user and persists it to both
// stores. Memory is always updated; the error reports persistence only.
func (s *Synchronizer) LoginSuccess(ctx context.Context, user models.User) error {
	s.mu.Lock()
	changed := s.setCurrentLocked(&user)
	err := s.persistLocked(ctx, user)
	notify := s.snapshotLocked(changed)
	s.mu.Unlock()

	notify()
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.logger.Info(ctx, "signed in", "user", user.ID)
	return nil
}

// Logout clears the session in memory and in both stores.
func (s *Synchronizer) Logout(ctx context.Context) error {
	s.mu.Lock()
	changed := s.setCurrentLocked(nil)
	sharedErr := s.shared.Delete(ctx, common.SessionStorageKey)
	if sharedErr == nil {
		s.lastSynced = nil
	}
	err := errors.Join(sharedErr, s.tab.Delete(ctx, common.SessionStorageKey))
	notify := s.snapshotLocked(changed)
	s.mu.Unlock()

	notify()
	if sharedErr != nil {
		// lastSynced still matches the stale record, so polling will not
		// sign this tab back in.
		s.logger.Warn(ctx, "shared session record not removed, other tabs stay signed in", "error", sharedErr)
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info(ctx, "signed out")
	return nil
}

// UpdateProfile merges upd into the current session and re-persists it.
// Without an active session it does nothing.
func (s *Synchronizer) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		s.logger.Debug(ctx, "profile update ignored, no active session")
		return nil
	}
	merged := upd.Apply(*s.current)
	changed := s.setCurrentLocked(&merged)
	err := s.persistLocked(ctx, merged)
	notify := s.snapshotLocked(changed)
	s.mu.Unlock()

	notify()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// SyncFromPersistedStore overwrites the in-memory session with the shared
// record, or clears it when the record is absent, expired or malformed.
// It is idempotent. A read error leaves memory untouched.
func (s *Synchronizer) SyncFromPersistedStore(ctx context.Context) error {
	gen := s.generation()
	raw, err := s.shared.Get(ctx, common.SessionStorageKey)
	if err != nil {
		return fmt.Errorf("sync session: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		// a newer local write or sync won; the next poll re-reads
		s.mu.Unlock()
		return nil
	}
	changed := s.applyLocked(ctx, raw)
	notify := s.snapshotLocked(changed)
	s.mu.Unlock()

	notify()
	return nil
}

// poll re-reads the shared record and syncs only when its serialized form
// differs from the last synced one.
func (s *Synchronizer) poll(ctx context.Context) {
	gen := s.generation()
	raw, err := s.shared.Get(ctx, common.SessionStorageKey)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn(ctx, "session poll failed", "error", err)
		}
		return
	}

	s.mu.Lock()
	if s.gen != gen || bytes.Equal(raw, s.lastSynced) {
		s.mu.Unlock()
		return
	}
	changed := s.applyLocked(ctx, raw)
	notify := s.snapshotLocked(changed)
	s.mu.Unlock()

	s.logger.Debug(ctx, "session record changed, synced")
	notify()
}

func (s *Synchronizer) applyLocked(ctx context.Context, raw []byte) bool {
	u, err := models.DecodeUser(raw)
	if err != nil {
		s.logger.Warn(ctx, "treating session record as absent", "error", err)
		u = nil
	}
	s.lastSynced = bytes.Clone(raw)
	return s.setCurrentLocked(u)
}

func (s *Synchronizer) persistLocked(ctx context.Context, u models.User) error {
	b, err := models.EncodeUser(u)
	if err != nil {
		return err
	}
	s.lastSynced = b

	var sharedErr error
	if exp, ok := s.expiry(u); ok {
		if e, isExpirer := s.shared.(storage.Expirer); isExpirer {
			sharedErr = e.SetExpiring(ctx, common.SessionStorageKey, b, exp)
		} else {
			sharedErr = s.shared.Set(ctx, common.SessionStorageKey, b)
		}
	} else {
		sharedErr = s.shared.Set(ctx, common.SessionStorageKey, b)
	}

	return errors.Join(sharedErr, s.tab.Set(ctx, common.SessionStorageKey, b))
}

// expiry is the earlier of now+ttl and the token's exp claim.
func (s *Synchronizer) expiry(u models.User) (time.Time, bool) {
	var (
		exp time.Time
		ok  bool
	)
	if s.ttl > 0 {
		exp, ok = s.now().Add(s.ttl), true
	}
	if tokenExp, hasExp := models.TokenExpiry(u.Token); hasExp && (!ok || tokenExp.Before(exp)) {
		exp, ok = tokenExp, true
	}
	return exp, ok
}

func (s *Synchronizer) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Synchronizer) setCurrentLocked(u *models.User) bool {
	s.gen++
	if sameUser(s.current, u) {
		return false
	}
	s.current = copyUser(u)
	return true
}

// snapshotLocked captures what listeners need so they run after mu is released.
func (s *Synchronizer) snapshotLocked(changed bool) func() {
	if !changed || len(s.listeners) == 0 {
		return func() {}
	}
	fns := make([]func(*models.User), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	current := s.current
	return func() {
		for _, fn := range fns {
			fn(copyUser(current))
		}
	}
}

func sameUser(a, b *models.User) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
