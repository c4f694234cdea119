package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/tradeclub/internal/client/models"
	"github.com/dmitrijs2005/tradeclub/internal/client/storage"
	"github.com/dmitrijs2005/tradeclub/internal/common"
	"github.com/dmitrijs2005/tradeclub/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var alice = models.User{ID: "u1", Email: "alice@example.com", Name: "Alice", Role: models.RoleMember}

type chanNotifier struct{ ch chan storage.Event }

func (n chanNotifier) Events() <-chan storage.Event { return n.ch }

// failingRepo fails every call with err.
type failingRepo struct{ err error }

func (r failingRepo) Get(context.Context, string) ([]byte, error)     { return nil, r.err }
func (r failingRepo) Set(context.Context, string, []byte) error       { return r.err }
func (r failingRepo) Delete(context.Context, string) error            { return r.err }
func (r failingRepo) List(context.Context) (map[string][]byte, error) { return nil, r.err }
func (r failingRepo) Clear(context.Context) error                     { return r.err }

// gatedRepo blocks every Get until release is closed, ignoring ctx the way
// a SQLite read stuck on busy_timeout does.
type gatedRepo struct {
	*storage.MemoryRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{
		MemoryRepository: storage.NewMemoryRepository(),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
}

func (r *gatedRepo) Get(ctx context.Context, key string) ([]byte, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.MemoryRepository.Get(ctx, key)
}

// undeletableRepo refuses to delete anything.
type undeletableRepo struct {
	*storage.MemoryRepository
	err error
}

func (r undeletableRepo) Delete(context.Context, string) error { return r.err }

type changeCounter struct {
	mu   sync.Mutex
	seen []*models.User
}

func (c *changeCounter) record(u *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, u)
}

func (c *changeCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func putUser(t *testing.T, repo storage.Repository, u models.User) {
	t.Helper()
	b, err := models.EncodeUser(u)
	require.NoError(t, err)
	require.NoError(t, repo.Set(context.Background(), common.SessionStorageKey, b))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestLoginSuccess_PersistsToBothStores(t *testing.T) {
	ctx := context.Background()
	shared, tab := storage.NewMemoryRepository(), storage.NewMemoryRepository()
	s := New(shared, tab, logging.Nop())

	require.NoError(t, s.LoginSuccess(ctx, alice))

	require.Equal(t, &alice, s.Current())
	require.True(t, s.IsAuthenticated())

	for name, repo := range map[string]storage.Repository{"shared": shared, "tab": tab} {
		raw, err := repo.Get(ctx, common.SessionStorageKey)
		require.NoError(t, err, name)
		u, err := models.DecodeUser(raw)
		require.NoError(t, err, name)
		assert.Equal(t, &alice, u, name)
	}
}

// A fresh tab over the same shared store sees the logged-in user.
func TestLoginThenSync_RoundTrips(t *testing.T) {
	ctx := context.Background()
	shared := storage.NewMemoryRepository()

	a := New(shared, storage.NewMemoryRepository(), logging.Nop())
	require.NoError(t, a.LoginSuccess(ctx, alice))

	b := New(shared, storage.NewMemoryRepository(), logging.Nop())
	require.Nil(t, b.Current())
	require.NoError(t, b.SyncFromPersistedStore(ctx))
	require.Equal(t, &alice, b.Current())
}

func TestLogout_ClearsMemoryAndStores(t *testing.T) {
	ctx := context.Background()
	shared, tab := storage.NewMemoryRepository(), storage.NewMemoryRepository()
	require.NoError(t, tab.Set(ctx, common.CartStorageKey, []byte(`[]`)))

	s := New(shared, tab, logging.Nop())
	require.NoError(t, s.LoginSuccess(ctx, alice))
	require.NoError(t, s.Logout(ctx))

	require.Nil(t, s.Current())
	raw, err := shared.Get(ctx, common.SessionStorageKey)
	require.NoError(t, err)
	require.Nil(t, raw)
	raw, err = tab.Get(ctx, common.SessionStorageKey)
	require.NoError(t, err)
	require.Nil(t, raw)

	// the cart lives in the same per-tab store and must survive logout
	raw, err = tab.Get(ctx, common.CartStorageKey)
	require.NoError(t, err)
	require.NotNil(t, raw)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("no session is a no-op", func(t *testing.T) {
		shared := storage.NewMemoryRepository()
		s := New(shared, storage.NewMemoryRepository(), logging.Nop())

		name := "Bob"
		require.NoError(t, s.UpdateProfile(ctx, models.ProfileUpdate{Name: &name}))
		require.Nil(t, s.Current())

		all, err := shared.List(ctx)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("merges and persists", func(t *testing.T) {
		shared := storage.NewMemoryRepository()
		s := New(shared, storage.NewMemoryRepository(), logging.Nop())
		require.NoError(t, s.LoginSuccess(ctx, alice))

		name, avatar := "Alice Cooper", "https://cdn.example.com/a.png"
		require.NoError(t, s.UpdateProfile(ctx, models.ProfileUpdate{Name: &name, Avatar: &avatar}))

		want := alice
		want.Name, want.Avatar = name, avatar
		require.Equal(t, &want, s.Current())

		raw, err := shared.Get(ctx, common.SessionStorageKey)
		require.NoError(t, err)
		got, err := models.DecodeUser(raw)
		require.NoError(t, err)
		require.Equal(t, &want, got)
	})
}

func TestSync_AbsentOrMalformedClearsSession(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "absent"},
		{name: "null", raw: []byte("null")},
		{name: "not json", raw: []byte("{oops")},
		{name: "no id", raw: []byte(`{"email":"x@example.com"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shared := storage.NewMemoryRepository()
			s := New(shared, storage.NewMemoryRepository(), logging.Nop())
			require.NoError(t, s.LoginSuccess(ctx, alice))

			require.NoError(t, shared.Delete(ctx, common.SessionStorageKey))
			if tt.raw != nil {
				require.NoError(t, shared.Set(ctx, common.SessionStorageKey, tt.raw))
			}

			require.NoError(t, s.SyncFromPersistedStore(ctx))
			require.Nil(t, s.Current())
		})
	}
}

func TestSync_ReadErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	s := New(storage.NewMemoryRepository(), storage.NewMemoryRepository(), logging.Nop())
	require.NoError(t, s.LoginSuccess(ctx, alice))

	s.shared = failingRepo{err: boom}
	err := s.SyncFromPersistedStore(ctx)
	require.ErrorIs(t, err, boom)
	require.Equal(t, &alice, s.Current())
}

func TestLoginSuccess_PersistErrorStillUpdatesMemory(t *testing.T) {
	boom := errors.New("read-only")
	s := New(failingRepo{err: boom}, storage.NewMemoryRepository(), logging.Nop())

	err := s.LoginSuccess(context.Background(), alice)
	require.ErrorIs(t, err, boom)
	require.Equal(t, &alice, s.Current())
}

// Repeated syncs over an unchanged record notify at most once.
func TestSync_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	shared := storage.NewMemoryRepository()
	putUser(t, shared, alice)

	s := New(shared, storage.NewMemoryRepository(), logging.Nop())
	var c changeCounter
	defer s.Subscribe(c.record)()

	for range 3 {
		require.NoError(t, s.SyncFromPersistedStore(ctx))
	}
	require.Equal(t, &alice, s.Current())
	require.Equal(t, 1, c.count())
}

func TestSubscribe_Cancel(t *testing.T) {
	ctx := context.Background()
	s := New(storage.NewMemoryRepository(), storage.NewMemoryRepository(), logging.Nop())

	var c changeCounter
	cancel := s.Subscribe(c.record)
	require.NoError(t, s.LoginSuccess(ctx, alice))
	cancel()
	require.NoError(t, s.Logout(ctx))

	require.Equal(t, 1, c.count())
}

// Another tab logs in; this tab picks it up by polling alone.
func TestPoll_PicksUpForeignLogin(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	shared := storage.NewMemoryRepository()
	s := New(shared, storage.NewMemoryRepository(), logging.Nop(), WithPollInterval(10*time.Millisecond))
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	other := New(shared, storage.NewMemoryRepository(), logging.Nop())
	require.NoError(t, other.LoginSuccess(ctx, alice))

	require.Eventually(t, func() bool { return s.IsAuthenticated() }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, &alice, s.Current())

	s.Stop()
}

// When the record disappears the session goes to null exactly once,
// not on every following tick.
func TestPoll_LogoutElsewhereTransitionsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	shared := storage.NewMemoryRepository()
	putUser(t, shared, alice)

	s := New(shared, storage.NewMemoryRepository(), logging.Nop(), WithPollInterval(5*time.Millisecond))
	require.NoError(t, s.Start(ctx))
	defer s.Stop()
	require.Equal(t, &alice, s.Current())

	var c changeCounter
	defer s.Subscribe(c.record)()

	require.NoError(t, shared.Delete(ctx, common.SessionStorageKey))
	require.Eventually(t, func() bool { return !s.IsAuthenticated() }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, c.count())
	require.Nil(t, c.seen[0])

	s.Stop()
}

// Rewriting the record with identical bytes is not a change.
func TestPoll_IdenticalRecordIsNotAChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	shared := storage.NewMemoryRepository()
	s := New(shared, storage.NewMemoryRepository(), logging.Nop(), WithPollInterval(5*time.Millisecond))
	require.NoError(t, s.LoginSuccess(ctx, alice))
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	var c changeCounter
	defer s.Subscribe(c.record)()

	putUser(t, shared, alice)
	time.Sleep(50 * time.Millisecond)

	require.Zero(t, c.count())
	require.Equal(t, &alice, s.Current())

	s.Stop()
}

func TestListener_SyncsOnSessionEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	shared := storage.NewMemoryRepository()
	events := make(chan storage.Event, 4)

	// a poll interval far beyond the test forces the event path
	s := New(shared, storage.NewMemoryRepository(), logging.Nop(),
		WithPollInterval(time.Hour), WithNotifier(chanNotifier{ch: events}))
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	putUser(t, shared, alice)
	events <- storage.Event{Key: common.CartStorageKey, Writer: "tab-2"}
	require.Never(t, func() bool { return s.IsAuthenticated() }, 50*time.Millisecond, 5*time.Millisecond)

	events <- storage.Event{Key: common.SessionStorageKey, Writer: "tab-2"}
	require.Eventually(t, func() bool { return s.IsAuthenticated() }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
}

func TestListener_ClosedEventsFallsBackToPolling(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	shared := storage.NewMemoryRepository()
	events := make(chan storage.Event)
	close(events)

	s := New(shared, storage.NewMemoryRepository(), logging.Nop(),
		WithPollInterval(5*time.Millisecond), WithNotifier(chanNotifier{ch: events}))
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	putUser(t, shared, alice)
	require.Eventually(t, func() bool { return s.IsAuthenticated() }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
}

func TestStartStop_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("stop twice", func(t *testing.T) {
		s := New(storage.NewMemoryRepository(), storage.NewMemoryRepository(), logging.Nop(),
			WithNotifier(chanNotifier{ch: make(chan storage.Event)}))
		require.NoError(t, s.Start(context.Background()))
		s.Stop()
		s.Stop()
	})

	t.Run("stop before start", func(t *testing.T) {
		s := New(storage.NewMemoryRepository(), storage.NewMemoryRepository(), logging.Nop())
		s.Stop()
		require.NoError(t, s.Start(context.Background()))
	})

	t.Run("start twice", func(t *testing.T) {
		s := New(storage.NewMemoryRepository(), storage.NewMemoryRepository(), logging.Nop())
		require.NoError(t, s.Start(context.Background()))
		require.NoError(t, s.Start(context.Background()))
		s.Stop()
	})

	t.Run("context cancel ends loops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := New(storage.NewMemoryRepository(), storage.NewMemoryRepository(), logging.Nop(),
			WithPollInterval(time.Millisecond))
		require.NoError(t, s.Start(ctx))
		cancel()
		s.Stop()
	})

	t.Run("initial sync failure is not fatal", func(t *testing.T) {
		s := New(failingRepo{err: errors.New("locked")}, storage.NewMemoryRepository(), logging.Nop(),
			WithPollInterval(time.Millisecond))
		require.NoError(t, s.Start(context.Background()))
		time.Sleep(10 * time.Millisecond)
		require.Nil(t, s.Current())
		s.Stop()
	})
}

func TestStop_DuringInitialSyncLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	shared := newGatedRepo()
	s := New(shared, storage.NewMemoryRepository(), logging.Nop(),
		WithPollInterval(time.Millisecond),
		WithNotifier(chanNotifier{ch: make(chan storage.Event)}))

	started := make(chan error, 1)
	go func() { started <- s.Start(context.Background()) }()
	<-shared.entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked behind the initial sync")
	}

	close(shared.release)
	require.NoError(t, <-started)

	// a stopped synchronizer stays stopped
	require.NoError(t, s.Start(context.Background()))
}

func TestSync_SlowReadDoesNotBlockOrClobberLocalWrites(t *testing.T) {
	ctx := context.Background()
	shared := newGatedRepo()
	s := New(shared, storage.NewMemoryRepository(), logging.Nop())

	done := make(chan error, 1)
	go func() { done <- s.SyncFromPersistedStore(ctx) }()
	<-shared.entered

	// the read is in flight; readers and writers must not wait for it
	require.Nil(t, s.Current())
	require.NoError(t, s.LoginSuccess(ctx, alice))

	close(shared.release)
	require.NoError(t, <-done)

	// the read started before the login and must not undo it
	require.Equal(t, &alice, s.Current())
}

func TestLogout_SharedDeleteFailureDoesNotResurrectSession(t *testing.T) {
	ctx := context.Background()
	diskFull := errors.New("disk full")
	shared := undeletableRepo{MemoryRepository: storage.NewMemoryRepository(), err: diskFull}
	s := New(shared, storage.NewMemoryRepository(), logging.Nop())

	var changes changeCounter
	s.Subscribe(changes.record)

	require.NoError(t, s.LoginSuccess(ctx, alice))
	require.ErrorIs(t, s.Logout(ctx), diskFull)
	require.Nil(t, s.Current())

	s.poll(ctx)
	require.Nil(t, s.Current())
	require.Equal(t, 2, changes.count())

	// a later foreign write is still picked up
	bob := models.User{ID: "u2", Email: "bob@example.com", Name: "Bob", Role: models.RoleMember}
	putUser(t, shared, bob)
	s.poll(ctx)
	require.Equal(t, &bob, s.Current())
}

func TestExpiry(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		ttl    time.Duration
		token  string
		want   time.Time
		wantOK bool
	}{
		{name: "ttl only", ttl: time.Hour, want: base.Add(time.Hour), wantOK: true},
		{name: "no ttl no token"},
		{name: "token earlier than ttl", ttl: 24 * time.Hour, token: signedToken(t, base.Add(time.Hour)), want: base.Add(time.Hour), wantOK: true},
		{name: "ttl earlier than token", ttl: time.Minute, token: signedToken(t, base.Add(time.Hour)), want: base.Add(time.Minute), wantOK: true},
		{name: "token without ttl", token: signedToken(t, base.Add(time.Hour)), want: base.Add(time.Hour), wantOK: true},
		{name: "opaque token", ttl: time.Hour, token: "opaque", want: base.Add(time.Hour), wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, nil, logging.Nop(), WithTTL(tt.ttl), WithClock(func() time.Time { return base }))
			u := alice
			u.Token = tt.token

			got, ok := s.expiry(u)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				require.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
			}
		})
	}
}

// Two tabs on one SQLite file: the shared record expires like a cookie and
// the other tab drops the session on its next poll.
func TestSQLite_ExpiredRecordLogsOutOtherTab(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	ctx := context.Background()
	db, _ := openTestDB(t)

	var nowMS atomic.Int64
	nowMS.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	clock := func() time.Time { return time.UnixMilli(nowMS.Load()) }

	tabA := New(storage.NewSharedRepository(db, "tab-a", storage.WithClock(clock)),
		storage.NewTabRepository(db, "tab-a"), logging.Nop(), WithTTL(time.Minute), WithClock(clock))
	tabB := New(storage.NewSharedRepository(db, "tab-b", storage.WithClock(clock)),
		storage.NewTabRepository(db, "tab-b"), logging.Nop(), WithPollInterval(5*time.Millisecond))

	require.NoError(t, tabA.LoginSuccess(ctx, alice))
	require.NoError(t, tabB.Start(ctx))
	defer tabB.Stop()
	require.Equal(t, &alice, tabB.Current())

	nowMS.Add((2 * time.Minute).Milliseconds())
	require.Eventually(t, func() bool { return !tabB.IsAuthenticated() }, 2*time.Second, 5*time.Millisecond)

	tabB.Stop()
}

// Full cross-tab path: tab A's write reaches tab B through the watcher.
func TestSQLite_WatcherDeliversForeignLogin(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	ctx := context.Background()
	db, path := openTestDB(t)

	sharedB := storage.NewSharedRepository(db, "tab-b")
	w, err := storage.NewWatcher(path, "tab-b", sharedB, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	tabA := New(storage.NewSharedRepository(db, "tab-a"), storage.NewTabRepository(db, "tab-a"), logging.Nop())
	tabB := New(sharedB, storage.NewTabRepository(db, "tab-b"), logging.Nop(),
		WithPollInterval(time.Hour), WithNotifier(w))
	require.NoError(t, tabB.Start(ctx))
	defer tabB.Stop()

	require.NoError(t, tabA.LoginSuccess(ctx, alice))
	require.Eventually(t, func() bool { return tabB.IsAuthenticated() }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, &alice, tabB.Current())

	require.NoError(t, tabA.Logout(ctx))
	require.Eventually(t, func() bool { return !tabB.IsAuthenticated() }, 5*time.Second, 10*time.Millisecond)

	tabB.Stop()
	w.Stop()
}
