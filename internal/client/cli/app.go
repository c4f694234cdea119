package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/tradeclub/internal/client/api"
	"github.com/dmitrijs2005/tradeclub/internal/client/cart"
	"github.com/dmitrijs2005/tradeclub/internal/client/config"
	"github.com/dmitrijs2005/tradeclub/internal/client/models"
	"github.com/dmitrijs2005/tradeclub/internal/client/services"
	"github.com/dmitrijs2005/tradeclub/internal/client/session"
	"github.com/dmitrijs2005/tradeclub/internal/client/storage"
	"github.com/dmitrijs2005/tradeclub/internal/filex"
	"github.com/dmitrijs2005/tradeclub/internal/logging"
)

// changeLogRetention bounds how long shared change records are kept.
// Watchers only need entries written since they started.
const changeLogRetention = time.Hour

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	tab         *storage.TabRepository
	watcher     *storage.Watcher
	session     *session.Synchronizer
	cart        *cart.Store
	authService services.AuthService
	reader      *bufio.Reader
	out         io.Writer

	// busy is set while a local command runs, so only changes pushed by
	// other tabs are announced.
	busy      atomic.Bool
	closeOnce sync.Once
}

// NewApp opens the shared storage for cfg and assembles one tab.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.LogFormat, os.Stderr, cfg.Debug)
	if err != nil {
		return nil, err
	}
	logger = logger.With("tab", cfg.TabID)

	client := api.NewHTTPClient(cfg.APIBaseURL, cfg.RequestTimeout)
	return newApp(ctx, cfg, logger, client, os.Stdin, os.Stdout)
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger, client api.Client, in io.Reader, out io.Writer) (*App, error) {
	if _, err := filex.EnsureParentDir(cfg.StoragePath); err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	shared := storage.NewSharedRepository(db, cfg.TabID)
	if n, err := shared.PruneChanges(ctx, changeLogRetention); err != nil {
		logger.Warn(ctx, "change log prune failed", "error", err)
	} else if n > 0 {
		logger.Debug(ctx, "pruned change log", "rows", n)
	}

	tab := storage.NewTabRepository(db, cfg.TabID)

	opts := []session.Option{
		session.WithPollInterval(cfg.SyncInterval),
		session.WithTTL(cfg.SessionTTL),
	}

	var watcher *storage.Watcher
	if cfg.WatchStorage {
		watcher, err = storage.NewWatcher(cfg.StoragePath, cfg.TabID, shared, logger)
		if err != nil {
			logger.Warn(ctx, "storage events unavailable, relying on polling", "error", err)
			watcher = nil
		} else {
			opts = append(opts, session.WithNotifier(watcher))
		}
	}

	sess := session.New(shared, tab, logger, opts...)

	c, err := cart.Load(ctx, tab, logger)
	if err != nil {
		if watcher != nil {
			watcher.Stop()
		}
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		tab:         tab,
		watcher:     watcher,
		session:     sess,
		cart:        c,
		authService: services.NewAuthService(client, sess, logger),
		reader:      bufio.NewReader(in),
		out:         out,
	}, nil
}

// Run starts cross-tab synchronization and blocks in the REPL until the
// user exits or ctx is done. The tab is closed on return.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			a.logger.Error(ctx, "close failed", "error", err)
		}
	}()

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			a.logger.Warn(ctx, "storage watcher failed to start, relying on polling", "error", err)
		}
	}
	if err := a.session.Start(ctx); err != nil {
		return err
	}
	defer a.session.Subscribe(a.announce)()

	printlnFn("Welcome to tradeclub (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
	return nil
}

// Close stops synchronization, drops this tab's storage scope and closes
// the database. Safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		a.session.Stop()
		if a.watcher != nil {
			a.watcher.Stop()
		}
		err = errors.Join(a.tab.Drop(ctx), a.db.Close())
	})
	return err
}

func (a *App) isLoggedIn() bool {
	return a.session.IsAuthenticated()
}

// exec runs a local command with announcements muted.
func (a *App) exec(fn func() error) error {
	a.busy.Store(true)
	defer a.busy.Store(false)
	return fn()
}

func (a *App) announce(u *models.User) {
	if a.busy.Load() {
		return
	}
	if u == nil {
		fmt.Fprintln(a.out, "\n* signed out in another tab")
		return
	}
	fmt.Fprintf(a.out, "\n* signed in as %s in another tab\n", u.Email)
}

func (a *App) status() string {
	s := "guest"
	if u := a.session.Current(); u != nil {
		s = u.Email
	}
	if n := a.cart.Count(); n > 0 {
		s = fmt.Sprintf("%s cart:%d", s, n)
	}
	return "(" + s + ")"
}

func (a *App) Sync(ctx context.Context) error {
	return a.exec(func() error {
		if err := a.session.SyncFromPersistedStore(ctx); err != nil {
			return err
		}
		return a.WhoAmI(ctx)
	})
}
