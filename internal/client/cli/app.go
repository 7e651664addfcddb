package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/reviewdesk/internal/client/client"
	"github.com/dmitrijs2005/reviewdesk/internal/client/config"
	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/reviewdesk/internal/client/session"
	"github.com/dmitrijs2005/reviewdesk/internal/client/state"
	"github.com/dmitrijs2005/reviewdesk/internal/client/storage"
	"github.com/dmitrijs2005/reviewdesk/internal/cryptox"
	"github.com/dmitrijs2005/reviewdesk/internal/filex"
	"github.com/dmitrijs2005/reviewdesk/internal/logging"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	databaseFile  = "client.db"
	deviceKeyFile = "device.key"
)

// sessionController is the part of *session.Controller the CLI drives.
type sessionController interface {
	Session() models.Session
	Subscribe(fn session.Listener) func()
	RestoreSession(ctx context.Context) error
	Login(ctx context.Context, req models.LoginRequest) error
	Register(ctx context.Context, req models.RegisterRequest) error
	Logout(ctx context.Context)
	Refresh(ctx context.Context) error
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) error
	RecordEvent(ctx context.Context, kind session.EventKind)
	Scheduler() *session.RefreshScheduler
	Activity() *session.ActivityMonitor
	Close()
}

type App struct {
	config   *config.Config
	session  sessionController
	state    *state.Store
	registry *prometheus.Registry
	db       *sql.DB
	log      logging.Logger
	reader   *bufio.Reader
	out      io.Writer

	mu          sync.Mutex
	signedInAs  string
	unsubscribe func()
}

// NewApp opens the local database in the data directory and wires the
// session controller against the configured backend.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Discard()
	}

	dir, err := filex.EnsureDataDir(c.DataDir)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, filepath.Join(dir, databaseFile))
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	deviceKey, err := cryptox.LoadOrCreateKeyFile(filepath.Join(dir, deviceKeyFile))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	clock := clockwork.NewRealClock()
	primary := storage.NewSealedBackend(
		storage.NewRepositoryBackend("metadata", metadata.NewSQLiteRepository(db, metadata.PrimaryTable)),
		deviceKey)
	legacy := storage.NewRepositoryBackend("legacy", metadata.NewSQLiteRepository(db, metadata.LegacyTable))
	store := storage.NewTokenStore(log, clock, primary, legacy)

	profiles := state.New()
	registry := prometheus.NewRegistry()

	ctrl := session.NewController(session.Deps{
		Backend:  client.NewHTTPClient(c.ServerURL, c.RequestTimeout, log),
		Store:    store,
		Profiles: profiles,
		Clock:    clock,
		Log:      log,
		Metrics:  session.NewMetrics(registry),
		Config: session.Config{
			RefreshLeadTime:       c.RefreshLeadTime,
			SafetyRefreshInterval: c.SafetyRefreshInterval,
			MinRefreshDelay:       c.MinRefreshDelay,
			ActivityCheckInterval: c.ActivityCheckInterval,
			MaxInactivity:         c.MaxInactivity,
		},
	})

	a := &App{
		config:   c,
		session:  ctrl,
		state:    profiles,
		registry: registry,
		db:       db,
		log:      log,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
	a.unsubscribe = ctrl.Subscribe(a.onSessionChange)
	return a, nil
}

// Run restores the stored session and blocks in the REPL until the user
// exits. Timers are stopped on return; stored credentials are kept.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

// Close stops the controller and releases the database.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.session.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn(context.Background(), "failed to close database", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.Session().IsAuthenticated
}

// touch counts a typed command as keyboard activity.
func (a *App) touch(ctx context.Context) {
	a.session.RecordEvent(ctx, session.EventKeyPress)
}

// onSessionChange prints sign-in and sign-out transitions, including the
// ones the controller makes on its own (expiry, inactivity).
func (a *App) onSessionChange(s models.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case s.IsAuthenticated && s.User != nil && s.User.ID != a.signedInAs:
		a.signedInAs = s.User.ID
		fmt.Fprintf(a.out, "Signed in as %s\n", s.User.DisplayName())
	case !s.IsAuthenticated && !s.IsLoading && a.signedInAs != "":
		a.signedInAs = ""
		fmt.Fprintln(a.out, "Signed out.")
	}
}
