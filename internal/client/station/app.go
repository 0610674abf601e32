// Package station wires the timing station together: local database,
// persisted Store, coordination service client, sync engine and the
// cross-tab broadcaster.
package station

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/broadcast"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/config"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/localdb"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/network"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/notify"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/persist"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/repositories/photos"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/repositories/slices"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/services"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/store"
	"github.com/jmeckel/ski-race-timer-sub004/internal/filex"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

var (
	_ services.StateStore = (*store.Store)(nil)
	_ broadcast.Applier   = (*store.Store)(nil)
	_ store.EntryPusher   = (*services.EntrySync)(nil)
	_ store.EntryDeleter  = (*services.EntrySync)(nil)
	_ store.FaultSyncer   = (*services.FaultSync)(nil)
	_ store.Broadcaster   = (*broadcast.Broadcaster)(nil)
	_ persist.Backend     = (*slices.SQLiteRepository)(nil)
	_ network.Pinger      = (*client.HTTPClient)(nil)
)

const (
	photoCacheTTL = 10 * time.Minute
	probeTimeout  = 3 * time.Second
	stopTimeout   = 5 * time.Second
)

// Option configures an App.
type Option func(*options)

type options struct {
	hub *broadcast.Hub
}

// WithHub shares an in-process broadcast hub between several Apps.
func WithHub(h *broadcast.Hub) Option {
	return func(o *options) { o.hub = h }
}

// App is one running station.
type App struct {
	cfg    *config.Config
	logger logging.Logger

	db       *sql.DB
	persist  *persist.Store
	Store    *store.Store
	API      *client.HTTPClient
	Monitor  *network.Monitor
	prober   *network.Prober
	Registry *prometheus.Registry
	Events   *notify.Bus[services.Event]
	Auth     *services.AuthService
	Engine   *services.Engine
	Entries  *services.EntrySync
	Faults   *services.FaultSync
	Tabs     *broadcast.Broadcaster
	mqtt     mqtt.Client

	reconcileCh chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	metricsSrv  *http.Server
	unsubs      []func()

	mu       sync.Mutex
	lastRace string
}

// New opens the local database, loads the persisted slices and builds every
// component. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	dbPath, err := filex.EnsureParentDir(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("prepare local database: %w", err)
	}

	db, err := localdb.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, db: db, reconcileCh: make(chan struct{}, 1)}

	blobs := photos.NewCached(photos.NewSQLiteRepository(db), photoCacheTTL)
	a.persist = persist.New(slices.NewSQLiteRepository(db), logger,
		persist.WithDebounce(cfg.FlushDebounce), persist.WithPhotos(blobs))

	snap, err := a.persist.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.Store = store.New(snap, logger, store.WithPersister(a.persist))
	if cfg.DeviceName != "" {
		a.Store.SetDeviceName(cfg.DeviceName)
	}
	if cfg.RaceID != "" {
		a.Store.SetRaceID(cfg.RaceID)
	}

	a.API, err = client.NewHTTPClient(cfg.ServerURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithRateLimit(cfg.RateLimit, max(1, int(cfg.RateLimit))),
		client.WithTokenSource(a.Store.AuthToken),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.Monitor = network.NewMonitor(false)
	a.prober = network.NewProber(a.API, a.Monitor, cfg.OnlineCheckInterval, probeTimeout, logger.With("component", "prober"))

	a.Registry = prometheus.NewRegistry()
	metrics, err := services.NewMetrics(a.Registry)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.Events = notify.NewBus[services.Event]("events", logger)
	conn := services.NewConnection(a.Store, a.Events, metrics, logger)
	a.Entries = services.NewEntrySync(a.API, a.Store, conn, a.Monitor, blobs, logger)
	a.Faults = services.NewFaultSync(a.API, a.Store, conn, a.Monitor, logger)
	a.Engine = services.NewEngine(a.Store, conn, a.Entries, a.Faults, services.NewScheduler(services.SchedulerConfig{
		Base:       cfg.PollInterval,
		Idle:       cfg.IdlePollInterval,
		IdleAfter:  services.DefaultSchedulerConfig().IdleAfter,
		MaxBackoff: cfg.MaxBackoff,
		Jitter:     services.DefaultSchedulerConfig().Jitter,
	}), logger)
	a.Auth = services.NewAuthService(a.API, a.Store, logger)

	a.Tabs = broadcast.New(a.opener(ctx, o), a.Store, a.Store.Device, logger)

	a.Store.Attach(store.Collaborators{
		EntryPusher:  a.Entries,
		EntryDeleter: a.Entries,
		FaultSyncer:  a.Faults,
		Broadcaster:  a.Tabs,
		Photos:       photos.NewPruner(blobs, logger),
	})
	return a, nil
}

func (a *App) opener(ctx context.Context, o options) broadcast.Opener {
	switch a.cfg.Broadcast {
	case config.BroadcastNone:
		return nil
	case config.BroadcastMQTT:
		clientID := "ski-race-timer-" + a.Store.Device().ID
		c, err := broadcast.ConnectMQTT(ctx, a.cfg.MQTTBroker, clientID, a.logger)
		if err != nil {
			a.logger.Warn(ctx, "broadcast broker unavailable", "broker", a.cfg.MQTTBroker, "error", err)
			return nil
		}
		a.mqtt = c
		return broadcast.MQTTOpener(c)
	default:
		if o.hub == nil {
			o.hub = broadcast.NewHub()
		}
		return o.hub.Open
	}
}

// Start runs the reachability prober, the sync reconciler and, if
// configured, the metrics endpoint.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.unsubs = append(a.unsubs,
		a.Engine.WatchNetwork(a.Monitor),
		a.Store.Subscribe(a.onChange),
		a.Events.Subscribe(a.onEvent),
	)

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.prober.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.reconcileLoop(ctx)
	}()

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
		a.metricsSrv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error(ctx, "metrics server failed", "error", err)
			}
		}()
	}

	a.requestReconcile()
	return nil
}

// onChange runs on whatever goroutine drains the Store bus, possibly the
// poll loop itself, so it only requests a reconcile.
func (a *App) onChange(n store.Notification) {
	if n.Changed(store.KeyRaceID) || n.Changed(store.KeySettings) || n.Changed(store.KeyAuthToken) {
		a.requestReconcile()
	}
}

func (a *App) onEvent(e services.Event) {
	ctx := context.Background()
	switch e.Kind {
	case services.EventAuthExpired:
		a.logger.Warn(ctx, "credential expired, log in again", "race", e.RaceID)
	case services.EventRaceDeleted:
		a.logger.Warn(ctx, "race was deleted on the service", "race", e.RaceID, "message", e.Message)
	case services.EventPushFailed, services.EventDeleteFailed:
		a.logger.Warn(ctx, "sync request failed", "kind", e.Kind, "entry", e.EntryID, "fault", e.FaultID, "error", e.Err)
	case services.EventPhotoTooLarge:
		a.logger.Warn(ctx, "photo not uploaded, too large", "entry", e.EntryID)
	case services.EventCrossDeviceDuplicate:
		if d := e.Duplicate; d != nil {
			a.logger.Warn(ctx, "bib already recorded by another device", "bib", d.Bib, "point", d.Point, "run", d.Run, "device", d.DeviceName)
		}
	case services.EventEntriesSynced, services.EventFaultsSynced:
		a.logger.Info(ctx, "synced from other devices", "kind", e.Kind, "count", e.Count)
	}
}

func (a *App) requestReconcile() {
	select {
	case a.reconcileCh <- struct{}{}:
	default:
	}
}

func (a *App) reconcileLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.reconcileCh:
			a.reconcile(ctx)
		}
	}
}

// reconcile brings the broadcaster and the sync engine in line with the
// Store: the broadcaster follows the race, the engine runs whenever sync is
// enabled for a race with a credential.
func (a *App) reconcile(ctx context.Context) {
	st := a.Store.State()

	a.mu.Lock()
	raceChanged := st.RaceID != a.lastRace
	a.lastRace = st.RaceID
	a.mu.Unlock()

	if raceChanged {
		a.Tabs.Init(st.RaceID)
	}

	ready := st.Settings.Sync && st.RaceID != "" && st.HasAuthToken
	switch {
	case !ready:
		a.Engine.Cleanup()
	case raceChanged || !a.Engine.Running():
		if err := a.Engine.Initialize(ctx); err != nil {
			a.logger.Warn(ctx, "sync not started", "error", err)
		}
	}
}

// Login exchanges the race PIN for a credential.
func (a *App) Login(ctx context.Context, pin string) error {
	return a.Auth.Login(ctx, pin)
}

// SyncNow asks the running engine for an immediate cycle.
func (a *App) SyncNow() error {
	if !a.Engine.Running() {
		return services.ErrSyncDisabled
	}
	a.Engine.Kick()
	return nil
}

// Stop halts every background task, flushes the Store and closes the database.
func (a *App) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	for _, unsub := range a.unsubs {
		unsub()
	}
	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	if err := a.Engine.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.wg.Wait()

	a.Tabs.Close()
	if a.mqtt != nil {
		a.mqtt.Disconnect(250)
	}
	a.Store.Close()
	if err := a.persist.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
