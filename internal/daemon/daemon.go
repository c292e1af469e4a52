// Package daemon runs a hub with the standard modules behind the admin API.
package daemon

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/mobilecore/internal/api"
	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/daemon/control"
	"git.home.luguber.info/inful/mobilecore/internal/extensions/assurance"
	"git.home.luguber.info/inful/mobilecore/internal/extensions/configuration"
	"git.home.luguber.info/inful/mobilecore/internal/extensions/signal"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/hitqueue"
	"git.home.luguber.info/inful/mobilecore/internal/hub"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/metrics"
	"git.home.luguber.info/inful/mobilecore/internal/network"
	"git.home.luguber.info/inful/mobilecore/internal/retry"
	"git.home.luguber.info/inful/mobilecore/internal/version"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// Option configures a Daemon.
type Option func(*Daemon)

func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithNetwork replaces the HTTP transport used by the signal module.
func WithNetwork(n network.Service) Option {
	return func(d *Daemon) { d.net = n }
}

// WithAssuranceConnector replaces the NATS connector of the assurance module.
func WithAssuranceConnector(fn assurance.ConnectFunc) Option {
	return func(d *Daemon) { d.connect = fn }
}

// WithDebounce sets how long the config file must be quiet before a reload.
func WithDebounce(wait time.Duration) Option {
	return func(d *Daemon) { d.debounce = wait }
}

// Daemon owns a booted hub, its modules and the surfaces around it.
type Daemon struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	net        network.Service
	connect    assurance.ConnectFunc
	debounce   time.Duration

	registry *prom.Registry
	recorder metrics.Recorder

	hub       *hub.Hub
	config    *configuration.Extension
	signal    *signal.Extension
	assurance *assurance.Extension
	server    *api.Server
	scheduler *Scheduler
	bus       *control.Bus

	started atomic.Bool
	status  atomic.Value // Status
	reloads atomic.Int64

	mu      sync.Mutex
	samples map[string]int64
}

// New builds the hub, registers the configuration, signal and (when
// enabled) assurance modules and boots it. configPath may be empty to
// disable file watching.
func New(cfg *config.Config, configPath string, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required").Build()
	}
	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		logger:     slog.Default(),
		debounce:   DefaultDebounce,
		recorder:   metrics.NoopRecorder{},
		bus:        control.NewBus(),
		samples:    make(map[string]int64),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.status.Store(StatusStopped)
	if d.net == nil {
		d.net = network.FromConfig("signal", cfg, d.logger)
	}
	if d.connect == nil {
		d.connect = assurance.NATSConnector(cfg.Assurance)
	}

	if cfg.Metrics.Enabled {
		d.registry = prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}

	h, err := hub.New(cfg.Hub.Name,
		hub.WithLogger(d.logger),
		hub.WithRecorder(d.recorder),
		hub.WithModuleThreads(cfg.Hub.ModuleThreads),
		hub.WithSDKVersion(version.Version))
	if err != nil {
		return nil, err
	}
	d.hub = h

	if err := d.registerModules(); err != nil {
		h.Dispose(cfg.DisposeTimeout())
		return nil, err
	}
	h.FinishModulesRegistration()

	scheduler, err := NewScheduler(d.logger)
	if err != nil {
		h.Dispose(cfg.DisposeTimeout())
		return nil, err
	}
	if _, err := scheduler.Every("queue-sample", cfg.QueueSampleInterval(), d.SampleQueues); err != nil {
		h.Dispose(cfg.DisposeTimeout())
		return nil, err
	}
	d.scheduler = scheduler

	serverOpts := []api.Option{
		api.WithQueues(d.Queues),
		api.WithTokens(cfg.Admin.Tokens),
		api.WithLogger(d.logger),
	}
	if d.registry != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(metrics.HTTPHandler(d.registry)))
	}
	d.server = api.NewServer(cfg.Admin.Listen, h, serverOpts...)
	return d, nil
}

func (d *Daemon) registerModules() error {
	svc, err := hitqueue.NewSQLiteService(d.cfg.HitQueue.DataDir)
	if err != nil {
		return err
	}

	d.config = configuration.FromConfig(d.cfg)
	d.signal = signal.New(svc, d.net,
		hitqueue.WithRetryPolicy(retry.FromConfig(d.cfg)),
		hitqueue.WithLogger(d.logger),
		hitqueue.WithRecorder(d.recorder))
	exts := []hub.Extension{d.config, d.signal}
	if d.cfg.Assurance.Enabled {
		d.assurance = assurance.New(d.connect, d.cfg.Assurance.SubjectPrefix)
		exts = append(exts, d.assurance)
	}
	for _, ext := range exts {
		if err := d.hub.RegisterModule(ext); err != nil {
			return err
		}
	}
	return nil
}

// Hub returns the daemon's hub.
func (d *Daemon) Hub() *hub.Hub { return d.hub }

// Server returns the admin API server.
func (d *Daemon) Server() *api.Server { return d.server }

// Status returns the run state.
func (d *Daemon) Status() Status { return d.status.Load().(Status) }

// Reloads counts configuration updates dispatched after file changes.
func (d *Daemon) Reloads() int64 { return d.reloads.Load() }

// Queues lists the open hit queues.
func (d *Daemon) Queues() []api.Queue {
	var out []api.Queue
	if q := d.signal.Queue(); q != nil {
		out = append(out, q)
	}
	return out
}

// SampleQueues records the size of every open queue.
func (d *Daemon) SampleQueues() {
	for _, q := range d.Queues() {
		n := q.Size()
		d.recorder.SetHitQueueSize(q.Table(), n)
		d.mu.Lock()
		d.samples[q.Table()] = n
		d.mu.Unlock()
	}
}

// Samples returns the last sampled size per queue table.
func (d *Daemon) Samples() map[string]int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.samples)
}

// Run serves the admin API, watches the config file and runs the scheduler
// until ctx is done or one of them fails. The hub is disposed before Run
// returns; a Daemon cannot be run twice.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return errors.DaemonError("daemon already started").Build()
	}
	var watcher *ConfigWatcher
	if d.configPath != "" {
		w, err := NewConfigWatcher(d.configPath, d.bus, d.debounce, d.logger)
		if err != nil {
			d.stop()
			return err
		}
		watcher = w
	}
	d.status.Store(StatusRunning)
	d.logger.Info("Daemon starting", logfields.Hub(d.hub.Name()), slog.String("version", version.Version))

	g, gctx := errgroup.WithContext(ctx)
	changes, unsubscribe := control.Subscribe[control.ConfigChanged](d.bus, 1)

	g.Go(d.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), d.cfg.DisposeTimeout())
		defer cancel()
		return d.server.Shutdown(sctx)
	})
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	g.Go(func() error {
		d.reloadLoop(gctx, changes)
		return nil
	})
	d.scheduler.Start()

	err := g.Wait()
	unsubscribe()
	d.stop()
	if err != nil {
		d.logger.Error("Daemon stopped with error", logfields.Error(err))
		return err
	}
	d.logger.Info("Daemon stopped")
	return nil
}

func (d *Daemon) stop() {
	d.status.Store(StatusStopping)
	d.bus.Close()
	if err := d.scheduler.Stop(); err != nil {
		d.logger.Warn("Scheduler did not stop cleanly", logfields.Error(err))
	}
	if !d.hub.Dispose(d.cfg.DisposeTimeout()) {
		d.logger.Warn("Hub disposal timed out", slog.Duration("timeout", d.cfg.DisposeTimeout()))
	}
	d.status.Store(StatusStopped)
}

func (d *Daemon) reloadLoop(ctx context.Context, changes <-chan control.ConfigChanged) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-changes:
			if !ok {
				return
			}
			d.reload(msg.Path)
		}
	}
}

// reload re-reads the config file and forwards its sdk section and rules
// to the configuration module. Other sections need a restart.
func (d *Daemon) reload(path string) {
	next, err := config.Load(path)
	if err != nil {
		d.logger.Warn("Configuration reload rejected", logfields.Path(path), logfields.Error(err))
		return
	}
	update := maps.Clone(next.SDK)
	if update == nil {
		update = map[string]any{}
	}
	update[configuration.KeyRules] = next.Rules
	if _, err := d.hub.Dispatch(configuration.UpdateRequest(update)); err != nil {
		d.logger.Warn("Configuration reload not dispatched", logfields.Error(err))
		return
	}
	d.reloads.Add(1)
	d.logger.Info("Configuration reloaded", logfields.Path(path), slog.Int("rules", len(next.Rules)))
}
