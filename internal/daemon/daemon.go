package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/poisson-noise/poisson/internal/api"
	"github.com/poisson-noise/poisson/internal/domain"
	"github.com/poisson-noise/poisson/internal/infra/activitylog"
	"github.com/poisson-noise/poisson/internal/infra/bandwidth"
	"github.com/poisson-noise/poisson/internal/infra/dataload"
	"github.com/poisson-noise/poisson/internal/infra/dispatch"
	"github.com/poisson-noise/poisson/internal/infra/engine"
	"github.com/poisson-noise/poisson/internal/infra/extcollab"
	"github.com/poisson-noise/poisson/internal/infra/orchestrator"
	"github.com/poisson-noise/poisson/internal/infra/persona"
	"github.com/poisson-noise/poisson/internal/infra/presence"
	"github.com/poisson-noise/poisson/internal/infra/ring"
	"github.com/poisson-noise/poisson/internal/infra/session"
	"github.com/poisson-noise/poisson/internal/infra/sqlite"
	"github.com/poisson-noise/poisson/internal/infra/timing"
	"github.com/poisson-noise/poisson/internal/infra/topic"
	"github.com/poisson-noise/poisson/internal/infra/torprobe"
	"github.com/poisson-noise/poisson/internal/health"
	"github.com/poisson-noise/poisson/internal/infra/metrics"
	"github.com/poisson-noise/poisson/internal/security"
)

// Daemon is the core Poisson runtime. It wires together every component
// described in spec.md §4 into one running process.
type Daemon struct {
	Config Config
	Logger *zap.Logger

	DB           *sqlite.DB
	DataLoader   *dataload.Watcher
	Personas     *persona.Registry
	Topics       *topic.Model
	Kernel       *timing.Kernel
	Dispatcher   *dispatch.Dispatcher
	Governor     *bandwidth.Governor
	Sessions     *session.Manager
	Gate         *presence.Gate
	Orchestrator *orchestrator.Orchestrator
	Health       *health.Checker
	TorProbe     *torprobe.Probe
	Ext          *extcollab.Collab
	APIKey       security.APIKey
	Server       *api.Server
	torEngine    *engine.TorEngine

	activityLog     *activitylog.Writer
	reloadListeners []dataload.Reloadable
	watcherStop     chan struct{}
	cancel          context.CancelFunc
}

// New loads configuration and builds a fully wired Daemon.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds a Daemon from an already-loaded Config.
func NewWithConfig(cfg Config) (*Daemon, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	db, err := sqlite.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	loader, err := dataload.NewWatcher(dataload.Paths{
		PersonasPath: filepath.Join(cfg.DataDir, "personas.yaml"),
		TopicsPath:   filepath.Join(cfg.DataDir, "topics.yaml"),
		SitemapsPath: filepath.Join(cfg.DataDir, "sitemaps.yaml"),
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w", err)
	}
	snap := loader.Current()

	seed := time.Now().UnixNano()

	d := &Daemon{Config: cfg, Logger: logger, DB: db, DataLoader: loader}

	d.Personas = persona.NewRegistry(snap.Personas, seed)
	if bundle, name, err := db.LoadFingerprint(); err == nil && name != "" {
		if _, pinErr := d.Personas.Pin(context.Background(), bundle); pinErr != nil {
			logger.Warn("failed to restore persisted fingerprint pin", zap.Error(pinErr))
		}
	}
	d.reloadListeners = append(d.reloadListeners,
		dataload.ReloadFunc(func(s dataload.Snapshot) { d.Personas.Reload(s.Personas) }))

	d.Topics = topic.NewModel(snap.Topics, seed+1)

	d.Kernel = timing.NewKernel(cfg.Intensity, timing.DefaultDiurnalCurve, time.Now(), seed+2)

	specs := buildEngineSpecs(cfg)
	d.Dispatcher = dispatch.NewDispatcher(specs, seed+3)

	defaultDriver := engine.NewHTTPDriver(15 * time.Second)

	browseEngine := engine.NewBrowseEngine(snap.Sitemaps, seed+4)
	d.Dispatcher.Register(browseEngine)
	d.Topics.RegisterEngineTopics(browseEngine.Name(), browseEngine.Topics())
	d.reloadListeners = append(d.reloadListeners,
		dataload.ReloadFunc(func(s dataload.Snapshot) { browseEngine.Reload(s.Sitemaps) }))

	searchEngine := engine.NewSearchEngine(nil, seed+9)
	d.Dispatcher.Register(searchEngine)
	d.Topics.RegisterEngineTopics(searchEngine.Name(), searchEngine.Topics())

	dnsEngine := engine.NewDNSEngine(seed + 5)
	d.Dispatcher.Register(dnsEngine)

	adEngine := engine.NewAdClickEngine(nil, seed+6)
	d.Dispatcher.Register(adEngine)

	researchEngine := engine.NewResearchEngine(nil, seed+7)
	d.Dispatcher.Register(researchEngine)
	d.Topics.RegisterEngineTopics(researchEngine.Name(), researchEngine.Topics())

	d.TorProbe = torprobe.NewProbe(cfg.TorSOCKS, 5*time.Second)
	var torEngine *engine.TorEngine
	if cfg.EnableTor {
		var err error
		torEngine, err = engine.NewTorEngine(cfg.TorSOCKS, nil)
		if err != nil {
			logger.Warn("tor engine unavailable", zap.Error(err))
		} else {
			d.Dispatcher.Register(torEngine)
		}
	}

	d.Governor = bandwidth.NewGovernor(bandwidth.GovernorConfig{
		WindowDuration: time.Hour,
		CapBytes:       int64(cfg.MaxBandwidthMBPerHour) * 1024 * 1024,
		TickInterval:   10 * time.Second,
	})

	restoreGovernorWindow(db, d.Governor)
	persistedGovernor := &persistingGovernor{Governor: d.Governor, db: db, logger: logger}

	activityRing := ring.NewRing(ring.DefaultCapacity)

	d.activityLog = activitylog.NewWriter(os.Stderr)

	orchCfg := orchestrator.Config{
		MeanSessionMinutes: 12,
		MinSessionMinutes:  2,
		MaxSessionMinutes:  45,
		InterSessionMean:   3,
		DefaultPageBudget:  8,
		FallbackPageBytes:  256 * 1024,
	}

	d.Gate = presence.NewGate(cfg.ScheduleMode)

	// Manager and Orchestrator depend on each other (Manager.Admit drives
	// Orchestrator.Runner; Orchestrator.Runner needs a SessionAdmitter to
	// hand session lifecycle to). The runner closure defers dereferencing
	// the orchestrator until it is actually called, which is always after
	// both are fully constructed below.
	var orch *orchestrator.Orchestrator
	runner := func(ctx context.Context, sess *domain.Session) error {
		return orch.Runner(ctx, sess)
	}
	d.Sessions = session.NewManager(cfg.MaxConcurrentSessions, runner)

	orch = orchestrator.New(
		orchCfg,
		d.Kernel,
		d.Topics,
		d.Personas,
		d.Dispatcher,
		persistedGovernor,
		d.Sessions,
		d.Gate,
		defaultDriver,
		activityRing,
		d.activityLog,
		logger,
	)
	d.Orchestrator = orch
	d.torEngine = torEngine

	if torEngine != nil {
		orch.RegisterDriver("tor", torEngine.Driver())
	}

	d.Health = health.NewChecker(db, loader, d.TorProbe, cfg.EnableTor)

	d.Ext = extcollab.NewCollab()

	apiKey, err := security.GenerateAPIKey()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	d.APIKey = apiKey
	if err := os.WriteFile(filepath.Join(cfg.DataDir, "apikey"), []byte(apiKey), 0o600); err != nil {
		logger.Warn("failed to write api key file for local CLI use", zap.Error(err))
	}

	d.Server = api.NewServer(api.Deps{
		APIKey:           apiKey,
		Dispatcher:       d.Dispatcher,
		Personas:         d.Personas,
		Sessions:         d.Sessions,
		Activity:         activityRing,
		Health:           d.Health,
		Scheduler:        d.Orchestrator,
		Intensity:        d.Kernel,
		TorStatus:        d.TorProbe,
		Fingerprints:     db,
		Presence:         d.Gate,
		Ext:              d.Ext,
		Logger:           logger,
		TorEnabled:       cfg.EnableTor,
		InitialIntensity: cfg.Intensity,
	})
	if os.Getenv("POISSON_ENABLE_METRICS") != "0" {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// Serve starts every background loop and the control-plane HTTP server,
// blocking until ctx is cancelled or a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Orchestrator.Run(ctx)
	go d.Sessions.Auditor(ctx, func(err error) { d.Logger.Error("session auditor", zap.Error(err)) })
	go d.Health.Run(ctx)
	if d.Config.EnableTor {
		go d.TorProbe.Run(ctx, 30*time.Second, d.onTorStatus)
	}
	go d.persistBandwidthPeriodically(ctx)

	d.watcherStop = make(chan struct{})
	go d.DataLoader.Run(d.watcherStop, d.reloadListeners...)
	go func() {
		<-ctx.Done()
		close(d.watcherStop)
	}()

	addr := fmt.Sprintf("%s:%d", d.Config.APIHost, d.Config.APIPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		d.Close()
	}()

	d.Logger.Info("poisson serving",
		zap.String("addr", addr),
		zap.String("intensity", string(d.Config.Intensity)),
		zap.Bool("tor_enabled", d.Config.EnableTor))

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases every resource the daemon holds. Safe to call more than
// once.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	_ = d.Logger.Sync()
}

// persistBandwidthPeriodically prunes sqlite bandwidth samples the window
// no longer needs; the samples themselves are written by
// persistingGovernor.Settle as each task settles.
func (d *Daemon) persistBandwidthPeriodically(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = d.DB.PruneBandwidthSamples(time.Now().Add(-time.Hour))
		}
	}
}

// buildEngineSpecs turns the options.json-style enable flags into the
// dispatcher's per-engine specs, with the safety-default-disabled engines
// (spec.md §4.6) only flipped on when the operator explicitly opted in.
func buildEngineSpecs(cfg Config) []domain.EngineSpec {
	return []domain.EngineSpec{
		{Name: "search", Enabled: cfg.EnableSearchNoise, Weight: 3, AllowedBySafetyDefault: true},
		{Name: "browse", Enabled: cfg.EnableBrowseNoise, Weight: 4, RequiresBrowser: true, AllowedBySafetyDefault: true},
		{Name: "dns", Enabled: cfg.EnableDNSNoise, Weight: 2, AllowedBySafetyDefault: true},
		{Name: "adclick", Enabled: cfg.EnableAdClicks, Weight: 1, RequiresBrowser: true},
		{Name: "research", Enabled: cfg.EnableResearchNoise, Weight: 1, RequiresBrowser: true},
		{Name: "tor", Enabled: cfg.EnableTor, Weight: 1, RequiresBrowser: true},
	}
}

// persistingGovernor wraps a bandwidth.Governor so every settled byte count
// is also appended to sqlite, letting the rolling hourly cap survive a
// restart (the governor itself keeps no disk state — spec.md §4.6).
type persistingGovernor struct {
	*bandwidth.Governor
	db     *sqlite.DB
	logger *zap.Logger
}

func (p *persistingGovernor) Settle(engine string, estimatedBytes, actualBytes int64) {
	p.Governor.Settle(engine, estimatedBytes, actualBytes)
	if err := p.db.AppendBandwidthSample(time.Now(), engine, actualBytes); err != nil {
		p.logger.Warn("failed to persist bandwidth sample", zap.Error(err))
	}
}

// onTorStatus fans a probe result out to the metric gauge and, if the tor
// engine is registered, its own status field (surfaced on GET /status).
func (d *Daemon) onTorStatus(up bool) {
	status := domain.TorOffline
	gauge := 3.0
	if up {
		status = domain.TorConnected
		gauge = 2.0
	}
	if d.torEngine != nil {
		d.torEngine.SetStatus(status)
	}
	metrics.TorStatus.Set(gauge)
}

// restoreGovernorWindow replays the last hour of persisted samples into the
// governor's window. Restored bytes count from the moment of the restore,
// so each stays in the window up to an hour longer than its original
// timestamp would allow.
func restoreGovernorWindow(db *sqlite.DB, g *bandwidth.Governor) {
	samples, err := db.LoadBandwidthSamples(time.Now().Add(-time.Hour))
	if err != nil {
		return
	}
	for _, s := range samples {
		g.Settle(s.Engine, 0, s.Bytes)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	return config.Build()
}
