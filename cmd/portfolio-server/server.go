package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/brandworks/portfolio-engine/pkg/assets"
	"github.com/brandworks/portfolio-engine/pkg/audit"
	"github.com/brandworks/portfolio-engine/pkg/authz"
	"github.com/brandworks/portfolio-engine/pkg/cache"
	"github.com/brandworks/portfolio-engine/pkg/cleanup"
	"github.com/brandworks/portfolio-engine/pkg/database"
	"github.com/brandworks/portfolio-engine/pkg/ha"
	"github.com/brandworks/portfolio-engine/pkg/portfolio"
	"github.com/brandworks/portfolio-engine/pkg/streams"
)

// serverConfig collects the per-concern configuration of the server.
type serverConfig struct {
	Identity     *authz.IdentityConfig
	Audit        *audit.AuditConfig
	Cleanup      *cleanup.Config
	HA           *ha.HAConfig
	Invalidation *cache.InvalidationConfig
	Assets       assets.Store
	MaxBytes     int64
	Streams      *streams.Registry
}

// app wires the stores, the service and the background workers over one
// database connection.
type app struct {
	db         *gorm.DB
	cfg        serverConfig
	gate       *authz.Gate
	resolver   authz.IdentityResolver
	stores     *portfolio.Stores
	svc        *portfolio.Service
	auditStore *audit.Store
	jobs       *cleanup.JobStore
	elector    *ha.LeaderElector
	startedAt  time.Time
	logger     *slog.Logger
}

func newApp(db *gorm.DB, cfg serverConfig, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.DefaultAuditConfig()
	}
	if cfg.Cleanup == nil {
		cfg.Cleanup = cleanup.DefaultConfig()
	}
	if cfg.HA == nil {
		cfg.HA = ha.DefaultHAConfig()
	}
	if err := cfg.HA.Validate(); err != nil {
		return nil, err
	}
	if cfg.Assets == nil {
		cfg.Assets = assets.NewMemoryStore("")
	}
	if cfg.Streams == nil {
		cfg.Streams = streams.DefaultRegistry()
	}

	resolver, err := authz.NewResolver(cfg.Identity, logger)
	if err != nil {
		return nil, fmt.Errorf("identity resolver: %w", err)
	}

	a := &app{
		db:         db,
		cfg:        cfg,
		gate:       authz.NewGate(),
		resolver:   resolver,
		stores:     portfolio.NewStores(db),
		auditStore: audit.NewStore(db),
		jobs:       cleanup.NewJobStore(db),
		startedAt:  time.Now(),
		logger:     logger,
	}
	a.elector = ha.NewLeaderElector(cfg.HA, db, cfg.HA.Identity, logger)

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Audit.Enabled {
		recorder = audit.NewStoreRecorder(a.auditStore, logger)
	}
	a.svc = portfolio.NewService(a.stores, portfolio.Dependencies{
		Gate:          a.gate,
		Assets:        cfg.Assets,
		Cleanup:       a.jobs,
		Audit:         recorder,
		Invalidator:   cache.NewInvalidator(cfg.Invalidation, logger),
		Streams:       cfg.Streams,
		MaxImageBytes: cfg.MaxBytes,
	}, logger)
	return a, nil
}

// migrate creates or updates every table under the migration lock so that
// replicas starting together do not race.
func (a *app) migrate(ctx context.Context) error {
	locker := ha.NewMigrationLocker(a.db, a.cfg.HA, a.logger)
	return locker.WithLock(ctx, func() error {
		if err := a.stores.AutoMigrate(); err != nil {
			return err
		}
		if err := a.auditStore.AutoMigrate(); err != nil {
			return err
		}
		if err := a.jobs.AutoMigrate(); err != nil {
			return err
		}
		return a.elector.AutoMigrate()
	})
}

// routes builds the HTTP handler.
func (a *app) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", streams.Header},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(authz.IdentityMiddleware(a.resolver, a.logger))
	// Audit wraps the gate so that edge denials are recorded too.
	if a.cfg.Audit.Enabled {
		r.Use(audit.Middleware(a.auditStore, a.cfg.Audit, a.logger))
	}
	r.Use(authz.GateMiddleware(a.gate))

	r.Get("/healthz", a.healthHandler)
	r.Get("/livez", a.healthHandler)
	r.Get("/readyz", a.readyHandler)

	r.Mount(authz.PortfolioAPIPrefix, portfolio.Router(a.svc, a.gate, a.jobs, a.logger))
	r.Mount(authz.AuditAPIPrefix, audit.Router(a.auditStore, a.gate))
	return r
}

// background runs the asset cleanup pool and the audit retention sweep
// until ctx is cancelled. With leader election enabled only the leader
// runs them.
func (a *app) background(ctx context.Context, deleter cleanup.AssetDeleter) {
	work := func(ctx context.Context) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			audit.NewRetentionWorker(a.auditStore, a.cfg.Audit, a.logger).Run(ctx)
		}()
		cleanup.NewWorkerPool(a.jobs, deleter, a.cfg.Cleanup, a.logger).WithReferenceChecker(a.svc).Run(ctx)
		<-done
	}

	if !a.cfg.HA.LeaderElectionEnabled {
		work(ctx)
		return
	}
	a.elector.OnStartLeading(work)
	a.elector.OnStopLeading(func() {
		a.logger.Info("background workers stopped after losing leadership")
	})
	a.elector.Run(ctx)
}

func (a *app) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(a.startedAt).Round(time.Second).String(),
	})
}

// readyHandler reports ready once the database answers a ping.
func (a *app) readyHandler(w http.ResponseWriter, r *http.Request) {
	dbStatus := map[string]string{"status": "up"}
	status := http.StatusOK
	if err := database.Ping(a.db); err != nil {
		dbStatus["status"] = "down"
		dbStatus["error"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":   "ready",
		"database": dbStatus,
		"streams":  a.cfg.Streams.Names(),
	}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	if a.cfg.HA.LeaderElectionEnabled {
		body["leader"] = a.elector.IsLeader()
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
