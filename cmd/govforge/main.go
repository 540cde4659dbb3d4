package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/GovForge/internal/adapter/analysis"
	cfhttp "github.com/Strob0t/GovForge/internal/adapter/http"
	"github.com/Strob0t/GovForge/internal/adapter/keylock"
	govmcp "github.com/Strob0t/GovForge/internal/adapter/mcp"
	"github.com/Strob0t/GovForge/internal/adapter/memory"
	cfnats "github.com/Strob0t/GovForge/internal/adapter/nats"
	"github.com/Strob0t/GovForge/internal/adapter/natskv"
	cfotel "github.com/Strob0t/GovForge/internal/adapter/otel"
	"github.com/Strob0t/GovForge/internal/adapter/postgres"
	"github.com/Strob0t/GovForge/internal/adapter/redislock"
	"github.com/Strob0t/GovForge/internal/adapter/ristretto"
	"github.com/Strob0t/GovForge/internal/adapter/tiered"
	"github.com/Strob0t/GovForge/internal/adapter/workflowengine"
	"github.com/Strob0t/GovForge/internal/adapter/ws"
	"github.com/Strob0t/GovForge/internal/config"
	"github.com/Strob0t/GovForge/internal/logger"
	"github.com/Strob0t/GovForge/internal/middleware"
	"github.com/Strob0t/GovForge/internal/port/cache"
	cognitiveport "github.com/Strob0t/GovForge/internal/port/cognitive"
	"github.com/Strob0t/GovForge/internal/port/database"
	"github.com/Strob0t/GovForge/internal/port/locker"
	"github.com/Strob0t/GovForge/internal/port/messagequeue"
	alertport "github.com/Strob0t/GovForge/internal/port/notifier"
	"github.com/Strob0t/GovForge/internal/port/workflow"
	"github.com/Strob0t/GovForge/internal/resilience"
	"github.com/Strob0t/GovForge/internal/secrets"
	"github.com/Strob0t/GovForge/internal/service"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	var err error
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			err = runMigrate(os.Args[2:])
		case "token":
			err = runToken(os.Args[2:])
		case "voters":
			err = runVoters(os.Args[2:])
		case "serve":
			err = run()
		default:
			printUsage()
			err = fmt.Errorf("unknown command: %s", os.Args[1])
		}
	} else {
		err = run()
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: govforge [command]

Commands:
  serve     Run the governance API (default)
  migrate   Apply or roll back database migrations
  token     Issue a bearer token for an actor
  voters    Manage the voter registry
`)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"locker", cfg.Store.Locker,
		"engine", cfg.Execution.Engine,
		"log_level", cfg.Logging.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	shutdownOTEL, err := cfotel.Init(ctx, cfg.Logging.Service, cfg.OTEL.Endpoint, cfg.OTEL.Insecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	vault, err := openVault(cfg)
	if err != nil {
		return err
	}

	// --- Infrastructure ---
	var readiness []cfhttp.ReadinessCheck

	store, closeStore, ping, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	readiness = append(readiness, cfhttp.ReadinessCheck{Name: "store", Check: ping})

	lk, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	var queue *cfnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Error("nats drain", "error", err)
			}
		}()
		readiness = append(readiness, cfhttp.ReadinessCheck{Name: "nats", Check: func(context.Context) error {
			if !queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()

	views, err := viewCache(ctx, cfg, queue, l1)
	if err != nil {
		return err
	}
	idem, err := idempotencyStore(ctx, cfg, queue, l1)
	if err != nil {
		return err
	}

	// --- Services ---
	hub := ws.NewHub(originPattern(cfg.Server.CORSOrigin))

	gov, err := service.NewGovernanceService(store, lk, &cfg.Governance)
	if err != nil {
		return fmt.Errorf("governance: %w", err)
	}
	gov.SetBroadcaster(hub)
	gov.SetMetrics(metrics)
	if queue != nil {
		gov.SetQueue(queue)
	}
	if views != nil {
		gov.SetViewCache(views, cfg.Cache.L2TTL)
	}

	// A nil analyzer records every proposal's analysis as unavailable.
	var analyzer cognitiveport.Analyzer
	if cfg.Cognitive.URL != "" {
		client := analysis.NewClient(cfg.Cognitive.URL, cfg.Cognitive.APIKey, cfg.Cognitive.Timeout)
		client.SetAPIKeySource(vault.Source(secrets.KeyCognitiveAPIKey, cfg.Cognitive.APIKey))
		client.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		analyzer = client
	}
	analysisSvc := service.NewAnalysisService(store, lk, analyzer, cfg.Cognitive.Timeout, cfg.Governance.LockTimeout)
	analysisSvc.SetBroadcaster(hub)
	analysisSvc.SetMetrics(metrics)
	if views != nil {
		analysisSvc.SetViewCache(views)
	}
	gov.SetAnalysis(analysisSvc)

	var (
		engine workflow.Engine
		local  *workflowengine.LocalEngine
	)
	switch cfg.Execution.Engine {
	case "nats":
		engine = workflowengine.NewNATSEngine(queue)
	default:
		local = workflowengine.NewLocalEngine(nil)
		engine = local
	}
	execSvc := service.NewExecutionService(store, lk, engine, service.ExecutionConfig{
		MaxAttempts:    cfg.Execution.MaxAttempts,
		BaseBackoff:    cfg.Execution.BaseBackoff,
		MaxBackoff:     cfg.Execution.MaxBackoff,
		AttemptTimeout: cfg.Execution.AttemptTimeout,
		LockTimeout:    cfg.Governance.LockTimeout,
		ClaimLease:     cfg.Execution.ClaimLease,
	})
	execSvc.SetBroadcaster(hub)
	execSvc.SetMetrics(metrics)
	if views != nil {
		execSvc.SetViewCache(views)
	}
	gov.SetExecution(execSvc)
	if local != nil {
		local.SetReporter(execSvc.HandleStatus)
	}

	if queue != nil {
		cancelStatus, err := queue.Subscribe(ctx, messagequeue.SubjectExecutionStatus, statusHandler(execSvc))
		if err != nil {
			return fmt.Errorf("execution status subscriber: %w", err)
		}
		defer cancelStatus()
	}

	alerts, err := buildAlerts(cfg.Alerts)
	if err != nil {
		return err
	}
	gov.SetAlerts(alerts)
	execSvc.SetAlerts(alerts)

	voterSvc := service.NewVoterService(store, gov.Calculator(), cfg.Governance.Eligibility)
	sweeper := service.NewSweeper(gov, execSvc, cfg.Governance.SweepInterval)

	// --- HTTP ---
	var verifier *middleware.TokenVerifier
	if cfg.Auth.Enabled {
		verifier = middleware.NewRotatingTokenVerifier(vault.Source(secrets.KeyJWTSecret, cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	} else {
		slog.Warn("auth disabled, actors are taken from request headers")
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	handlers := &cfhttp.Handlers{
		Governance: gov,
		Voters:     voterSvc,
		Execution:  execSvc,
		Readiness:  readiness,
		Version:    version,
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(limiter.Handler)
	r.Use(middleware.Auth(verifier, cfg.Auth.Enabled))

	// /ws is mounted outside the timeout so connections stay open.
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		cfhttp.MountRoutes(r, handlers, cfhttp.RouteOptions{
			Idempotency: middleware.Idempotency(idem, cfg.Idempotency.TTL),
		})
	})
	r.Get("/ws", hub.HandleWS)

	var mcpSrv *govmcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = govmcp.NewServer(govmcp.ServerConfig{Name: cfg.Logging.Service, Version: version}, gov)
		r.With(middleware.RequireActor).Handle("/mcp", mcpSrv.Handler())
		slog.Info("mcp endpoint enabled", "path", "/mcp")
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		reloadOnHangup(gctx, vault)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		if mcpSrv != nil {
			if err := mcpSrv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("mcp shutdown", "error", err)
			}
		}
		err := srv.Shutdown(shutdownCtx)
		analysisSvc.Wait()
		execSvc.Wait()
		alerts.Wait()
		return err
	})
	return g.Wait()
}

// openVault loads rotatable secrets from the environment, overridden by the
// secrets file when one is configured.
func openVault(cfg *config.Config) (*secrets.Vault, error) {
	loader := secrets.EnvLoader(secrets.KeyJWTSecret, secrets.KeyCognitiveAPIKey)
	if cfg.Secrets.File != "" {
		loader = secrets.Chain(loader, secrets.FileLoader(cfg.Secrets.File))
	}
	v, err := secrets.NewVault(loader)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	return v, nil
}

// reloadOnHangup re-reads the vault on every SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, v *secrets.Vault) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := v.Reload(); err != nil {
				slog.Error("secret reload failed, keeping previous values", "error", err)
				continue
			}
			slog.Info("secrets reloaded", "keys", v.Keys())
		}
	}
}

// openStore returns the configured database store, its cleanup and a ping
// for the readiness probe.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, func(), func(context.Context) error, error) {
	if cfg.Store.Driver == "memory" {
		slog.Warn("using in-memory store, state is lost on restart")
		s := memory.NewStore()
		return s, func() {}, s.Ping, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: %w", err)
	}
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	s := postgres.NewStore(pool)
	return s, pool.Close, s.Ping, nil
}

func openLocker(ctx context.Context, cfg *config.Config) (locker.Locker, func(), error) {
	if cfg.Store.Locker != "redis" {
		return keylock.New(), func() {}, nil
	}
	client, err := redislock.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	slog.Info("redis connected", "addr", cfg.Redis.Addr)
	return redislock.New(client, cfg.Redis.LockTTL), closeRedis(client), nil
}

func closeRedis(c *redis.Client) func() {
	return func() {
		if err := c.Close(); err != nil {
			slog.Error("redis close", "error", err)
		}
	}
}

// viewCache returns the proposal view cache: ristretto in front of a NATS KV
// bucket when NATS is available, ristretto alone otherwise.
func viewCache(ctx context.Context, cfg *config.Config, queue *cfnats.Queue, l1 *ristretto.Cache) (cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if queue == nil {
		return l1, nil
	}
	kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		return nil, fmt.Errorf("view cache: %w", err)
	}
	return tiered.New(l1, natskv.New(kv), cfg.Cache.L1TTL), nil
}

// idempotencyStore keeps replayable responses in NATS KV so they survive
// restarts and are shared across replicas.
func idempotencyStore(ctx context.Context, cfg *config.Config, queue *cfnats.Queue, l1 *ristretto.Cache) (cache.Cache, error) {
	if queue == nil {
		return l1, nil
	}
	kv, err := queue.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
	if err != nil {
		return nil, fmt.Errorf("idempotency store: %w", err)
	}
	return natskv.New(kv), nil
}

// statusHandler applies execution status reports from the workflow engine.
// Reports that can never apply are acknowledged instead of redelivered.
func statusHandler(exec *service.ExecutionService) messagequeue.Handler {
	return func(ctx context.Context, _ string, data []byte) error {
		report, err := workflowengine.DecodeStatus(data)
		if err != nil {
			slog.ErrorContext(ctx, "undecodable execution status", "error", err)
			return nil
		}
		if err := exec.HandleStatus(ctx, report); err != nil {
			if service.IsTerminalReportError(err) {
				slog.WarnContext(ctx, "execution status dropped", "proposal_id", report.ProposalID, "error", err)
				return nil
			}
			return err
		}
		return nil
	}
}

// buildAlerts creates a notifier per configured provider.
func buildAlerts(cfg config.Alerts) (*service.NotificationService, error) {
	var notifiers []alertport.Notifier
	for _, name := range slices.Sorted(maps.Keys(cfg.Providers)) {
		n, err := alertport.New(name, cfg.Providers[name])
		if err != nil {
			return nil, fmt.Errorf("alerts: %w", err)
		}
		notifiers = append(notifiers, n)
	}
	if len(notifiers) > 0 {
		slog.Info("alerts enabled", "providers", len(notifiers), "available", alertport.Available())
	}
	return service.NewNotificationService(notifiers, cfg.Events, cfg.Timeout), nil
}

// originPattern converts the dashboard origin into a WebSocket origin pattern.
func originPattern(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}
