package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-tenancy/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-tenancy/internal/app"
	"github.com/odyssey-erp/odyssey-tenancy/internal/audit"
	audithttp "github.com/odyssey-erp/odyssey-tenancy/internal/audit/http"
	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/db"
	"github.com/odyssey-erp/odyssey-tenancy/internal/ratelimit"
	"github.com/odyssey-erp/odyssey-tenancy/internal/roles"
	roleshttp "github.com/odyssey-erp/odyssey-tenancy/internal/roles/http"
	"github.com/odyssey-erp/odyssey-tenancy/internal/schema"
	schemahttp "github.com/odyssey-erp/odyssey-tenancy/internal/schema/http"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
	tenancyhttp "github.com/odyssey-erp/odyssey-tenancy/internal/tenancy/http"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
	usershttp "github.com/odyssey-erp/odyssey-tenancy/internal/users/http"
	"github.com/odyssey-erp/odyssey-tenancy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "odyssey-directory"})
	if err != nil {
		return fmt.Errorf("connect directory: %w", err)
	}
	defer dbpool.Close()

	metrics := observability.NewMetrics()

	// Background workers outlive the signal context so they can drain after shutdown.
	bgCtx, cancelBg := context.WithCancel(context.Background())
	var bg sync.WaitGroup
	stopBackground := func() {
		cancelBg()
		bg.Wait()
	}
	defer stopBackground()
	spawn := func(run func(context.Context)) {
		bg.Add(1)
		go func() {
			defer bg.Done()
			run(bgCtx)
		}()
	}

	var redisClient *redis.Client
	if cfg.RateLimitBackend == app.BackendRedis || cfg.AuditSink == app.SinkQueue {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	tenants := tenancy.NewManager(
		tenancy.NewPGDirectory(dbpool),
		tenancy.PGConnector{MaxConns: cfg.TenantPoolMaxConns},
		tenancy.Options{Logger: logger, Metrics: metrics, ConnectTimeout: cfg.TenantConnectTimeout},
	)
	defer tenants.Close()

	registry, err := schema.NewRegistry(schema.DefaultEntities(), metrics)
	if err != nil {
		return err
	}
	tenants.OnEvict(registry.Invalidate)

	auditStore := audit.NewStore(dbpool)
	var sink audit.Sink = auditStore
	var inspector *asynq.Inspector
	if cfg.AuditSink == app.SinkQueue {
		queueOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		queueClient := asynq.NewClient(queueOpts)
		defer queueClient.Close()
		sink = audit.NewQueueSink(queueClient)
		inspector = asynq.NewInspector(queueOpts)
		defer inspector.Close()
	}
	emitter := audit.NewAsyncEmitter(sink, cfg.AuditBuffer, logger, metrics)
	spawn(emitter.Run)

	var limiter ratelimit.Limiter
	switch cfg.RateLimitBackend {
	case app.BackendRedis:
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)
	default:
		memory := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{
			Max:     cfg.RateLimitMax,
			Window:  cfg.RateLimitWindow,
			Sweep:   cfg.RateLimitSweep,
			Logger:  logger,
			Metrics: metrics,
		})
		spawn(memory.Run)
		limiter = memory
	}

	tokens, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer)
	if err != nil {
		return err
	}
	authService := auth.NewService(auth.NewRepository(dbpool), tokens)

	roleService := roles.NewService(roles.NewRepository(dbpool, logger), cfg.RoleCacheSize, cfg.RoleCacheTTL)
	userService := users.NewService(users.NewRepository(dbpool), roleService, emitter)

	g := gate.New(gate.Deps{
		Verifier:   tokens,
		Principals: userService,
		Limiter:    limiter,
		Tenants:    tenants,
		Roles:      roleService,
		Accessors:  registry,
		Audit:      emitter,
		Logger:     logger,
		Metrics:    metrics,
	})

	params := app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Gate:    g,
		Metrics: metrics,
		Pool:    dbpool,

		AuthHandler:    auth.NewHandler(logger, authService, cfg.LoginRateLimit),
		UsersHandler:   usershttp.NewHandler(logger, userService, roleService),
		RolesHandler:   roleshttp.NewHandler(logger, roleService),
		SchemaHandler:  schemahttp.NewHandler(logger, registry, roleService),
		AuditHandler:   audithttp.NewHandler(logger, audit.NewService(auditStore)),
		TenancyHandler: tenancyhttp.NewHandler(tenants, emitter),
	}
	if inspector != nil {
		params.JobsHandler = jobs.NewHandler(inspector, logger)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      app.NewRouter(params),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	// Drain audit events before the sinks they write to are closed.
	stopBackground()
	return nil
}

// runJobsCommand handles `odyssey jobs trigger audit:prune` and `odyssey jobs stats`.
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	c := cli.NewJobsCLI(cfg.RedisAddr)
	defer c.Close()

	if len(args) == 0 {
		return errors.New("usage: odyssey jobs trigger <task> | stats")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: odyssey jobs trigger <task>")
		}
		info, err := c.Trigger(ctx, args[1], cfg.AuditRetention)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s on %s (id %s)\n", info.Type, info.Queue, info.ID)
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Printf("%s: pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
	return nil
}
