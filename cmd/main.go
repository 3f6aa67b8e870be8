package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	httpctx "github.com/dtroode/schoolhub-client/internal/api/http/context"
	"github.com/dtroode/schoolhub-client/internal/api/http/handler"
	"github.com/dtroode/schoolhub-client/internal/api/http/router"
	httpServer "github.com/dtroode/schoolhub-client/internal/api/http/server"
	"github.com/dtroode/schoolhub-client/internal/config"
	"github.com/dtroode/schoolhub-client/internal/gateway"
	"github.com/dtroode/schoolhub-client/internal/guard"
	"github.com/dtroode/schoolhub-client/internal/logger"
	"github.com/dtroode/schoolhub-client/internal/metrics"
	"github.com/dtroode/schoolhub-client/internal/model"
	"github.com/dtroode/schoolhub-client/internal/repository/postgres"
	"github.com/dtroode/schoolhub-client/internal/server"
	"github.com/dtroode/schoolhub-client/internal/session"
	"github.com/dtroode/schoolhub-client/internal/storage/memory"
	"github.com/dtroode/schoolhub-client/internal/storage/minio"
	"github.com/dtroode/schoolhub-client/internal/storage/redis"
	"github.com/dtroode/schoolhub-client/internal/storage/sqlite"
	"github.com/dtroode/schoolhub-client/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithFormat(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	// run owns every resource it opens, so a failure still releases them
	// before the process exits.
	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Fatal("client stopped with error", "error", err)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, logger *logger.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s credential store: %w", cfg.Store.Driver, err)
	}
	defer closeStore()

	gw := gateway.NewClient(cfg.API.BaseURL, cfg.API.Timeout, logger)
	inspector := token.NewInspector(cfg.Session.ExpirySkew, nil)
	flash := handler.NewFlash()

	manager := session.NewManager(store, gw, inspector, logger, session.Options{
		CheckInterval: cfg.Session.CheckInterval,
		Reconcile:     session.ReconcileMode(cfg.Session.Reconcile),
		Navigator:     flash,
		Recorder:      recorder,
	})
	defer manager.Close()

	table, err := guard.LoadTable(cfg.RoutesFile)
	if err != nil {
		return fmt.Errorf("failed to load route policies from %q: %w", cfg.RoutesFile, err)
	}
	authorizer := guard.NewAuthorizer(table, logger, recorder)

	// Guards defer until the stored session is resolved.
	go func() {
		if err := manager.Init(ctx); err != nil {
			logger.Error("failed to initialize session", "error", err)
		}
	}()

	r := router.New(manager, authorizer, flash, httpctx.NewManager(), reg, logger)
	portal := httpServer.NewHTTPServer(r.Register(), cfg.HTTP.Address)

	var sl model.SecurityLayer

	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var (
		wg       sync.WaitGroup
		startErr error
	)
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address(), "https", cfg.HTTP.EnableHTTPS)
		if err := s.Start(sl); err != nil {
			startErr = err
			stop()
		}
	}(portal)

	logAppVersion()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := portal.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", portal.Address())
	}

	wg.Wait()
	if startErr != nil {
		return fmt.Errorf("failed to start server: %w", startErr)
	}

	logger.Info("shutdown complete")
	return nil
}

// openStore builds the credential store selected by the config. The returned
// func releases its connections.
func openStore(ctx context.Context, cfg *config.Config) (model.CredentialStore, func(), error) {
	ns := cfg.Store.Namespace

	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memory.NewStore(), func() {}, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Store.Path, ns)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.DriverPostgres:
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewCredentialRepository(db, ns), func() { _ = db.Close() }, nil

	case config.DriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return redis.NewStore(client, ns), func() { _ = client.Close() }, nil

	case config.DriverMinio:
		s, err := minio.NewStore(ctx, minio.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Namespace: ns,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
