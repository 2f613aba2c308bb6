// Command certledgerd serves a certledger over HTTP.
//
// Usage:
//
//	certledgerd -config certledger.yaml
//
// Every config value can be overridden with a CERTLEDGER_* environment
// variable; see internal/config.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/api"
	audithook "github.com/xraph/certledger/audit_hook"
	"github.com/xraph/certledger/internal/config"
	"github.com/xraph/certledger/notify/kafkanotify"
	"github.com/xraph/certledger/notify/redisnotify"
	"github.com/xraph/certledger/observability"
	"github.com/xraph/certledger/store"
	"github.com/xraph/certledger/store/memory"
	"github.com/xraph/certledger/store/sqlite"
	"github.com/xraph/certledger/tx"
)

func main() {
	configPath := flag.String("config", os.Getenv("CERTLEDGER_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("certledgerd_failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, _ := cfg.Log.SlogLevel() //nolint:errcheck // checked by config.Load
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("service_starting", "store", cfg.Store.Driver, "owner", cfg.Ledger.Owner)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := observability.NewPrometheusFactory(reg)

	opts := []certledger.Option{
		certledger.WithLogger(logger),
		certledger.WithPluginTimeout(cfg.Ledger.PluginTimeout),
		certledger.WithPlugin(observability.NewMetricsExtension(factory)),
		certledger.WithPlugin(audithook.New(auditLog(logger), audithook.WithLogger(logger))),
	}
	notifierOpts, closeNotifiers, err := notifiers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifiers()
	opts = append(opts, notifierOpts...)

	l := certledger.New(s, cfg.OwnerAddress(), opts...)
	if err := l.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}
	defer func() {
		if err := l.Stop(); err != nil {
			logger.Error("ledger_stop_error", "error", err)
		}
	}()

	var txOpts []tx.Option
	txOpts = append(txOpts, tx.WithLogger(logger))
	if cfg.Ledger.LenientFallback {
		txOpts = append(txOpts, tx.WithLenientFallback())
	}
	dispatcher := tx.NewDispatcher(l, txOpts...)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		Handler:        api.NewHandler(logger, l, dispatcher),
		Logger:         logger,
		Metrics:        api.NewHTTPMetrics(reg),
		MetricsHandler: factory.Handler(),
		BasePath:       cfg.Ledger.BasePath,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listen", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_error", "error", err)
	}
	logger.Info("service_stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	default:
		s, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// notifiers builds the broker plugins enabled in cfg. The returned func
// releases connections the ledger does not close on shutdown.
func notifiers(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]certledger.Option, func(), error) {
	var (
		opts    []certledger.Option
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Kafka.Brokers != "" {
		w, err := kafkanotify.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, closeAll, err
		}
		// The notifier closes the writer in its shutdown hook.
		opts = append(opts, certledger.WithPlugin(kafkanotify.New(w, kafkanotify.WithLogger(logger))))
		logger.Info("kafka_notifier_enabled", "topic", w.Topic)
	}

	if cfg.Redis.Addr != "" {
		rdb, err := redisnotify.Dial(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		opts = append(opts, certledger.WithPlugin(redisnotify.New(rdb,
			redisnotify.WithChannel(cfg.Redis.Channel),
			redisnotify.WithLogger(logger),
		)))
		logger.Info("redis_notifier_enabled", "channel", cfg.Redis.Channel)
	}

	return opts, closeAll, nil
}

// auditLog writes audit events to the structured log.
func auditLog(logger *slog.Logger) audithook.RecorderFunc {
	return func(_ context.Context, evt *audithook.AuditEvent) error {
		logger.Info("audit",
			"action", evt.Action,
			"resource", evt.Resource,
			"resource_id", evt.ResourceID,
			"outcome", evt.Outcome,
			"severity", evt.Severity,
			"reason", evt.Reason,
		)
		return nil
	}
}
