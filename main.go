package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/shopserver/internal/application/shop"
	domcatalog "github.com/example/shopserver/internal/domain/catalog"
	"github.com/example/shopserver/internal/domain/identity"
	"github.com/example/shopserver/internal/infrastructure/config"
	"github.com/example/shopserver/internal/infrastructure/id"
	"github.com/example/shopserver/internal/infrastructure/memory"
	infraobs "github.com/example/shopserver/internal/infrastructure/observability"
	"github.com/example/shopserver/internal/infrastructure/observability/oteltrace"
	"github.com/example/shopserver/internal/infrastructure/observability/prometrics"
	"github.com/example/shopserver/internal/infrastructure/observability/zaplogger"
	"github.com/example/shopserver/internal/infrastructure/transport/ws"
	"github.com/example/shopserver/internal/observability"
	"github.com/example/shopserver/internal/pkg/money"
	"github.com/example/shopserver/internal/presentation/protocol"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New(cfg.ServiceName, "")
	tel := infraobs.New(
		oteltrace.New(cfg.ServiceName),
		logger,
		map[observability.MetricKey]observability.Counter{
			observability.MCommandRequests: registry.Counter(
				string(observability.MCommandRequests),
				"Total number of protocol commands handled.",
				"command", "outcome",
			),
			observability.MCheckoutLines: registry.Counter(
				string(observability.MCheckoutLines),
				"Checkout line outcomes.",
				"result",
			),
		},
		map[observability.MetricKey]observability.Histogram{
			observability.MCommandDuration: registry.Histogram(
				string(observability.MCommandDuration),
				"Duration of protocol command handling in seconds.",
				prometheus.DefBuckets,
				"command",
			),
		},
		map[observability.MetricKey]observability.Gauge{
			observability.MActiveSessions: registry.Gauge(
				string(observability.MActiveSessions),
				"Number of live authenticated sessions.",
			),
		},
	)

	operator := &identity.Operator{ID: cfg.Operator.ID, Name: cfg.Operator.Name}

	catalogStore := memory.NewCatalogStore()
	identityRegistry := memory.NewIdentityRegistry(operator)
	sessionTable := memory.NewSessionTable(identityRegistry)
	cartStore := memory.NewCartStore()

	if err := seed(cfg, catalogStore, identityRegistry); err != nil {
		logger.Error("seed_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}

	shopService := shop.NewService(
		catalogStore,
		identityRegistry,
		sessionTable,
		cartStore,
		id.NewUUIDGenerator(),
		tel,
	)
	dispatcher := protocol.NewDispatcher(shopService, tel)
	transport := ws.NewServer(dispatcher, id.NewUUIDGenerator(), logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", transport.Handler())

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("metrics_server_start", observability.F("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_error", observability.F("error", err.Error()))
		}
	}()
	go func() {
		logger.Info("shop_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("shop_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shop_server_shutdown_error", observability.F("error", err.Error()))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics_server_shutdown_error", observability.F("error", err.Error()))
	}
	logger.Info("server_stopped")
}

// seed loads the startup catalog and customer roster through the same
// operator-only operations a live operator would use.
func seed(cfg *config.Config, catalogStore *memory.CatalogStore, registry *memory.IdentityRegistry) error {
	for _, p := range cfg.Seed.Products {
		price, err := money.Parse(p.Price)
		if err != nil {
			return err
		}
		product, err := domcatalog.NewProduct(p.ID, p.Name, price, p.Stock)
		if err != nil {
			return err
		}
		if err := catalogStore.Add(product); err != nil {
			return err
		}
	}
	for _, c := range cfg.Seed.Customers {
		if _, err := registry.RegisterCustomer(c.ID, c.Name); err != nil {
			return err
		}
	}
	return nil
}
