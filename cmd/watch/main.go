package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"market-forecast-lab/internal/advisor"
	"market-forecast-lab/internal/config"
	"market-forecast-lab/internal/forecast"
	"market-forecast-lab/internal/marketdata"
	"market-forecast-lab/internal/observability"
	"market-forecast-lab/internal/orchestrator"
	"market-forecast-lab/internal/regressor"
	"market-forecast-lab/internal/storage"
	chstore "market-forecast-lab/internal/storage/clickhouse"
	"market-forecast-lab/internal/storage/memory"
	"market-forecast-lab/internal/storage/migrations"
	pgstore "market-forecast-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of configured DSNs")
	flag.Parse()

	logger := log.New(os.Stderr, "[watch] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Stores: in-memory unless DSNs are configured
	var recordStore storage.PredictionRecordStore = memory.NewPredictionRecordStore()
	var eventStore storage.SessionEventStore = memory.NewSessionEventStore()
	var sampleStore storage.TrialSampleStore = memory.NewTrialSampleStore()

	if !*useMemory && cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("run postgres migrations: %v", err)
		}

		recordStore = pgstore.NewPredictionRecordStore(pool)
		eventStore = pgstore.NewSessionEventStore(pool)
		logger.Println("Using PostgreSQL for records and events")
	}

	if !*useMemory && cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		sampleStore = chstore.NewTrialSampleStore(conn)
		logger.Println("Using ClickHouse for trial samples")
	}

	// Market data source
	sourceOpts := []marketdata.CoinGeckoOption{}
	if cfg.Market.BaseURL != "" {
		sourceOpts = append(sourceOpts, marketdata.WithBaseURL(cfg.Market.BaseURL))
	}
	if cfg.Market.APIKey != "" {
		sourceOpts = append(sourceOpts, marketdata.WithAPIKey(cfg.Market.APIKey))
	}
	source := marketdata.NewCoinGecko(sourceOpts...)

	// Optional streaming price source for monitor polling
	var prices marketdata.PriceSource = source
	if cfg.Market.WSEndpoint != "" {
		ticker, err := marketdata.NewWSTicker(ctx, cfg.Market.WSEndpoint, nil)
		if err != nil {
			logger.Printf("WS ticker dial failed, monitors poll the REST source: %v", err)
		} else {
			defer ticker.Close()
			prices = ticker
			logger.Printf("Monitors poll the trade stream at %s", cfg.Market.WSEndpoint)
		}
	}

	// Optional Prometheus endpoint
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		go func() {
			logger.Printf("Metrics endpoint listening on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("Metrics endpoint stopped: %v", err)
			}
		}()
	}

	factory := regressor.NewFactory()

	o := orchestrator.New(orchestrator.Options{
		Source:   source,
		Prices:   prices,
		Trainer:  forecast.NewTrainer(factory),
		Ensemble: forecast.NewEnsemble(factory),
		Advisor: advisor.New(advisor.Options{
			Records: recordStore,
			Samples: sampleStore,
			Limit:   cfg.Monitor.HistoryLimit,
			Logger:  logger,
		}),
		Records:        recordStore,
		Events:         eventStore,
		Samples:        sampleStore,
		AssetID:        cfg.Market.AssetID,
		Days:           cfg.Market.Days,
		Lookback:       cfg.Forecast.Lookback,
		Steps:          cfg.Forecast.Steps,
		Trials:         cfg.Forecast.Trials,
		MonitorEnabled: cfg.Monitor.Enabled,
		Slots:          cfg.Monitor.Slots,
		PollInterval:   cfg.PollInterval(),
		Logger:         logger,
	})

	if !cfg.Schedule.Enabled {
		logger.Println("Schedule disabled, running a single cycle")
		if _, err := o.RunCycle(ctx); err != nil {
			logger.Fatalf("forecast cycle failed: %v", err)
		}
		return
	}

	if err := o.RunLoop(ctx, cfg.CycleInterval()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("forecast loop stopped: %v", err)
	}
	logger.Println("Shutdown complete")
}
