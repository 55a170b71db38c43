package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"alert-backtest-lab/internal/cache"
	"alert-backtest-lab/internal/cli"
	"alert-backtest-lab/internal/config"
	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/optimizer"
	"alert-backtest-lab/internal/reporting"
	"alert-backtest-lab/internal/simulation"
)

func main() {
	cfg, err := config.Load(os.Getenv("BACKTEST_ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	mode := flag.String("mode", optimizer.ModeTrade, "Scoring mode: trade, portfolio")
	objective := flag.String("objective", domain.ObjectiveTotalReturn, "Objective: total_return, expectancy, win_rate, max_drawdown")

	// Data sources
	flag.StringVar(&cfg.SnapshotPath, "snapshot", cfg.SnapshotPath, "Arrow candle snapshot file")
	flag.StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string for candles")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string for alerts")
	alertsCSV := flag.String("alerts-csv", "", "CSV file of alerts (token,caller,timestamp_ms[,chain])")

	// Window
	flag.IntVar(&cfg.IntervalSeconds, "interval", cfg.IntervalSeconds, "Candle interval (seconds)")
	flag.Float64Var(&cfg.HorizonHours, "horizon", cfg.HorizonHours, "Evaluation horizon (hours)")

	// Grid axes
	entries := flag.String("entries", domain.EntryTypeImmediate, "Comma-separated entry specs")
	tps := flag.String("tp", "2,3,5", "Comma-separated take-profit multiples")
	sls := flag.String("sl", "0.5,0.7", "Comma-separated stop-loss multiples")
	orders := flag.String("orders", string(domain.IntrabarSLFirst), "Comma-separated intrabar orders")
	holds := flag.String("max-hold", "0", "Comma-separated max holds (hours, 0 = uncapped)")
	stopRef := flag.String("stop-ref", string(cfg.StopReference), "Stop reference for trade mode: alert, entry")

	// Portfolio base
	flag.Float64Var(&cfg.InitialCapital, "capital", cfg.InitialCapital, "Initial capital")
	flag.IntVar(&cfg.MaxConcurrentPositions, "max-positions", cfg.MaxConcurrentPositions, "Max concurrent positions")
	flag.Float64Var(&cfg.MaxAllocationPct, "max-allocation", cfg.MaxAllocationPct, "Max fraction of free capital per position")
	flag.Float64Var(&cfg.MaxRiskPerTrade, "max-risk", cfg.MaxRiskPerTrade, "Max fraction of free capital lost at the stop")
	flag.Float64Var(&cfg.MinExecutableSize, "min-size", cfg.MinExecutableSize, "Smallest position worth opening")
	flag.Float64Var(&cfg.TakerFeeBps, "fee-bps", cfg.TakerFeeBps, "Taker fee per side (bps)")
	flag.Float64Var(&cfg.SlippageBps, "slippage-bps", cfg.SlippageBps, "Slippage per side (bps)")

	// Trial cache
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the trial cache (empty = in-memory)")
	flag.DurationVar(&cfg.TrialCacheTTL, "cache-ttl", cfg.TrialCacheTTL, "Trial cache TTL")

	// Output
	out := flag.String("out", "", "Trials CSV file (default stdout)")
	reportPath := flag.String("report", "", "Markdown report file")

	// Runtime
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker goroutines (0 = NumCPU)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Expose Prometheus metrics on this address")
	migrate := flag.Bool("migrate", false, "Apply schema migrations to ClickHouse and PostgreSQL before use")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Development logging")

	flag.Parse()

	cfg.StopReference = domain.StopReference(strings.ToLower(*stopRef))

	logger, err := cli.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	axes, err := buildAxes(*entries, *tps, *sls, *orders, *holds)
	if err != nil {
		logger.Fatal("grid axes", zap.Error(err))
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	cli.ServeMetrics(ctx, cfg.MetricsAddr, logger)

	sources, err := cli.OpenSources(ctx, cli.SourceOptions{
		SnapshotPath:  cfg.SnapshotPath,
		ClickHouseDSN: cfg.ClickHouseDSN,
		AlertsCSV:     *alertsCSV,
		PostgresDSN:   cfg.PostgresDSN,
		Migrate:       *migrate,
	}, logger)
	if err != nil {
		logger.Fatal("open sources", zap.Error(err))
	}
	defer sources.Close()

	var trialCache cache.TrialCache = cache.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TrialCacheTTL,
		})
		if err != nil {
			logger.Fatal("connect to redis", zap.Error(err))
		}
		defer rc.Close()
		trialCache = rc
	}

	runner, err := simulation.NewRunner(simulation.RunnerOptions{
		AlertStore:  sources.Alerts,
		CandleStore: sources.Candles,
		Logger:      logger,
		Workers:     cfg.Workers,
	})
	if err != nil {
		logger.Fatal("create runner", zap.Error(err))
	}

	jobs, err := runner.Prepare(ctx, cfg.IntervalSeconds, cfg.HorizonHours)
	if err != nil {
		logger.Fatal("prepare jobs", zap.Error(err))
	}

	opt, err := optimizer.New(optimizer.Options{
		Mode:          *mode,
		Jobs:          jobs,
		StopReference: cfg.StopReference,
		Portfolio:     cfg.PortfolioConfig(),
		Cache:         trialCache,
		Logger:        logger,
		Workers:       cfg.Workers,
	})
	if err != nil {
		logger.Fatal("create optimizer", zap.Error(err))
	}

	res, err := opt.Run(ctx, axes, *objective)
	if err != nil {
		logger.Fatal("grid run", zap.Error(err))
	}

	best, _ := res.Best.Metrics.Objective(res.Objective)
	fmt.Fprintf(os.Stderr, "Best trial %d (%s = %.6f): %s\n", res.Best.Index, res.Objective, best, res.Best.Params)

	if err := cli.WriteOutput(*out, reporting.RenderTrialsCSV(res.Trials)); err != nil {
		logger.Fatal("write output", zap.Error(err))
	}

	if *reportPath != "" {
		report := reporting.NewGenerator(nil).ForTrials(res.Objective, res.Best, res.Trials)
		if err := os.WriteFile(*reportPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
			logger.Fatal("write report", zap.Error(err))
		}
	}
}

func buildAxes(entries, tps, sls, orders, holds string) (optimizer.Axes, error) {
	var (
		axes optimizer.Axes
		err  error
	)
	if axes.Entries, err = cli.ParseEntryList(entries); err != nil {
		return axes, fmt.Errorf("entries: %w", err)
	}
	if axes.TPMults, err = cli.ParseFloatList(tps); err != nil {
		return axes, fmt.Errorf("tp: %w", err)
	}
	if axes.SLMults, err = cli.ParseFloatList(sls); err != nil {
		return axes, fmt.Errorf("sl: %w", err)
	}
	if axes.IntrabarOrders, err = cli.ParseOrders(orders); err != nil {
		return axes, fmt.Errorf("orders: %w", err)
	}
	if axes.MaxHoldMs, err = cli.ParseHoursList(holds); err != nil {
		return axes, fmt.Errorf("max-hold: %w", err)
	}
	return axes, nil
}
