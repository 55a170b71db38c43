package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"alert-backtest-lab/internal/cli"
	"alert-backtest-lab/internal/config"
	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/portfolio"
	"alert-backtest-lab/internal/reporting"
	"alert-backtest-lab/internal/simulation"
)

func main() {
	cfg, err := config.Load(os.Getenv("BACKTEST_ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Data sources
	flag.StringVar(&cfg.SnapshotPath, "snapshot", cfg.SnapshotPath, "Arrow candle snapshot file")
	flag.StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string for candles")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string for alerts")
	alertsCSV := flag.String("alerts-csv", "", "CSV file of alerts (token,caller,timestamp_ms[,chain])")

	// Window
	flag.IntVar(&cfg.IntervalSeconds, "interval", cfg.IntervalSeconds, "Candle interval (seconds)")
	flag.Float64Var(&cfg.HorizonHours, "horizon", cfg.HorizonHours, "Evaluation horizon (hours)")

	// Exit
	flag.Float64Var(&cfg.TPMult, "tp", cfg.TPMult, "Take-profit multiple")
	flag.Float64Var(&cfg.SLMult, "sl", cfg.SLMult, "Stop-loss multiple")
	flag.Float64Var(&cfg.MaxHoldHours, "max-hold", cfg.MaxHoldHours, "Max hold (hours, 0 = uncapped)")
	order := flag.String("order", string(cfg.IntrabarOrder), "Intrabar order: tp_first, sl_first")

	// Capital
	flag.Float64Var(&cfg.InitialCapital, "capital", cfg.InitialCapital, "Initial capital")
	flag.IntVar(&cfg.MaxConcurrentPositions, "max-positions", cfg.MaxConcurrentPositions, "Max concurrent positions")
	flag.Float64Var(&cfg.MaxAllocationPct, "max-allocation", cfg.MaxAllocationPct, "Max fraction of free capital per position")
	flag.Float64Var(&cfg.MaxRiskPerTrade, "max-risk", cfg.MaxRiskPerTrade, "Max fraction of free capital lost at the stop")
	flag.Float64Var(&cfg.MinExecutableSize, "min-size", cfg.MinExecutableSize, "Smallest position worth opening")
	flag.Float64Var(&cfg.TakerFeeBps, "fee-bps", cfg.TakerFeeBps, "Taker fee per side (bps)")
	flag.Float64Var(&cfg.SlippageBps, "slippage-bps", cfg.SlippageBps, "Slippage per side (bps)")

	// Output
	out := flag.String("out", "", "Trades CSV file (default stdout after the summary)")

	// Runtime
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker goroutines (0 = NumCPU)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Expose Prometheus metrics on this address")
	migrate := flag.Bool("migrate", false, "Apply schema migrations to ClickHouse and PostgreSQL before use")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Development logging")

	flag.Parse()

	cfg.IntrabarOrder = domain.IntrabarOrder(strings.ToLower(*order))

	logger, err := cli.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
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

	sim, err := portfolio.New(portfolio.Options{
		Config:  cfg.PortfolioConfig(),
		Logger:  logger,
		Workers: cfg.Workers,
	})
	if err != nil {
		logger.Fatal("create portfolio simulator", zap.Error(err))
	}

	res, err := sim.Run(ctx, jobs)
	if err != nil {
		logger.Fatal("portfolio replay", zap.Error(err))
	}

	report := reporting.NewGenerator(nil).ForPortfolio(res.Summary, res.Trades)
	summary := reporting.RenderMarkdown(report)
	trades := reporting.RenderPortfolioTradesCSV(res.Trades)

	if *out == "" {
		err = cli.WriteOutput("", summary+trades)
	} else {
		if err = cli.WriteOutput("", summary); err == nil {
			err = cli.WriteOutput(*out, trades)
		}
	}
	if err != nil {
		logger.Fatal("write output", zap.Error(err))
	}
}
