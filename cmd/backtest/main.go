package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"alert-backtest-lab/internal/cli"
	"alert-backtest-lab/internal/config"
	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/reporting"
	"alert-backtest-lab/internal/simulation"
	"alert-backtest-lab/internal/verification"
)

func main() {
	cfg, err := config.Load(os.Getenv("BACKTEST_ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	mode := flag.String("mode", "trade", "Mode: path, tpsl, trade, verify")

	// Data sources
	flag.StringVar(&cfg.SnapshotPath, "snapshot", cfg.SnapshotPath, "Arrow candle snapshot file")
	flag.StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string for candles")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string for alerts and trade results")
	alertsCSV := flag.String("alerts-csv", "", "CSV file of alerts (token,caller,timestamp_ms[,chain])")

	// Window
	flag.IntVar(&cfg.IntervalSeconds, "interval", cfg.IntervalSeconds, "Candle interval (seconds)")
	flag.Float64Var(&cfg.HorizonHours, "horizon", cfg.HorizonHours, "Evaluation horizon (hours)")

	// Strategy
	entrySpec := flag.String("entry", domain.EntryTypeImmediate, "Entry: IMMEDIATE, DIP_WAIT:<drop>[:<max wait min>], TIME_WAIT:<min>, LIMIT_ORDER:<price>[:<max wait min>]")
	exitType := flag.String("exit", domain.ExitTypeTakeProfitStop, "Exit: TP_SL, STATIC_PHASED, TRAILING_PHASED")
	phases := flag.String("phases", "0.2:2,0.3:3,0.4", "Phased exit stages as stop:target pairs")
	flag.Float64Var(&cfg.TPMult, "tp", cfg.TPMult, "Take-profit multiple")
	flag.Float64Var(&cfg.SLMult, "sl", cfg.SLMult, "Stop-loss multiple")
	flag.Float64Var(&cfg.MaxHoldHours, "max-hold", cfg.MaxHoldHours, "Max hold (hours, 0 = horizon)")
	order := flag.String("order", string(cfg.IntrabarOrder), "Intrabar order: tp_first, sl_first")
	stopRef := flag.String("stop-ref", string(cfg.StopReference), "Stop reference: alert, entry")

	// Output
	out := flag.String("out", "", "CSV output file (default stdout)")
	reportPath := flag.String("report", "", "Markdown summary file (trade mode)")
	persist := flag.Bool("persist", false, "Persist trade results to PostgreSQL (verify mode always reads them from there)")

	// Runtime
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker goroutines (0 = NumCPU)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Expose Prometheus metrics on this address")
	migrate := flag.Bool("migrate", false, "Apply schema migrations to ClickHouse and PostgreSQL before use")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Development logging")

	flag.Parse()

	cfg.IntrabarOrder = domain.IntrabarOrder(strings.ToLower(*order))
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

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	cli.ServeMetrics(ctx, cfg.MetricsAddr, logger)

	sources, err := cli.OpenSources(ctx, cli.SourceOptions{
		SnapshotPath:  cfg.SnapshotPath,
		ClickHouseDSN: cfg.ClickHouseDSN,
		AlertsCSV:     *alertsCSV,
		PostgresDSN:   cfg.PostgresDSN,
		Migrate:       *migrate,
		Persist:       *persist || *mode == "verify",
	}, logger)
	if err != nil {
		logger.Fatal("open sources", zap.Error(err))
	}
	defer sources.Close()

	runner, err := simulation.NewRunner(simulation.RunnerOptions{
		AlertStore:       sources.Alerts,
		CandleStore:      sources.Candles,
		TradeResultStore: sources.Results,
		Logger:           logger,
		Workers:          cfg.Workers,
	})
	if err != nil {
		logger.Fatal("create runner", zap.Error(err))
	}

	jobs, err := runner.Prepare(ctx, cfg.IntervalSeconds, cfg.HorizonHours)
	if err != nil {
		logger.Fatal("prepare jobs", zap.Error(err))
	}
	logger.Info("prepared alerts", zap.Int("alerts", len(jobs)), zap.String("mode", *mode))

	var csv string
	switch *mode {
	case "path":
		rows, err := runner.RunPaths(ctx, jobs)
		if err != nil {
			logger.Fatal("path metrics", zap.Error(err))
		}
		csv = reporting.RenderPathCSV(rows)

	case "tpsl":
		rows, err := runner.RunTPSL(ctx, jobs, cfg.ExitConfig())
		if err != nil {
			logger.Fatal("tp/sl", zap.Error(err))
		}
		csv = reporting.RenderTPSLCSV(rows)

	case "trade":
		simCfg, err := buildSimulationConfig(cfg, *entrySpec, *exitType, *phases)
		if err != nil {
			logger.Fatal("strategy config", zap.Error(err))
		}
		results, err := runner.RunTrades(ctx, jobs, simCfg)
		if err != nil {
			logger.Fatal("trade simulation", zap.Error(err))
		}
		csv = reporting.RenderTradeResultsCSV(results)

		if *reportPath != "" && len(results) > 0 {
			if err := writeReport(ctx, sources, results[0].ConfigID, *reportPath); err != nil {
				logger.Fatal("write report", zap.Error(err))
			}
		}

	case "verify":
		simCfg, err := buildSimulationConfig(cfg, *entrySpec, *exitType, *phases)
		if err != nil {
			logger.Fatal("strategy config", zap.Error(err))
		}
		report, err := verify(ctx, sources, simCfg, logger)
		if err != nil {
			logger.Fatal("verify", zap.Error(err))
		}
		csv = renderVerification(report)
		if report.DivergentTrades > 0 {
			logger.Warn("stored results diverge from replay",
				zap.String("config_id", report.ConfigID),
				zap.Int("divergent", report.DivergentTrades),
			)
		}

	default:
		logger.Fatal("unknown mode, must be path, tpsl, trade or verify", zap.String("mode", *mode))
	}

	if err := cli.WriteOutput(*out, csv); err != nil {
		logger.Fatal("write output", zap.Error(err))
	}
}

// buildSimulationConfig assembles the full trade configuration from flags.
// Phased exits default their max hold to the horizon.
func buildSimulationConfig(cfg *config.Config, entrySpec, exitType, phaseSpec string) (domain.SimulationConfig, error) {
	entry, err := cli.ParseEntry(entrySpec)
	if err != nil {
		return domain.SimulationConfig{}, err
	}

	var exit domain.ExitConfig
	switch strings.ToUpper(exitType) {
	case domain.ExitTypeTakeProfitStop:
		exit = cfg.ExitConfig()
	case domain.ExitTypeStaticPhased, domain.ExitTypeTrailingPhased:
		phases, err := cli.ParsePhases(phaseSpec)
		if err != nil {
			return domain.SimulationConfig{}, err
		}
		hold := cfg.MaxHoldMs()
		if hold == 0 {
			hold = int64(cfg.HorizonHours * 3_600_000)
		}
		exit = domain.ExitConfig{
			ExitType:      strings.ToUpper(exitType),
			Phases:        phases,
			MaxDurationMs: &hold,
			IntrabarOrder: cfg.IntrabarOrder,
		}
	default:
		return domain.SimulationConfig{}, fmt.Errorf("unknown exit type %q", exitType)
	}

	return domain.SimulationConfig{
		IntervalSeconds: cfg.IntervalSeconds,
		HorizonHours:    cfg.HorizonHours,
		Entry:           entry,
		Exit:            exit,
		StopReference:   cfg.StopReference,
	}, nil
}

func writeReport(ctx context.Context, sources *cli.Sources, configID, path string) error {
	report, err := reporting.NewGenerator(sources.Results).ForConfigs(ctx, []string{configID})
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(reporting.RenderMarkdown(report)), 0o644)
}

// verify replays the stored results of simCfg.
func verify(ctx context.Context, sources *cli.Sources, simCfg domain.SimulationConfig, logger *zap.Logger) (*verification.VerificationReport, error) {
	configID, err := verification.ConfigID(simCfg)
	if err != nil {
		return nil, err
	}
	v, err := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		TradeResultStore: sources.Results,
		AlertStore:       sources.Alerts,
		CandleStore:      sources.Candles,
		Configs:          []domain.SimulationConfig{simCfg},
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}
	return v.VerifyConfig(ctx, configID)
}

func renderVerification(report *verification.VerificationReport) string {
	var sb strings.Builder
	sb.WriteString("trade_id,match,divergences\n")
	for _, r := range report.Results {
		fields := make([]string, len(r.Divergences))
		for i, d := range r.Divergences {
			fields[i] = fmt.Sprintf("%s: %v != %v", d.Field, d.Expected, d.Actual)
		}
		sb.WriteString(fmt.Sprintf("%s,%t,%q\n", r.TradeID, r.Match, strings.Join(fields, "; ")))
	}
	return sb.String()
}
