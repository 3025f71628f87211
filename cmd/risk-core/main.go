package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tradesafe/risk-core/internal/config"
	"github.com/tradesafe/risk-core/internal/ensemble"
	"github.com/tradesafe/risk-core/internal/logger"
	"github.com/tradesafe/risk-core/internal/monitoring"
	"github.com/tradesafe/risk-core/internal/notifications"
	"github.com/tradesafe/risk-core/internal/orchestrator"
	"github.com/tradesafe/risk-core/internal/reporting"
	"github.com/tradesafe/risk-core/internal/risk"
	"github.com/tradesafe/risk-core/internal/safety"
	"github.com/tradesafe/risk-core/internal/stops"
	"github.com/tradesafe/risk-core/internal/validation"
	"github.com/tradesafe/risk-core/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	interval := flag.Duration("interval", time.Minute, "pipeline iteration interval")
	startEquity := flag.Float64("equity", 10000, "starting equity")
	demo := flag.Bool("demo", false, "run against a simulated feed and executor")
	flag.Parse()

	// .env is optional; real deployments configure via environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	fileLog, err := logger.NewLogger(cfg.Symbol)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer fileLog.Close()

	health := monitoring.NewHealthChecker()
	dispatcher := notifications.NewDispatcher(notifications.NopNotifier{}, fileLog)

	breakers := safety.NewRegistry(safety.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.Breaker.Timeout,
		HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
	}, dispatcher.OnBreakerStateChange)

	riskMgr := risk.NewManager(risk.Config{
		DrawdownLevel1:   cfg.Risk.DrawdownLevel1,
		DrawdownLevel2:   cfg.Risk.DrawdownLevel2,
		DrawdownLevel3:   cfg.Risk.DrawdownLevel3,
		KellyMinWinProb:  cfg.Risk.KellyMinWinProb,
		KellyScale:       cfg.Risk.KellyScale,
		KellyPayoffRatio: cfg.Risk.KellyPayoffRatio,
		MinPositionSize:  cfg.Risk.MinPositionSize,
		MaxPositionSize:  cfg.Risk.MaxPositionSize,
		LowCorrelation:   cfg.Risk.LowCorrelation,
	}, *startEquity, fileLog)

	stopEngine := stops.NewEngine(stops.Config{
		DefaultType:          stops.StopType(cfg.Stops.DefaultType),
		ActivationProfitPct:  cfg.Stops.ActivationProfitPct,
		TrailDistance:        cfg.Stops.TrailDistance,
		ATRPeriod:            cfg.Stops.ATRPeriod,
		ATRMultiplier:        cfg.Stops.ATRMultiplier,
		ChandelierPeriod:     cfg.Stops.ChandelierPeriod,
		ChandelierMultiplier: cfg.Stops.ChandelierMultiplier,
		ReturnsPeriod:        20,
	}, fileLog)

	validator := validation.NewValidator(
		validation.WithOutlierSigma(cfg.Validator.OutlierSigma),
		validation.WithQualityScoreMin(cfg.Validator.QualityScoreMin),
	)
	voter := ensemble.NewVoter(ensemble.VotingMethod(cfg.Ensemble.Method), cfg.Ensemble.ConfidenceThreshold)

	portfolio := &types.PortfolioState{
		Cash:      *startEquity,
		Equity:    *startEquity,
		Positions: make(map[string]*types.Position),
	}

	if !*demo {
		// Live collaborators (exchange feed, strategy processes, order
		// router) attach here; the core only defines their interfaces.
		log.Fatal("no live collaborators wired; run with -demo")
	}

	sim := newSimulation(cfg.Symbol, *startEquity)

	pipeline := orchestrator.NewPipeline(orchestrator.Deps{
		Symbol:     cfg.Symbol,
		Feed:       sim,
		Strategies: sim,
		Allocator:  sim,
		Executor:   sim,
		Validator:  validator,
		Voter:      voter,
		RiskMgr:    riskMgr,
		StopEngine: stopEngine,
		Breakers:   breakers,
		Dispatcher: dispatcher,
		Health:     health,
		Logger:     fileLog,
		Portfolio:  portfolio,
	})

	startMonitoringServers(cfg, health)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		log.Println("shutdown signal received")
		cancel()
	}()

	log.Printf("risk core started for %s (interval %v)", cfg.Symbol, *interval)
	if err := pipeline.Run(ctx, *interval); err != nil && err != context.Canceled {
		log.Printf("pipeline stopped: %v", err)
	}

	// Final state dump for the operator.
	snapshot := pipeline.GetSnapshot()
	reporting.PrintRiskReport(snapshot.Risk)
	reporting.PrintStops(snapshot.Stops)
	reporting.PrintBreakers(snapshot.Breakers)

	reportPath := filepath.Join(cfg.Reporting.OutputDir,
		fmt.Sprintf("%s_risk_%s.xlsx", cfg.Symbol, time.Now().Format("2006-01-02_150405")))
	if err := reporting.NewExcelReporter().WriteRiskReportXLSX(snapshot.Risk, nil, snapshot.Stops, snapshot.Breakers, reportPath); err != nil {
		log.Printf("failed to write report: %v", err)
	} else {
		log.Printf("risk report written to %s", reportPath)
	}
}

func startMonitoringServers(cfg *config.Config, health *monitoring.HealthChecker) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.NewMetricsHandler())
		addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/health", health)
		addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("health server stopped: %v", err)
		}
	}()
}
