package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/assetfin/quote-engine/internal/cache"
	"github.com/assetfin/quote-engine/internal/config"
	"github.com/assetfin/quote-engine/internal/eligibility"
	"github.com/assetfin/quote-engine/internal/quote"
	"github.com/assetfin/quote-engine/internal/ratetable"
	"github.com/assetfin/quote-engine/internal/scheduler"
	"github.com/assetfin/quote-engine/internal/server"
	"github.com/assetfin/quote-engine/internal/store"
	"github.com/assetfin/quote-engine/pkg/constants"
	"github.com/assetfin/quote-engine/pkg/output"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var zapConfig zap.Config
	switch format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	case "json":
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		if file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		} else {
			_ = file.Close()
		}

		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	serve := flag.Bool("serve", false, "serve the HTTP API instead of computing a one-shot quote")
	assetType := flag.String("asset-type", "vehicle", "asset type: vehicle, truck, equipment")
	condition := flag.String("condition", "new", "asset condition: new, demo, used_0_3, used_4_7, used_8_plus")
	amount := flag.Float64("amount", 0, "loan amount in dollars")
	term := flag.Int("term", 0, "loan term in months")
	balloon := flag.Float64("balloon", 0, "balloon percentage")
	privateSale := flag.Bool("private-sale", false, "asset purchased via private sale")
	outputFormat := flag.String("output-format", constants.OutputFormatPretty, "type of output: pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := conf.Validate(); err != nil {
		logger.Fatal("invalid configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	for _, warning := range conf.Warnings() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	table, err := conf.BuildTable()
	if err != nil {
		logger.Fatal("failed to build rate table",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	snapshot := scheduler.NewSnapshot(table)
	gate := eligibility.NewGate(conf.EligibilityRules(), logger)

	if *serve {
		runServer(conf, snapshot, gate, *configLocation, logger)
		return
	}

	req := quote.Request{
		AssetType:      quote.AssetType(*assetType),
		AssetCondition: quote.AssetCondition(*condition),
		LoanAmount:     *amount,
		TermMonths:     *term,
		BalloonPercent: *balloon,
		PrivateSale:    *privateSale,
	}

	engine := quote.NewEngine(snapshot.Current(), conf.QuoteBounds(), conf.Quote.ReferenceMarkupPercent, logger)
	q, err := engine.ComputeQuote(req)
	if err != nil {
		logger.Fatal("failed to compute quote",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	switch *outputFormat {
	case constants.OutputFormatPretty:
		fees := snapshot.Current().FeeSchedule(ratetable.FeeContext{PrivateSale: req.PrivateSale})
		output.PrettyFormat(os.Stdout, req, q, fees)
		if passed, issues := gate.QuickCheck(req.LoanAmount, req.TermMonths, req.BalloonPercent); !passed {
			fmt.Println("\nBefore applying, note:")
			for i, issue := range issues {
				fmt.Printf("%d. %s\n", i+1, issue)
			}
		}
	case constants.OutputFormatCSV:
		output.CsvFormat(os.Stdout, req, q)
	default:
		logger.Fatal("invalid output format: "+*outputFormat,
			zap.String("op", "main"),
		)
	}
}

func runServer(conf *config.Configuration, snapshot *scheduler.Snapshot, gate *eligibility.Gate, configLocation string, logger *zap.Logger) {
	var leads store.LeadRepository
	if conf.Storage.SQLitePath != "" {
		sqliteLeads, err := store.NewSQLiteLeadRepository(conf.Storage.SQLitePath)
		if err != nil {
			logger.Fatal("failed to open lead store",
				zap.String("op", "main.runServer"),
				zap.Error(err),
			)
		}
		defer func() {
			_ = sqliteLeads.Close()
		}()
		leads = sqliteLeads
		logger.Info("lead store opened",
			zap.String("op", "main.runServer"),
			zap.String("path", conf.Storage.SQLitePath),
		)
	} else {
		leads = store.NewMemoryLeadRepository()
	}

	var quoteCache cache.QuoteCache
	if conf.Cache.RedisAddr != "" {
		quoteCache = cache.NewRedisQuoteCache(conf.Cache.RedisAddr)
		logger.Info("redis quote cache enabled",
			zap.String("op", "main.runServer"),
			zap.String("addr", conf.Cache.RedisAddr),
		)
	} else {
		quoteCache = cache.NewMemoryQuoteCache()
	}

	if conf.Reload.CronSpec != "" {
		reloader := scheduler.NewReloader(snapshot, configLocation, logger)
		if err := reloader.Register(conf.Reload.CronSpec); err != nil {
			logger.Fatal("failed to register rate reload",
				zap.String("op", "main.runServer"),
				zap.Error(err),
			)
		}
		reloader.Start()
		defer reloader.Stop()
	}

	handler := server.NewHandler(server.Options{
		Snapshot:      snapshot,
		Bounds:        conf.QuoteBounds(),
		MarkupPercent: conf.Quote.ReferenceMarkupPercent,
		Gate:          gate,
		Leads:         leads,
		Cache:         quoteCache,
		Logger:        logger,
		MaxBodyBytes:  conf.Server.MaxBodyBytes,
		Version:       version,
	})

	logger.Info("serving quote API",
		zap.String("op", "main.runServer"),
		zap.String("address", conf.Server.Address),
	)
	if err := http.ListenAndServe(conf.Server.Address, handler); err != nil {
		logger.Fatal("server stopped",
			zap.String("op", "main.runServer"),
			zap.Error(err),
		)
	}
}
