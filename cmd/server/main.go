// Package main is the entry point for the robustness pipeline server:
// it loads configuration, wires the stage registry and executor, and
// serves the HTTP/WebSocket API that drives and observes workflows.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eastress/robustness-pipeline/internal/api"
	"github.com/eastress/robustness-pipeline/internal/config"
	"github.com/eastress/robustness-pipeline/internal/metrics"
	"github.com/eastress/robustness-pipeline/internal/pipeline"
	"github.com/eastress/robustness-pipeline/internal/simulator"
	"github.com/eastress/robustness-pipeline/internal/stage"
	"github.com/eastress/robustness-pipeline/internal/store"
)

func main() {
	configFile := flag.String("config", "", "Path to a config file (YAML/JSON/TOML); optional, defaults apply without one")
	host := flag.String("host", "", "Server host (overrides config)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting robustness pipeline server",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("runsDir", cfg.RunsDir),
	)

	st, err := store.New(logger, cfg.RunsDir)
	if err != nil {
		logger.Fatal("failed to initialize state store", zap.Error(err))
	}

	terminal := cfg.Terminals[cfg.DefaultTerminalID]
	runner := simulator.NewRealRunner(logger)
	metricsSink := metrics.New("")
	runner.SetMetrics(metricsSink)

	env := &stage.Env{
		Logger:                logger,
		Sim:                   runner,
		Terminal:              terminal,
		Store:                 st,
		Thresholds:            cfg.Thresholds,
		MCConfig:              cfg.MCConfig,
		StressSuite:           cfg.StressSuite,
		StressOverlays:        cfg.StressOverlays,
		WorkDir:               cfg.WorkDir,
		InjectorMinTrades:     cfg.InjectorMinTrades,
		Deposit:               cfg.Deposit,
		Currency:              cfg.Currency,
		Leverage:              cfg.Leverage,
		OptimizationCriterion: cfg.OptimizationCriterion,
		RunTimeout:            cfg.RunTimeoutSeconds,
		FromDate:              cfg.FromDate,
		ToDate:                cfg.ToDate,
		AdditionalSymbols:     cfg.AdditionalSymbols,
	}

	registry := stage.NewRegistry()
	executor := pipeline.New(logger, registry, env, st)
	executor.SetMetrics(metricsSink)

	server := api.NewServer(logger, api.ServerConfig{
		Host:          cfg.Host,
		Port:          cfg.Port,
		WebSocketPath: "/ws",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
	}, executor, st, cfg.Thresholds)
	server.SetMetrics(metricsSink)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
