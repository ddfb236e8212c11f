package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/complexity"
	"github.com/tripgrid/trip-router/internal/config"
	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/providers/anthropic"
	"github.com/tripgrid/trip-router/internal/providers/cerebras"
	"github.com/tripgrid/trip-router/internal/providers/gemini"
	"github.com/tripgrid/trip-router/internal/providers/groq"
	"github.com/tripgrid/trip-router/internal/routing"
	"github.com/tripgrid/trip-router/internal/server"
)

const version = "1.0.0"

// Application ties the configured components together for one process.
type Application struct {
	config *config.Config
	server *server.Server
	logger *logrus.Logger
}

// NewApplication loads configuration and wires the routing engine, provider
// registry, and HTTP server.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	registry := providers.NewRegistry(logger)
	if err := registerProviders(registry, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	analyzer, err := complexity.NewAnalyzer(cfg.Complexity.Weights, cfg.Complexity.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("failed to build complexity analyzer: %w", err)
	}

	health := providers.NewHealthCache(cfg.Router.HealthCacheTTL)
	evaluator := routing.NewEvaluator(health, cfg.Router.Evaluator)
	router := routing.NewRouter(registry, analyzer, evaluator, logger)
	executor := routing.NewExecutor(registry, health, logger)
	engine := routing.NewEngine(router, executor, routing.NewLogRecorder(logger))

	srv, err := server.New(cfg, engine, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config: cfg,
		server: srv,
		logger: logger,
	}, nil
}

// Run serves until a shutdown signal or a listener failure.
func (app *Application) Run() error {
	app.logger.WithField("version", version).Info("Starting trip-router")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		if err := app.server.Start(); err != nil {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

func registerProviders(registry *providers.Registry, cfg *config.Config, logger *logrus.Logger) error {
	registered := 0

	if cfg.Providers.Groq != nil && cfg.Providers.Groq.Profile.Enabled {
		p, err := groq.New(cfg.Providers.Groq, logger)
		if err != nil {
			return fmt.Errorf("groq: %w", err)
		}
		if err := registry.Register(p); err != nil {
			return err
		}
		registered++
	}

	if cfg.Providers.Gemini != nil && cfg.Providers.Gemini.Profile.Enabled {
		p, err := gemini.New(cfg.Providers.Gemini, logger)
		if err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
		if err := registry.Register(p); err != nil {
			return err
		}
		registered++
	}

	if cfg.Providers.Cerebras != nil && cfg.Providers.Cerebras.Profile.Enabled {
		p, err := cerebras.New(cfg.Providers.Cerebras, logger)
		if err != nil {
			return fmt.Errorf("cerebras: %w", err)
		}
		if err := registry.Register(p); err != nil {
			return err
		}
		registered++
	}

	if cfg.Providers.Anthropic != nil && cfg.Providers.Anthropic.Profile.Enabled {
		p, err := anthropic.New(cfg.Providers.Anthropic, logger)
		if err != nil {
			return fmt.Errorf("anthropic: %w", err)
		}
		if err := registry.Register(p); err != nil {
			return err
		}
		registered++
	}

	if registered == 0 {
		return fmt.Errorf("no providers were registered, check configuration and API keys")
	}

	logger.WithField("count", registered).Info("Provider registration completed")
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  GROQ_API_KEY            Groq API key\n")
	fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY          Google Gemini API key\n")
	fmt.Fprintf(os.Stderr, "  CEREBRAS_API_KEY        Cerebras API key\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY       Anthropic API key\n")
	fmt.Fprintf(os.Stderr, "  TRIP_ROUTER_PORT        Server port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  TRIP_ROUTER_LOG_LEVEL   Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  TRIP_ROUTER_LOG_FORMAT  Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  GROQ_API_KEY=gsk-xxx ANTHROPIC_API_KEY=sk-ant-xxx %s\n", os.Args[0])
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("trip-router v%s\n", version)
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
