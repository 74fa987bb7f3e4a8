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

	"github.com/tributary-ai/octoroute/internal/audit"
	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/config"
	"github.com/tributary-ai/octoroute/internal/dispatch"
	"github.com/tributary-ai/octoroute/internal/health"
	"github.com/tributary-ai/octoroute/internal/metrics"
	"github.com/tributary-ai/octoroute/internal/routing"
	"github.com/tributary-ai/octoroute/internal/selector"
	"github.com/tributary-ai/octoroute/internal/server"
	"github.com/tributary-ai/octoroute/internal/upstream"
	"github.com/tributary-ai/octoroute/internal/validate"
)

// Application wires every component built from the loaded configuration
// and owns the process's startup/shutdown sequence.
type Application struct {
	config *config.Config
	prober *health.Prober
	server *server.Server
	logger *logrus.Logger
}

// NewApplication loads configuration and constructs the full dependency
// graph: catalog -> health -> selector -> router -> dispatcher -> server.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	sink := metrics.New()
	tracker := health.New(logger, cfg.Catalog.AllEndpointNames())
	prober := health.NewProber(tracker, cfg.Catalog, sink, logger)
	sel := selector.New(cfg.Catalog, tracker, logger)

	clients := dispatch.ClientFactory(func(ep catalog.Endpoint) upstream.Client {
		return upstream.New(ep.Protocol, ep.BaseURL, ep.Name, logger)
	})

	router, err := buildRouter(cfg, sel, tracker, clients, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	disp := dispatch.New(cfg.Catalog, sel, tracker, clients, sink, dispatch.DefaultConfig(), logger)
	auditLogger := audit.New(logger, 256)

	schema, err := validate.NewSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build request validator: %w", err)
	}
	limiter := validate.NewBodyLimiter()

	serverCfg := server.DefaultServerConfig()
	serverCfg.Host = cfg.Host
	serverCfg.Port = cfg.Port
	serverCfg.RequestTimeout = cfg.RequestTimeout

	srv := server.New(cfg.Catalog, tracker, prober, router, disp, sink, auditLogger, schema, limiter,
		cfg.DefaultImportance, serverCfg, logger)

	return &Application{config: cfg, prober: prober, server: srv, logger: logger}, nil
}

// buildRouter constructs the concrete router(s) the configured strategy
// needs and wraps them in the mode-appropriate Router facade.
func buildRouter(cfg *config.Config, sel *selector.Selector, tracker *health.Tracker, clients dispatch.ClientFactory, logger *logrus.Logger) (*routing.Router, error) {
	rule := routing.NewRuleRouter()

	if cfg.Mode == config.RuleMode {
		return routing.NewRuleOnlyRouter(rule, sel, cfg.Catalog), nil
	}

	tierSelector, err := selector.NewTierSelector(sel, cfg.Catalog, cfg.RouterTier)
	if err != nil {
		return nil, fmt.Errorf("routing.router_tier: %w", err)
	}
	llm := routing.NewLlmRouter(tierSelector, tracker, clients, cfg.RouterTimeout, logger)

	switch cfg.Mode {
	case config.LlmMode:
		return routing.NewLlmOnlyRouter(llm), nil
	default:
		return routing.NewHybridOnlyRouter(rule, llm), nil
	}
}

// Run starts the HTTP server and the background health prober, and
// blocks until a shutdown signal or a fatal server error.
func (app *Application) Run() error {
	app.logger.Info("octoroute: starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go app.prober.Run(ctx)

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithFields(logrus.Fields{"host": app.config.Host, "port": app.config.Port}).Info("HTTP server starting")
		if err := app.server.Start(); err != nil {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("shutdown signal received")
	}

	app.logger.Info("starting graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("graceful shutdown completed")
	return nil
}

func setupLogger(logger *logrus.Logger, level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", level, err)
	}
	logger.SetLevel(parsed)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	logger.SetOutput(os.Stdout)
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config config.toml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --write-default-config --config config.toml\n", os.Args[0])
}

func main() {
	var (
		configPath   = flag.String("config", "config.toml", "Path to configuration file")
		writeDefault = flag.Bool("write-default-config", false, "Write a starter configuration file to --config and exit")
		showHelp     = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *writeDefault {
		if err := config.WriteDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write default configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote default configuration to %s\n", *configPath)
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}
