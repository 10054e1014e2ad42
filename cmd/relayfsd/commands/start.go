package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/internal/telemetry"
	"github.com/marmos91/relayfs/pkg/config"
	"github.com/marmos91/relayfs/pkg/metrics"
	"github.com/marmos91/relayfs/pkg/metrics/prometheus"
	"github.com/marmos91/relayfs/pkg/wsserver"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relayfsd server",
	Long: `Start the relayfsd server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/relayfs/config.yaml.

Examples:
  # Start with default config
  relayfsd start

  # Start with custom config file
  relayfsd start --config /etc/relayfs/config.yaml

  # Start with environment variable overrides
  RELAYFS_LOGGING_LEVEL=DEBUG relayfsd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "relayfsd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "relayfsd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("relayfsd - multi-user file exchange server")
	logger.Info("log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	} else {
		logger.Info("profiling disabled")
	}

	var wsMetrics metrics.WSMetrics
	var archiveMetrics metrics.ArchiveMetrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		wsMetrics = prometheus.NewWSMetrics()
		archiveMetrics = prometheus.NewArchiveMetrics()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics collection disabled")
	}

	users, err := config.InitializeUserStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize user store: %w", err)
	}

	if password, err := config.EnsureAdminUser(ctx, cfg, users); err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	} else if password != "" {
		fmt.Printf("\n*** IMPORTANT: admin user created with password: %s ***\n", password)
		fmt.Println("Please save this password. It will not be shown again.")
		fmt.Println()
	}

	reg := config.InitializeRegistry()

	uploads, err := config.InitializeUploadCoordinator(cfg, reg)
	if err != nil {
		return fmt.Errorf("failed to initialize upload coordinator: %w", err)
	}

	archiveStore, err := config.InitializeArchive(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize archive tier: %w", err)
	}
	if archiveStore != nil {
		archiveStore.SetMetrics(archiveMetrics)
		uploads.SetArchiver(archiveStore)
		logger.Info("S3 archive tier enabled", "bucket", cfg.Archive.Bucket)
	} else {
		logger.Info("S3 archive tier disabled")
	}

	server, err := wsserver.NewServer(cfg.WS, reg, users, uploads, time.Now().UnixNano, wsMetrics)
	if err != nil {
		return fmt.Errorf("failed to build WS server: %w", err)
	}

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Stop(shutdownCtx)
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running", "port", server.Port())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		<-serverDone
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
