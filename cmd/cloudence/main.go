package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rafique586/cloudence/internal/collector/host"
	"github.com/rafique586/cloudence/internal/config"
	"github.com/rafique586/cloudence/internal/logging"
	"github.com/rafique586/cloudence/internal/monitor"
	"github.com/rafique586/cloudence/internal/telemetry"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "cloudence",
	Short:   "Cloudence - metrics query and alert evaluation service",
	Long:    `Cloudence polls metric collectors, aligns and reduces the samples, evaluates alert rules and dispatches prioritized notifications.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the poll loop and telemetry server (same as the bare command)",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Cloudence %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to cloudence.yaml")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(queryCmd)
}

func hostnameOrDefault() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}

func main() {
	// Optional .env next to the binary; absence is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	logging.Init(logging.Config{Format: "auto", Level: "info", Component: "cloudence"})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Format:    cfg.Log.Format,
		Level:     cfg.Log.Level,
		Component: "cloudence",
	})

	log.Info().Str("version", Version).Msg("starting cloudence")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)

	mon := monitor.New(host.New(hostnameOrDefault()), cfg, metrics)
	mon.Start(ctx)

	var watcher *config.Watcher
	if configPath != "" {
		watcher, err = config.NewWatcher(configPath, mon.Apply)
		if err != nil {
			log.Warn().Err(err).Msg("failed to create config watcher, changes will require restart")
		} else if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start config watcher")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("telemetry server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start telemetry server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	signal.Notify(reloadChan, syscall.SIGHUP)

	for {
		select {
		case <-reloadChan:
			log.Info().Msg("received SIGHUP, reloading configuration")
			reloaded, err := config.Load(configPath)
			if err != nil {
				log.Error().Err(err).Msg("reload failed; keeping previous configuration")
				continue
			}
			mon.Apply(reloaded)
			log.Info().Msg("runtime configuration reloaded")

		case <-sigChan:
			log.Info().Msg("shutting down")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("telemetry server shutdown error")
			}

			cancel()
			mon.Stop()
			if watcher != nil {
				watcher.Stop()
			}

			log.Info().Msg("stopped")
			return
		}
	}
}
