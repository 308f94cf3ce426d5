package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deploysched/deploysched/sched"
)

var (
	configPath  string // Path to the YAML scheduler config; empty means built-in defaults
	logLevel    string // Log verbosity level
	metricsAddr string // Listen address for the prometheus /metrics endpoint; empty disables it
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "deploysched",
	Short: "Priority- and resource-aware deployment scheduler",
}

// loadConfig returns the effective configuration: defaults, overlaid with the
// config file when one was given.
func loadConfig() (sched.Config, error) {
	if configPath == "" {
		return sched.DefaultConfig(), nil
	}
	return sched.LoadConfig(configPath)
}

// runCmd starts the scheduler loop and (optionally) the metrics listener,
// and blocks until SIGINT/SIGTERM.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the deployment scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		svc, err := sched.NewService(cfg, registry, func(a sched.Assignment) {
			// Executor handoff point. Without an executor wired in, log the
			// placement so operators can see scheduling decisions.
			logrus.Infof("assignment: deployment %s -> cluster %s (priority %d)",
				a.DeploymentID, a.ClusterID, a.Priority)
		})
		if err != nil {
			return err
		}
		for _, seed := range cfg.Clusters {
			if _, err := svc.RegisterCluster(sched.RegisterClusterRequest{
				Name:     seed.Name,
				RAMGB:    seed.Capacity.RAMGB,
				CPUCores: seed.Capacity.CPUCores,
				GPUCount: seed.Capacity.GPUCount,
			}); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			err := svc.Scheduler().Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: metricsAddr, Handler: mux}
			g.Go(func() error {
				logrus.Infof("metrics listening on %s", metricsAddr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}
		return g.Wait()
	},
}

// validateCmd checks a config file without starting anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scheduler config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		cmd.Printf("config OK: queue=%d priority=[1,%d] interval=%s placement=%q clusters=%d\n",
			cfg.MaxQueueSize, cfg.MaxPriority, cfg.Interval(), cfg.PlacementPolicy, len(cfg.Clusters))
		return nil
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML scheduler config (defaults built in)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for prometheus metrics (empty disables)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
