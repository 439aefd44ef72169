package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-trading-dashboard/internal/app"
	"crypto-trading-dashboard/internal/config"
	"crypto-trading-dashboard/internal/logger"
	"crypto-trading-dashboard/internal/trace"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Crypto trading dashboard: trade ledger, exchange account mirror and auth API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror every connected exchange account once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncOnce()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "./configs", "directory holding config.yml")
	rootCmd.AddCommand(syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads .env, the configuration, the logger and tracing.
func bootstrap() (*config.Config, *zap.Logger, error) {
	// a missing .env is fine; the environment and config file still apply
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Info("Configuration loaded")

	if err := trace.Init(cfg.Trace.Enabled); err != nil {
		log.Warn("Failed to initialize tracing", zap.Error(err))
	}
	return &cfg, log, nil
}

func serve() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer shutdownTrace(log)

	a, err := app.InitializeApp(cfg, log)
	if err != nil {
		log.Error("Failed to initialize app", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

func syncOnce() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer shutdownTrace(log)

	a, err := app.InitializeApp(cfg, log)
	if err != nil {
		log.Error("Failed to initialize app", zap.Error(err))
		return err
	}
	defer a.Store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	synced, err := a.Syncer.SyncOnce(ctx)
	log.Info("Exchange sync finished", zap.Int("synced", synced))
	return err
}

func shutdownTrace(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := trace.Shutdown(ctx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
}
