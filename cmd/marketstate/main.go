package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rewired-gh/marketstate/internal/config"
	"github.com/rewired-gh/marketstate/internal/logger"
	"github.com/rewired-gh/marketstate/internal/poller"
	"github.com/rewired-gh/marketstate/internal/server"
	"github.com/rewired-gh/marketstate/internal/simclient"
	"github.com/rewired-gh/marketstate/internal/telegram"
	"github.com/rewired-gh/marketstate/internal/view"
	"github.com/spf13/cobra"
)

// Set via ldflags: -X main.version=1.0.0
var version = "dev"

type options struct {
	configPath string
	host       string
	listen     string
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "marketstate",
		Short:         "Live dashboard for a market simulation server",
		Version:       version,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cfg, opts.configPath)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (optional)")
	cmd.Flags().StringVar(&opts.host, "host", "", "Simulation server host (overrides backend.host)")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "Dashboard listen address (overrides server.addr)")
	return cmd
}

func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.Backend.Host = opts.host
	}
	if cmd.Flags().Changed("listen") {
		cfg.Server.Addr = opts.listen
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config, configPath string) error {
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	if configPath != "" {
		logger.Info("Configuration loaded from %s", configPath)
	} else {
		logger.Info("Configuration loaded from defaults and environment")
	}

	client := simclient.NewClient(
		cfg.Backend.BaseURL(),
		cfg.Backend.Timeout,
		simclient.ClientConfig{
			MaxRetries:          cfg.Backend.MaxRetries,
			RetryDelayBase:      cfg.Backend.RetryDelayBase,
			MaxIdleConns:        cfg.Backend.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.Backend.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.Backend.IdleConnTimeout,
		},
	)
	logger.Info("Reading simulation server at %s", client.BaseURL())

	store := view.NewStore()
	renderer := view.NewRenderer(cfg.Charts.Width, cfg.Charts.Height)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notifier poller.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		telegramClient.SetStatusFunc(store.Snapshot)
		telegramClient.ListenForCommands(ctx)
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	p := poller.New(client, store, notifier, poller.Config{
		Interval:      cfg.Backend.PollInterval,
		NotifyResults: cfg.Telegram.NotifyResults,
	})
	srv := server.New(store, renderer, server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReleaseMode:    cfg.Server.ReleaseMode,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	pollerDone := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(pollerDone)
	}()

	err := srv.Run(ctx)
	if err != nil {
		logger.Error("%v", err)
	}
	cancel()
	<-pollerDone
	logger.Info("Service stopped")
	return err
}
