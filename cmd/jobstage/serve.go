package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/jobstage/internal/config"
	"github.com/jonathan/jobstage/internal/server"
	"github.com/jonathan/jobstage/internal/server/ratelimit"
)

var (
	servePort  int
	serveStore string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP API",
	Long: `Start an HTTP server exposing scrape triggers and the moderation queue.

Every route except /health requires an admin bearer token signed with JWT_SECRET.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "Storage backend: postgres or memory (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(serveStore)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := server.Deps{
		Scraper:    a.orchestrator(),
		Sources:    a.registry,
		Moderation: a.moderation(),
		JWT:        server.NewJWTService(jwtCfg),
		RateLimit:  ratelimit.LoadConfig(),
		Logger:     a.logger,
	}
	if a.db != nil {
		deps.Health = a.db
	}

	srv, err := server.New(server.Config{Port: cfg.Port, EnabledSources: cfg.Sources}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	a.logger.Info("serving admin API", zap.String("addr", cfg.Addr()), zap.Strings("sources", cfg.Sources))
	return srv.Start(ctx)
}
