package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"asset-custody-api/internal"
	"asset-custody-api/internal/config"
	"asset-custody-api/internal/lifecycle"
	"asset-custody-api/internal/logger"
	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"
	"asset-custody-api/internal/store/memstore"
	"asset-custody-api/internal/store/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		return serve(cmd.Context(), cfg, log)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations.",
	Long:  `Applies the migrations embedded in the binary to the database named by DB_DSN.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		cfg := config.Load()
		if cfg.DatabaseDSN == "" {
			return errors.New("DB_DSN is required")
		}
		log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		if err := postgres.Migrate(cfg.DatabaseDSN, log); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		return nil
	},
}

// Execute runs the command line
func Execute(ctx context.Context) {
	rootCmd := &cobra.Command{
		Use:          "asset-custody-api",
		Short:        "Asset lifecycle and assignment service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional file with KEY=VALUE settings")
	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore builds the configured backend. The returned store doubles as
// the principal directory.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, store.Directory, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if err := postgres.Migrate(cfg.DatabaseDSN, log); err != nil {
			return nil, nil, err
		}
		pg, err := postgres.Open(ctx, postgres.Options{DSN: cfg.DatabaseDSN, MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, nil, err
		}
		return pg, pg, nil
	default:
		log.Warn("using the in-memory store; data is lost on exit")
		var principals []models.Principal
		if cfg.PrincipalsFile != "" {
			loaded, err := memstore.LoadPrincipals(cfg.PrincipalsFile)
			if err != nil {
				return nil, nil, err
			}
			principals = loaded
		}
		log.Info("seeded principal directory", zap.Int("principals", len(principals)))
		mem := memstore.New(principals...)
		return mem, mem, nil
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	st, dir, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	var metrics *internal.Metrics
	opts := lifecycle.Options{Timeout: cfg.StoreTimeout, Logger: log}
	if cfg.EnableMetrics {
		metrics = internal.NewMetrics()
		opts.Observer = metrics
	}
	engine := lifecycle.New(st, dir, opts)

	srv, err := internal.NewServer(engine, st, cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting Asset Custody API server",
			zap.String("addr", cfg.ListenAddr),
			zap.String("store", cfg.StoreBackend),
			zap.String("jwt_issuer", cfg.JWTIssuer),
			zap.String("jwt_audience", cfg.JWTAudience),
			zap.Duration("jwt_expiry", cfg.JWTExpiry))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
