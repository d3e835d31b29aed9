package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1F47E/qr-navigator/pkg/config"
	"github.com/1F47E/qr-navigator/pkg/directory"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveSeed     string
	servePostgres string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the destination directory over HTTP",
	Long: `Answer ?search= and ?destination= queries from a YAML seed file held in
memory, or from PostgreSQL when a DSN is configured.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveSeed, "seed", "", "YAML seed file of destinations (overrides server.seed)")
	serveCmd.Flags().StringVar(&servePostgres, "postgres", "", "PostgreSQL DSN (overrides server.postgres_dsn)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Server.Addr = firstSet(serveAddr, cfg.Server.Addr)
	cfg.Server.Seed = firstSet(serveSeed, cfg.Server.Seed)
	cfg.Server.PostgresDSN = firstSet(servePostgres, cfg.Server.PostgresDSN)

	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           directory.NewServer(store, cfg.Server.Path, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Directory server listening on %s%s", cfg.Server.Addr, cfg.Server.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (directory.Store, func(), error) {
	var seed []directory.Destination
	if cfg.Server.Seed != "" {
		var err error
		if seed, err = directory.LoadSeed(cfg.Server.Seed); err != nil {
			return nil, nil, err
		}
	}

	if cfg.Server.PostgresDSN == "" {
		return directory.NewMemoryStore(seed...), func() {}, nil
	}

	pg, err := directory.NewPostgresStore(ctx, cfg.Server.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.InitSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	if len(seed) > 0 {
		if err := pg.Upsert(ctx, seed); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to seed destinations: %w", err)
		}
	}
	return pg, func() { pg.Close() }, nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
