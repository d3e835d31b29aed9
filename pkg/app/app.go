// Package app wires configuration into a running navigator session.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/1F47E/qr-navigator/pkg/camera"
	"github.com/1F47E/qr-navigator/pkg/config"
	"github.com/1F47E/qr-navigator/pkg/decoder"
	"github.com/1F47E/qr-navigator/pkg/directory"
	"github.com/1F47E/qr-navigator/pkg/navmesh"
	"github.com/1F47E/qr-navigator/pkg/presenter"
	"github.com/1F47E/qr-navigator/pkg/webcam"
	"github.com/1F47E/qr-navigator/pkg/workflow"
)

// OpenSource returns replayed frames when scan.frames is set, else the webcam
func OpenSource(cfg *config.Config) (camera.Source, error) {
	if cfg.Scan.Frames != "" {
		return camera.NewDirSource(cfg.Scan.Frames)
	}
	return webcam.NewWebcam(cfg.Scan.Camera), nil
}

// Navigator loads the configured mesh, or routes straight when none is set
func Navigator(cfg *config.Config, logger *log.Logger) (presenter.Navigator, error) {
	if cfg.Navigation.Mesh == "" {
		return presenter.Straight{}, nil
	}
	mesh, err := navmesh.Load(cfg.Navigation.Mesh)
	if err != nil {
		return nil, err
	}
	logger.Printf("loaded mesh %s with %d waypoints", cfg.Navigation.Mesh, mesh.Count())
	return mesh, nil
}

// NewController builds a session controller from configuration
func NewController(cfg *config.Config, source camera.Source, view workflow.View, logger *log.Logger, verbose bool) (*workflow.Controller, error) {
	opts := []directory.Option{directory.WithTimeout(cfg.Directory.Timeout)}
	if cfg.Directory.CacheSize > 0 {
		opts = append(opts, directory.WithLookupCache(cfg.Directory.CacheSize))
	}
	client, err := directory.NewClient(cfg.Directory.BaseURL, opts...)
	if err != nil {
		return nil, err
	}

	nav, err := Navigator(cfg, logger)
	if err != nil {
		return nil, err
	}

	return workflow.NewController(workflow.Config{
		Trigger:      cfg.Scan.Trigger,
		ScanInterval: cfg.Scan.Interval,
		UserStart:    cfg.Session.Start,
		Debounce:     cfg.Search.Debounce,
		Verbose:      verbose,
	}, workflow.Deps{
		Source:    source,
		Decoder:   decoder.NewQRDecoder(decoder.DefaultOptions()),
		Directory: client,
		Presenter: presenter.New(nav, cfg.Policy(), cfg.Navigation.OverviewOffset, cfg.Navigation.AreaMask),
		View:      view,
		Logger:    logger,
	}), nil
}

// LocalDirectory serves the seed file on a loopback port until ctx ends and
// points cfg.Directory.BaseURL at it
func LocalDirectory(ctx context.Context, cfg *config.Config, seed string, logger *log.Logger) error {
	destinations, err := directory.LoadSeed(seed)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := &http.Server{
		Handler:           directory.NewServer(directory.NewMemoryStore(destinations...), cfg.Server.Path, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("local directory stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	cfg.Directory.BaseURL = "http://" + ln.Addr().String() + cfg.Server.Path
	logger.Printf("local directory with %d destinations at %s", len(destinations), cfg.Directory.BaseURL)
	return nil
}
