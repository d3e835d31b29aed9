package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/1F47E/qr-navigator/pkg/app"
	"github.com/1F47E/qr-navigator/pkg/workflow"
	"github.com/spf13/cobra"
)

var (
	scanFrames  string
	scanCamera  int
	scanSearch  string
	scanSelect  int
	scanTimeout time.Duration
	scanSeed    string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the scan, search and select workflow headless",
	Long: `Poll the camera (or a directory of frames) until the trigger code is read,
search the directory for --search, select entry --select and print the line.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFrames, "frames", "", "Directory of frame images to replay instead of a camera")
	scanCmd.Flags().IntVar(&scanCamera, "camera", -1, "Capture device id (overrides scan.camera)")
	scanCmd.Flags().StringVarP(&scanSearch, "search", "s", "", "Search text to enter once the menu is revealed")
	scanCmd.Flags().IntVar(&scanSelect, "select", 0, "Index of the destination to select")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 60*time.Second, "Give up after this long")
	scanCmd.Flags().StringVar(&scanSeed, "seed", "", "Serve this destination seed file locally instead of using directory.base_url")
	_ = scanCmd.MarkFlagRequired("search")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if scanFrames != "" {
		cfg.Scan.Frames = scanFrames
	}
	if scanCamera >= 0 {
		cfg.Scan.Frames = ""
		cfg.Scan.Camera = scanCamera
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if scanSeed != "" {
		if err := app.LocalDirectory(ctx, cfg, scanSeed, logger); err != nil {
			return err
		}
	}
	source, err := app.OpenSource(cfg)
	if err != nil {
		return err
	}
	ctrl, err := app.NewController(cfg, source, workflow.LogView{Logger: log.New(os.Stdout, "", 0)}, logger, verbose)
	if err != nil {
		return err
	}

	changes := make(chan workflow.Session, 16)
	ctrl.OnChange(func(s workflow.Session) {
		select {
		case changes <- s:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := ctrl.StartScan(); err != nil {
		return err
	}
	if _, err := awaitSession(ctx, ctrl, changes, "trigger code", func(s workflow.Session) bool {
		return s.MenuRevealed()
	}); err != nil {
		return err
	}

	ctrl.InputChanged(scanSearch)
	s, err := awaitSession(ctx, ctrl, changes, "search results", func(s workflow.Session) bool {
		return s.Listed == scanSearch
	})
	if err != nil {
		return err
	}
	if len(s.Destinations) == 0 {
		return fmt.Errorf("no destinations match %q", scanSearch)
	}
	if scanSelect < 0 || scanSelect >= len(s.Destinations) {
		return fmt.Errorf("--select %d out of range, %d destinations match %q", scanSelect, len(s.Destinations), scanSearch)
	}

	if err := ctrl.Select(scanSelect); err != nil {
		return err
	}
	s, err = awaitSession(ctx, ctrl, changes, "navigation line", func(s workflow.Session) bool {
		return s.State == workflow.NavigationShown
	})
	if err != nil {
		return err
	}

	fmt.Printf("Destination: %s at %s\n", s.Destinations[scanSelect], *s.Target)
	fmt.Printf("Corners: %d\n", len(s.Line.Corners))
	return nil
}

// awaitSession blocks until cond holds for the latest session
func awaitSession(ctx context.Context, ctrl *workflow.Controller, changes <-chan workflow.Session, what string, cond func(workflow.Session) bool) (workflow.Session, error) {
	if s := ctrl.Snapshot(); cond(s) {
		return s, nil
	}
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return workflow.Session{}, fmt.Errorf("timed out waiting for %s", what)
			}
			return workflow.Session{}, ctx.Err()
		case <-changes:
			// changes may drop updates, so read the authoritative copy
			if s := ctrl.Snapshot(); cond(s) {
				return s, nil
			}
		}
	}
}
