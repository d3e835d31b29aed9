package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/1F47E/qr-navigator/pkg/app"
	"github.com/1F47E/qr-navigator/pkg/config"
	"github.com/1F47E/qr-navigator/pkg/workflow"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

func main() {
	var (
		configFile = flag.String("config", "", "Config file path (default qrnav.yaml if present)")
		frames     = flag.String("frames", "", "Directory of frame images to replay instead of a camera")
		seed       = flag.String("seed", "", "Serve this destination seed file locally")
		plain      = flag.Bool("plain", false, "Line-oriented mode even on a terminal")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *frames != "" {
		cfg.Scan.Frames = *frames
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if *seed != "" {
		if err := app.LocalDirectory(ctx, cfg, *seed, logger); err != nil {
			log.Fatalf("Failed to start local directory: %v", err)
		}
	}

	source, err := app.OpenSource(cfg)
	if err != nil {
		log.Fatalf("Failed to open camera: %v", err)
	}

	terminal := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if *plain || !terminal {
		if err := runPlain(ctx, cfg, source, terminal, *verbose); err != nil {
			log.Fatal(err)
		}
		return
	}

	view := &teaView{}
	ctrl, err := app.NewController(cfg, source, view, log.New(view, "", 0), *verbose)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	program := tea.NewProgram(initialModel(ctrl, view.pending), tea.WithAltScreen())
	view.program = program
	ctrl.OnChange(func(s workflow.Session) { program.Send(sessionMsg(s)) })

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	if _, err := program.Run(); err != nil {
		log.Fatal(err)
	}
	cancel()
	<-done
}
