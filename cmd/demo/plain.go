package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/1F47E/qr-navigator/pkg/app"
	"github.com/1F47E/qr-navigator/pkg/camera"
	"github.com/1F47E/qr-navigator/pkg/config"
	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/1F47E/qr-navigator/pkg/workflow"
)

var (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func disableColors() {
	colorReset = ""
	colorRed = ""
	colorGreen = ""
	colorYellow = ""
	colorPurple = ""
	colorCyan = ""
	colorBold = ""
}

func printTitle(title string) {
	fmt.Printf("\n%s%s📍 %s%s\n", colorBold, colorPurple, title, colorReset)
	fmt.Println(strings.Repeat("=", 60))
}

func printSubtitle(subtitle string) {
	fmt.Printf("\n%s%s%s%s\n", colorBold, colorCyan, subtitle, colorReset)
}

func printSuccess(message string) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, message, colorReset)
}

func printInfo(message string) {
	fmt.Printf("%s• %s%s\n", colorYellow, message, colorReset)
}

func printError(message string) {
	fmt.Printf("%s✗ %s%s\n", colorRed, message, colorReset)
}

func printStat(label string, value interface{}) {
	fmt.Printf("  %s%s:%s %s%v%s\n", colorBold, label, colorReset, colorYellow, value, colorReset)
}

// plainView prints view updates as they happen
type plainView struct{}

func (plainView) ShowPreview(visible bool) {
	if visible {
		printInfo("Camera preview on")
	} else {
		printInfo("Camera preview off")
	}
}

func (plainView) RevealMenu() {
	printSubtitle("Destination menu")
	printInfo("Use 'search <text>' and 'select <n>'")
}

func (plainView) SetDestinations(names []string) {
	if len(names) == 0 {
		printInfo("No destinations listed")
		return
	}
	for i, name := range names {
		fmt.Printf("  %s[%d]%s %s\n", colorBold, i, colorReset, name)
	}
}

func (plainView) DrawLine(line models.LineState) {
	if !line.Visible {
		printInfo("Navigation line hidden")
		return
	}
	if len(line.Corners) == 0 {
		printError(fmt.Sprintf("No walkable route to %s", line.Target))
		return
	}
	printSuccess(fmt.Sprintf("Navigation line to %s", line.Target))
	for i, c := range line.Corners {
		printStat(fmt.Sprintf("Corner %d", i), c)
	}
}

func (plainView) MoveOverview(pose models.Pose) {
	printStat("Overview camera", fmt.Sprintf("%s yaw %.0f° pitch %.0f°", pose.Position, pose.Yaw, pose.Pitch))
}

func printHelp() {
	printSubtitle("Commands")
	fmt.Println("  scan             start polling the camera")
	fmt.Println("  cancel           stop polling")
	fmt.Println("  search [text]    filter destinations (empty clears)")
	fmt.Println("  select <n>       choose destination n")
	fmt.Println("  wait <state>     block until the session reaches state")
	fmt.Println("  status           print the session")
	fmt.Println("  quit             end the session")
}

func runPlain(ctx context.Context, cfg *config.Config, source camera.Source, color, verbose bool) error {
	if !color {
		disableColors()
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	ctrl, err := app.NewController(cfg, source, plainView{}, logger, verbose)
	if err != nil {
		return err
	}

	printTitle("QR Navigator")
	printStat("Trigger", cfg.Scan.Trigger)
	printStat("Directory", cfg.Directory.BaseURL)
	printStat("Toggle policy", cfg.Navigation.Toggle)
	printHelp()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return <-done
		case err := <-done:
			return err
		case line, ok := <-lines:
			if !ok {
				printInfo("Input closed, press Ctrl+C to exit")
				lines = nil
				continue
			}
			if quit := runCommand(ctx, ctrl, line); quit {
				cancel()
				return <-done
			}
		}
	}
}

// runCommand executes one input line and reports whether to quit
func runCommand(ctx context.Context, ctrl *workflow.Controller, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "":
	case "scan":
		if err := ctrl.StartScan(); err != nil {
			printError(err.Error())
		}
	case "cancel":
		if err := ctrl.CancelScan(); err != nil {
			printError(err.Error())
		}
	case "search":
		ctrl.InputChanged(arg)
	case "select":
		i, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			printError(fmt.Sprintf("invalid index %q", arg))
			return false
		}
		if err := ctrl.Select(i); err != nil {
			printError(err.Error())
		}
	case "wait":
		waitFor(ctx, ctrl, strings.TrimSpace(arg))
	case "status":
		s := ctrl.Snapshot()
		printStat("State", s.State)
		printStat("Query", s.Query.RawInput)
		printStat("Destinations", len(s.Destinations))
		if s.Target != nil {
			printStat("Target", *s.Target)
		}
		printStat("Line visible", s.Line.Visible)
	case "help":
		printHelp()
	case "quit", "exit":
		return true
	default:
		printError(fmt.Sprintf("unknown command %q", cmd))
	}
	return false
}

func waitFor(ctx context.Context, ctrl *workflow.Controller, name string) {
	state, err := workflow.ParseState(name)
	if err != nil {
		printError(err.Error())
		return
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if ctrl.Snapshot().State == state {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
