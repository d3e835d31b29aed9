package main

import (
	"fmt"
	"log"
	"os"

	"github.com/1F47E/qr-navigator/pkg/config"
	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "qrnav",
	Short: "QR-triggered indoor destination navigator",
	Long: `Scan a QR code to open the destination menu, search the directory,
pick a destination and get the walkable line from your position to it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (default qrnav.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(scanCmd, serveCmd, pathCmd, decodeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}
