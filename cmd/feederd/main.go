package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "feederd",
	Short: "Fish feeder backend",
	Long: `feederd decides when the fish get fed.

It serves the HTTP API used by operators and the feeder device, and runs
the periodic check that dispatches reserved and unattended feeds.`,
	SilenceUsage: true,
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml" // Default path for local development
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "Path to the YAML config file")
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetPrefix("feederd ")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
