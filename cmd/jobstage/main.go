// Package main provides the jobstage command: scrape job sites into a
// staging store, and moderate what was staged.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jobstage",
	Short: "Job posting scraper and moderation staging",
	Long: `jobstage scrapes job listings from configured sites, stages the new postings
for review, and promotes or rejects them into the live jobs table.

Configuration is read from an optional JSON file (--config) and the environment.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
