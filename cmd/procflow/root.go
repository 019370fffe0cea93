package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "procflow",
	Short: "Procflow runs networks of communicating procs tick by tick.",
	Long: `Procflow runs networks of communicating procs tick by tick. ` +
		`It ships a set of demo networks that can be executed, traced into ` +
		`SQLite, and inspected through a monitoring server.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Local overrides for defaults such as PROCFLOW_PORT.
	_ = godotenv.Load()
}

func envPort(fallback int) int {
	if p := os.Getenv("PROCFLOW_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}

	return fallback
}
