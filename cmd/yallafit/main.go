// Command yallafit holds the operator tasks that sit beside the API:
// applying migrations, creating staff accounts and checking macro maths.
// Usage: go run ./cmd/yallafit <command> (from the repo root)
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var dbURL string

var rootCmd = &cobra.Command{
	Use:           "yallafit",
	Short:         "yallafit manages the YallaFit API database and tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "Postgres connection string (defaults to $DB_URL)")
}

// resolveDBURL prefers the flag, then DB_URL from the environment or .env.
func resolveDBURL() (string, error) {
	if dbURL != "" {
		return dbURL, nil
	}
	if v := os.Getenv("DB_URL"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no database configured: pass --db-url or set DB_URL")
}

func main() {
	// .env is optional; flags and the real environment still work without it.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
