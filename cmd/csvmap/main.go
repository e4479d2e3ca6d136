// Command csvmap converts CSV files against the schema catalog from the
// command line, using the same pipeline as the HTTP service.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/daana-health/daana-ingestion-backend/internal/config"
	"github.com/daana-health/daana-ingestion-backend/internal/logging"
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
)

var (
	// Global flags
	verbose    bool
	schemaFile string
	timeout    time.Duration

	cfg     *config.Config
	catalog *schema.Catalog
)

var rootCmd = &cobra.Command{
	Use:   "csvmap",
	Short: "Map CSV headers onto the Daana schema",
	Long: `csvmap maps the headers of a CSV export onto the Daana inventory schema,
coerces dates and numbers, and writes the cleaned CSV.

Configuration is read from the environment and an optional .env file,
exactly as the server reads it. Logs go to stderr so stdout stays clean.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logging.Setup(os.Stderr, level, cfg.Logging.Format)

		path := cfg.Schema.File
		if schemaFile != "" {
			path = schemaFile
		}
		catalog, err = schema.Load(path)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&schemaFile, "schema", "", "Schema catalog YAML (default: embedded, or SCHEMA_FILE)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
