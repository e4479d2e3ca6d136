package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/daana-health/daana-ingestion-backend/internal/config"
	"github.com/daana-health/daana-ingestion-backend/internal/core"
	"github.com/daana-health/daana-ingestion-backend/internal/llm"
	"github.com/daana-health/daana-ingestion-backend/internal/mapper"
)

var (
	targetTable  string
	withMetadata bool
	offline      bool
	outputPath   string
)

// convertCmd converts one CSV file.
var convertCmd = &cobra.Command{
	Use:   "convert FILE",
	Short: "Convert a CSV file to the schema",
	Long: `Convert maps FILE's headers onto the schema, renames and coerces the
mapped columns, and writes the cleaned CSV to stdout or --output.

With --metadata the mapping summary is written as JSON instead.
With --offline headers are matched locally by name and alias, without
calling a language model.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&targetTable, "table", "t", "", "Target table (default: inferred)")
	convertCmd.Flags().BoolVar(&withMetadata, "metadata", false, "Write mapping metadata as JSON instead of CSV")
	convertCmd.Flags().BoolVar(&offline, "offline", false, "Match headers locally without a language model")
	convertCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	suggester, err := cliSuggester(ctx, cfg, offline)
	if err != nil {
		return err
	}

	svc := core.NewService(core.Options{
		Catalog:      catalog,
		Mapper:       mapper.New(catalog, suggester, cfg.AI.SampleRows),
		KeepUnmapped: cfg.Convert.KeepUnmapped,
	})

	res, err := svc.Convert(ctx, core.ConvertRequest{
		FileName:    filepath.Base(args[0]),
		Data:        data,
		TargetTable: targetTable,
	})
	if err != nil {
		if core.IsUserFacing(err) {
			return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if withMetadata {
		return writeMetadata(out, res)
	}
	_, err = io.WriteString(out, res.CSV)
	return err
}

// cliSuggester picks the fuzzy matcher when offline or when the configured
// provider is fuzzy, otherwise the configured language model.
func cliSuggester(ctx context.Context, cfg *config.Config, offline bool) (mapper.Suggester, error) {
	if offline || cfg.AI.Provider == config.ProviderFuzzy {
		return mapper.FuzzySuggester{}, nil
	}
	client, err := llm.New(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}
	return mapper.NewAISuggester(client), nil
}

type metadata struct {
	File          string            `json:"file"`
	TargetTable   string            `json:"target_table,omitempty"`
	InferredTable string            `json:"inferred_table,omitempty"`
	Mapping       map[string]string `json:"column_mapping"`
	Unmapped      []string          `json:"unmapped_columns"`
	Rows          int               `json:"rows"`
	DurationMS    int64             `json:"duration_ms"`
}

func writeMetadata(w io.Writer, res *core.ConvertResult) error {
	unmapped := res.Unmapped
	if unmapped == nil {
		unmapped = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(metadata{
		File:          res.FileName,
		TargetTable:   res.TargetTable,
		InferredTable: res.InferredTable,
		Mapping:       res.Mapping,
		Unmapped:      unmapped,
		Rows:          len(res.Table.Rows),
		DurationMS:    res.Duration.Milliseconds(),
	})
}
