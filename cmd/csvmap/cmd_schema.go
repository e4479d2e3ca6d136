package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/daana-health/daana-ingestion-backend/internal/schema"
)

// schemaCmd prints the catalog or one table.
var schemaCmd = &cobra.Command{
	Use:   "schema [TABLE]",
	Short: "Show target tables and columns",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, t := range catalog.Tables() {
			fmt.Fprintf(w, "%-14s %d columns (key %s)\n", t.Name, len(t.Columns), t.PrimaryKey)
		}
		return nil
	}

	t, err := catalog.Table(args[0])
	if err != nil {
		return err
	}
	printTable(w, t)
	return nil
}

func printTable(w io.Writer, t *schema.Table) {
	fmt.Fprintf(w, "%s (primary key %s)\n", t.Name, t.PrimaryKey)
	for _, c := range t.Columns {
		flag := ""
		switch {
		case c.Auto:
			flag = " [auto]"
		case c.Helper:
			flag = " [lookup]"
		}
		fmt.Fprintf(w, "  %-24s %-16s%s  %s\n", c.Name, c.Type, flag, c.Description)
	}
}
