package mapper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/daana-health/daana-ingestion-backend/internal/schema"
)

// maxSampleCell truncates long sample values in prompts.
const maxSampleCell = 80

// BuildPrompt renders the system instruction and user message for req.
func BuildPrompt(req Request) (system, user string) {
	var sb strings.Builder

	sb.WriteString("You map spreadsheet column headers onto the columns of a fixed database schema.\n")
	if req.Context != "" {
		sb.WriteString("\nDOMAIN CONTEXT:\n")
		sb.WriteString(req.Context)
		sb.WriteString("\n")
	}

	sb.WriteString("\nTARGET COLUMNS")
	if req.Table != "" {
		fmt.Fprintf(&sb, " (table %q)", req.Table)
	}
	sb.WriteString(":\n")
	for _, c := range req.Candidates {
		writeColumn(&sb, c)
	}

	sb.WriteString(`
RULES:
1. Respond with a single JSON object whose keys are source headers and whose values are target column names: {"<source header>": "<target column>"}.
2. Use source headers exactly as given and target column names exactly as listed (case-sensitive).
3. Omit any header that has no reasonable match. Do not invent columns.
4. Map each header to at most one column and use each column at most once.
5. Use the sample values to decide between similar columns.
6. Return only the JSON object, without explanation or markdown.
`)
	system = sb.String()

	sb.Reset()
	headers, _ := json.Marshal(req.Headers)
	sb.WriteString("SOURCE HEADERS:\n")
	sb.Write(headers)
	sb.WriteString("\n")

	if len(req.Samples) > 0 {
		sb.WriteString("\nSAMPLE ROWS:\n")
		for _, row := range req.Samples {
			rec := make(map[string]string, len(req.Headers))
			for i, h := range req.Headers {
				if i < len(row) {
					rec[h] = truncateCell(row[i])
				}
			}
			line, _ := json.Marshal(rec)
			sb.Write(line)
			sb.WriteString("\n")
		}
	}

	if req.Table != "" {
		fmt.Fprintf(&sb, "\nThe data belongs to the %q table.\n", req.Table)
	} else {
		sb.WriteString("\nThe target table is not known; pick the columns that fit best.\n")
	}
	sb.WriteString("\nReturn the JSON mapping object.")

	return system, sb.String()
}

func writeColumn(sb *strings.Builder, c schema.Column) {
	fmt.Fprintf(sb, "- %s (%s, %s): %s", c.Name, c.Type, c.Kind, c.Description)
	if c.Helper {
		sb.WriteString(" [helper]")
	}
	if len(c.Aliases) > 0 {
		fmt.Fprintf(sb, ". Often labelled: %s", strings.Join(c.Aliases, ", "))
	}
	sb.WriteString("\n")
}

func truncateCell(s string) string {
	r := []rune(s)
	if len(r) <= maxSampleCell {
		return s
	}
	return string(r[:maxSampleCell]) + "…"
}
