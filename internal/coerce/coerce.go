// Package coerce converts renamed CSV columns to the canonical text form of
// their target column type.
//
// Coercion is total: it never fails and never drops a row. A value that cannot
// be recognised as its column's type is left exactly as uploaded, and empty
// cells stay empty.
package coerce

import (
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
	"github.com/daana-health/daana-ingestion-backend/internal/table"
)

// Coerce returns a copy of t with every column that has a schema entry
// converted according to its semantic type. Columns without an entry are
// copied unchanged.
func Coerce(t *table.Table, columns map[string]schema.Column) *table.Table {
	out := t.Clone()

	for i, name := range out.Header {
		col, ok := columns[name]
		if !ok {
			continue
		}
		for _, row := range out.Rows {
			row[i] = Value(row[i], col)
		}
	}

	return out
}

// Value converts a single cell for col.
func Value(raw string, col schema.Column) string {
	if raw == "" {
		return raw
	}

	var (
		out string
		ok  bool
	)
	switch col.Kind {
	case schema.FieldDate:
		out, ok = Date(raw, false)
	case schema.FieldTimestamp:
		out, ok = Date(raw, true)
	case schema.FieldInteger:
		out, ok = Integer(raw)
	case schema.FieldDecimal:
		out, ok = Decimal(raw, col.Scale)
	case schema.FieldText:
		return Text(raw)
	default:
		return raw
	}

	if !ok {
		return raw
	}
	return out
}
