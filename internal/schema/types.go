package schema

import (
	"regexp"
	"strconv"
	"strings"
)

// FieldType is the semantic type that drives value coercion.
type FieldType string

const (
	FieldIdentifier FieldType = "identifier"
	FieldText       FieldType = "text"
	FieldInteger    FieldType = "integer"
	FieldDecimal    FieldType = "decimal"
	FieldDate       FieldType = "date"
	FieldTimestamp  FieldType = "timestamp"
	FieldBool       FieldType = "boolean"
)

// Column describes one target column.
type Column struct {
	Name        string   `yaml:"name" json:"name"`
	Type        string   `yaml:"type" json:"type"`
	Description string   `yaml:"description" json:"description"`
	Nullable    bool     `yaml:"nullable" json:"nullable,omitempty"`
	Auto        bool     `yaml:"auto" json:"auto,omitempty"`
	Helper      bool     `yaml:"helper" json:"helper,omitempty"`
	Aliases     []string `yaml:"aliases" json:"aliases,omitempty"`

	// Derived from Type when the catalog is loaded. Scale is the number of
	// decimal places for decimals, -1 when unbounded.
	Kind  FieldType `yaml:"-" json:"kind"`
	Scale int       `yaml:"-" json:"-"`
}

// Mappable reports whether the column may appear as a mapping target.
func (c Column) Mappable() bool {
	return !c.Auto
}

// Table is an ordered set of columns plus the keys ingestion relies on.
type Table struct {
	Name       string   `yaml:"name" json:"-"`
	PrimaryKey string   `yaml:"primary_key" json:"primary_key"`
	DedupKey   []string `yaml:"dedup_key" json:"dedup_key,omitempty"`
	Columns    []Column `yaml:"columns" json:"columns"`

	index map[string]int
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// MappableColumns returns columns that may be mapping targets, in catalog order.
func (t *Table) MappableColumns() []Column {
	out := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Mappable() {
			out = append(out, c)
		}
	}
	return out
}

// StoredColumns returns the names of columns that exist in the database table.
func (t *Table) StoredColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Helper {
			out = append(out, c.Name)
		}
	}
	return out
}

var sqlTypeRegex = regexp.MustCompile(`^\s*([A-Za-z ]+?)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?\s*$`)

// KindOf derives the semantic type and decimal scale from a SQL type string
// such as "VARCHAR(255)", "DECIMAL(10, 4)" or "TIMESTAMPTZ".
func KindOf(sqlType string) (FieldType, int) {
	m := sqlTypeRegex.FindStringSubmatch(sqlType)
	if m == nil {
		return FieldText, 0
	}
	base := strings.ToUpper(strings.Join(strings.Fields(m[1]), " "))

	switch base {
	case "UUID":
		return FieldIdentifier, 0
	case "INT", "INTEGER", "SMALLINT", "BIGINT", "INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return FieldInteger, 0
	case "DECIMAL", "NUMERIC", "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE PRECISION":
		scale := -1
		if m[3] != "" {
			scale, _ = strconv.Atoi(m[3])
		} else if m[2] != "" && (base == "DECIMAL" || base == "NUMERIC") {
			scale = 0
		}
		return FieldDecimal, scale
	case "DATE":
		return FieldDate, 0
	case "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITHOUT TIME ZONE", "DATETIME":
		return FieldTimestamp, 0
	case "BOOL", "BOOLEAN":
		return FieldBool, 0
	default:
		return FieldText, 0
	}
}
