// Package schema holds the target schema catalog that uploaded CSV headers are
// mapped onto.
//
// The catalog is loaded once at startup, from the embedded catalog.yaml or a
// file named by SCHEMA_FILE, and is read-only afterwards. It is passed to the
// mapper, the coercer and the HTTP layer explicitly.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// ErrUnknownTable is returned when a table name is not in the catalog.
var ErrUnknownTable = errors.New("unknown target table")

// Catalog is the immutable set of target tables.
type Catalog struct {
	// Context is free-form domain guidance included in mapping prompts.
	Context string

	tables []*Table
	byName map[string]*Table
}

type catalogFile struct {
	Context string   `yaml:"context"`
	Tables  []*Table `yaml:"tables"`
}

// Load reads the catalog from path, or the embedded catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(embeddedCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded catalog. It panics if the embedded file is
// invalid, which tests guard against.
func Default() *Catalog {
	c, err := Parse(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded schema catalog: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schema catalog: %w", err)
	}
	if len(f.Tables) == 0 {
		return nil, errors.New("schema catalog has no tables")
	}

	c := &Catalog{
		Context: strings.TrimSpace(f.Context),
		tables:  f.Tables,
		byName:  make(map[string]*Table, len(f.Tables)),
	}

	for _, t := range f.Tables {
		if t.Name == "" {
			return nil, errors.New("schema catalog: table without a name")
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("schema catalog: duplicate table %q", t.Name)
		}
		if len(t.Columns) == 0 {
			return nil, fmt.Errorf("schema catalog: table %q has no columns", t.Name)
		}

		t.index = make(map[string]int, len(t.Columns))
		for i := range t.Columns {
			col := &t.Columns[i]
			if col.Name == "" {
				return nil, fmt.Errorf("schema catalog: table %q has a column without a name", t.Name)
			}
			if _, dup := t.index[col.Name]; dup {
				return nil, fmt.Errorf("schema catalog: duplicate column %s.%s", t.Name, col.Name)
			}
			col.Kind, col.Scale = KindOf(col.Type)
			t.index[col.Name] = i
		}

		if t.PrimaryKey != "" {
			if _, ok := t.index[t.PrimaryKey]; !ok {
				return nil, fmt.Errorf("schema catalog: %s primary key %q is not a column", t.Name, t.PrimaryKey)
			}
		}
		for _, k := range t.DedupKey {
			if _, ok := t.index[k]; !ok {
				return nil, fmt.Errorf("schema catalog: %s dedup key %q is not a column", t.Name, k)
			}
		}

		c.byName[t.Name] = t
	}

	return c, nil
}

// Table returns the named table or ErrUnknownTable.
func (c *Catalog) Table(name string) (*Table, error) {
	t, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownTable, name, strings.Join(c.TableNames(), ", "))
	}
	return t, nil
}

// Tables returns all tables in catalog order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, len(c.tables))
	copy(out, c.tables)
	return out
}

// TableNames returns table names in catalog order.
func (c *Catalog) TableNames() []string {
	names := make([]string, len(c.tables))
	for i, t := range c.tables {
		names[i] = t.Name
	}
	return names
}

// Candidates returns the columns a header may be mapped to. With a table
// name it is that table's mappable columns; without one it is the union
// across all tables, first declaration winning for repeated names.
func (c *Catalog) Candidates(table string) ([]Column, error) {
	if table != "" {
		t, err := c.Table(table)
		if err != nil {
			return nil, err
		}
		return t.MappableColumns(), nil
	}

	seen := make(map[string]bool)
	var out []Column
	for _, t := range c.tables {
		for _, col := range t.MappableColumns() {
			if seen[col.Name] {
				continue
			}
			seen[col.Name] = true
			out = append(out, col)
		}
	}
	return out, nil
}

// ColumnTypes returns column descriptors by name for coercion. Without a
// table name the catalog-wide union is used.
func (c *Catalog) ColumnTypes(table string) (map[string]Column, error) {
	if table != "" {
		t, err := c.Table(table)
		if err != nil {
			return nil, err
		}
		out := make(map[string]Column, len(t.Columns))
		for _, col := range t.Columns {
			out[col.Name] = col
		}
		return out, nil
	}

	out := make(map[string]Column)
	for _, t := range c.tables {
		for _, col := range t.Columns {
			if _, ok := out[col.Name]; !ok {
				out[col.Name] = col
			}
		}
	}
	return out, nil
}

// BestTable returns the table whose mappable columns cover the most of the
// given target names. It returns "" when nothing matches or the top score is
// shared by more than one table.
func (c *Catalog) BestTable(targets []string) string {
	type score struct {
		name string
		hits int
	}
	scores := make([]score, 0, len(c.tables))
	for _, t := range c.tables {
		hits := 0
		for _, name := range targets {
			if col, ok := t.Column(name); ok && col.Mappable() {
				hits++
			}
		}
		scores = append(scores, score{t.Name, hits})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].hits > scores[j].hits })

	if len(scores) == 0 || scores[0].hits == 0 {
		return ""
	}
	if len(scores) > 1 && scores[1].hits == scores[0].hits {
		return ""
	}
	return scores[0].name
}
