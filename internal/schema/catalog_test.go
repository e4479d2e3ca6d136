package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefault_Tables(t *testing.T) {
	c := Default()

	want := []string{"clinics", "users", "locations", "lots", "drugs", "units", "transactions"}
	if diff := cmp.Diff(want, c.TableNames()); diff != "" {
		t.Errorf("TableNames() mismatch (-want +got):\n%s", diff)
	}
	if c.Context == "" {
		t.Error("Context is empty")
	}
}

func TestDefault_Kinds(t *testing.T) {
	c := Default()
	units, err := c.Table("units")
	if err != nil {
		t.Fatalf("Table(units) error = %v", err)
	}

	tests := []struct {
		column string
		kind   FieldType
	}{
		{"unit_id", FieldIdentifier},
		{"total_quantity", FieldInteger},
		{"expiry_date", FieldDate},
		{"date_created", FieldTimestamp},
		{"medication_name", FieldText},
		{"strength", FieldDecimal},
	}
	for _, tt := range tests {
		col, ok := units.Column(tt.column)
		if !ok {
			t.Errorf("units.%s missing", tt.column)
			continue
		}
		if col.Kind != tt.kind {
			t.Errorf("units.%s Kind = %q, want %q", tt.column, col.Kind, tt.kind)
		}
	}

	strength, _ := units.Column("strength")
	if strength.Scale != 4 {
		t.Errorf("units.strength Scale = %d, want 4", strength.Scale)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		in        string
		wantKind  FieldType
		wantScale int
	}{
		{"UUID", FieldIdentifier, 0},
		{"VARCHAR(255)", FieldText, 0},
		{"TEXT", FieldText, 0},
		{"INTEGER", FieldInteger, 0},
		{"bigint", FieldInteger, 0},
		{"DECIMAL(10, 4)", FieldDecimal, 4},
		{"NUMERIC(12,2)", FieldDecimal, 2},
		{"NUMERIC(8)", FieldDecimal, 0},
		{"NUMERIC", FieldDecimal, -1},
		{"DOUBLE PRECISION", FieldDecimal, -1},
		{"DATE", FieldDate, 0},
		{"TIMESTAMPTZ", FieldTimestamp, 0},
		{"timestamp with time zone", FieldTimestamp, 0},
		{"BOOLEAN", FieldBool, 0},
		{"JSONB", FieldText, 0},
		{"", FieldText, 0},
	}
	for _, tt := range tests {
		kind, scale := KindOf(tt.in)
		if kind != tt.wantKind || scale != tt.wantScale {
			t.Errorf("KindOf(%q) = (%q, %d), want (%q, %d)", tt.in, kind, scale, tt.wantKind, tt.wantScale)
		}
	}
}

func TestCatalog_UnknownTable(t *testing.T) {
	c := Default()
	_, err := c.Table("invoices")
	if !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("Table(invoices) error = %v, want ErrUnknownTable", err)
	}
	if _, err := c.Candidates("invoices"); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("Candidates(invoices) error = %v, want ErrUnknownTable", err)
	}
}

func TestCatalog_Candidates(t *testing.T) {
	c := Default()

	units, err := c.Candidates("units")
	if err != nil {
		t.Fatalf("Candidates(units) error = %v", err)
	}
	names := map[string]bool{}
	for _, col := range units {
		names[col.Name] = true
	}
	for _, want := range []string{"medication_name", "ndc_id", "expiry_date", "total_quantity"} {
		if !names[want] {
			t.Errorf("Candidates(units) missing %q", want)
		}
	}
	for _, auto := range []string{"unit_id", "clinic_id", "user_id"} {
		if names[auto] {
			t.Errorf("Candidates(units) contains auto column %q", auto)
		}
	}

	all, err := c.Candidates("")
	if err != nil {
		t.Fatalf("Candidates(\"\") error = %v", err)
	}
	seen := map[string]int{}
	for _, col := range all {
		seen[col.Name]++
	}
	for name, n := range seen {
		if n > 1 {
			t.Errorf("Candidates(\"\") lists %q %d times", name, n)
		}
	}
	if seen["email"] != 1 || seen["quantity"] != 1 {
		t.Errorf("Candidates(\"\") missing columns from other tables: %v", seen)
	}
}

func TestCatalog_BestTable(t *testing.T) {
	c := Default()

	tests := []struct {
		name    string
		targets []string
		want    string
	}{
		{"units", []string{"medication_name", "expiry_date", "total_quantity"}, "units"},
		{"transactions", []string{"type", "quantity", "patient_name"}, "transactions"},
		{"nothing", nil, ""},
		{"single", []string{"notes"}, "transactions"},
		{"ambiguous", []string{"name"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.BestTable(tt.targets); got != tt.want {
				t.Errorf("BestTable(%v) = %q, want %q", tt.targets, got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "tables: []"},
		{"bad yaml", "tables: ["},
		{"dup table", "tables:\n  - name: a\n    columns: [{name: x, type: TEXT}]\n  - name: a\n    columns: [{name: x, type: TEXT}]"},
		{"dup column", "tables:\n  - name: a\n    columns: [{name: x, type: TEXT}, {name: x, type: TEXT}]"},
		{"bad pk", "tables:\n  - name: a\n    primary_key: id\n    columns: [{name: x, type: TEXT}]"},
		{"bad dedup", "tables:\n  - name: a\n    dedup_key: [y]\n    columns: [{name: x, type: TEXT}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("Parse() expected error")
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := "context: test\ntables:\n  - name: items\n    columns:\n      - {name: sku, type: VARCHAR(32), description: Stock keeping unit}\n      - {name: price, type: \"NUMERIC(8, 2)\", description: Unit price}\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cols, err := c.ColumnTypes("items")
	if err != nil {
		t.Fatalf("ColumnTypes(items) error = %v", err)
	}
	if cols["price"].Kind != FieldDecimal || cols["price"].Scale != 2 {
		t.Errorf("price = %+v, want decimal scale 2", cols["price"])
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) expected error")
	}
}
