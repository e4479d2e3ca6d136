package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/daana-health/daana-ingestion-backend/internal/schema"
	"github.com/daana-health/daana-ingestion-backend/internal/table"
)

var (
	clinicID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	userID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	drugID   = "33333333-3333-3333-3333-333333333333"
	lotID    = "44444444-4444-4444-4444-444444444444"
	fixedNow = time.Date(2025, 1, 5, 14, 30, 0, 0, time.UTC)
)

type query struct {
	sql  string
	args []any
}

// fakeDB answers QueryRow through lookup and records every statement.
type fakeDB struct {
	lookup  func(sql string, args []any) (string, bool)
	execErr error
	queries []query
	execs   []query
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, query{sql, args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, query{sql, args})
	val, ok := "", false
	if f.lookup != nil {
		val, ok = f.lookup(sql, args)
	}
	return fakeRow{val: val, found: ok}
}

type fakeRow struct {
	val   string
	found bool
}

func (r fakeRow) Scan(dest ...any) error {
	if !r.found {
		return pgx.ErrNoRows
	}
	switch d := dest[0].(type) {
	case *string:
		*d = r.val
	case *any:
		*d = r.val
	}
	return nil
}

func tableDef(t *testing.T, name string) *schema.Table {
	t.Helper()
	def, err := schema.Default().Table(name)
	if err != nil {
		t.Fatalf("Table(%s) error = %v", name, err)
	}
	return def
}

func TestPrepareRecord(t *testing.T) {
	scope := Scope{ClinicID: clinicID, UserID: userID}
	stamp := fixedNow.Format(time.RFC3339)

	tests := []struct {
		name  string
		table string
		row   map[string]string
		want  map[string]string
	}{
		{
			name:  "units",
			table: "units",
			row:   map[string]string{"unit_id": "client-id", "medication_name": "Aspirin", "qr_code": " ", "user_id": "someone"},
			want: map[string]string{
				"medication_name": "Aspirin",
				"clinic_id":       clinicID.String(),
				"user_id":         userID.String(),
				"date_created":    stamp,
			},
		},
		{
			name:  "units keeps entry date",
			table: "units",
			row:   map[string]string{"date_created": "2024-03-01"},
			want: map[string]string{
				"date_created": "2024-03-01",
				"clinic_id":    clinicID.String(),
				"user_id":      userID.String(),
			},
		},
		{
			name:  "transactions keeps user",
			table: "transactions",
			row:   map[string]string{"user_id": drugID, "type": "check_out"},
			want: map[string]string{
				"user_id":   drugID,
				"type":      "check_out",
				"clinic_id": clinicID.String(),
			},
		},
		{
			name:  "clinics not scoped",
			table: "clinics",
			row:   map[string]string{"name": "Daana"},
			want:  map[string]string{"name": "Daana", "created_at": stamp, "updated_at": stamp},
		},
		{
			name:  "users scoped without self reference",
			table: "users",
			row:   map[string]string{"email": "a@b.org", "user_id": "x"},
			want: map[string]string{
				"email":      "a@b.org",
				"clinic_id":  clinicID.String(),
				"created_at": stamp,
				"updated_at": stamp,
			},
		},
		{
			name:  "lots",
			table: "lots",
			row:   map[string]string{"lot_code": "AL"},
			want:  map[string]string{"lot_code": "AL", "clinic_id": clinicID.String(), "date_created": stamp},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := prepareRecord(tableDef(t, tt.table), tt.row, scope, fixedNow)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("prepareRecord() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoredOnly(t *testing.T) {
	rec := map[string]string{"medication_name": "Aspirin", "lot_code": "AL", "drug_id": drugID, "Mystery": "x"}
	got := storedOnly(tableDef(t, "units"), rec)
	if diff := cmp.Diff(map[string]string{"drug_id": drugID}, got); diff != "" {
		t.Errorf("storedOnly() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectSQL(t *testing.T) {
	def := tableDef(t, "drugs")
	conds := []condition{
		{column: "medication_name", value: "Aspirin"},
		{column: "strength", value: ""},
		{column: "strength_unit", value: "mg"},
		{column: "form", value: "tablet"},
	}

	sql, args, err := selectSQL(def, def.PrimaryKey, conds)
	if err != nil {
		t.Fatalf("selectSQL() error = %v", err)
	}
	want := `SELECT "drug_id" FROM "drugs" WHERE lower("medication_name") = lower($1) AND "strength" IS NULL AND lower("strength_unit") = lower($2) AND lower("form") = lower($3) LIMIT 1`
	if sql != want {
		t.Errorf("sql =\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 3 {
		t.Fatalf("len(args) = %d, want 3", len(args))
	}
	if got, ok := args[0].(pgtype.Text); !ok || got.String != "Aspirin" {
		t.Errorf("args[0] = %#v, want text Aspirin", args[0])
	}

	if _, _, err := selectSQL(def, "drug_id", []condition{{column: "nope", value: "x"}}); err == nil {
		t.Error("selectSQL() expected error for unknown column")
	}
	if _, _, err := selectSQL(def, "drug_id", []condition{{column: "strength", value: "lots"}}); err == nil {
		t.Error("selectSQL() expected error for unbindable value")
	}
}

func TestInsertSQL(t *testing.T) {
	def := tableDef(t, "lots")
	rec := map[string]string{
		"lot_id":       lotID,
		"note":         "top drawer",
		"lot_code":     "AL",
		"max_capacity": "40",
	}

	sql, args, err := insertSQL(def, rec)
	if err != nil {
		t.Fatalf("insertSQL() error = %v", err)
	}
	want := `INSERT INTO "lots" ("lot_id", "lot_code", "max_capacity", "note") VALUES ($1, $2, $3, $4)`
	if sql != want {
		t.Errorf("sql =\n%s\nwant\n%s", sql, want)
	}
	if n, ok := args[2].(int64); !ok || n != 40 {
		t.Errorf("args[2] = %#v, want int64 40", args[2])
	}
	if _, ok := args[0].(pgtype.UUID); !ok {
		t.Errorf("args[0] = %#v, want pgtype.UUID", args[0])
	}
}

func TestIngest_Units(t *testing.T) {
	db := &fakeDB{
		lookup: func(sql string, args []any) (string, bool) {
			switch {
			case strings.Contains(sql, `FROM "drugs"`):
				name := args[0].(pgtype.Text).String
				return drugID, name == "Aspirin"
			case strings.Contains(sql, `FROM "lots"`):
				return lotID, true
			case strings.Contains(sql, `FROM "units"`):
				for _, a := range args {
					if a == int64(50) {
						return "existing", true
					}
				}
			}
			return "", false
		},
	}

	in := New(db, schema.Default())
	in.now = func() time.Time { return fixedNow }

	tbl := &table.Table{
		Header: []string{"medication_name", "lot_code", "expiry_date", "total_quantity"},
		Rows: [][]string{
			{"Aspirin", "AL", "2025-12-31", "100"},
			{"Aspirin", "AL", "2025-12-31", "50"},
			{"Unknown", "AL", "2025-12-31", "10"},
		},
	}

	res, err := in.Ingest(context.Background(), tbl, "units", Scope{ClinicID: clinicID, UserID: userID})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Inserted != 1 || res.Skipped != 1 || len(res.Errors) != 1 {
		t.Fatalf("Ingest() = %+v, want 1 inserted, 1 skipped, 1 error", res)
	}
	if !strings.Contains(res.Errors[0], "row 3") || !strings.Contains(res.Errors[0], "drug_id") {
		t.Errorf("Errors[0] = %q", res.Errors[0])
	}

	if len(db.execs) != 1 {
		t.Fatalf("exec count = %d, want 1", len(db.execs))
	}
	wantPrefix := `INSERT INTO "units" ("unit_id", "clinic_id", "date_created", "drug_id", "expiry_date", "lot_id", "total_quantity", "user_id")`
	if !strings.HasPrefix(db.execs[0].sql, wantPrefix) {
		t.Errorf("insert sql = %s", db.execs[0].sql)
	}
}

func TestIngest_RowErrorsDoNotAbort(t *testing.T) {
	db := &fakeDB{execErr: errors.New("violates foreign key constraint")}
	in := New(db, schema.Default())

	tbl := &table.Table{
		Header: []string{"name"},
		Rows:   [][]string{{"Daana"}, {"Other"}},
	}
	res, err := in.Ingest(context.Background(), tbl, "clinics", Scope{})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Inserted != 0 || len(res.Errors) != 2 {
		t.Errorf("Ingest() = %+v, want 2 errors", res)
	}
	if len(db.execs) != 2 {
		t.Errorf("exec count = %d, want 2", len(db.execs))
	}
}

func TestIngest_Errors(t *testing.T) {
	in := New(&fakeDB{}, schema.Default())
	tbl := &table.Table{Header: []string{"name"}, Rows: [][]string{{"x"}}}

	if _, err := in.Ingest(context.Background(), tbl, "invoices", Scope{}); !errors.Is(err, schema.ErrUnknownTable) {
		t.Errorf("unknown table error = %v", err)
	}
	if _, err := in.Ingest(context.Background(), tbl, "locations", Scope{UserID: userID}); !errors.Is(err, ErrMissingClinic) {
		t.Errorf("missing clinic error = %v", err)
	}
	if _, err := in.Ingest(context.Background(), tbl, "units", Scope{ClinicID: clinicID}); !errors.Is(err, ErrMissingUser) {
		t.Errorf("missing user error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := in.Ingest(ctx, tbl, "clinics", Scope{})
	if !errors.Is(err, context.Canceled) || res == nil {
		t.Errorf("cancelled Ingest() = (%v, %v)", res, err)
	}
}

func TestBind(t *testing.T) {
	tests := []struct {
		name    string
		col     schema.Column
		value   string
		wantErr bool
	}{
		{"uuid", schema.Column{Name: "id", Kind: schema.FieldIdentifier}, drugID, false},
		{"bad uuid", schema.Column{Name: "id", Kind: schema.FieldIdentifier}, "abc", true},
		{"integer", schema.Column{Name: "n", Kind: schema.FieldInteger}, "1,000", false},
		{"bad integer", schema.Column{Name: "n", Kind: schema.FieldInteger}, "1.5", true},
		{"decimal", schema.Column{Name: "d", Kind: schema.FieldDecimal}, "12.5", false},
		{"decimal with symbol", schema.Column{Name: "d", Kind: schema.FieldDecimal}, "$12.50", false},
		{"bad decimal", schema.Column{Name: "d", Kind: schema.FieldDecimal}, "10mg", true},
		{"date", schema.Column{Name: "d", Kind: schema.FieldDate}, "2025-12-31", false},
		{"bad date", schema.Column{Name: "d", Kind: schema.FieldDate}, "soon", true},
		{"timestamp", schema.Column{Name: "t", Kind: schema.FieldTimestamp}, "2025-01-05T14:30:00Z", false},
		{"timestamp date only", schema.Column{Name: "t", Kind: schema.FieldTimestamp}, "2025-01-05", false},
		{"bool", schema.Column{Name: "b", Kind: schema.FieldBool}, "Yes", false},
		{"bad bool", schema.Column{Name: "b", Kind: schema.FieldBool}, "maybe", true},
		{"text", schema.Column{Name: "s", Kind: schema.FieldText}, "anything", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bind(tt.col, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("bind(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}

	v, _ := bind(schema.Column{Kind: schema.FieldTimestamp}, "2025-01-05")
	if ts, ok := v.(time.Time); !ok || !ts.Equal(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("bind(timestamp date only) = %#v", v)
	}
}
