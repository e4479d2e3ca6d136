package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/daana-health/daana-ingestion-backend/internal/schema"
)

// prepareRecord drops empty cells and any client primary key, then fills the
// system columns: clinic scope, creating user and audit timestamps.
func prepareRecord(def *schema.Table, row map[string]string, scope Scope, now time.Time) map[string]string {
	rec := make(map[string]string, len(row)+4)
	for k, v := range row {
		if strings.TrimSpace(v) == "" {
			continue
		}
		rec[k] = v
	}
	delete(rec, def.PrimaryKey)

	if clinicScoped(def) {
		rec["clinic_id"] = scope.ClinicID.String()
	}
	if col, ok := userColumn(def); ok {
		if col.Auto || rec[col.Name] == "" {
			rec[col.Name] = scope.UserID.String()
		}
	}

	stamp := now.UTC().Format(time.RFC3339)
	for _, col := range def.Columns {
		if col.Kind != schema.FieldTimestamp || rec[col.Name] != "" {
			continue
		}
		if col.Auto || col.Name == "date_created" {
			rec[col.Name] = stamp
		}
	}

	return rec
}

// clinicScoped reports whether rows of def belong to a clinic.
func clinicScoped(def *schema.Table) bool {
	if def.PrimaryKey == "clinic_id" {
		return false
	}
	_, ok := def.Column("clinic_id")
	return ok
}

// userColumn returns the column recording the ingesting user, if any. The
// users table's user_id is its own key and never qualifies.
func userColumn(def *schema.Table) (schema.Column, bool) {
	if def.PrimaryKey == "user_id" {
		return schema.Column{}, false
	}
	return def.Column("user_id")
}

// storedOnly keeps the columns that exist in the database table.
func storedOnly(def *schema.Table, rec map[string]string) map[string]string {
	out := make(map[string]string, len(rec))
	for _, name := range def.StoredColumns() {
		if v, ok := rec[name]; ok {
			out[name] = v
		}
	}
	return out
}

// reference resolves a foreign key from helper columns.
type reference struct {
	column  string      // foreign key filled in
	table   string      // referenced table
	trigger string      // helper column that must be present
	match   [][2]string // {record column, referenced column}, used when present
	clinic  bool        // restrict to the ingesting clinic
}

var references = map[string][]reference{
	"units": {
		{
			column:  "drug_id",
			table:   "drugs",
			trigger: "medication_name",
			match:   [][2]string{{"medication_name", "medication_name"}, {"strength", "strength"}},
		},
		{
			column:  "lot_id",
			table:   "lots",
			trigger: "lot_code",
			match:   [][2]string{{"lot_code", "lot_code"}},
			clinic:  true,
		},
	},
	"lots": {
		{
			column:  "location_id",
			table:   "locations",
			trigger: "location_name",
			match:   [][2]string{{"location_name", "name"}, {"location_temp", "temp"}},
			clinic:  true,
		},
	},
}

// resolveReferences fills foreign keys the row does not carry. A row whose
// helper values match nothing cannot be inserted.
func (in *Ingester) resolveReferences(ctx context.Context, def *schema.Table, rec map[string]string, scope Scope) error {
	for _, ref := range references[def.Name] {
		if rec[ref.column] != "" || rec[ref.trigger] == "" {
			continue
		}

		target, err := in.catalog.Table(ref.table)
		if err != nil {
			return err
		}

		conds := make([]condition, 0, len(ref.match)+1)
		for _, m := range ref.match {
			if v := rec[m[0]]; v != "" {
				conds = append(conds, condition{column: m[1], value: v})
			}
		}
		if ref.clinic {
			conds = append(conds, condition{column: "clinic_id", value: scope.ClinicID.String()})
		}

		sql, args, err := selectSQL(target, target.PrimaryKey, conds)
		if err != nil {
			return err
		}

		var id string
		err = in.db.QueryRow(ctx, sql, args...).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("could not resolve %s from %s %q", ref.column, ref.trigger, rec[ref.trigger])
		}
		if err != nil {
			return fmt.Errorf("resolve %s: %w", ref.column, err)
		}
		rec[ref.column] = id
	}
	return nil
}
