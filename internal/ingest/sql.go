package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/daana-health/daana-ingestion-backend/internal/schema"
)

// caseInsensitive columns compare with lower() on both sides.
var caseInsensitive = map[string]bool{
	"medication_name": true,
	"strength_unit":   true,
	"form":            true,
	"name":            true,
	"email":           true,
	"lot_code":        true,
}

// condition is one equality test. An empty value matches NULL.
type condition struct {
	column string
	value  string
}

func quote(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

// selectSQL returns a query for want from the first row of def matching conds.
func selectSQL(def *schema.Table, want string, conds []condition) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	for _, c := range conds {
		col, ok := def.Column(c.column)
		if !ok {
			return "", nil, fmt.Errorf("%s has no column %s", def.Name, c.column)
		}
		ident := quote(c.column)

		if strings.TrimSpace(c.value) == "" {
			where = append(where, ident+" IS NULL")
			continue
		}

		v, err := bind(col, c.value)
		if err != nil {
			return "", nil, err
		}
		args = append(args, v)
		if caseInsensitive[c.column] {
			where = append(where, fmt.Sprintf("lower(%s) = lower($%d)", ident, len(args)))
		} else {
			where = append(where, fmt.Sprintf("%s = $%d", ident, len(args)))
		}
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", quote(want), quote(def.Name))
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	return sql + " LIMIT 1", args, nil
}

// insertSQL returns an INSERT for rec. The primary key comes first, the rest
// in column name order.
func insertSQL(def *schema.Table, rec map[string]string) (string, []any, error) {
	names := make([]string, 0, len(rec))
	for name := range rec {
		if name != def.PrimaryKey {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := rec[def.PrimaryKey]; ok {
		names = append([]string{def.PrimaryKey}, names...)
	}

	cols := make([]string, len(names))
	params := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		col, ok := def.Column(name)
		if !ok {
			return "", nil, fmt.Errorf("%s has no column %s", def.Name, name)
		}
		v, err := bind(col, rec[name])
		if err != nil {
			return "", nil, err
		}
		cols[i] = quote(name)
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = v
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(def.Name), strings.Join(cols, ", "), strings.Join(params, ", "))
	return sql, args, nil
}
