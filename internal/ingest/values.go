package ingest

// values.go binds cleaned CSV strings to typed pgx values.
//
// Cells arrive already coerced to canonical text, so most parsing is strict.
// Anything a column cannot hold is reported as a row error rather than sent
// to the database as text.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/daana-health/daana-ingestion-backend/internal/coerce"
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
)

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// bind converts v to the Go value pgx should send for col.
func bind(col schema.Column, v string) (any, error) {
	switch col.Kind {
	case schema.FieldIdentifier:
		u, err := toPgUUID(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid uuid %q", col.Name, v)
		}
		return u, nil

	case schema.FieldInteger:
		s, ok := coerce.Integer(v)
		if !ok {
			return nil, fmt.Errorf("column %s: invalid number %q", col.Name, v)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid number %q", col.Name, v)
		}
		return n, nil

	case schema.FieldDecimal:
		n := toPgNumeric(v)
		if !n.Valid {
			return nil, fmt.Errorf("column %s: invalid number %q", col.Name, v)
		}
		return n, nil

	case schema.FieldDate:
		d := toPgDate(v)
		if !d.Valid {
			return nil, fmt.Errorf("column %s: invalid date %q", col.Name, v)
		}
		return d, nil

	case schema.FieldTimestamp:
		t, ok := toTimestamp(v)
		if !ok {
			return nil, fmt.Errorf("column %s: invalid date %q", col.Name, v)
		}
		return t, nil

	case schema.FieldBool:
		b := toPgBool(v)
		if !b.Valid {
			return nil, fmt.Errorf("column %s: invalid boolean %q", col.Name, v)
		}
		return b, nil

	default:
		return toPgText(v), nil
	}
}

func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgUUID(s string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return pgtype.UUID{Valid: false}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// toPgNumeric accepts canonical decimals and anything coerce.Decimal can clean.
func toPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		cleaned, ok := coerce.Decimal(s, -1)
		if !ok {
			return pgtype.Numeric{Valid: false}
		}
		s = cleaned
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

func toPgDate(s string) pgtype.Date {
	iso, ok := coerce.Date(s, false)
	if !ok {
		return pgtype.Date{Valid: false}
	}
	t, err := time.Parse(time.DateOnly, iso)
	if err != nil {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// toTimestamp parses RFC3339 or any date coerce understands. Date-only
// values become midnight UTC.
func toTimestamp(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
		return t, true
	}
	iso, ok := coerce.Date(s, true)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toPgBool(s string) pgtype.Bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}
