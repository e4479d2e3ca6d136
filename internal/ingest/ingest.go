// Package ingest inserts cleaned tables into Postgres.
//
// Each row is prepared independently: empty cells are dropped, system columns
// are filled in, foreign keys are resolved from helper columns, and rows that
// duplicate an existing record are skipped. A failing row is reported and the
// rest of the batch continues.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/daana-health/daana-ingestion-backend/internal/logging"
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
	"github.com/daana-health/daana-ingestion-backend/internal/table"
)

var (
	// ErrMissingClinic is returned when a clinic-scoped table is ingested
	// without a clinic.
	ErrMissingClinic = errors.New("clinic id is required for this table")

	// ErrMissingUser is returned when a table that records its creator is
	// ingested without a user.
	ErrMissingUser = errors.New("user id is required for this table")
)

// DBTX is the subset of pgxpool.Pool the ingester needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Scope identifies who is ingesting and on behalf of which clinic.
type Scope struct {
	ClinicID uuid.UUID
	UserID   uuid.UUID
}

// Result summarizes an ingestion run.
type Result struct {
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Ingester writes rows to the tables described by a catalog.
type Ingester struct {
	db      DBTX
	catalog *schema.Catalog
	now     func() time.Time
}

// New returns an Ingester using db for all queries.
func New(db DBTX, catalog *schema.Catalog) *Ingester {
	return &Ingester{
		db:      db,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ingest inserts the rows of tbl into target. Header names must already be
// target column names. Cancellation stops the run and returns the partial
// result alongside the context error.
func (in *Ingester) Ingest(ctx context.Context, tbl *table.Table, target string, scope Scope) (*Result, error) {
	def, err := in.catalog.Table(target)
	if err != nil {
		return nil, err
	}
	if err := checkScope(def, scope); err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).With("table", target)
	res := &Result{Errors: []string{}}

	for i, rec := range tbl.Records() {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		inserted, err := in.ingestRow(ctx, def, rec, scope)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		case inserted:
			res.Inserted++
		default:
			res.Skipped++
		}
	}

	logger.Info("ingestion complete",
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"errors", len(res.Errors))

	return res, nil
}

// ingestRow reports whether the row was inserted. (false, nil) means it
// duplicated an existing record.
func (in *Ingester) ingestRow(ctx context.Context, def *schema.Table, rec map[string]string, scope Scope) (bool, error) {
	rec = prepareRecord(def, rec, scope, in.now())

	if err := in.resolveReferences(ctx, def, rec, scope); err != nil {
		return false, err
	}
	rec = storedOnly(def, rec)

	exists, err := in.exists(ctx, def, rec)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	rec[def.PrimaryKey] = uuid.NewString()
	sql, args, err := insertSQL(def, rec)
	if err != nil {
		return false, err
	}
	if _, err := in.db.Exec(ctx, sql, args...); err != nil {
		return false, fmt.Errorf("insert into %s: %w", def.Name, err)
	}
	return true, nil
}

func (in *Ingester) exists(ctx context.Context, def *schema.Table, rec map[string]string) (bool, error) {
	if len(def.DedupKey) == 0 {
		return false, nil
	}

	conds := make([]condition, 0, len(def.DedupKey))
	for _, col := range def.DedupKey {
		conds = append(conds, condition{column: col, value: rec[col]})
	}
	sql, args, err := selectSQL(def, def.PrimaryKey, conds)
	if err != nil {
		return false, err
	}

	var id any
	err = in.db.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate in %s: %w", def.Name, err)
	}
	return true, nil
}

func checkScope(def *schema.Table, scope Scope) error {
	if clinicScoped(def) && scope.ClinicID == uuid.Nil {
		return ErrMissingClinic
	}
	if _, ok := userColumn(def); ok && scope.UserID == uuid.Nil {
		return ErrMissingUser
	}
	return nil
}
