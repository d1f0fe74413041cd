// Package pgdir provides a PostgreSQL implementation of directory.Directory.
package pgdir

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tekisho/mailtriage/internal/directory"
)

var tracer = otel.Tracer("github.com/tekisho/mailtriage/internal/directory/pgdir")

//go:embed schema.sql
var schema string

// Dir reads and seeds the departments table.
type Dir struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Dir. The
// caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Dir, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Dir{pool: pool}, nil
}

// Find matches a department by name: exact match first, then
// case-insensitive.
func (d *Dir) Find(ctx context.Context, name string) (*directory.Department, bool, error) {
	ctx, span := tracer.Start(ctx, "pgdir.Find", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	dept, err := scanDept(d.pool.QueryRow(ctx,
		`SELECT id, name, head_email FROM departments WHERE name = $1`, name))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if dept != nil {
		return dept, true, nil
	}

	dept, err = scanDept(d.pool.QueryRow(ctx,
		`SELECT id, name, head_email FROM departments WHERE lower(name) = lower($1) LIMIT 1`, name))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if dept == nil {
		return nil, false, nil
	}
	return dept, true, nil
}

// Get retrieves a department by id.
func (d *Dir) Get(ctx context.Context, id string) (*directory.Department, bool, error) {
	ctx, span := tracer.Start(ctx, "pgdir.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	dept, err := scanDept(d.pool.QueryRow(ctx,
		`SELECT id, name, head_email FROM departments WHERE id = $1`, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if dept == nil {
		return nil, false, nil
	}
	return dept, true, nil
}

// Seed upserts the given departments by name. Run at startup from config so
// the routing table and the classifier prompt stay in step.
func (d *Dir) Seed(ctx context.Context, depts []directory.Department) error {
	ctx, span := tracer.Start(ctx, "pgdir.Seed", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	for _, dept := range depts {
		_, err := d.pool.Exec(ctx,
			`INSERT INTO departments (id, name, head_email) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO UPDATE SET head_email = EXCLUDED.head_email`,
			dept.ID, dept.Name, dept.HeadEmail,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("seed department %q: %w", dept.Name, err)
		}
	}
	return nil
}

func scanDept(row pgx.Row) (*directory.Department, error) {
	var dept directory.Department
	if err := row.Scan(&dept.ID, &dept.Name, &dept.HeadEmail); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	return &dept, nil
}
