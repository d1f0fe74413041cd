// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tekisho/mailtriage/internal/triage"
)

var tracer = otel.Tracer("github.com/tekisho/mailtriage/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const recordColumns = `id, subject, from_email, body, department_id, priority, status,
	confidence, reply, cc, meta, tokens_used, created_at, sent_at`

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + recordColumns + ` FROM triage_records WHERE id = $1`
	r, err := scanRecordRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// FindRecent retrieves the newest record matching subject and sender created
// at or after since.
func (s *Store) FindRecent(ctx context.Context, subject, from string, since time.Time) (*triage.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.FindRecent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + recordColumns + ` FROM triage_records
		WHERE subject = $1 AND from_email = $2 AND created_at >= $3
		ORDER BY created_at DESC LIMIT 1`
	r, err := scanRecordRow(s.pool.QueryRow(ctx, query, subject, from, since))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// Put inserts or updates a record (upsert on id).
func (s *Store) Put(ctx context.Context, r *triage.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	var metaJSON []byte
	if r.Meta != nil {
		b, err := json.Marshal(r.Meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		metaJSON = b
	}

	var sentAt *time.Time
	if !r.SentAt.IsZero() {
		sentAt = &r.SentAt
	}

	query := `INSERT INTO triage_records (
		id, subject, from_email, body, department_id, priority, status,
		confidence, reply, cc, meta, tokens_used, created_at, sent_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (id) DO UPDATE SET
		department_id = EXCLUDED.department_id,
		priority      = EXCLUDED.priority,
		status        = EXCLUDED.status,
		confidence    = EXCLUDED.confidence,
		reply         = EXCLUDED.reply,
		cc            = EXCLUDED.cc,
		meta          = EXCLUDED.meta,
		tokens_used   = EXCLUDED.tokens_used,
		sent_at       = EXCLUDED.sent_at`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.Subject, r.From, r.Body, r.DepartmentID, string(r.Priority), string(r.Status),
		r.Confidence, r.Reply, r.CC, metaJSON, r.TokensUsed, r.CreatedAt, sentAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// SetMeta replaces the metadata of an existing record. Unknown IDs are a
// silent no-op.
func (s *Store) SetMeta(ctx context.Context, id string, meta *triage.Meta) error {
	ctx, span := tracer.Start(ctx, "pgstore.SetMeta", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `UPDATE triage_records SET meta = $1 WHERE id = $2`, metaJSON, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update meta: %w", err)
	}
	return nil
}

// ListUnresolved returns all records in a non-terminal status with non-null
// metadata, oldest first.
func (s *Store) ListUnresolved(ctx context.Context) ([]*triage.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListUnresolved", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + recordColumns + ` FROM triage_records
		WHERE status IN ('pending', 'needs_review') AND meta IS NOT NULL
		ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query unresolved: %w", err)
	}
	defer rows.Close()

	var out []*triage.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate unresolved: %w", err)
	}
	return out, nil
}

// scanRecordRow scans a single row into a triage.Record.
// Returns (nil, nil) when no row is found.
func scanRecordRow(row pgx.Row) (*triage.Record, error) {
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func scanRecord(row pgx.Row) (*triage.Record, error) {
	var (
		r        triage.Record
		priority string
		status   string
		metaJSON []byte
		sentAt   *time.Time
	)

	err := row.Scan(
		&r.ID, &r.Subject, &r.From, &r.Body, &r.DepartmentID, &priority, &status,
		&r.Confidence, &r.Reply, &r.CC, &metaJSON, &r.TokensUsed, &r.CreatedAt, &sentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.Priority = triage.Priority(priority)
	r.Status = triage.Status(status)
	if sentAt != nil {
		r.SentAt = *sentAt
	}
	if len(metaJSON) > 0 {
		r.Meta = &triage.Meta{}
		if err := json.Unmarshal(metaJSON, r.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal meta: %w", err)
		}
	}
	return &r, nil
}
