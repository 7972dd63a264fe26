package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/video-streaming/pkg/videostream"
)

// DefaultTable holds one row per video
const DefaultTable = "videos"

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Resolver implements videostream.Resolver using PostgreSQL
type Resolver struct {
	db    DBTX
	table string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithTable sets the table, optionally schema qualified ("content.videos")
func WithTable(schema, table string) Option {
	return func(r *Resolver) {
		if schema == "" {
			r.table = pgx.Identifier{table}.Sanitize()
			return
		}
		r.table = pgx.Identifier{schema, table}.Sanitize()
	}
}

// New creates a new PostgreSQL resolver
func New(db DBTX, opts ...Option) *Resolver {
	r := &Resolver{
		db:    db,
		table: pgx.Identifier{DefaultTable}.Sanitize(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewPool creates a connection pool and verifies the database is reachable
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Error handling helper
func (r *Resolver) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("table %s does not exist - database migration required", r.table)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Resolver) Resolve(ctx context.Context, id videostream.ResourceID) (*videostream.Record, error) {
	query := fmt.Sprintf(`SELECT video_path FROM %s WHERE id = $1`, r.table)

	var path string
	err := r.db.QueryRow(ctx, query, string(id)).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, videostream.ErrNotFound
	}
	if err != nil {
		return nil, &videostream.LookupError{ID: id, Err: r.handlePostgresError("resolve", err)}
	}

	return &videostream.Record{ID: id, Locator: path}, nil
}

// EnsureSchema creates the videos table when it is missing
func (r *Resolver) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			video_path TEXT NOT NULL
		)`, r.table)
	if _, err := r.db.Exec(ctx, query); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Upsert writes records, replacing the path of existing ids
func (r *Resolver) Upsert(ctx context.Context, records ...videostream.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, video_path) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET video_path = EXCLUDED.video_path`, r.table)

	for _, rec := range records {
		if _, err := r.db.Exec(ctx, query, string(rec.ID), rec.Locator); err != nil {
			return r.handlePostgresError("upsert", err)
		}
	}
	return nil
}

// Ping checks the database when the underlying handle supports it
func (r *Resolver) Ping(ctx context.Context) error {
	if p, ok := r.db.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
