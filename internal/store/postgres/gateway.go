// Package postgres provides the PostgreSQL-backed implementation of the
// [store.Gateway] storage surface.
//
// All operations share a single [pgxpool.Pool]. The pgvector extension must
// be available in the target database; [Migrate] installs it automatically
// via CREATE EXTENSION IF NOT EXISTS and creates the HNSW cosine indexes used
// by the ANN candidate fetch.
//
// Usage:
//
//	gw, err := postgres.NewGateway(ctx, dsn, postgres.Options{})
//	if err != nil { … }
//	defer gw.Close()
//
//	tracks, err := gw.ANNCandidates(ctx, embedding, nil, 60)
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/cadenza-fm/cadenza/internal/recerr"
	"github.com/cadenza-fm/cadenza/internal/store"
)

// Compile-time interface check.
var _ store.Gateway = (*Gateway)(nil)

// defaultMaxConns bounds the connection pool when Options.MaxConns is unset.
const defaultMaxConns = 20

// Options tunes pool construction.
type Options struct {
	// MaxConns caps the pool size. Default 20.
	MaxConns int32

	// SkipMigrate disables the schema migration on startup. Used by tests
	// that manage their own schema.
	SkipMigrate bool
}

// Gateway is the PostgreSQL-backed [store.Gateway]. All methods are safe for
// concurrent use.
type Gateway struct {
	pool *pgxpool.Pool
}

// NewGateway creates a Gateway, establishes a bounded connection pool to the
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure all required tables, indexes and extensions exist.
func NewGateway(ctx context.Context, dsn string, opts Options) (*Gateway, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	} else {
		cfg.MaxConns = defaultMaxConns
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if !opts.SkipMigrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}

	return &Gateway{pool: pool}, nil
}

// Ping implements [store.Gateway].
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.pool.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// storeErr wraps a query failure in the typed error sum. Deadline expiry is
// classified as a timeout, everything else as a store failure.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return recerr.Wrap(recerr.KindTimeout, "store: "+op, err)
	}
	return recerr.Wrap(recerr.KindStore, "store: "+op, err)
}
