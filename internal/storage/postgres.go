package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
)

// PostgresStore is the durable identity store. It is the source of truth:
// the in-memory index is rebuilt from it in full and never written to
// partially.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema applies the schema idempotently at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS identities (
			id UUID PRIMARY KEY,
			embedding vector(512) NOT NULL,
			info JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL,
			identity_id UUID,
			label TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0,
			matched BOOLEAN NOT NULL DEFAULT FALSE,
			snapshot_key TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS events_created_at_idx ON events (created_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// --- Identities ---

// InsertIdentity persists one {embedding, info} document atomically.
// Identities are append-only; there is no update or delete path.
func (s *PostgresStore) InsertIdentity(ctx context.Context, embedding []float32, record models.IdentityRecord) (*models.Identity, error) {
	info, err := json.Marshal(record.Info())
	if err != nil {
		return nil, fmt.Errorf("marshal identity info: %w", err)
	}

	ident := &models.Identity{
		ID:        uuid.New(),
		Embedding: embedding,
		Record:    record,
	}
	vec := pgvector.NewVector(embedding)
	err = s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, embedding, info) VALUES ($1, $2, $3) RETURNING created_at`,
		ident.ID, vec, info,
	).Scan(&ident.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return ident, nil
}

// ListIdentities loads every stored identity with its embedding, in
// insertion order. This is the full read the index refresh materializes.
func (s *PostgresStore) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, embedding, info, created_at FROM identities ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		var (
			ident models.Identity
			vec   pgvector.Vector
			info  []byte
		)
		if err := rows.Scan(&ident.ID, &vec, &info, &ident.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		ident.Embedding = vec.Slice()

		var m map[string]any
		if err := json.Unmarshal(info, &m); err != nil {
			return nil, fmt.Errorf("unmarshal identity info: %w", err)
		}
		ident.Record = models.RecordFromInfo(m)

		identities = append(identities, ident)
	}
	return identities, rows.Err()
}

// CountIdentities returns the number of stored identity documents.
func (s *PostgresStore) CountIdentities(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

// --- Events ---

// CreateEvent records one identification or enrollment outcome.
func (s *PostgresStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	ev.ID = uuid.New()
	ev.CreatedAt = time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, kind, identity_id, label, score, matched, snapshot_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.Kind, ev.IdentityID, ev.Label, ev.Score, ev.Matched, ev.SnapshotKey, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEvent returns a single event by ID, or nil when absent.
func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev := &models.Event{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, identity_id, label, score, matched, snapshot_key, created_at
		 FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.Kind, &ev.IdentityID, &ev.Label, &ev.Score, &ev.Matched, &ev.SnapshotKey, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// ListEvents returns a page of events, newest first, plus the total count.
func (s *PostgresStore) ListEvents(ctx context.Context, kind string, limit, offset int) ([]models.Event, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	where := ""
	args := []interface{}{}
	if kind != "" {
		where = "WHERE kind = $1"
		args = append(args, kind)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, kind, identity_id, label, score, matched, snapshot_key, created_at
		 FROM events %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.IdentityID, &ev.Label, &ev.Score, &ev.Matched, &ev.SnapshotKey, &ev.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, total, rows.Err()
}
