// Package postgres keeps a best-effort sidecar of the document store:
// an append-only audit trail of social and progress events, and periodic
// ranking snapshots written by the snapshot worker. Nothing here is read
// back by the core; failures are logged and never fail a request.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/config"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/domain"
)

// AuditLog provides PostgreSQL-based event and snapshot persistence.
type AuditLog struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditLog creates a new PostgreSQL audit log.
func NewAuditLog(cfg *config.PostgresConfig, logger *slog.Logger) (*AuditLog, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &AuditLog{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool.
func (a *AuditLog) Close() {
	a.pool.Close()
}

// RunMigrations executes database migrations.
func (a *AuditLog) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS social_events (
			id BIGSERIAL PRIMARY KEY,
			kind VARCHAR(40) NOT NULL,
			actor_id VARCHAR(64) NOT NULL,
			subject_id VARCHAR(64),
			field VARCHAR(255),
			payload JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS rank_snapshots (
			field VARCHAR(255) NOT NULL,
			record_id VARCHAR(64) NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (field, record_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_social_events_actor ON social_events(actor_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_rank_snapshots_score ON rank_snapshots(field, score DESC)`,
	}

	for _, migration := range migrations {
		_, err := a.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	a.logger.Info("database migrations completed")
	return nil
}

// RecordEvent appends one audit event.
func (a *AuditLog) RecordEvent(ctx context.Context, event domain.AuditEvent) error {
	var payloadJSON []byte
	var err error
	if event.Payload != nil {
		payloadJSON, err = json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
		INSERT INTO social_events (kind, actor_id, subject_id, field, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = a.pool.Exec(ctx, query,
		event.Kind,
		event.ActorID,
		event.SubjectID,
		event.Field,
		payloadJSON,
		ts,
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// UpsertSnapshots writes one batch of ranking snapshot rows.
func (a *AuditLog) UpsertSnapshots(ctx context.Context, field string, scores map[string]float64) error {
	query := `
		INSERT INTO rank_snapshots (field, record_id, score, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (field, record_id)
		DO UPDATE SET score = $3, updated_at = $4
	`
	now := time.Now()
	for recordID, score := range scores {
		if _, err := a.pool.Exec(ctx, query, field, recordID, score, now); err != nil {
			return fmt.Errorf("upserting snapshot: %w", err)
		}
	}
	return nil
}
