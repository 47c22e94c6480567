// Package postgres implements ports.PersistenceStore against PostgreSQL via
// pgx: a pgxpool connection pool, context-scoped queries, and a
// goose-managed schema.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/ports"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store implements ports.PersistenceStore over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ ports.PersistenceStore = (*Store)(nil)

// Connect opens a pool against connString and verifies connectivity.
func Connect(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse connection string: %w", err)
	}
	cfg.MaxConnIdleTime = 10 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Migrate applies every pending goose migration embedded under
// migrations/. It opens a short-lived database/sql connection via
// pgx/v5/stdlib since goose drives migrations through that interface rather
// than pgxpool.
func Migrate(connString string) error {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("postgres: open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("postgres: run migrations: %w", err)
	}
	return nil
}

// Healthcheck reports whether the pool can still reach the database.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "postgres.Healthcheck", "ping failed", err)
	}
	return nil
}

// LoadCircuitState fetches a circuit's persisted row, or (nil, nil) if
// absent.
func (s *Store) LoadCircuitState(ctx context.Context, circuitID string) (*model.CircuitBreakerState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT circuit_id, circuit_type, state, default_state, failure_count,
		       success_count, failure_threshold, last_failure_at, last_success_at, state_changed_at
		FROM circuit_breaker_state WHERE circuit_id = $1`, circuitID)

	var st model.CircuitBreakerState
	var circuitType, state, defaultState string
	var lastFailure, lastSuccess *time.Time

	err := row.Scan(&st.CircuitID, &circuitType, &state, &defaultState, &st.FailureCount,
		&st.SuccessCount, &st.FailureThreshold, &lastFailure, &lastSuccess, &st.StateChangedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "postgres.LoadCircuitState", "query failed", err)
	}

	st.CircuitType = model.CircuitType(circuitType)
	st.State = model.CircuitState(state)
	st.DefaultState = model.CircuitState(defaultState)
	if lastFailure != nil {
		st.LastFailureAt = *lastFailure
	}
	if lastSuccess != nil {
		st.LastSuccessAt = *lastSuccess
	}
	return &st, nil
}

// SaveCircuitState upserts a circuit's row.
func (s *Store) SaveCircuitState(ctx context.Context, state *model.CircuitBreakerState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO circuit_breaker_state
			(circuit_id, circuit_type, state, default_state, failure_count, success_count,
			 failure_threshold, last_failure_at, last_success_at, state_changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (circuit_id) DO UPDATE SET
			state = EXCLUDED.state,
			failure_count = EXCLUDED.failure_count,
			success_count = EXCLUDED.success_count,
			last_failure_at = EXCLUDED.last_failure_at,
			last_success_at = EXCLUDED.last_success_at,
			state_changed_at = EXCLUDED.state_changed_at`,
		state.CircuitID, state.CircuitType, state.State, state.DefaultState,
		state.FailureCount, state.SuccessCount, state.FailureThreshold,
		nullableTime(state.LastFailureAt), nullableTime(state.LastSuccessAt), state.StateChangedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "postgres.SaveCircuitState", "upsert failed", err)
	}
	return nil
}

// InitCircuitState inserts a fresh row only if circuitId does not already
// exist — the idempotent insert spec §3 requires.
func (s *Store) InitCircuitState(ctx context.Context, def model.CircuitDefinition) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO circuit_breaker_state
			(circuit_id, circuit_type, state, default_state, failure_count, success_count, failure_threshold, state_changed_at)
		VALUES ($1,$2,$3,$3,0,0,$4,now())
		ON CONFLICT (circuit_id) DO NOTHING`,
		def.CircuitID, def.CircuitType, def.DefaultState, def.FailureThreshold,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "postgres.InitCircuitState", "insert failed", err)
	}
	return nil
}

// RecordAudit appends a row to the content audit log. Not read by the core.
func (s *Store) RecordAudit(ctx context.Context, generatorID string, content *model.GeneratedContent) error {
	metadata, err := json.Marshal(content.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO content_audit (generator_id, text, output_mode, metadata, created_at)
		VALUES ($1,$2,$3,$4,now())`,
		generatorID, content.Text, content.OutputMode, metadata,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "postgres.RecordAudit", "insert failed", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
