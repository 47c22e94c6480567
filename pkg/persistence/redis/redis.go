// Package redis implements ports.PersistenceStore over Redis: redis.ParseURL
// for connection setup, JSON values under a prefixed key scheme, TTL-free
// durable storage for circuit rows and a capped list for the audit trail.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/model"
)

const auditListCap = 500

// Store implements ports.PersistenceStore over a Redis client.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New parses redisURL and wraps the resulting client. keyPrefix namespaces
// all keys this store touches, e.g. "contentcore".
func New(redisURL, keyPrefix string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid connection url: %w", err)
	}
	if keyPrefix == "" {
		keyPrefix = "contentcore"
	}
	return &Store{client: redis.NewClient(opts), keyPrefix: keyPrefix}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) circuitKey(circuitID string) string {
	return fmt.Sprintf("%s:circuit:%s", s.keyPrefix, circuitID)
}

func (s *Store) auditKey() string {
	return fmt.Sprintf("%s:audit", s.keyPrefix)
}

// circuitRecord is the JSON shape stored per circuit, mirroring
// model.CircuitBreakerState with string-friendly timestamps.
type circuitRecord struct {
	CircuitID        string    `json:"circuit_id"`
	CircuitType      string    `json:"circuit_type"`
	State            string    `json:"state"`
	DefaultState     string    `json:"default_state"`
	FailureCount     uint64    `json:"failure_count"`
	SuccessCount     uint64    `json:"success_count"`
	FailureThreshold uint64    `json:"failure_threshold"`
	LastFailureAt    time.Time `json:"last_failure_at"`
	LastSuccessAt    time.Time `json:"last_success_at"`
	StateChangedAt   time.Time `json:"state_changed_at"`
}

func fromModel(st *model.CircuitBreakerState) circuitRecord {
	return circuitRecord{
		CircuitID:        st.CircuitID,
		CircuitType:      string(st.CircuitType),
		State:            string(st.State),
		DefaultState:     string(st.DefaultState),
		FailureCount:     st.FailureCount,
		SuccessCount:     st.SuccessCount,
		FailureThreshold: st.FailureThreshold,
		LastFailureAt:    st.LastFailureAt,
		LastSuccessAt:    st.LastSuccessAt,
		StateChangedAt:   st.StateChangedAt,
	}
}

func (r circuitRecord) toModel() *model.CircuitBreakerState {
	return &model.CircuitBreakerState{
		CircuitID:        r.CircuitID,
		CircuitType:      model.CircuitType(r.CircuitType),
		State:            model.CircuitState(r.State),
		DefaultState:     model.CircuitState(r.DefaultState),
		FailureCount:     r.FailureCount,
		SuccessCount:     r.SuccessCount,
		FailureThreshold: r.FailureThreshold,
		LastFailureAt:    r.LastFailureAt,
		LastSuccessAt:    r.LastSuccessAt,
		StateChangedAt:   r.StateChangedAt,
	}
}

// LoadCircuitState fetches a circuit's persisted record, or (nil, nil) if
// absent.
func (s *Store) LoadCircuitState(ctx context.Context, circuitID string) (*model.CircuitBreakerState, error) {
	raw, err := s.client.Get(ctx, s.circuitKey(circuitID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "redis.LoadCircuitState", "get failed", err)
	}

	var rec circuitRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "redis.LoadCircuitState", "decode failed", err)
	}
	return rec.toModel(), nil
}

// SaveCircuitState overwrites the circuit's persisted record.
func (s *Store) SaveCircuitState(ctx context.Context, state *model.CircuitBreakerState) error {
	data, err := json.Marshal(fromModel(state))
	if err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "redis.SaveCircuitState", "encode failed", err)
	}
	if err := s.client.Set(ctx, s.circuitKey(state.CircuitID), data, 0).Err(); err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "redis.SaveCircuitState", "set failed", err)
	}
	return nil
}

// InitCircuitState writes a fresh record only if one doesn't already exist,
// via SETNX so concurrent startups racing over the same circuit id don't
// clobber a running breaker's accumulated counts.
func (s *Store) InitCircuitState(ctx context.Context, def model.CircuitDefinition) error {
	rec := circuitRecord{
		CircuitID:        def.CircuitID,
		CircuitType:      string(def.CircuitType),
		State:            string(def.DefaultState),
		DefaultState:     string(def.DefaultState),
		FailureThreshold: def.FailureThreshold,
		StateChangedAt:   time.Now(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "redis.InitCircuitState", "encode failed", err)
	}
	if err := s.client.SetNX(ctx, s.circuitKey(def.CircuitID), data, 0).Err(); err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "redis.InitCircuitState", "setnx failed", err)
	}
	return nil
}

// auditEntry is one row pushed to the capped audit list.
type auditEntry struct {
	GeneratorID string    `json:"generator_id"`
	Text        string    `json:"text"`
	OutputMode  string    `json:"output_mode"`
	Metadata    any       `json:"metadata"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordAudit pushes an entry onto the audit list, trimming it to
// auditListCap so the key doesn't grow unbounded.
func (s *Store) RecordAudit(ctx context.Context, generatorID string, content *model.GeneratedContent) error {
	entry := auditEntry{
		GeneratorID: generatorID,
		Text:        content.Text,
		OutputMode:  string(content.OutputMode),
		Metadata:    content.Metadata,
		CreatedAt:   time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "redis.RecordAudit", "encode failed", err)
	}

	key := s.auditKey()
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, auditListCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "redis.RecordAudit", "pipeline failed", err)
	}
	return nil
}
