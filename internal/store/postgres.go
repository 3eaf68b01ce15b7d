// Package store persists finished recovery plans to Postgres. Persistence
// is best-effort: the control plane keeps working from its in-memory state
// when the database is unavailable.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meshguard/backend-go/internal/domain"
)

// NewPool creates a new pgx connection pool
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Println("Database connection pool established")
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS recovery_plans (
	id            TEXT PRIMARY KEY,
	fault_id      TEXT NOT NULL,
	service       TEXT NOT NULL,
	fault_type    TEXT NOT NULL,
	priority      INT NOT NULL,
	status        TEXT NOT NULL,
	success_rate  DOUBLE PRECISION NOT NULL DEFAULT 0,
	estimated_ms  BIGINT NOT NULL DEFAULT 0,
	actual_ms     BIGINT NOT NULL DEFAULT 0,
	actions       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_recovery_plans_service ON recovery_plans (service);
CREATE INDEX IF NOT EXISTS idx_recovery_plans_created_at ON recovery_plans (created_at DESC);
`

// PlanStore reads and writes recovery plans in Postgres
type PlanStore struct {
	pool *pgxpool.Pool
}

// NewPlanStore creates a store backed by the given pool
func NewPlanStore(pool *pgxpool.Pool) *PlanStore {
	return &PlanStore{pool: pool}
}

// EnsureSchema creates the plan table and indexes if they do not exist
func (s *PlanStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SavePlan upserts one plan with its actions serialized as JSONB
func (s *PlanStore) SavePlan(ctx context.Context, plan *domain.RecoveryPlan) error {
	actions, err := json.Marshal(plan.Actions)
	if err != nil {
		return fmt.Errorf("marshal plan actions: %w", err)
	}

	completedAt := pgtype.Timestamptz{}
	if plan.CompletedAt != nil {
		completedAt = pgtype.Timestamptz{Time: *plan.CompletedAt, Valid: true}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO recovery_plans
			(id, fault_id, service, fault_type, priority, status, success_rate,
			 estimated_ms, actual_ms, actions, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status       = EXCLUDED.status,
			success_rate = EXCLUDED.success_rate,
			actual_ms    = EXCLUDED.actual_ms,
			actions      = EXCLUDED.actions,
			completed_at = EXCLUDED.completed_at`,
		plan.ID, plan.FaultID, plan.Service, string(plan.FaultType), plan.Priority,
		string(plan.Status), plan.SuccessRate,
		plan.EstimatedDuration.Milliseconds(), plan.ActualDuration.Milliseconds(),
		actions, plan.CreatedAt, completedAt,
	)
	if err != nil {
		return fmt.Errorf("save plan %s: %w", plan.ID, err)
	}
	return nil
}

// GetPlan loads one plan by ID
func (s *PlanStore) GetPlan(ctx context.Context, id string) (*domain.RecoveryPlan, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, fault_id, service, fault_type, priority, status, success_rate,
		       estimated_ms, actual_ms, actions, created_at, completed_at
		FROM recovery_plans WHERE id = $1`, id)

	plan, err := scanPlan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	return plan, nil
}

// ListPlans returns the most recent plans, newest first
func (s *PlanStore) ListPlans(ctx context.Context, limit int) ([]*domain.RecoveryPlan, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, fault_id, service, fault_type, priority, status, success_rate,
		       estimated_ms, actual_ms, actions, created_at, completed_at
		FROM recovery_plans ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.RecoveryPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func scanPlan(row pgx.Row) (*domain.RecoveryPlan, error) {
	var (
		plan        domain.RecoveryPlan
		faultType   string
		status      string
		estimatedMS int64
		actualMS    int64
		actions     []byte
		completedAt pgtype.Timestamptz
	)
	err := row.Scan(&plan.ID, &plan.FaultID, &plan.Service, &faultType,
		&plan.Priority, &status, &plan.SuccessRate,
		&estimatedMS, &actualMS, &actions, &plan.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	plan.FaultType = domain.FaultType(faultType)
	plan.Status = domain.PlanStatus(status)
	plan.EstimatedDuration = time.Duration(estimatedMS) * time.Millisecond
	plan.ActualDuration = time.Duration(actualMS) * time.Millisecond
	if completedAt.Valid {
		t := completedAt.Time
		plan.CompletedAt = &t
	}
	if err := json.Unmarshal(actions, &plan.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal plan actions: %w", err)
	}
	return &plan, nil
}
