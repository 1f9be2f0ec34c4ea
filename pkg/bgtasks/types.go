package bgtasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is the claimed view of one durable task row. Handlers receive it and
// decode Params into their own typed parameter struct.
type Record struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Type      string
	CreatorID uuid.UUID
	Trial     int
	Params    json.RawMessage
	CreatedAt time.Time
	ClaimedAt time.Time
}

// Handler executes one task attempt. The returned value is marshalled into the
// task's result column on success.
type Handler func(ctx context.Context, rec Record) (interface{}, error)

// FailureResult is written to the result column when a task settles failed.
type FailureResult struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// Store is the durable queue the runner drives. Claim must atomically move
// eligible rows to running, increment their trial counter and stamp the lease;
// eligible rows are pending rows whose available_at has passed, plus running
// rows whose lease expired before the cutoff (orphaned by a crashed runner).
type Store interface {
	Claim(ctx context.Context, now, lockCutoff time.Time, limit int, runnerID string) ([]Record, error)
	Heartbeat(ctx context.Context, id uuid.UUID, at time.Time) error
	Succeed(ctx context.Context, id uuid.UUID, result interface{}) error
	Fail(ctx context.Context, id uuid.UUID, failure FailureResult) error
	// Release returns a transiently failed task to pending, eligible again at
	// nextAvailable.
	Release(ctx context.Context, id uuid.UUID, lastErr string, nextAvailable time.Time) error
	CountPending(ctx context.Context) (int64, error)
}
