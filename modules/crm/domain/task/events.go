package task

import "github.com/google/uuid"

// CreatedEvent is published after a pending task row is durably created.
type CreatedEvent struct {
	Task Task
}

// FinishedEvent is published when a task settles in a terminal state. It
// carries the claimed record's identity rather than the full row; consumers
// needing the result fetch it by id.
type FinishedEvent struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Type     Type
	State    State
}
