package task

import (
	"context"

	"github.com/google/uuid"
)

type FindParams struct {
	Types  []Type
	States []State
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, t Task) (Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (Task, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Task, int64, error)
	// MarkImportedToLive flags the originating draft-import task once its
	// draft set has been promoted.
	MarkImportedToLive(ctx context.Context, id uuid.UUID) error
}
