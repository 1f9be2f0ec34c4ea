package customer

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("customer not found")

type Repository interface {
	// CreateDrafts inserts one batch of staged rows; callers slice their input
	// into bounded batches.
	CreateDrafts(ctx context.Context, drafts []Draft) error
	// FindDrafts returns up to limit drafts owned by taskID in insertion
	// order. Dirty rows are excluded unless includeDirty is set.
	FindDrafts(ctx context.Context, taskID uuid.UUID, includeDirty bool, limit int) ([]Draft, error)
	DeleteDraftsByIDs(ctx context.Context, ids []uuid.UUID) error
	DeleteDraftsByTask(ctx context.Context, taskID uuid.UUID) (int64, error)
	// UpsertLive replaces-or-inserts by the natural key (tenant, estate, phone).
	UpsertLive(ctx context.Context, records []Customer) error
	// ForEachLive streams live customers of an estate in stable order.
	ForEachLive(ctx context.Context, estateID uuid.UUID, fn func(Customer) error) error
}
