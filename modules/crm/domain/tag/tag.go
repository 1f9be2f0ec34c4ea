package tag

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("tag not found")

// Tag labels customers for filtering and segmentation.
type Tag struct {
	id               uuid.UUID
	tenantID         uuid.UUID
	name             string
	description      string
	isFrequentlyUsed bool
	createdAt        time.Time
	updatedAt        time.Time
}

func New(tenantID uuid.UUID, name string) Tag {
	return Tag{
		id:       uuid.New(),
		tenantID: tenantID,
		name:     strings.TrimSpace(name),
	}
}

func Hydrate(
	id uuid.UUID,
	tenantID uuid.UUID,
	name string,
	description string,
	isFrequentlyUsed bool,
	createdAt time.Time,
	updatedAt time.Time,
) Tag {
	return Tag{
		id:               id,
		tenantID:         tenantID,
		name:             name,
		description:      description,
		isFrequentlyUsed: isFrequentlyUsed,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

func (t Tag) ID() uuid.UUID          { return t.id }
func (t Tag) TenantID() uuid.UUID    { return t.tenantID }
func (t Tag) Name() string           { return t.name }
func (t Tag) Description() string    { return t.description }
func (t Tag) IsFrequentlyUsed() bool { return t.isFrequentlyUsed }
func (t Tag) CreatedAt() time.Time   { return t.createdAt }
func (t Tag) UpdatedAt() time.Time   { return t.updatedAt }

type Repository interface {
	GetAll(ctx context.Context) ([]Tag, error)
	GetByID(ctx context.Context, id uuid.UUID) (Tag, error)
	Create(ctx context.Context, t Tag) (Tag, error)
}
