package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/casavia/estate-crm/modules/crm/domain/tag"
	"github.com/casavia/estate-crm/pkg/composables"
)

type TagRepository struct{}

func NewTagRepository() tag.Repository {
	return &TagRepository{}
}

func (r *TagRepository) GetAll(ctx context.Context) ([]tag.Tag, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT id, tenant_id, name, description, is_frequently_used, created_at, updated_at
  FROM crm_customer_tags
 WHERE tenant_id = $1
 ORDER BY name
`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tag.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TagRepository) GetByID(ctx context.Context, id uuid.UUID) (tag.Tag, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return tag.Tag{}, err
	}

	row := tx.QueryRow(ctx, `
SELECT id, tenant_id, name, description, is_frequently_used, created_at, updated_at
  FROM crm_customer_tags
 WHERE id = $1
`, id)
	t, err := scanTag(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tag.Tag{}, tag.ErrNotFound
		}
		return tag.Tag{}, err
	}
	return t, nil
}

func (r *TagRepository) Create(ctx context.Context, t tag.Tag) (tag.Tag, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return tag.Tag{}, err
	}

	row := tx.QueryRow(ctx, `
INSERT INTO crm_customer_tags (id, tenant_id, name, description, is_frequently_used)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, tenant_id, name, description, is_frequently_used, created_at, updated_at
`, t.ID(), t.TenantID(), t.Name(), t.Description(), t.IsFrequentlyUsed())
	created, err := scanTag(row)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	return created, nil
}

func scanTag(row pgx.Row) (tag.Tag, error) {
	var (
		id               uuid.UUID
		tenantID         uuid.UUID
		name             string
		description      string
		isFrequentlyUsed bool
		createdAt        time.Time
		updatedAt        time.Time
	)
	if err := row.Scan(&id, &tenantID, &name, &description, &isFrequentlyUsed, &createdAt, &updatedAt); err != nil {
		return tag.Tag{}, err
	}
	return tag.Hydrate(id, tenantID, name, description, isFrequentlyUsed, createdAt, updatedAt), nil
}
