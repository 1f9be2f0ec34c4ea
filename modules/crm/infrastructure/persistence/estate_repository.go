package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/pkg/composables"
)

type EstateRepository struct{}

func NewEstateRepository() estate.Repository {
	return &EstateRepository{}
}

func (r *EstateRepository) GetByID(ctx context.Context, id uuid.UUID) (estate.Estate, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return estate.Estate{}, err
	}

	var e estate.Estate
	err = tx.QueryRow(ctx, `
SELECT id, tenant_id, name, address, l1_district, l2_district, room_layouts, created_at, updated_at
  FROM crm_estates
 WHERE id = $1
`, id).Scan(
		&e.ID, &e.TenantID, &e.Name, &e.Address, &e.L1District, &e.L2District,
		&e.RoomLayouts, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return estate.Estate{}, estate.ErrNotFound
		}
		return estate.Estate{}, err
	}
	return e, nil
}
