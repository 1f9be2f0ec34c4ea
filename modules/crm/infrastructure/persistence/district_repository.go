package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/casavia/estate-crm/modules/crm/domain/district"
	"github.com/casavia/estate-crm/pkg/composables"
)

type DistrictRepository struct{}

func NewDistrictRepository() district.Repository {
	return &DistrictRepository{}
}

func (r *DistrictRepository) GetAll(ctx context.Context) ([]district.District, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT name, districts FROM crm_districts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []district.District
	for rows.Next() {
		var (
			d    district.District
			subs []byte
		)
		if err := rows.Scan(&d.Name, &subs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(subs, &d.Districts); err != nil {
			return nil, fmt.Errorf("unmarshal districts: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
