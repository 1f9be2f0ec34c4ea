package persistence

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/casavia/estate-crm/modules/crm/domain/district"
	"github.com/casavia/estate-crm/pkg/composables"
)

//go:embed seed/districts.json
var districtSeed []byte

// SeedDistricts loads the administrative district reference data. Safe to run
// on every startup; existing rows are refreshed in place.
func SeedDistricts(ctx context.Context) error {
	var districts []district.District
	if err := json.Unmarshal(districtSeed, &districts); err != nil {
		return errors.Wrap(err, "parse district seed")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	for _, d := range districts {
		subs, err := json.Marshal(d.Districts)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO crm_districts (name, districts)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET districts = EXCLUDED.districts
`, d.Name, subs); err != nil {
			return errors.Wrapf(err, "seed district %s", d.Name)
		}
	}
	return nil
}
