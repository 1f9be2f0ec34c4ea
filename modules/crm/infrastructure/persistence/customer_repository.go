package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/casavia/estate-crm/modules/crm/domain/customer"
	"github.com/casavia/estate-crm/pkg/composables"
)

type CustomerRepository struct{}

func NewCustomerRepository() customer.Repository {
	return &CustomerRepository{}
}

func (r *CustomerRepository) CreateDrafts(ctx context.Context, drafts []customer.Draft) error {
	if len(drafts) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, d := range drafts {
		sizes, err := json.Marshal(d.RoomSizes)
		if err != nil {
			return fmt.Errorf("marshal room sizes: %w", err)
		}
		batch.Queue(`
INSERT INTO crm_customer_drafts (
	id, tenant_id, estate_id, name, title_pronoun, phone, email,
	room_layouts, room_sizes, info_date, l1_district, l2_district, customer_tags,
	created_at, updated_at, creator_id, updater_id, insert_task_id, dirty
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
`,
			d.ID, d.TenantID, d.EstateID, d.Name, d.TitlePronoun, d.Phone, d.Email,
			d.RoomLayouts, sizes, nullableTime(d.InfoDate), d.L1District, d.L2District, uuidArray(d.CustomerTags),
			d.CreatedAt, d.UpdatedAt, d.CreatorID, d.UpdaterID, d.InsertTaskID, d.Dirty,
		)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range drafts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert customer draft: %w", err)
		}
	}
	return nil
}

func (r *CustomerRepository) FindDrafts(ctx context.Context, taskID uuid.UUID, includeDirty bool, limit int) ([]customer.Draft, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT id, tenant_id, estate_id, name, title_pronoun, phone, email,
       room_layouts, room_sizes, info_date, l1_district, l2_district, customer_tags,
       created_at, updated_at, creator_id, updater_id, insert_task_id, dirty
  FROM crm_customer_drafts
 WHERE insert_task_id = $1
   AND ($2 OR NOT dirty)
 ORDER BY seq
 LIMIT $3
`, taskID, includeDirty, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]customer.Draft, 0, limit)
	for rows.Next() {
		var (
			d        customer.Draft
			sizes    []byte
			infoDate pgtype.Timestamptz
		)
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.EstateID, &d.Name, &d.TitlePronoun, &d.Phone, &d.Email,
			&d.RoomLayouts, &sizes, &infoDate, &d.L1District, &d.L2District, &d.CustomerTags,
			&d.CreatedAt, &d.UpdatedAt, &d.CreatorID, &d.UpdaterID, &d.InsertTaskID, &d.Dirty,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(sizes, &d.RoomSizes); err != nil {
			return nil, fmt.Errorf("unmarshal room sizes: %w", err)
		}
		if infoDate.Valid {
			d.InfoDate = infoDate.Time
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *CustomerRepository) DeleteDraftsByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM crm_customer_drafts WHERE id = ANY($1)`, uuidArray(ids))
	return err
}

func (r *CustomerRepository) DeleteDraftsByTask(ctx context.Context, taskID uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM crm_customer_drafts WHERE insert_task_id = $1`, taskID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *CustomerRepository) UpsertLive(ctx context.Context, records []customer.Customer) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, c := range records {
		sizes, err := json.Marshal(c.RoomSizes)
		if err != nil {
			return fmt.Errorf("marshal room sizes: %w", err)
		}
		batch.Queue(`
INSERT INTO crm_customers (
	id, tenant_id, estate_id, name, title_pronoun, phone, email,
	room_layouts, room_sizes, info_date, l1_district, l2_district, customer_tags,
	created_at, updated_at, creator_id, updater_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (tenant_id, estate_id, phone) DO UPDATE SET
	name = EXCLUDED.name,
	title_pronoun = EXCLUDED.title_pronoun,
	email = EXCLUDED.email,
	room_layouts = EXCLUDED.room_layouts,
	room_sizes = EXCLUDED.room_sizes,
	info_date = EXCLUDED.info_date,
	l1_district = EXCLUDED.l1_district,
	l2_district = EXCLUDED.l2_district,
	customer_tags = EXCLUDED.customer_tags,
	updated_at = EXCLUDED.updated_at,
	updater_id = EXCLUDED.updater_id
`,
			c.ID, c.TenantID, c.EstateID, c.Name, c.TitlePronoun, c.Phone, c.Email,
			c.RoomLayouts, sizes, nullableTime(c.InfoDate), c.L1District, c.L2District, uuidArray(c.CustomerTags),
			c.CreatedAt, c.UpdatedAt, c.CreatorID, c.UpdaterID,
		)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert customer: %w", err)
		}
	}
	return nil
}

func (r *CustomerRepository) ForEachLive(ctx context.Context, estateID uuid.UUID, fn func(customer.Customer) error) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `
SELECT id, tenant_id, estate_id, name, title_pronoun, phone, email,
       room_layouts, room_sizes, info_date, l1_district, l2_district, customer_tags,
       created_at, updated_at, creator_id, updater_id
  FROM crm_customers
 WHERE estate_id = $1
 ORDER BY created_at, id
`, estateID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c        customer.Customer
			sizes    []byte
			infoDate pgtype.Timestamptz
		)
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.EstateID, &c.Name, &c.TitlePronoun, &c.Phone, &c.Email,
			&c.RoomLayouts, &sizes, &infoDate, &c.L1District, &c.L2District, &c.CustomerTags,
			&c.CreatedAt, &c.UpdatedAt, &c.CreatorID, &c.UpdaterID,
		); err != nil {
			return err
		}
		if err := json.Unmarshal(sizes, &c.RoomSizes); err != nil {
			return fmt.Errorf("unmarshal room sizes: %w", err)
		}
		if infoDate.Valid {
			c.InfoDate = infoDate.Time
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullableTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func uuidArray(ids []uuid.UUID) pgtype.FlatArray[uuid.UUID] {
	return pgtype.FlatArray[uuid.UUID](ids)
}
