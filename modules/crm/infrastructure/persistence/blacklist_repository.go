package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/casavia/estate-crm/modules/crm/domain/blacklist"
	"github.com/casavia/estate-crm/pkg/composables"
)

type BlacklistRepository struct{}

func NewBlacklistRepository() blacklist.Repository {
	return &BlacklistRepository{}
}

func (r *BlacklistRepository) CreateDrafts(ctx context.Context, drafts []blacklist.Draft) error {
	if len(drafts) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, d := range drafts {
		batch.Queue(`
INSERT INTO crm_blacklist_drafts (
	id, tenant_id, name, phone, created_at, updated_at,
	creator_id, updater_id, insert_task_id, dirty
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`,
			d.ID, d.TenantID, d.Name, d.Phone, d.CreatedAt, d.UpdatedAt,
			d.CreatorID, d.UpdaterID, d.InsertTaskID, d.Dirty,
		)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range drafts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert blacklist draft: %w", err)
		}
	}
	return nil
}

func (r *BlacklistRepository) FindDrafts(ctx context.Context, taskID uuid.UUID, includeDirty bool, limit int) ([]blacklist.Draft, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT id, tenant_id, name, phone, created_at, updated_at,
       creator_id, updater_id, insert_task_id, dirty
  FROM crm_blacklist_drafts
 WHERE insert_task_id = $1
   AND ($2 OR NOT dirty)
 ORDER BY seq
 LIMIT $3
`, taskID, includeDirty, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]blacklist.Draft, 0, limit)
	for rows.Next() {
		var d blacklist.Draft
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.Name, &d.Phone, &d.CreatedAt, &d.UpdatedAt,
			&d.CreatorID, &d.UpdaterID, &d.InsertTaskID, &d.Dirty,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *BlacklistRepository) DeleteDraftsByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM crm_blacklist_drafts WHERE id = ANY($1)`, uuidArray(ids))
	return err
}

func (r *BlacklistRepository) DeleteDraftsByTask(ctx context.Context, taskID uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM crm_blacklist_drafts WHERE insert_task_id = $1`, taskID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *BlacklistRepository) UpsertLive(ctx context.Context, entries []blacklist.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
INSERT INTO crm_blacklist (
	id, tenant_id, name, phone, created_at, updated_at, creator_id, updater_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (tenant_id, phone) DO UPDATE SET
	name = EXCLUDED.name,
	updated_at = EXCLUDED.updated_at,
	updater_id = EXCLUDED.updater_id
`,
			e.ID, e.TenantID, e.Name, e.Phone, e.CreatedAt, e.UpdatedAt, e.CreatorID, e.UpdaterID,
		)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert blacklist entry: %w", err)
		}
	}
	return nil
}

func (r *BlacklistRepository) AllPhones(ctx context.Context) (map[string]struct{}, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT phone FROM crm_blacklist WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, err
		}
		out[phone] = struct{}{}
	}
	return out, rows.Err()
}
