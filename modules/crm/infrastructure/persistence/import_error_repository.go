package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
	"github.com/casavia/estate-crm/pkg/composables"
)

type ImportErrorRepository struct{}

func NewImportErrorRepository() importerror.Repository {
	return &ImportErrorRepository{}
}

func (r *ImportErrorRepository) CreateMany(ctx context.Context, entries []importerror.Entry) error {
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
INSERT INTO crm_import_errors (tenant_id, insert_task_id, line_number, field_name, field_header, field_value, error_type)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`,
			e.TenantID, e.InsertTaskID, e.LineNumber, e.FieldName, e.FieldHeader, e.FieldValue, string(e.Kind),
		)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert import error: %w", err)
		}
	}
	return nil
}

func (r *ImportErrorRepository) FindByTaskID(ctx context.Context, taskID uuid.UUID, limit int) ([]importerror.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT tenant_id, insert_task_id, line_number, field_name, field_header, field_value, error_type
  FROM crm_import_errors
 WHERE insert_task_id = $1
 ORDER BY line_number
 LIMIT $2
`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]importerror.Entry, 0, limit)
	for rows.Next() {
		var (
			e    importerror.Entry
			kind string
		)
		if err := rows.Scan(&e.TenantID, &e.InsertTaskID, &e.LineNumber, &e.FieldName, &e.FieldHeader, &e.FieldValue, &kind); err != nil {
			return nil, err
		}
		e.Kind = importerror.Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ImportErrorRepository) DeleteByTaskID(ctx context.Context, taskID uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM crm_import_errors WHERE insert_task_id = $1`, taskID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *ImportErrorRepository) CountByTaskID(ctx context.Context, taskID uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	err = tx.QueryRow(ctx, `SELECT count(*) FROM crm_import_errors WHERE insert_task_id = $1`, taskID).Scan(&n)
	return n, err
}
