package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/bgtasks"
	"github.com/casavia/estate-crm/pkg/composables"
)

// TaskRepository persists task rows. It implements both the domain repository
// used by the service layer and the bgtasks.Store driven by the runner.
type TaskRepository struct{}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

var _ task.Repository = (*TaskRepository)(nil)
var _ bgtasks.Store = (*TaskRepository)(nil)

func (r *TaskRepository) Create(ctx context.Context, t task.Task) (task.Task, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return task.Task{}, err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO crm_tasks (id, tenant_id, task_type, state, creator_id, trial, params, created_at, available_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
`,
		t.ID(), t.TenantID(), string(t.Type()), string(t.State()), t.CreatorID(), t.Trial(), t.Params(), t.CreatedAt(),
	)
	if err != nil {
		return task.Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (task.Task, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return task.Task{}, err
	}

	row := tx.QueryRow(ctx, `
SELECT id, tenant_id, task_type, state, creator_id, trial, params, result, imported_to_live,
       created_at, run_at, finished_at, runner_id
  FROM crm_tasks
 WHERE id = $1
`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}
	return t, nil
}

func (r *TaskRepository) GetPaginated(ctx context.Context, params *task.FindParams) ([]task.Task, int64, error) {
	if params == nil {
		params = &task.FindParams{}
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	types := make([]string, 0, len(params.Types))
	for _, t := range params.Types {
		types = append(types, string(t))
	}
	states := make([]string, 0, len(params.States))
	for _, s := range params.States {
		states = append(states, string(s))
	}

	rows, err := tx.Query(ctx, `
SELECT id, tenant_id, task_type, state, creator_id, trial, params, result, imported_to_live,
       created_at, run_at, finished_at, runner_id
  FROM crm_tasks
 WHERE tenant_id = $1
   AND (cardinality($2::text[]) = 0 OR task_type = ANY($2))
   AND (cardinality($3::text[]) = 0 OR state = ANY($3))
 ORDER BY created_at DESC
 LIMIT $4 OFFSET $5
`, tenantID, types, states, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]task.Task, 0, limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	var total int64
	err = tx.QueryRow(ctx, `
SELECT count(*)
  FROM crm_tasks
 WHERE tenant_id = $1
   AND (cardinality($2::text[]) = 0 OR task_type = ANY($2))
   AND (cardinality($3::text[]) = 0 OR state = ANY($3))
`, tenantID, types, states).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *TaskRepository) MarkImportedToLive(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE crm_tasks SET imported_to_live = true WHERE id = $1`, id)
	return err
}

// Claim atomically moves eligible rows to running: pending rows whose
// available_at has passed, plus running rows whose lease expired (orphaned by
// a crashed runner).
func (r *TaskRepository) Claim(ctx context.Context, now, lockCutoff time.Time, limit int, runnerID string) ([]bgtasks.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
WITH picked AS (
	SELECT id
	  FROM crm_tasks
	 WHERE (state = 'pending' AND available_at <= $1)
	    OR (state = 'running' AND locked_at < $2)
	 ORDER BY available_at
	 LIMIT $3
	   FOR UPDATE SKIP LOCKED
)
UPDATE crm_tasks t
   SET state = 'running',
       trial = t.trial + 1,
       run_at = COALESCE(t.run_at, $1),
       locked_at = $1,
       runner_id = $4
  FROM picked
 WHERE t.id = picked.id
RETURNING t.id, t.tenant_id, t.task_type, t.creator_id, t.trial, t.params, t.created_at
`, now, lockCutoff, limit, runnerID)
	if err != nil {
		return nil, fmt.Errorf("task claim: %w", err)
	}
	defer rows.Close()

	var out []bgtasks.Record
	for rows.Next() {
		var rec bgtasks.Record
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Type, &rec.CreatorID, &rec.Trial, &rec.Params, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("task claim scan: %w", err)
		}
		rec.ClaimedAt = now
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *TaskRepository) Heartbeat(ctx context.Context, id uuid.UUID, at time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE crm_tasks SET locked_at = $2 WHERE id = $1 AND state = 'running'`, id, at)
	return err
}

func (r *TaskRepository) Succeed(ctx context.Context, id uuid.UUID, result interface{}) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}
	_, err = tx.Exec(ctx, `
UPDATE crm_tasks
   SET state = 'success',
       result = $2,
       finished_at = now(),
       locked_at = NULL,
       last_error = ''
 WHERE id = $1 AND state = 'running'
`, id, raw)
	return err
}

func (r *TaskRepository) Fail(ctx context.Context, id uuid.UUID, failure bgtasks.FailureResult) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("marshal task failure: %w", err)
	}
	_, err = tx.Exec(ctx, `
UPDATE crm_tasks
   SET state = 'failed',
       result = $2,
       finished_at = now(),
       locked_at = NULL,
       last_error = $3
 WHERE id = $1 AND state = 'running'
`, id, raw, failure.Message)
	return err
}

func (r *TaskRepository) Release(ctx context.Context, id uuid.UUID, lastErr string, nextAvailable time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
UPDATE crm_tasks
   SET state = 'pending',
       available_at = $2,
       locked_at = NULL,
       last_error = $3
 WHERE id = $1 AND state = 'running'
`, id, nextAvailable, lastErr)
	return err
}

func (r *TaskRepository) CountPending(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	err = tx.QueryRow(ctx, `SELECT count(*) FROM crm_tasks WHERE state = 'pending'`).Scan(&n)
	return n, err
}

func scanTask(row pgx.Row) (task.Task, error) {
	var (
		id             uuid.UUID
		tenantID       uuid.UUID
		taskType       string
		state          string
		creatorID      uuid.UUID
		trial          int
		params         []byte
		result         []byte
		importedToLive bool
		createdAt      time.Time
		runAt          pgtype.Timestamptz
		finishedAt     pgtype.Timestamptz
		runnerID       string
	)
	if err := row.Scan(
		&id, &tenantID, &taskType, &state, &creatorID, &trial, &params, &result,
		&importedToLive, &createdAt, &runAt, &finishedAt, &runnerID,
	); err != nil {
		return task.Task{}, err
	}

	var runAtPtr, finishedAtPtr *time.Time
	if runAt.Valid {
		t := runAt.Time
		runAtPtr = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		finishedAtPtr = &t
	}

	return task.Hydrate(
		id, tenantID, task.Type(taskType), task.State(state), creatorID, trial,
		params, result, importedToLive, createdAt, runAtPtr, finishedAtPtr, runnerID,
	), nil
}
