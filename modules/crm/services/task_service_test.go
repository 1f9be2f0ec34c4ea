package services

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/composables"
	"github.com/casavia/estate-crm/pkg/eventbus"
)

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]task.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: map[uuid.UUID]task.Task{}}
}

func (r *memTaskRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID()] = t
	return t, nil
}

func (r *memTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (r *memTaskRepo) GetPaginated(ctx context.Context, params *task.FindParams) ([]task.Task, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []task.Task
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (r *memTaskRepo) MarkImportedToLive(ctx context.Context, id uuid.UUID) error {
	return nil
}

type memErrorRepo struct {
	entries []importerror.Entry
}

func (r *memErrorRepo) CreateMany(ctx context.Context, entries []importerror.Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *memErrorRepo) FindByTaskID(ctx context.Context, taskID uuid.UUID, limit int) ([]importerror.Entry, error) {
	var out []importerror.Entry
	for _, e := range r.entries {
		if e.InsertTaskID == taskID {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memErrorRepo) DeleteByTaskID(ctx context.Context, taskID uuid.UUID) (int64, error) {
	return 0, nil
}

func (r *memErrorRepo) CountByTaskID(ctx context.Context, taskID uuid.UUID) (int64, error) {
	var n int64
	for _, e := range r.entries {
		if e.InsertTaskID == taskID {
			n++
		}
	}
	return n, nil
}

type memEstateRepo struct {
	estates map[uuid.UUID]estate.Estate
}

func (r *memEstateRepo) GetByID(ctx context.Context, id uuid.UUID) (estate.Estate, error) {
	e, ok := r.estates[id]
	if !ok {
		return estate.Estate{}, estate.ErrNotFound
	}
	return e, nil
}

// stubTx satisfies the transaction interface for paths that never touch the
// database; the registered repositories here are all in-memory.
type stubTx struct{ pgx.Tx }

type fixture struct {
	svc       *TaskService
	repo      *memTaskRepo
	errs      *memErrorRepo
	bus       eventbus.EventBus
	tenantID  uuid.UUID
	userID    uuid.UUID
	estateID  uuid.UUID
	uploadDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		repo:      newMemTaskRepo(),
		errs:      &memErrorRepo{},
		bus:       eventbus.NewEventPublisher(logrus.New()),
		tenantID:  uuid.New(),
		userID:    uuid.New(),
		estateID:  uuid.New(),
		uploadDir: t.TempDir(),
	}
	estates := &memEstateRepo{estates: map[uuid.UUID]estate.Estate{
		fx.estateID: {ID: fx.estateID, TenantID: fx.tenantID},
	}}
	fx.svc = NewTaskService(fx.repo, fx.errs, estates, fx.bus, fx.uploadDir)
	return fx
}

func (fx *fixture) ctx() context.Context {
	ctx := composables.WithTenantID(context.Background(), fx.tenantID)
	ctx = composables.WithUserID(ctx, fx.userID)
	return composables.WithTx(ctx, stubTx{})
}

func (fx *fixture) storedImport(t *testing.T, taskType task.Type, state task.State, promoted bool) task.Task {
	t.Helper()
	params, err := json.Marshal(task.ImportCustomerXLSXParams{EstateID: fx.estateID})
	require.NoError(t, err)
	stored := task.Hydrate(
		uuid.New(), fx.tenantID, taskType, state, fx.userID, 1,
		params, nil, promoted, time.Now().UTC(), nil, nil, "",
	)
	_, err = fx.repo.Create(context.Background(), stored)
	require.NoError(t, err)
	return stored
}

func TestImportCustomerXLSX(t *testing.T) {
	fx := newFixture(t)

	var published []interface{}
	var mu sync.Mutex
	fx.bus.Subscribe(func(e task.CreatedEvent) {
		mu.Lock()
		published = append(published, e)
		mu.Unlock()
	})

	upload := bytes.NewReader([]byte("workbook bytes"))
	created, err := fx.svc.ImportCustomerXLSX(fx.ctx(), upload, "客戶名單.xlsx", fx.estateID, 480, true)
	require.NoError(t, err)

	require.Equal(t, task.TypeImportCustomerXLSXToDraft, created.Type())
	require.Equal(t, task.StatePending, created.State())
	require.Equal(t, fx.tenantID, created.TenantID())

	var params task.ImportCustomerXLSXParams
	require.NoError(t, created.DecodeParams(&params))
	require.Equal(t, "客戶名單.xlsx", params.OriginalFileName)
	require.Equal(t, 480, params.TimezoneOffset)
	require.True(t, params.AutoCreateTags)
	require.True(t, strings.HasPrefix(params.FSPath, fx.uploadDir))

	data, err := os.ReadFile(params.FSPath)
	require.NoError(t, err)
	require.Equal(t, "workbook bytes", string(data))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 1)
}

func TestImportCustomerXLSX_UnknownEstate(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.ImportCustomerXLSX(fx.ctx(), bytes.NewReader([]byte("x")), "a.xlsx", uuid.New(), 0, false)
	require.ErrorIs(t, err, estate.ErrNotFound)
}

func TestImportCustomerXLSX_EmptyUpload(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.ImportCustomerXLSX(fx.ctx(), bytes.NewReader(nil), "a.xlsx", fx.estateID, 0, false)
	require.ErrorIs(t, err, ErrEmptyUpload)
}

func TestImportBlacklistXLSX(t *testing.T) {
	fx := newFixture(t)
	created, err := fx.svc.ImportBlacklistXLSX(fx.ctx(), bytes.NewReader([]byte("rows")), "黑名單.xlsx")
	require.NoError(t, err)
	require.Equal(t, task.TypeImportBlacklistXLSXToDraft, created.Type())
}

func TestApproveImport(t *testing.T) {
	fx := newFixture(t)
	processed := fx.storedImport(t, task.TypeImportCustomerXLSXToDraft, task.StateSuccess, false)

	created, err := fx.svc.ApproveImport(fx.ctx(), processed.ID(), true)
	require.NoError(t, err)
	require.Equal(t, task.TypeImportCustomerDraftToLive, created.Type())

	var params task.ResolveDraftParams
	require.NoError(t, created.DecodeParams(&params))
	require.Equal(t, processed.ID(), params.ProcessedTaskID)
	require.True(t, params.AllowMinorFormatErrors)
}

func TestApproveImport_BlacklistVariant(t *testing.T) {
	fx := newFixture(t)
	processed := fx.storedImport(t, task.TypeImportBlacklistXLSXToDraft, task.StateSuccess, false)

	created, err := fx.svc.ApproveImport(fx.ctx(), processed.ID(), false)
	require.NoError(t, err)
	require.Equal(t, task.TypeImportBlacklistDraftToLive, created.Type())
}

func TestApproveImport_Guards(t *testing.T) {
	fx := newFixture(t)

	running := fx.storedImport(t, task.TypeImportCustomerXLSXToDraft, task.StateRunning, false)
	_, err := fx.svc.ApproveImport(fx.ctx(), running.ID(), false)
	require.ErrorIs(t, err, ErrTaskNotFinished)

	promoted := fx.storedImport(t, task.TypeImportCustomerXLSXToDraft, task.StateSuccess, true)
	_, err = fx.svc.ApproveImport(fx.ctx(), promoted.ID(), false)
	require.ErrorIs(t, err, ErrAlreadyPromoted)

	export := fx.storedImport(t, task.TypeExportCustomerXLSX, task.StateSuccess, false)
	_, err = fx.svc.ApproveImport(fx.ctx(), export.ID(), false)
	require.ErrorIs(t, err, ErrNotDraftImport)

	_, err = fx.svc.ApproveImport(fx.ctx(), uuid.New(), false)
	require.ErrorIs(t, err, task.ErrNotFound)
}

func TestRejectImport(t *testing.T) {
	fx := newFixture(t)
	processed := fx.storedImport(t, task.TypeImportBlacklistXLSXToDraft, task.StateSuccess, false)

	created, err := fx.svc.RejectImport(fx.ctx(), processed.ID())
	require.NoError(t, err)
	require.Equal(t, task.TypeDiscardBlacklistImportDraft, created.Type())
}

func TestRejectImport_AllowedAfterPromotion(t *testing.T) {
	fx := newFixture(t)
	promoted := fx.storedImport(t, task.TypeImportCustomerXLSXToDraft, task.StateSuccess, true)

	created, err := fx.svc.RejectImport(fx.ctx(), promoted.ID())
	require.NoError(t, err)
	require.Equal(t, task.TypeDiscardCustomerImportDraft, created.Type())
}

func TestExportCustomers(t *testing.T) {
	fx := newFixture(t)
	created, err := fx.svc.ExportCustomers(fx.ctx(), fx.estateID)
	require.NoError(t, err)
	require.Equal(t, task.TypeExportCustomerXLSX, created.Type())

	var params task.ExportCustomerXLSXParams
	require.NoError(t, created.DecodeParams(&params))
	require.Equal(t, fx.estateID, params.EstateID)
	require.True(t, strings.HasPrefix(params.FSPath, fx.uploadDir))
}

func TestGetByID_DraftImportCarriesErrorPreview(t *testing.T) {
	fx := newFixture(t)
	processed := fx.storedImport(t, task.TypeImportCustomerXLSXToDraft, task.StateSuccess, false)

	entries := make([]importerror.Entry, ErrorPreviewLimit+5)
	for i := range entries {
		entries[i] = importerror.Entry{
			TenantID:     fx.tenantID,
			InsertTaskID: processed.ID(),
			LineNumber:   i + 2,
			FieldName:    "phone",
			Kind:         importerror.KindFormat,
		}
	}
	require.NoError(t, fx.errs.CreateMany(context.Background(), entries))

	status, err := fx.svc.GetByID(fx.ctx(), processed.ID())
	require.NoError(t, err)
	require.Equal(t, int64(ErrorPreviewLimit+5), status.ErrorCount)
	require.Len(t, status.ErrorPreview, ErrorPreviewLimit)
}

func TestGetByID_NonImportHasNoPreview(t *testing.T) {
	fx := newFixture(t)
	export := fx.storedImport(t, task.TypeExportCustomerXLSX, task.StateSuccess, false)

	status, err := fx.svc.GetByID(fx.ctx(), export.ID())
	require.NoError(t, err)
	require.Zero(t, status.ErrorCount)
	require.Empty(t, status.ErrorPreview)
}
