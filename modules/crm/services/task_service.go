package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/composables"
	"github.com/casavia/estate-crm/pkg/eventbus"
	"github.com/casavia/estate-crm/pkg/serrors"
)

// ErrorPreviewLimit bounds how many import error entries a status read
// returns. The full list stays queryable through the repository.
const ErrorPreviewLimit = 200

var (
	ErrTaskNotFinished = serrors.NewError("TASK_NOT_FINISHED", "import task has not finished", "wait for the import to finish before resolving it")
	ErrAlreadyPromoted = serrors.NewError("ALREADY_PROMOTED", "draft set already promoted to live", "")
	ErrNotDraftImport  = serrors.NewError("NOT_DRAFT_IMPORT", "task is not a draft import", "")
	ErrEmptyUpload     = serrors.NewError("EMPTY_UPLOAD", "uploaded file is empty", "")
)

// TaskStatus is the client-facing view of one task: the record itself plus,
// for finished draft imports, a bounded preview of the import errors.
type TaskStatus struct {
	Task         task.Task
	ErrorCount   int64
	ErrorPreview []importerror.Entry
}

// TaskService creates task rows for the background runner and answers status
// reads. It never executes task work itself.
type TaskService struct {
	repo        task.Repository
	errors      importerror.Repository
	estates     estate.Repository
	publisher   eventbus.EventBus
	uploadsPath string
}

func NewTaskService(
	repo task.Repository,
	errs importerror.Repository,
	estates estate.Repository,
	publisher eventbus.EventBus,
	uploadsPath string,
) *TaskService {
	return &TaskService{
		repo:        repo,
		errors:      errs,
		estates:     estates,
		publisher:   publisher,
		uploadsPath: uploadsPath,
	}
}

// ImportCustomerXLSX stores the uploaded workbook and enqueues a draft import
// against the given estate.
func (s *TaskService) ImportCustomerXLSX(
	ctx context.Context,
	upload io.Reader,
	originalName string,
	estateID uuid.UUID,
	tzOffset int,
	autoCreateTags bool,
) (task.Task, error) {
	if _, err := s.estates.GetByID(ctx, estateID); err != nil {
		return task.Task{}, err
	}
	fsPath, err := s.saveUpload(upload, originalName)
	if err != nil {
		return task.Task{}, err
	}
	return s.create(ctx, task.TypeImportCustomerXLSXToDraft, task.ImportCustomerXLSXParams{
		FSPath:           fsPath,
		OriginalFileName: originalName,
		EstateID:         estateID,
		TimezoneOffset:   tzOffset,
		AutoCreateTags:   autoCreateTags,
	})
}

// ImportBlacklistXLSX stores the uploaded workbook and enqueues a blacklist
// draft import.
func (s *TaskService) ImportBlacklistXLSX(ctx context.Context, upload io.Reader, originalName string) (task.Task, error) {
	fsPath, err := s.saveUpload(upload, originalName)
	if err != nil {
		return task.Task{}, err
	}
	return s.create(ctx, task.TypeImportBlacklistXLSXToDraft, task.ImportBlacklistXLSXParams{
		FSPath:           fsPath,
		OriginalFileName: originalName,
	})
}

// ApproveImport enqueues promotion of the draft set staged by processedTaskID.
// The import must have finished successfully and not been promoted before.
func (s *TaskService) ApproveImport(ctx context.Context, processedTaskID uuid.UUID, allowMinorFormatErrors bool) (task.Task, error) {
	processed, err := s.resolvable(ctx, processedTaskID, true)
	if err != nil {
		return task.Task{}, err
	}
	resolveType := task.TypeImportCustomerDraftToLive
	if processed.Type() == task.TypeImportBlacklistXLSXToDraft {
		resolveType = task.TypeImportBlacklistDraftToLive
	}
	return s.create(ctx, resolveType, task.ResolveDraftParams{
		ProcessedTaskID:        processedTaskID,
		AllowMinorFormatErrors: allowMinorFormatErrors,
	})
}

// RejectImport enqueues a discard of the draft set staged by processedTaskID.
func (s *TaskService) RejectImport(ctx context.Context, processedTaskID uuid.UUID) (task.Task, error) {
	processed, err := s.resolvable(ctx, processedTaskID, false)
	if err != nil {
		return task.Task{}, err
	}
	discardType := task.TypeDiscardCustomerImportDraft
	if processed.Type() == task.TypeImportBlacklistXLSXToDraft {
		discardType = task.TypeDiscardBlacklistImportDraft
	}
	return s.create(ctx, discardType, task.ResolveDraftParams{ProcessedTaskID: processedTaskID})
}

// ExportCustomers enqueues a workbook export of an estate's live customers and
// returns the task whose result will carry the file path.
func (s *TaskService) ExportCustomers(ctx context.Context, estateID uuid.UUID) (task.Task, error) {
	if _, err := s.estates.GetByID(ctx, estateID); err != nil {
		return task.Task{}, err
	}
	fsPath := filepath.Join(s.uploadsPath, fmt.Sprintf("export-%s-%d.xlsx", estateID, time.Now().UnixNano()))
	return s.create(ctx, task.TypeExportCustomerXLSX, task.ExportCustomerXLSXParams{
		FSPath:   fsPath,
		EstateID: estateID,
	})
}

// GetByID returns the task with, for draft imports, the bounded error preview.
func (s *TaskService) GetByID(ctx context.Context, id uuid.UUID) (TaskStatus, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return TaskStatus{}, err
	}
	status := TaskStatus{Task: t}
	if t.Type().IsDraftImport() {
		status.ErrorCount, err = s.errors.CountByTaskID(ctx, id)
		if err != nil {
			return TaskStatus{}, err
		}
		status.ErrorPreview, err = s.errors.FindByTaskID(ctx, id, ErrorPreviewLimit)
		if err != nil {
			return TaskStatus{}, err
		}
	}
	return status, nil
}

// GetPaginated lists tasks for the tenant.
func (s *TaskService) GetPaginated(ctx context.Context, params *task.FindParams) ([]task.Task, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *TaskService) create(ctx context.Context, taskType task.Type, params interface{}) (task.Task, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return task.Task{}, err
	}
	userID, err := composables.UseUserID(ctx)
	if err != nil {
		return task.Task{}, err
	}
	t, err := task.New(tenantID, userID, taskType, params)
	if err != nil {
		return task.Task{}, err
	}
	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		return s.repo.Create(txCtx, t)
	})
	if err != nil {
		return task.Task{}, err
	}
	s.publisher.Publish(task.CreatedEvent{Task: created})
	return created, nil
}

// resolvable checks that processedTaskID points at a finished draft import
// that, for promotion, has not been promoted before.
func (s *TaskService) resolvable(ctx context.Context, processedTaskID uuid.UUID, forPromotion bool) (task.Task, error) {
	processed, err := s.repo.GetByID(ctx, processedTaskID)
	if err != nil {
		return task.Task{}, err
	}
	if !processed.Type().IsDraftImport() {
		return task.Task{}, ErrNotDraftImport
	}
	if processed.State() != task.StateSuccess {
		return task.Task{}, ErrTaskNotFinished
	}
	if forPromotion && processed.ImportedToLive() {
		return task.Task{}, ErrAlreadyPromoted
	}
	return processed, nil
}

// saveUpload writes the upload under the uploads dir with a collision-free
// name, keeping the original extension.
func (s *TaskService) saveUpload(upload io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(s.uploadsPath, 0o755); err != nil {
		return "", errors.Wrap(err, "create uploads dir")
	}
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".xlsx"
	}
	fsPath := filepath.Join(s.uploadsPath, fmt.Sprintf("import-%s%s", uuid.NewString(), ext))
	f, err := os.Create(fsPath)
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}
	defer f.Close()
	n, err := io.Copy(f, upload)
	if err != nil {
		return "", errors.Wrap(err, "store upload")
	}
	if n == 0 {
		_ = os.Remove(fsPath)
		return "", ErrEmptyUpload
	}
	return fsPath, nil
}
