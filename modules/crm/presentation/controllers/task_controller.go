package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/modules/crm/presentation/controllers/dtos"
	"github.com/casavia/estate-crm/modules/crm/services"
	"github.com/casavia/estate-crm/pkg/application"
	"github.com/casavia/estate-crm/pkg/configuration"
	"github.com/casavia/estate-crm/pkg/httpapi"
	"github.com/casavia/estate-crm/pkg/middleware"
	"github.com/casavia/estate-crm/pkg/serrors"
)

// TaskController exposes the bulk import/export task API. Uploads are staged
// asynchronously; every handler answers with the task record to poll.
type TaskController struct {
	app     application.Application
	service *services.TaskService
}

func NewTaskController(app application.Application) *TaskController {
	return &TaskController{
		app:     app,
		service: app.Service(&services.TaskService{}).(*services.TaskService),
	}
}

func (c *TaskController) Register(r *mux.Router) {
	router := r.PathPrefix("/crm/tasks").Subrouter()
	router.Use(middleware.Authorize(configuration.Use()))
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("/customer-imports", c.CreateCustomerImport).Methods(http.MethodPost)
	router.HandleFunc("/blacklist-imports", c.CreateBlacklistImport).Methods(http.MethodPost)
	router.HandleFunc("/customer-exports", c.CreateCustomerExport).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/{id}/approve", c.Approve).Methods(http.MethodPost)
	router.HandleFunc("/{id}/reject", c.Reject).Methods(http.MethodPost)
}

type taskResponse struct {
	ID             uuid.UUID       `json:"id"`
	Type           task.Type       `json:"type"`
	State          task.State      `json:"state"`
	Trial          int             `json:"trial"`
	Result         json.RawMessage `json:"result,omitempty"`
	ImportedToLive bool            `json:"imported_to_live"`
	CreatedAt      time.Time       `json:"created_at"`
	RunAt          *time.Time      `json:"run_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

type taskStatusResponse struct {
	taskResponse
	ErrorCount   int64              `json:"error_count,omitempty"`
	ErrorPreview []importErrorEntry `json:"error_preview,omitempty"`
}

type importErrorEntry struct {
	LineNumber  int    `json:"line_number"`
	FieldName   string `json:"field_name"`
	FieldHeader string `json:"field_header"`
	FieldValue  string `json:"field_value"`
	Kind        string `json:"kind"`
}

func toTaskResponse(t task.Task) taskResponse {
	return taskResponse{
		ID:             t.ID(),
		Type:           t.Type(),
		State:          t.State(),
		Trial:          t.Trial(),
		Result:         t.Result(),
		ImportedToLive: t.ImportedToLive(),
		CreatedAt:      t.CreatedAt(),
		RunAt:          t.RunAt(),
		FinishedAt:     t.FinishedAt(),
	}
}

func toStatusResponse(s services.TaskStatus) taskStatusResponse {
	out := taskStatusResponse{
		taskResponse: toTaskResponse(s.Task),
		ErrorCount:   s.ErrorCount,
	}
	for _, e := range s.ErrorPreview {
		out.ErrorPreview = append(out.ErrorPreview, importErrorEntry{
			LineNumber:  e.LineNumber,
			FieldName:   e.FieldName,
			FieldHeader: e.FieldHeader,
			FieldValue:  e.FieldValue,
			Kind:        string(e.Kind),
		})
	}
	return out
}

func (c *TaskController) CreateCustomerImport(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	if err := r.ParseMultipartForm(conf.MaxUploadSize); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart form", nil)
		return
	}
	tzOffset, _ := strconv.Atoi(r.FormValue("timezone_offset"))
	dto := dtos.CreateCustomerImportDTO{
		EstateID:       r.FormValue("estate_id"),
		TimezoneOffset: tzOffset,
		AutoCreateTags: r.FormValue("auto_create_tags") == "true",
	}
	if fieldErrs, ok := dto.Ok(); !ok {
		_ = httpapi.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid import request", fieldErrs)
		return
	}
	estateID := uuid.MustParse(dto.EstateID)

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "missing workbook file", nil)
		return
	}
	defer file.Close()

	t, err := c.service.ImportCustomerXLSX(r.Context(), file, header.Filename, estateID, dto.TimezoneOffset, dto.AutoCreateTags)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, toTaskResponse(t))
}

func (c *TaskController) CreateBlacklistImport(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	if err := r.ParseMultipartForm(conf.MaxUploadSize); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "missing workbook file", nil)
		return
	}
	defer file.Close()

	t, err := c.service.ImportBlacklistXLSX(r.Context(), file, header.Filename)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, toTaskResponse(t))
}

func (c *TaskController) CreateCustomerExport(w http.ResponseWriter, r *http.Request) {
	var dto dtos.CreateExportDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if fieldErrs, ok := dto.Ok(); !ok {
		_ = httpapi.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid export request", fieldErrs)
		return
	}

	t, err := c.service.ExportCustomers(r.Context(), uuid.MustParse(dto.EstateID))
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, toTaskResponse(t))
}

func (c *TaskController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid task id", nil)
		return
	}
	status, err := c.service.GetByID(r.Context(), id)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toStatusResponse(status))
}

func (c *TaskController) List(w http.ResponseWriter, r *http.Request) {
	params := &task.FindParams{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			params.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			params.Offset = n
		}
	}
	for _, t := range r.URL.Query()["type"] {
		params.Types = append(params.Types, task.Type(t))
	}
	for _, s := range r.URL.Query()["state"] {
		params.States = append(params.States, task.State(s))
	}

	tasks, total, err := c.service.GetPaginated(r.Context(), params)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	items := make([]taskResponse, len(tasks))
	for n, t := range tasks {
		items[n] = toTaskResponse(t)
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (c *TaskController) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid task id", nil)
		return
	}
	var dto dtos.ResolveImportDTO
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
			return
		}
	}

	t, err := c.service.ApproveImport(r.Context(), id, dto.AllowMinorFormatErrors)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, toTaskResponse(t))
}

func (c *TaskController) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid task id", nil)
		return
	}
	t, err := c.service.RejectImport(r.Context(), id)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, toTaskResponse(t))
}

func (c *TaskController) writeServiceError(w http.ResponseWriter, err error) {
	var serr *serrors.Base
	switch {
	case errors.Is(err, task.ErrNotFound):
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "task not found", nil)
	case errors.Is(err, estate.ErrNotFound):
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "estate not found", nil)
	case errors.Is(err, services.ErrEmptyUpload):
		_ = httpapi.WriteError(w, http.StatusBadRequest, services.ErrEmptyUpload.Code, services.ErrEmptyUpload.Message, nil)
	case errors.As(err, &serr):
		_ = httpapi.WriteError(w, http.StatusConflict, serr.Code, serr.Message, nil)
	default:
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error", nil)
	}
}
