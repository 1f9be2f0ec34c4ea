package task

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateFailed  State = "failed"
	StateSuccess State = "success"
)

// Terminal reports whether no further transitions may occur.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateSuccess
}

type Type string

const (
	TypeImportCustomerXLSXToDraft   Type = "import_customer_xlsx_to_draft"
	TypeImportCustomerDraftToLive   Type = "import_customer_draft_to_live"
	TypeDiscardCustomerImportDraft  Type = "discard_customer_xlsx_import_draft"
	TypeImportBlacklistXLSXToDraft  Type = "import_customer_blacklist_xlsx_to_draft"
	TypeImportBlacklistDraftToLive  Type = "import_customer_blacklist_draft_to_live"
	TypeDiscardBlacklistImportDraft Type = "discard_customer_blacklist_xlsx_import_draft"
	TypeExportCustomerXLSX          Type = "export_customer_xlsx"
)

// DraftImportTypes are the task types that stage drafts and collect import
// errors; their status reads carry an error preview.
func (t Type) IsDraftImport() bool {
	return t == TypeImportCustomerXLSXToDraft || t == TypeImportBlacklistXLSXToDraft
}

var ErrNotFound = errors.New("task not found")

type Task struct {
	id             uuid.UUID
	tenantID       uuid.UUID
	taskType       Type
	state          State
	creatorID      uuid.UUID
	trial          int
	params         json.RawMessage
	result         json.RawMessage
	importedToLive bool
	createdAt      time.Time
	runAt          *time.Time
	finishedAt     *time.Time
	runnerID       string
}

// New builds a pending task with marshalled params. The id is assigned here so
// callers can hand it to the client before the runner ever sees the row.
func New(tenantID, creatorID uuid.UUID, taskType Type, params interface{}) (Task, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Task{}, errors.Wrap(err, "marshal task params")
	}
	return Task{
		id:        uuid.New(),
		tenantID:  tenantID,
		taskType:  taskType,
		state:     StatePending,
		creatorID: creatorID,
		trial:     0,
		params:    raw,
		createdAt: time.Now().UTC(),
	}, nil
}

func Hydrate(
	id uuid.UUID,
	tenantID uuid.UUID,
	taskType Type,
	state State,
	creatorID uuid.UUID,
	trial int,
	params json.RawMessage,
	result json.RawMessage,
	importedToLive bool,
	createdAt time.Time,
	runAt *time.Time,
	finishedAt *time.Time,
	runnerID string,
) Task {
	return Task{
		id:             id,
		tenantID:       tenantID,
		taskType:       taskType,
		state:          state,
		creatorID:      creatorID,
		trial:          trial,
		params:         params,
		result:         result,
		importedToLive: importedToLive,
		createdAt:      createdAt,
		runAt:          runAt,
		finishedAt:     finishedAt,
		runnerID:       runnerID,
	}
}

func (t Task) ID() uuid.UUID            { return t.id }
func (t Task) TenantID() uuid.UUID      { return t.tenantID }
func (t Task) Type() Type               { return t.taskType }
func (t Task) State() State             { return t.state }
func (t Task) CreatorID() uuid.UUID     { return t.creatorID }
func (t Task) Trial() int               { return t.trial }
func (t Task) Params() json.RawMessage  { return t.params }
func (t Task) Result() json.RawMessage  { return t.result }
func (t Task) ImportedToLive() bool     { return t.importedToLive }
func (t Task) CreatedAt() time.Time     { return t.createdAt }
func (t Task) RunAt() *time.Time        { return t.runAt }
func (t Task) FinishedAt() *time.Time   { return t.finishedAt }
func (t Task) RunnerID() string         { return t.runnerID }
func (t Task) IsZero() bool             { return t.id == uuid.Nil }

// DecodeParams unmarshals the stored params into a typed parameter struct.
func (t Task) DecodeParams(dst interface{}) error {
	if err := json.Unmarshal(t.params, dst); err != nil {
		return errors.Wrapf(err, "decode %s params", t.taskType)
	}
	return nil
}
