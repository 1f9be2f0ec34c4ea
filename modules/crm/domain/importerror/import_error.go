package importerror

import (
	"context"

	"github.com/google/uuid"
)

// Kind classifies one field-level import failure.
type Kind string

const (
	// KindMissing marks a required field that was absent; the row is not staged.
	KindMissing Kind = "missing"
	// KindFormat marks a schema-shape violation; the row is staged dirty.
	KindFormat Kind = "format_error"
	// KindInvalidValue marks a value outside an allowed set or an unresolvable
	// reference; the row is staged dirty.
	KindInvalidValue Kind = "invalid_value"
)

// Entry is one field-level validation failure captured during a draft import.
type Entry struct {
	TenantID     uuid.UUID
	InsertTaskID uuid.UUID
	// 1-based spreadsheet row, header row excluded from the data but counted
	// in the numbering (first data row is line 2).
	LineNumber  int
	FieldName   string
	FieldHeader string
	FieldValue  string
	Kind        Kind
}

type Repository interface {
	CreateMany(ctx context.Context, entries []Entry) error
	FindByTaskID(ctx context.Context, taskID uuid.UUID, limit int) ([]Entry, error)
	DeleteByTaskID(ctx context.Context, taskID uuid.UUID) (int64, error)
	CountByTaskID(ctx context.Context, taskID uuid.UUID) (int64, error)
}
