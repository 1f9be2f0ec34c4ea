package blacklist

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/casavia/estate-crm/modules/crm/domain/customer"
	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
)

var ErrNotFound = errors.New("blacklist entry not found")

// Entry is one blocked contact. Live rows are uniquely keyed by (tenant, phone).
type Entry struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatorID uuid.UUID
	UpdaterID uuid.UUID
}

// Draft is a staged blacklist entry awaiting promotion.
type Draft struct {
	Entry
	InsertTaskID uuid.UUID
	Dirty        bool
}

// Validate mirrors the live schema: the phone must be a normalized digit
// string; the name is free-form.
func (e Entry) Validate() []customer.FieldError {
	var out []customer.FieldError
	if !customer.ValidPhone(e.Phone) {
		out = append(out, customer.FieldError{Field: "phone", Kind: importerror.KindFormat})
	}
	return out
}

func (e Entry) FieldValue(field string) string {
	switch field {
	case "name":
		return e.Name
	case "phone":
		return e.Phone
	default:
		return ""
	}
}

type Repository interface {
	CreateDrafts(ctx context.Context, drafts []Draft) error
	FindDrafts(ctx context.Context, taskID uuid.UUID, includeDirty bool, limit int) ([]Draft, error)
	DeleteDraftsByIDs(ctx context.Context, ids []uuid.UUID) error
	DeleteDraftsByTask(ctx context.Context, taskID uuid.UUID) (int64, error)
	// UpsertLive replaces-or-inserts by phone.
	UpsertLive(ctx context.Context, entries []Entry) error
	// AllPhones returns every blacklisted phone for the tenant, used to filter
	// exports.
	AllPhones(ctx context.Context) (map[string]struct{}, error)
}
