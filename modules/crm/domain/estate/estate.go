package estate

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("estate not found")

// RoomLayouts is the fixed enumeration of valid layout codes as they appear in
// spreadsheets and filters.
var RoomLayouts = []string{"套房", "1房", "2房", "3房", "4房", "5房以上"}

// ValidLayout reports enum membership.
func ValidLayout(code string) bool {
	for _, l := range RoomLayouts {
		if l == code {
			return true
		}
	}
	return false
}

// Estate is a listed property development customers are attached to.
type Estate struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Address     string
	L1District  string
	L2District  string
	RoomLayouts []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Estate, error)
}
