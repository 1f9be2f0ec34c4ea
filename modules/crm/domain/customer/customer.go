package customer

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
)

// SizeRange is a floor-area requirement in ping. A single value is stored as a
// degenerate range with min == max.
type SizeRange struct {
	SizeMin float64 `json:"size_min"`
	SizeMax float64 `json:"size_max"`
}

// Customer is one lead/contact attached to an estate listing. Live rows are
// uniquely keyed by (tenant, estate, phone).
type Customer struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	EstateID     uuid.UUID
	Name         string
	TitlePronoun string
	Phone        string
	Email        string
	RoomLayouts  []string
	RoomSizes    []SizeRange
	InfoDate     time.Time
	L1District   string
	L2District   string
	CustomerTags []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatorID    uuid.UUID
	UpdaterID    uuid.UUID
}

// Draft is a staged customer awaiting promotion. Schema-identical to Customer
// plus the owning import task and the dirty marker.
type Draft struct {
	Customer
	InsertTaskID uuid.UUID
	Dirty        bool
}

// FieldError pairs a canonical field name with the violation kind, mirroring
// the import error entry shape.
type FieldError struct {
	Field string
	Kind  importerror.Kind
}

var phonePattern = regexp.MustCompile(`^\d{6,15}$`)

// emailPattern is intentionally loose; it rejects obvious garbage, not RFC
// corner cases.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidPhone reports whether p looks like a normalized all-digit phone number.
func ValidPhone(p string) bool {
	return phonePattern.MatchString(p)
}

// ValidEmail accepts the empty string; email is optional on import.
func ValidEmail(e string) bool {
	return e == "" || emailPattern.MatchString(e)
}

// Validate checks the record against the live schema and returns one entry per
// violating field. Layout-enum membership is checked during header mapping and
// deliberately not re-checked here.
func (c Customer) Validate() []FieldError {
	var out []FieldError
	if !ValidPhone(c.Phone) {
		out = append(out, FieldError{Field: "phone", Kind: importerror.KindFormat})
	}
	if !ValidEmail(c.Email) {
		out = append(out, FieldError{Field: "email", Kind: importerror.KindFormat})
	}
	for _, r := range c.RoomSizes {
		if r.SizeMin > r.SizeMax {
			out = append(out, FieldError{Field: "room_sizes", Kind: importerror.KindFormat})
			break
		}
	}
	return out
}

// FieldValue returns the literal display value of a canonical field, used when
// recording import errors.
func (c Customer) FieldValue(field string) string {
	switch field {
	case "name":
		return c.Name
	case "title_pronoun":
		return c.TitlePronoun
	case "phone":
		return c.Phone
	case "email":
		return c.Email
	case "room_layouts":
		return strings.Join(c.RoomLayouts, ",")
	case "l1_district":
		return c.L1District
	case "l2_district":
		return c.L2District
	default:
		return ""
	}
}

// ClearField zeroes a non-key field that failed validation so the row can
// still be staged.
func (c *Customer) ClearField(field string) {
	switch field {
	case "email":
		c.Email = ""
	case "room_layouts":
		c.RoomLayouts = nil
	case "room_sizes":
		c.RoomSizes = nil
	case "l1_district":
		c.L1District = ""
	case "l2_district":
		c.L2District = ""
	}
}

// Arrange sorts the multi-value fields so equal records compare equal
// regardless of input order.
func (c *Customer) Arrange() {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	sort.Strings(c.RoomLayouts)
	sort.Slice(c.CustomerTags, func(i, j int) bool {
		return c.CustomerTags[i].String() < c.CustomerTags[j].String()
	})
}
