package importer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/casavia/estate-crm/modules/crm/domain/customer"
	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/modules/crm/domain/tag"
)

// NormalizePhone canonicalizes a Taiwanese phone number to its international
// digit form. Every non-digit rune is dropped first, so values like
// "0912-345-678" normalize the same as "0912345678".
//
//	0912345678  -> 886912345678
//	912345678   -> 886912345678
//
// Anything else is returned digits-only as-is and left to schema validation.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "09"):
		return "886" + digits[1:]
	case len(digits) == 9 && strings.HasPrefix(digits, "9"):
		return "886" + digits
	}
	return digits
}

// splitList splits a multi-value cell on the separators users actually type.
func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，' || r == ';' || r == '；' || r == '、' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// filterLayouts keeps the values that belong to the room layout enum and
// returns the rejects separately so the caller can report them.
func filterLayouts(values []string) (valid, invalid []string) {
	for _, v := range values {
		if estate.ValidLayout(v) {
			valid = append(valid, v)
		} else {
			invalid = append(invalid, v)
		}
	}
	return valid, invalid
}

// ParseSizeRanges parses a cell like "20-30, 40" into size ranges. A bare
// number is a degenerate range. Returns ok=false when any fragment fails to
// parse, in which case the whole cell is rejected.
func ParseSizeRanges(raw string) ([]customer.SizeRange, bool) {
	parts := splitList(raw)
	out := make([]customer.SizeRange, 0, len(parts))
	for _, part := range parts {
		lo, hi, ok := parseSizeRange(part)
		if !ok {
			return nil, false
		}
		out = append(out, customer.SizeRange{SizeMin: lo, SizeMax: hi})
	}
	return out, true
}

func parseSizeRange(part string) (float64, float64, bool) {
	for _, sep := range []string{"-", "~", "～"} {
		if lo, hi, found := strings.Cut(part, sep); found {
			min, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
			max, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
			if err1 != nil || err2 != nil {
				return 0, 0, false
			}
			return min, max, true
		}
	}
	n, err := strconv.ParseFloat(part, 64)
	if err != nil {
		return 0, 0, false
	}
	return n, n, true
}

// dateLayouts covers the cell renderings excelize produces for native date
// cells plus the plain-text forms users type.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/06",
	"1-2-06",
	"01/02/2006",
}

// ParseInfoDate interprets a date cell. The workbook stores wall-clock values
// with no zone, so tzOffset (minutes east of UTC) anchors them. Cells that are
// empty or not recognizable as dates fall back to now.
func ParseInfoDate(raw string, tzOffset int, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	loc := time.FixedZone("", tzOffset*60)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC()
		}
	}
	return now
}

// TagResolver maps tag names to ids for one tenant. The name index is loaded
// once per task and extended in place when autoCreate inserts a new tag, so
// later rows in the same file see tags created by earlier rows.
type TagResolver struct {
	repo       tag.Repository
	tenantID   uuid.UUID
	autoCreate bool
	byName     map[string]uuid.UUID
}

func NewTagResolver(ctx context.Context, repo tag.Repository, tenantID uuid.UUID, autoCreate bool) (*TagResolver, error) {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]uuid.UUID, len(existing))
	for _, t := range existing {
		byName[t.Name()] = t.ID()
	}
	return &TagResolver{repo: repo, tenantID: tenantID, autoCreate: autoCreate, byName: byName}, nil
}

// Resolve returns the id for name. ok is false when the tag does not exist
// and auto-creation is off; the caller records the value as invalid.
func (r *TagResolver) Resolve(ctx context.Context, name string) (uuid.UUID, bool, error) {
	if id, ok := r.byName[name]; ok {
		return id, true, nil
	}
	if !r.autoCreate {
		return uuid.Nil, false, nil
	}
	created, err := r.repo.Create(ctx, tag.New(r.tenantID, name))
	if err != nil {
		return uuid.Nil, false, err
	}
	r.byName[created.Name()] = created.ID()
	return created.ID(), true, nil
}
