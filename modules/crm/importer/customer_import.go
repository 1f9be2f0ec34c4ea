package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/casavia/estate-crm/modules/crm/domain/customer"
	"github.com/casavia/estate-crm/modules/crm/domain/district"
	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/bgtasks"
	"github.com/casavia/estate-crm/pkg/composables"
)

// HandleCustomerImport parses a customer workbook and stages every acceptable
// row as a draft owned by this task. Rows missing the key fields are rejected
// with a "missing" error; rows with repairable problems are staged dirty.
func (i *Importer) HandleCustomerImport(ctx context.Context, rec bgtasks.Record) (interface{}, error) {
	var params task.ImportCustomerXLSXParams
	if err := decodeParams(rec, &params); err != nil {
		return nil, err
	}
	ctx = composables.WithTenantID(ctx, rec.TenantID)

	if _, err := i.estates.GetByID(ctx, params.EstateID); err != nil {
		if errors.Is(err, estate.ErrNotFound) {
			return nil, bgtasks.Permanent(err)
		}
		return nil, err
	}

	sheet, err := ReadSheet(params.FSPath)
	if err != nil {
		return nil, bgtasks.Permanent(errors.Wrapf(err, "read %s", params.OriginalFileName))
	}
	cols := columnMap(sheet.Headers, customerHeaderToField)

	districts, err := i.districts.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	resolver := district.NewResolver(districts)
	tagResolver, err := NewTagResolver(ctx, i.tags, rec.TenantID, params.AutoCreateTags)
	if err != nil {
		return nil, err
	}

	// A retried attempt restarts from the file, so drop whatever a previous
	// attempt staged under this task before staging again.
	if rec.Trial > 1 {
		if _, err := i.customers.DeleteDraftsByTask(ctx, rec.ID); err != nil {
			return nil, err
		}
		if _, err := i.errors.DeleteByTaskID(ctx, rec.ID); err != nil {
			return nil, err
		}
	}

	st := newStaging(ctx, i.batchSize, i.customers.CreateDrafts, i.errors.CreateMany)
	now := time.Now().UTC()
	for idx, row := range sheet.Rows {
		if rowEmpty(row) {
			continue
		}
		line := idx + 2
		draft, rowErrs, staged, err := i.mapCustomerRow(ctx, rec, params, resolver, tagResolver, cols, row, line, now)
		if err != nil {
			return nil, err
		}
		if err := st.add(draft, rowErrs, staged); err != nil {
			return nil, err
		}
	}
	if err := st.flush(); err != nil {
		return nil, err
	}

	return task.ImportResult{
		Message:     fmt.Sprintf("staged %d rows from %s, %d errors", st.staged, params.OriginalFileName, st.errorCount),
		ImportCount: st.staged,
		ErrorCount:  st.errorCount,
	}, nil
}

// mapCustomerRow converts one spreadsheet row into a draft plus its error
// entries. staged is false when a key field is missing or malformed, in which
// case the draft is discarded and only the errors survive.
func (i *Importer) mapCustomerRow(
	ctx context.Context,
	rec bgtasks.Record,
	params task.ImportCustomerXLSXParams,
	resolver *district.Resolver,
	tagResolver *TagResolver,
	cols map[int]string,
	row []string,
	line int,
	now time.Time,
) (customer.Draft, []importerror.Entry, bool, error) {
	c := customer.Customer{
		ID:        uuid.New(),
		TenantID:  rec.TenantID,
		EstateID:  params.EstateID,
		InfoDate:  now,
		CreatedAt: now,
		UpdatedAt: now,
		CreatorID: rec.CreatorID,
		UpdaterID: rec.CreatorID,
	}

	var rowErrs []importerror.Entry
	record := func(field, value string, kind importerror.Kind) {
		rowErrs = append(rowErrs, importerror.Entry{
			TenantID:     rec.TenantID,
			InsertTaskID: rec.ID,
			LineNumber:   line,
			FieldName:    field,
			FieldHeader:  customerFieldToHeader[field],
			FieldValue:   value,
			Kind:         kind,
		})
	}

	var rawL1, rawL2 string
	for col, field := range cols {
		value := cellAt(row, col)
		switch field {
		case "name":
			c.Name = value
		case "title_pronoun":
			c.TitlePronoun = value
		case "phone":
			c.Phone = NormalizePhone(value)
		case "email":
			c.Email = value
		case "room_layouts":
			valid, invalid := filterLayouts(splitList(value))
			c.RoomLayouts = valid
			for _, v := range invalid {
				record(field, v, importerror.KindInvalidValue)
			}
		case "room_sizes":
			if value == "" {
				continue
			}
			ranges, ok := ParseSizeRanges(value)
			if !ok {
				record(field, value, importerror.KindFormat)
				continue
			}
			c.RoomSizes = ranges
		case "customer_tags":
			for _, name := range splitList(value) {
				id, ok, err := tagResolver.Resolve(ctx, name)
				if err != nil {
					return customer.Draft{}, nil, false, err
				}
				if !ok {
					record(field, name, importerror.KindInvalidValue)
					continue
				}
				c.CustomerTags = append(c.CustomerTags, id)
			}
		case "info_date":
			c.InfoDate = ParseInfoDate(value, params.TimezoneOffset, now)
		case "l1_district":
			rawL1 = value
		case "l2_district":
			rawL2 = value
		}
	}

	if rawL1 != "" {
		l1, ok := resolver.ResolveL1(rawL1)
		if !ok {
			record("l1_district", rawL1, importerror.KindInvalidValue)
			rawL2 = ""
		} else {
			c.L1District = l1
			if rawL2 != "" {
				l2, ok := resolver.ResolveL2(rawL1, rawL2)
				if !ok {
					record("l2_district", rawL2, importerror.KindInvalidValue)
				} else {
					c.L2District = l2
				}
			}
		}
	}

	staged := true
	if c.Phone == "" {
		record("phone", "", importerror.KindMissing)
		staged = false
	}
	if c.Name == "" {
		record("name", "", importerror.KindMissing)
		staged = false
	}
	if !staged {
		return customer.Draft{}, rowErrs, false, nil
	}

	for _, fe := range c.Validate() {
		record(fe.Field, c.FieldValue(fe.Field), fe.Kind)
		if fe.Field == "phone" {
			staged = false
			continue
		}
		c.ClearField(fe.Field)
	}
	if !staged {
		return customer.Draft{}, rowErrs, false, nil
	}

	c.Arrange()
	return customer.Draft{
		Customer:     c,
		InsertTaskID: rec.ID,
		Dirty:        len(rowErrs) > 0,
	}, rowErrs, true, nil
}
