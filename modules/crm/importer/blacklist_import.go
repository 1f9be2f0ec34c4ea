package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/casavia/estate-crm/modules/crm/domain/blacklist"
	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/bgtasks"
	"github.com/casavia/estate-crm/pkg/composables"
)

// HandleBlacklistImport parses a blacklist workbook and stages its rows as
// drafts. The blacklist schema is just (name, phone); phone is the key field.
func (i *Importer) HandleBlacklistImport(ctx context.Context, rec bgtasks.Record) (interface{}, error) {
	var params task.ImportBlacklistXLSXParams
	if err := decodeParams(rec, &params); err != nil {
		return nil, err
	}
	ctx = composables.WithTenantID(ctx, rec.TenantID)

	sheet, err := ReadSheet(params.FSPath)
	if err != nil {
		return nil, bgtasks.Permanent(errors.Wrapf(err, "read %s", params.OriginalFileName))
	}
	cols := columnMap(sheet.Headers, blacklistHeaderToField)

	if rec.Trial > 1 {
		if _, err := i.blacklist.DeleteDraftsByTask(ctx, rec.ID); err != nil {
			return nil, err
		}
		if _, err := i.errors.DeleteByTaskID(ctx, rec.ID); err != nil {
			return nil, err
		}
	}

	st := newStaging(ctx, i.batchSize, i.blacklist.CreateDrafts, i.errors.CreateMany)
	now := time.Now().UTC()
	for idx, row := range sheet.Rows {
		if rowEmpty(row) {
			continue
		}
		line := idx + 2
		draft, rowErrs, staged := mapBlacklistRow(rec, cols, row, line, now)
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

func mapBlacklistRow(rec bgtasks.Record, cols map[int]string, row []string, line int, now time.Time) (blacklist.Draft, []importerror.Entry, bool) {
	e := blacklist.Entry{
		ID:        uuid.New(),
		TenantID:  rec.TenantID,
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
			FieldHeader:  blacklistFieldToHeader[field],
			FieldValue:   value,
			Kind:         kind,
		})
	}

	for col, field := range cols {
		value := cellAt(row, col)
		switch field {
		case "name":
			e.Name = value
		case "phone":
			e.Phone = NormalizePhone(value)
		}
	}

	if e.Phone == "" {
		record("phone", "", importerror.KindMissing)
		return blacklist.Draft{}, rowErrs, false
	}
	for _, fe := range e.Validate() {
		record(fe.Field, e.FieldValue(fe.Field), fe.Kind)
		if fe.Field == "phone" {
			return blacklist.Draft{}, rowErrs, false
		}
	}

	return blacklist.Draft{
		Entry:        e,
		InsertTaskID: rec.ID,
		Dirty:        len(rowErrs) > 0,
	}, rowErrs, true
}
