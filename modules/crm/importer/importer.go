package importer

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/casavia/estate-crm/modules/crm/domain/blacklist"
	"github.com/casavia/estate-crm/modules/crm/domain/customer"
	"github.com/casavia/estate-crm/modules/crm/domain/district"
	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
	"github.com/casavia/estate-crm/modules/crm/domain/tag"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/bgtasks"
)

// BatchSize bounds every bulk write against the draft and live collections.
const BatchSize = 200

// Importer owns the spreadsheet import/export pipeline: it parses workbooks,
// stages drafts, promotes or discards them and renders exports. One instance
// serves all tenants; the tenant of each run comes from the claimed record.
type Importer struct {
	tasks     task.Repository
	customers customer.Repository
	blacklist blacklist.Repository
	errors    importerror.Repository
	tags      tag.Repository
	districts district.Repository
	estates   estate.Repository
	batchSize int
}

func New(
	tasks task.Repository,
	customers customer.Repository,
	bl blacklist.Repository,
	errs importerror.Repository,
	tags tag.Repository,
	districts district.Repository,
	estates estate.Repository,
) *Importer {
	return &Importer{
		tasks:     tasks,
		customers: customers,
		blacklist: bl,
		errors:    errs,
		tags:      tags,
		districts: districts,
		estates:   estates,
		batchSize: BatchSize,
	}
}

// RegisterHandlers binds every task type this pipeline serves.
func (i *Importer) RegisterHandlers(r *bgtasks.Runner) {
	r.Register(string(task.TypeImportCustomerXLSXToDraft), i.HandleCustomerImport)
	r.Register(string(task.TypeImportCustomerDraftToLive), i.HandleCustomerPromote)
	r.Register(string(task.TypeDiscardCustomerImportDraft), i.HandleCustomerDiscard)
	r.Register(string(task.TypeImportBlacklistXLSXToDraft), i.HandleBlacklistImport)
	r.Register(string(task.TypeImportBlacklistDraftToLive), i.HandleBlacklistPromote)
	r.Register(string(task.TypeDiscardBlacklistImportDraft), i.HandleBlacklistDiscard)
	r.Register(string(task.TypeExportCustomerXLSX), i.HandleCustomerExport)
}

// resolveDraftParams decodes and checks the params shared by the promote and
// discard handlers. A reference to a missing or non-import task never heals,
// so those fail permanently.
func (i *Importer) resolveDraftParams(ctx context.Context, rec bgtasks.Record) (task.ResolveDraftParams, task.Task, error) {
	var params task.ResolveDraftParams
	if err := decodeParams(rec, &params); err != nil {
		return params, task.Task{}, err
	}
	processed, err := i.tasks.GetByID(ctx, params.ProcessedTaskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return params, task.Task{}, bgtasks.Permanent(err)
		}
		return params, task.Task{}, err
	}
	if !processed.Type().IsDraftImport() {
		return params, task.Task{}, bgtasks.Permanent(errors.Errorf("task %s is not a draft import", processed.ID()))
	}
	return params, processed, nil
}

// decodeParams unmarshals the stored params; garbage params never heal on
// retry.
func decodeParams(rec bgtasks.Record, dst interface{}) error {
	if err := json.Unmarshal(rec.Params, dst); err != nil {
		return bgtasks.Permanent(errors.Wrapf(err, "decode %s params", rec.Type))
	}
	return nil
}
