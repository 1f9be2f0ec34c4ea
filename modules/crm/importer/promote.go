package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/casavia/estate-crm/modules/crm/domain/blacklist"
	"github.com/casavia/estate-crm/modules/crm/domain/customer"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/bgtasks"
	"github.com/casavia/estate-crm/pkg/composables"
)

// HandleCustomerPromote moves a staged draft set into the live collection.
// Clean drafts always promote; dirty ones only when the request allows minor
// format errors. Promotion upserts by natural key, so re-running after a
// partial failure converges instead of duplicating.
func (i *Importer) HandleCustomerPromote(ctx context.Context, rec bgtasks.Record) (interface{}, error) {
	ctx = composables.WithTenantID(ctx, rec.TenantID)
	params, processed, err := i.resolveDraftParams(ctx, rec)
	if err != nil {
		return nil, err
	}

	total := 0
	for {
		drafts, err := i.customers.FindDrafts(ctx, params.ProcessedTaskID, params.AllowMinorFormatErrors, i.batchSize)
		if err != nil {
			return nil, err
		}
		if len(drafts) == 0 {
			break
		}
		records := make([]customer.Customer, len(drafts))
		ids := make([]uuid.UUID, len(drafts))
		for n, d := range drafts {
			records[n] = d.Customer
			ids[n] = d.ID
		}
		if err := i.customers.UpsertLive(ctx, records); err != nil {
			return nil, err
		}
		if err := i.customers.DeleteDraftsByIDs(ctx, ids); err != nil {
			return nil, err
		}
		total += len(drafts)
	}

	// Whatever did not qualify for promotion is spent now, along with the
	// error entries of the originating import.
	if _, err := i.customers.DeleteDraftsByTask(ctx, params.ProcessedTaskID); err != nil {
		return nil, err
	}
	if _, err := i.errors.DeleteByTaskID(ctx, params.ProcessedTaskID); err != nil {
		return nil, err
	}
	if err := i.tasks.MarkImportedToLive(ctx, processed.ID()); err != nil {
		return nil, err
	}

	return task.PromoteResult{
		Message:     fmt.Sprintf("promoted %d drafts to live", total),
		ImportCount: total,
	}, nil
}

// HandleBlacklistPromote is the blacklist counterpart of HandleCustomerPromote.
func (i *Importer) HandleBlacklistPromote(ctx context.Context, rec bgtasks.Record) (interface{}, error) {
	ctx = composables.WithTenantID(ctx, rec.TenantID)
	params, processed, err := i.resolveDraftParams(ctx, rec)
	if err != nil {
		return nil, err
	}

	total := 0
	for {
		drafts, err := i.blacklist.FindDrafts(ctx, params.ProcessedTaskID, params.AllowMinorFormatErrors, i.batchSize)
		if err != nil {
			return nil, err
		}
		if len(drafts) == 0 {
			break
		}
		entries := make([]blacklist.Entry, len(drafts))
		ids := make([]uuid.UUID, len(drafts))
		for n, d := range drafts {
			entries[n] = d.Entry
			ids[n] = d.ID
		}
		if err := i.blacklist.UpsertLive(ctx, entries); err != nil {
			return nil, err
		}
		if err := i.blacklist.DeleteDraftsByIDs(ctx, ids); err != nil {
			return nil, err
		}
		total += len(drafts)
	}

	if _, err := i.blacklist.DeleteDraftsByTask(ctx, params.ProcessedTaskID); err != nil {
		return nil, err
	}
	if _, err := i.errors.DeleteByTaskID(ctx, params.ProcessedTaskID); err != nil {
		return nil, err
	}
	if err := i.tasks.MarkImportedToLive(ctx, processed.ID()); err != nil {
		return nil, err
	}

	return task.PromoteResult{
		Message:     fmt.Sprintf("promoted %d drafts to live", total),
		ImportCount: total,
	}, nil
}
