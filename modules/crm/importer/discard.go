package importer

import (
	"context"
	"fmt"

	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/bgtasks"
	"github.com/casavia/estate-crm/pkg/composables"
)

// HandleCustomerDiscard throws away a staged customer draft set and its error
// entries without touching the live collection. Deleting an already-empty set
// succeeds with zero counts, so discards are idempotent.
func (i *Importer) HandleCustomerDiscard(ctx context.Context, rec bgtasks.Record) (interface{}, error) {
	ctx = composables.WithTenantID(ctx, rec.TenantID)
	params, _, err := i.resolveDraftParams(ctx, rec)
	if err != nil {
		return nil, err
	}

	drafts, err := i.customers.DeleteDraftsByTask(ctx, params.ProcessedTaskID)
	if err != nil {
		return nil, err
	}
	errCount, err := i.errors.DeleteByTaskID(ctx, params.ProcessedTaskID)
	if err != nil {
		return nil, err
	}
	return task.DiscardResult{
		Message:          fmt.Sprintf("discarded %d drafts, %d errors", drafts, errCount),
		DraftDeleteCount: drafts,
		ErrorDeleteCount: errCount,
	}, nil
}

// HandleBlacklistDiscard is the blacklist counterpart of HandleCustomerDiscard.
func (i *Importer) HandleBlacklistDiscard(ctx context.Context, rec bgtasks.Record) (interface{}, error) {
	ctx = composables.WithTenantID(ctx, rec.TenantID)
	params, _, err := i.resolveDraftParams(ctx, rec)
	if err != nil {
		return nil, err
	}

	drafts, err := i.blacklist.DeleteDraftsByTask(ctx, params.ProcessedTaskID)
	if err != nil {
		return nil, err
	}
	errCount, err := i.errors.DeleteByTaskID(ctx, params.ProcessedTaskID)
	if err != nil {
		return nil, err
	}
	return task.DiscardResult{
		Message:          fmt.Sprintf("discarded %d drafts, %d errors", drafts, errCount),
		DraftDeleteCount: drafts,
		ErrorDeleteCount: errCount,
	}, nil
}
