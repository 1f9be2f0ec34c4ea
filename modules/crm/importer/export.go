package importer

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/casavia/estate-crm/modules/crm/domain/customer"
	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/bgtasks"
	"github.com/casavia/estate-crm/pkg/composables"
)

// HandleCustomerExport renders the live customers of one estate into a
// workbook at the requested path. Customers whose phone is blacklisted are
// left out.
func (i *Importer) HandleCustomerExport(ctx context.Context, rec bgtasks.Record) (interface{}, error) {
	var params task.ExportCustomerXLSXParams
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
	blocked, err := i.blacklist.AllPhones(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(customerExportFields))
	for n, field := range customerExportFields {
		header[n] = customerFieldToHeader[field]
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, bgtasks.Permanent(err)
	}

	line := 1
	err = i.customers.ForEachLive(ctx, params.EstateID, func(c customer.Customer) error {
		if _, ok := blocked[c.Phone]; ok {
			return nil
		}
		line++
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		row := []interface{}{c.Name, c.TitlePronoun, c.Phone, c.Email, c.L1District, c.L2District}
		return f.SetSheetRow(sheet, cell, &row)
	})
	if err != nil {
		return nil, err
	}

	if err := f.SaveAs(params.FSPath); err != nil {
		return nil, errors.Wrap(err, "save workbook")
	}

	exported := line - 1
	return task.ExportResult{
		Message:     fmt.Sprintf("exported %d customers", exported),
		ExportCount: exported,
	}, nil
}
