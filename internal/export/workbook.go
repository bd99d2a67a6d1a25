// Package export writes capability matrices to an xlsx workbook, one sheet
// per customer.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/permafrost-io/groupctl/internal/iam"
)

// maxSheetName is the xlsx format's sheet name limit.
const maxSheetName = 31

// ErrorHeader and ErrorMessage make up the single-cell sheet rendered for a
// customer whose group fetch failed.
const (
	ErrorHeader  = "Error"
	ErrorMessage = "Failed to fetch groups"
)

// WriteWorkbook writes one sheet per customer, in the given order. A nil
// table marks a failed fetch and renders as an error sheet instead of
// aborting the export.
func WriteWorkbook(path string, customers []string, tables map[string]*iam.Table) error {
	if len(customers) == 0 {
		return fmt.Errorf("export: no customers to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, customer := range customers {
		sheet := SheetName(customer)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("export: rename sheet for %s: %w", customer, err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("export: create sheet for %s: %w", customer, err)
			}
		}

		table := tables[customer]
		if table == nil {
			table = &iam.Table{Columns: []string{ErrorHeader}, Rows: [][]string{{ErrorMessage}}}
		}
		if err := writeTable(f, sheet, table); err != nil {
			return fmt.Errorf("export: write sheet for %s: %w", customer, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save workbook: %w", err)
	}
	return nil
}

// SheetName truncates a customer name to the xlsx sheet name limit.
func SheetName(customer string) string {
	if len(customer) > maxSheetName {
		return customer[:maxSheetName]
	}
	return customer
}

func writeTable(f *excelize.File, sheet string, table *iam.Table) error {
	header := toAny(table.Columns)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := toAny(row)
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}
	return nil
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
