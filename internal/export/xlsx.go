// Package export формирует выгрузку всех заказов в виде XLSX-файла.
package export

import (
	"fmt"
	"time"

	"github.com/mmeshcher/preorder-system/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	ordersSheet = "Orders"
	itemsSheet  = "Items"
)

var ordersHeader = []string{"ID", "Date", "Customer", "Delivery", "Address", "Total", "Status"}

var itemsHeader = []string{"Order ID", "Design", "Size", "Quantity", "Price per unit", "Line total"}

// Workbook возвращает XLSX-файл с двумя листами: сводка заказов и
// развёрнутые позиции. Выгрузка — производная проекция, только для чтения.
func Workbook(orders []model.Order) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", ordersSheet)
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("create items sheet: %w", err)
	}

	if err := writeRow(f, ordersSheet, 1, toCells(ordersHeader)); err != nil {
		return nil, err
	}
	if err := writeRow(f, itemsSheet, 1, toCells(itemsHeader)); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, o := range orders {
		delivery := "ship"
		if o.IsPickup {
			delivery = "pickup"
		}

		row := []interface{}{
			o.ID,
			o.CreatedAt.Format(time.RFC3339),
			o.Name,
			delivery,
			o.Address,
			o.TotalPrice,
			string(o.Status),
		}
		if err := writeRow(f, ordersSheet, i+2, row); err != nil {
			return nil, err
		}

		for _, it := range o.Items {
			line := []interface{}{
				o.ID,
				it.Design,
				string(it.Size),
				it.Quantity,
				it.PricePerUnit,
				it.PricePerUnit * int64(it.Quantity),
			}
			if err := writeRow(f, itemsSheet, itemRow, line); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename возвращает имя файла выгрузки для указанной даты.
func Filename(now time.Time) string {
	return fmt.Sprintf("orders_export_%s.xlsx", now.Format("2006-01-02"))
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}

func toCells(header []string) []interface{} {
	res := make([]interface{}, len(header))
	for i, h := range header {
		res[i] = h
	}
	return res
}
