package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/ryabkov82/table-merger/internal/columns"
	"github.com/ryabkov82/table-merger/internal/table"
)

// ParseSpreadsheet читает только первый лист книги. Остальные листы
// перечисляются в Result.IgnoredSheets.
func ParseSpreadsheet(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия книги: %w", err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, ErrEmptyInput
	}
	sheet := sheetList[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения строк листа %s: %w", sheet, err)
	}
	defer rows.Close()

	var out table.Dataset
	rowNum := 0
	for rows.Next() {
		rowNum++
		values, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки %d: %w", rowNum, err)
		}

		row := make([]table.Scalar, len(values))
		empty := true
		for i, raw := range values {
			cellRef, _ := excelize.CoordinatesToCellName(i+1, rowNum)
			valType, _ := f.GetCellType(sheet, cellRef)
			row[i] = cellScalar(valType, raw)
			if !row[i].IsEmpty() {
				empty = false
			}
		}

		// пустые строки до заголовка не считаются частью таблицы
		if empty && len(out) == 0 {
			continue
		}
		out = append(out, row)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("ошибка чтения листа %s: %w", sheet, err)
	}

	if len(out) == 0 {
		return nil, ErrEmptyInput
	}

	res := &Result{
		Rows:    out,
		Columns: columns.CleanRow(out[0]),
		Sheet:   sheet,
	}
	if len(sheetList) > 1 {
		res.IgnoredSheets = append([]string(nil), sheetList[1:]...)
		log.Warn().
			Str("sheet", sheet).
			Strs("ignored", res.IgnoredSheets).
			Msg("Книга содержит несколько листов, используется только первый")
	}
	return res, nil
}

func cellScalar(valType excelize.CellType, raw string) table.Scalar {
	if raw == "" {
		return table.Empty()
	}
	switch valType {
	case excelize.CellTypeBool:
		return table.Bool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return table.Number(n)
		}
	}
	return table.String(raw)
}
