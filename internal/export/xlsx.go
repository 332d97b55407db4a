package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ryabkov82/table-merger/internal/table"
)

const (
	DefaultSheetName  = "Merged Data"
	DefaultSampleRows = 1000

	minColWidth = 8
	maxColWidth = 80
)

// XLSXOptions настройки выгрузки в книгу
type XLSXOptions struct {
	SheetName string
	// SampleRows количество строк, по которым подбирается ширина колонок
	SampleRows int
	BoldHeader bool
}

func DefaultXLSXOptions() XLSXOptions {
	return XLSXOptions{
		SheetName:  DefaultSheetName,
		SampleRows: DefaultSampleRows,
		BoldHeader: true,
	}
}

// XLSX пишет таблицу на единственный лист через StreamWriter
func XLSX(d table.Dataset, opts XLSXOptions) ([]byte, error) {
	if opts.SheetName == "" {
		opts.SheetName = DefaultSheetName
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = DefaultSampleRows
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), opts.SheetName); err != nil {
		return nil, fmt.Errorf("ошибка переименования листа: %v", err)
	}

	sw, err := f.NewStreamWriter(opts.SheetName)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания StreamWriter: %v", err)
	}

	// ширину колонок можно задать только до первой записанной строки
	for col, width := range columnWidths(d, opts.SampleRows) {
		if err := sw.SetColWidth(col+1, col+1, width); err != nil {
			return nil, fmt.Errorf("ошибка установки ширины колонки %d: %v", col+1, err)
		}
	}

	headerStyle := 0
	if opts.BoldHeader {
		headerStyle, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("ошибка создания стиля заголовка: %v", err)
		}
	}

	for i, row := range d {
		rowData := make([]interface{}, len(row))
		for j, cell := range row {
			if i == 0 && headerStyle != 0 {
				rowData[j] = excelize.Cell{Value: cellValue(cell), StyleID: headerStyle}
				continue
			}
			rowData[j] = cellValue(cell)
		}

		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := sw.SetRow(cellRef, rowData); err != nil {
			return nil, fmt.Errorf("ошибка записи строки %d: %v", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("ошибка финального flush: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения книги: %v", err)
	}
	return buf.Bytes(), nil
}

// cellValue значение для StreamWriter; nil даёт пустую ячейку
func cellValue(v table.Scalar) interface{} {
	switch v.Kind() {
	case table.KindNumber:
		n, _ := v.Num()
		return n
	case table.KindBool:
		b, _ := v.BoolValue()
		return b
	case table.KindString:
		return v.String()
	default:
		return nil
	}
}

// columnWidths оценивает ширину колонок по первым sample строкам
func columnWidths(d table.Dataset, sample int) []float64 {
	maxLen := make(map[int]int)
	cols := 0
	for i, row := range d {
		if i > sample {
			break
		}
		if len(row) > cols {
			cols = len(row)
		}
		for j, cell := range row {
			if n := utf8.RuneCountInString(cell.String()); n > maxLen[j] {
				maxLen[j] = n
			}
		}
	}

	widths := make([]float64, cols)
	for j := range widths {
		w := maxLen[j] + 2
		if w < minColWidth {
			w = minColWidth
		}
		if w > maxColWidth {
			w = maxColWidth
		}
		widths[j] = float64(w)
	}
	return widths
}
