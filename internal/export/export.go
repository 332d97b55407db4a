// Package export сериализует объединённую таблицу в CSV или XLSX и
// доставляет результат получателю.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/ryabkov82/table-merger/internal/table"
)

// Format формат выгрузки
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat принимает csv, xlsx и excel без учёта регистра
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("неизвестный формат выгрузки: %q", s)
	}
}

func (f Format) Extension() string { return string(f) }

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Encode сериализует таблицу в заданный формат
func Encode(d table.Dataset, format Format, opts XLSXOptions) ([]byte, error) {
	switch format {
	case FormatCSV:
		return CSV(d), nil
	case FormatXLSX:
		return XLSX(d, opts)
	default:
		return nil, fmt.Errorf("неизвестный формат выгрузки: %q", format)
	}
}

// DefaultFileName merged_data_<UTC время до секунд, ':' заменены на '-'>.<ext>
func DefaultFileName(format Format, now time.Time) string {
	return fmt.Sprintf("merged_data_%s.%s", now.UTC().Format("2006-01-02T15-04-05"), format.Extension())
}
