package parser

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ryabkov82/table-merger/internal/columns"
	"github.com/ryabkov82/table-merger/internal/table"
)

// ParseCSV разбирает CSV построчно. Пустые строки пропускаются, все
// значения остаются строками.
func ParseCSV(data []byte) (*Result, error) {
	text, err := decodeUTF8(data)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(text, "\n")
	rows := make(table.Dataset, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, table.Strings(SplitLine(line)...))
	}

	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	return &Result{
		Rows:    rows,
		Columns: columns.CleanRow(rows[0]),
	}, nil
}

// SplitLine делит строку по запятым вне кавычек. Кавычка только
// переключает состояние и в значение не попадает; поля обрезаются.
func SplitLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}

// decodeUTF8 снимает BOM, битые последовательности заменяются на U+FFFD
func decodeUTF8(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("ошибка декодирования UTF-8: %w", err)
	}
	return string(out), nil
}
