// Package columns приводит имена колонок к единому виду и ищет колонки,
// общие для всех загруженных файлов.
package columns

import (
	"strings"
	"unicode"

	"github.com/ryabkov82/table-merger/internal/table"
)

// Unnamed имя для пустого или полностью вычищенного заголовка
const Unnamed = "Unnamed_Column"

// Clean нормализует сырое значение ячейки заголовка.
// Пустые значения (в том числе 0 и false) дают Unnamed.
func Clean(v table.Scalar) string {
	if v.Falsy() {
		return Unnamed
	}
	return CleanString(v.String())
}

// CleanString: trim, схлопывание пробелов, удаление всего кроме букв,
// цифр, '_', '-' и пробелов, затем пробелы -> '_'.
func CleanString(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '_', r == '-', unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		default:
			return -1
		}
	}, s)
	if s == "" {
		return Unnamed
	}
	return s
}

// CleanRow нормализует строку заголовка целиком
func CleanRow(header []table.Scalar) []string {
	out := make([]string, len(header))
	for i, v := range header {
		out[i] = Clean(v)
	}
	return out
}
