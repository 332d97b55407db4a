// Package parser читает CSV и XLSX в единую модель: строка заголовка плюс
// строки данных.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ryabkov82/table-merger/internal/table"
)

var (
	// ErrEmptyInput файл не содержит ни одной строки
	ErrEmptyInput = errors.New("файл не содержит данных")
	// ErrUnsupportedFileType расширение не входит в csv, xlsx, xls
	ErrUnsupportedFileType = errors.New("неподдерживаемый тип файла")
)

// Kind формат входного файла
type Kind int

const (
	KindCSV Kind = iota + 1
	KindSpreadsheet
)

func (k Kind) String() string {
	switch k {
	case KindCSV:
		return "csv"
	case KindSpreadsheet:
		return "excel"
	default:
		return "unknown"
	}
}

// SupportedExtensions расширения без точки, в нижнем регистре
var SupportedExtensions = map[string]Kind{
	"csv":  KindCSV,
	"xlsx": KindSpreadsheet,
	"xls":  KindSpreadsheet,
}

// Result разобранный файл. Rows[0] сырой заголовок, Columns его
// нормализованная версия той же длины.
type Result struct {
	Rows    table.Dataset
	Columns []string
	// Sheet и IgnoredSheets заполняются только для книг
	Sheet         string
	IgnoredSheets []string
}

// KindFromName определяет формат по расширению имени файла
func KindFromName(name string) (Kind, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	kind, ok := SupportedExtensions[ext]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
	return kind, nil
}

// IsSupported проверяет расширение без разбора файла
func IsSupported(name string) bool {
	_, err := KindFromName(name)
	return err == nil
}

// Parse разбирает содержимое файла указанного формата
func Parse(data []byte, kind Kind) (*Result, error) {
	switch kind {
	case KindCSV:
		return ParseCSV(data)
	case KindSpreadsheet:
		return ParseSpreadsheet(data)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFileType, kind)
	}
}
