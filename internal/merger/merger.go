// Package merger собирает строки всех файлов в одну таблицу по списку общих
// колонок.
package merger

import (
	"github.com/ryabkov82/table-merger/internal/registry"
	"github.com/ryabkov82/table-merger/internal/table"
)

// SourceFileColumn имя дополнительной колонки с именем исходного файла
const SourceFileColumn = "SourceFile"

type FileMerger interface {
	Merge(files []*registry.LoadedFile, shared []string) table.Dataset
}

// Options настройки объединения
type Options struct {
	// AddSourceFile добавляет колонку с именем файла, из которого взята строка
	AddSourceFile bool
}

// ProjectionMerger переносит значения каждой строки на порядок общих колонок
type ProjectionMerger struct {
	Options
}

func NewProjectionMerger(opts Options) FileMerger {
	return &ProjectionMerger{Options: opts}
}

// Merge: строка 0 равна shared, далее строки данных файлов в порядке реестра.
// Пропускаются файлы не в статусе loaded и файлы без строк.
func (pm *ProjectionMerger) Merge(files []*registry.LoadedFile, shared []string) table.Dataset {
	if len(files) == 0 {
		return table.Dataset{}
	}

	headers := append([]string(nil), shared...)
	if pm.AddSourceFile {
		headers = append(headers, SourceFileColumn)
	}

	merged := table.Dataset{table.Strings(headers...)}
	for _, f := range files {
		if f.Status != registry.StatusLoaded || len(f.Rows) == 0 {
			continue
		}

		positions := columnPositions(f.Columns, shared)
		for _, row := range f.Rows[1:] {
			out := make([]table.Scalar, len(headers))
			for i, pos := range positions {
				if pos >= 0 && pos < len(row) {
					out[i] = row[pos]
				}
			}
			if pm.AddSourceFile {
				out[len(shared)] = table.String(f.Name)
			}
			merged = append(merged, out)
		}
	}

	return merged
}

// columnPositions: для каждого имени из shared первая позиция в cols или -1
func columnPositions(cols, shared []string) []int {
	first := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, ok := first[c]; !ok {
			first[c] = i
		}
	}
	positions := make([]int, len(shared))
	for i, name := range shared {
		pos, ok := first[name]
		if !ok {
			pos = -1
		}
		positions[i] = pos
	}
	return positions
}
