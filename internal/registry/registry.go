// Package registry хранит загруженные файлы в порядке добавления.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ryabkov82/table-merger/internal/parser"
	"github.com/ryabkov82/table-merger/internal/table"
)

var (
	ErrUnsupportedFileType = parser.ErrUnsupportedFileType
	ErrReadFailure         = errors.New("ошибка чтения файла")
)

// Status состояние записи реестра
type Status string

const (
	StatusLoaded Status = "loaded"
	StatusError  Status = "error"
)

// LoadedFile разобранный файл. Rows[0] содержит сырой заголовок.
type LoadedFile struct {
	ID            string
	Name          string
	SourcePath    string
	Kind          parser.Kind
	Rows          table.Dataset
	Columns       []string
	Status        Status
	Sheet         string
	IgnoredSheets []string
	Size          int64
	LoadedAt      time.Time
}

// RowCount количество строк данных без заголовка
func (f *LoadedFile) RowCount() int { return f.Rows.RowCount() }

func (f *LoadedFile) ColumnCount() int { return len(f.Columns) }

// FileError ошибка загрузки одного файла из пакета
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Name, e.Err) }

func (e FileError) Unwrap() error { return e.Err }

// BatchResult итог пакетной загрузки
type BatchResult struct {
	Added   []*LoadedFile
	Skipped []string
	Failed  []FileError
}

// DefaultReaders число параллельных чтений в AddBatch
const DefaultReaders = 4

// Registry не потокобезопасен: им владеет одна сессия.
type Registry struct {
	files      []*LoadedFile
	generation uint64
	readers    int
}

func New(readers int) *Registry {
	if readers < 1 {
		readers = DefaultReaders
	}
	return &Registry{readers: readers}
}

// Add читает, разбирает и добавляет один файл
func (r *Registry) Add(ctx context.Context, src Source) (*LoadedFile, error) {
	kind, err := parser.KindFromName(src.Name())
	if err != nil {
		return nil, err
	}
	data, err := src.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrReadFailure, src.Name(), err)
	}
	return r.insert(src, kind, data)
}

// AddBatch добавляет файлы независимо друг от друга: ошибка одного файла
// не мешает остальным. Файлы с неподдерживаемым расширением пропускаются.
func (r *Registry) AddBatch(ctx context.Context, srcs []Source) BatchResult {
	var res BatchResult

	type pending struct {
		src  Source
		kind parser.Kind
		data []byte
		err  error
	}

	queue := make([]*pending, 0, len(srcs))
	for _, src := range srcs {
		kind, err := parser.KindFromName(src.Name())
		if err != nil {
			log.Debug().Str("file", src.Name()).Msg("Пропуск файла с неподдерживаемым расширением")
			res.Skipped = append(res.Skipped, src.Name())
			continue
		}
		queue = append(queue, &pending{src: src, kind: kind})
	}

	var g errgroup.Group
	g.SetLimit(r.readers)
	for _, p := range queue {
		g.Go(func() error {
			p.data, p.err = p.src.ReadAll(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range queue {
		if p.err != nil {
			err := fmt.Errorf("%w: %w", ErrReadFailure, p.err)
			log.Warn().Err(p.err).Str("file", p.src.Name()).Msg("Не удалось прочитать файл")
			res.Failed = append(res.Failed, FileError{Name: p.src.Name(), Err: err})
			continue
		}
		lf, err := r.insert(p.src, p.kind, p.data)
		if err != nil {
			log.Warn().Err(err).Str("file", p.src.Name()).Msg("Не удалось разобрать файл")
			res.Failed = append(res.Failed, FileError{Name: p.src.Name(), Err: err})
			continue
		}
		res.Added = append(res.Added, lf)
	}

	return res
}

func (r *Registry) insert(src Source, kind parser.Kind, data []byte) (*LoadedFile, error) {
	parsed, err := parser.Parse(data, kind)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", src.Name(), err)
	}

	lf := &LoadedFile{
		ID:            uuid.NewString(),
		Name:          src.Name(),
		SourcePath:    src.Path(),
		Kind:          kind,
		Rows:          parsed.Rows,
		Columns:       parsed.Columns,
		Status:        StatusLoaded,
		Sheet:         parsed.Sheet,
		IgnoredSheets: parsed.IgnoredSheets,
		Size:          int64(len(data)),
		LoadedAt:      time.Now(),
	}
	r.files = append(r.files, lf)
	r.generation++

	log.Info().
		Str("file", lf.Name).
		Str("kind", kind.String()).
		Str("size", humanize.Bytes(uint64(lf.Size))).
		Int("rows", lf.RowCount()).
		Int("columns", lf.ColumnCount()).
		Msg("Файл загружен")
	return lf, nil
}

// Remove удаляет записи по позициям. Индексы обрабатываются от большего
// к меньшему; повторы и выход за границы игнорируются.
func (r *Registry) Remove(indices ...int) int {
	uniq := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(r.files) {
			uniq[i] = struct{}{}
		}
	}
	ordered := make([]int, 0, len(uniq))
	for i := range uniq {
		ordered = append(ordered, i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	for _, i := range ordered {
		log.Info().Str("file", r.files[i].Name).Int("index", i).Msg("Файл удалён")
		r.files = append(r.files[:i], r.files[i+1:]...)
	}
	if len(ordered) > 0 {
		r.generation++
	}
	return len(ordered)
}

// List возвращает копию списка файлов
func (r *Registry) List() []*LoadedFile {
	out := make([]*LoadedFile, len(r.files))
	copy(out, r.files)
	return out
}

// Loaded возвращает только файлы со статусом StatusLoaded
func (r *Registry) Loaded() []*LoadedFile {
	out := make([]*LoadedFile, 0, len(r.files))
	for _, f := range r.files {
		if f.Status == StatusLoaded {
			out = append(out, f)
		}
	}
	return out
}

func (r *Registry) Len() int { return len(r.files) }

// Generation меняется при каждом изменении набора файлов
func (r *Registry) Generation() uint64 { return r.generation }

// Clear удаляет все файлы
func (r *Registry) Clear() {
	if len(r.files) == 0 {
		return
	}
	r.files = nil
	r.generation++
}
