// Package session связывает реестр файлов, поиск общих колонок,
// объединение и выгрузку в один сценарий пользователя.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ryabkov82/table-merger/internal/columns"
	"github.com/ryabkov82/table-merger/internal/export"
	"github.com/ryabkov82/table-merger/internal/merger"
	"github.com/ryabkov82/table-merger/internal/registry"
	"github.com/ryabkov82/table-merger/internal/table"
)

var (
	ErrSelectionInProgress = errors.New("выбор файлов уже выполняется")
	ErrNotAnalyzed         = errors.New("общие колонки ещё не определены")
	ErrNothingToMerge      = errors.New("нет загруженных файлов")
	ErrNothingToExport     = errors.New("нет объединённых данных")
)

// Options настройки сессии
type Options struct {
	Readers int
	Merge   merger.Options
	XLSX    export.XLSXOptions
	// Sink получатель выгрузок; по умолчанию запись в текущую папку
	Sink export.Sink
}

// Session состояние одного пользователя. Методы не потокобезопасны,
// кроме Select, который защищён от повторного входа.
type Session struct {
	registry *registry.Registry
	merger   merger.FileMerger
	xlsx     export.XLSXOptions
	sink     export.Sink
	now      func() time.Time

	shared      []string
	analyzed    bool
	analyzedGen uint64

	merged      table.Dataset
	mergedFiles int

	lastBatch  *registry.BatchResult
	lastExport *export.Destination

	selecting atomic.Bool
}

func New(opts Options) *Session {
	if opts.Sink == nil {
		opts.Sink = export.FileSink{}
	}
	if opts.XLSX.SheetName == "" {
		opts.XLSX = export.DefaultXLSXOptions()
	}
	return &Session{
		registry: registry.New(opts.Readers),
		merger:   merger.NewProjectionMerger(opts.Merge),
		xlsx:     opts.XLSX,
		sink:     opts.Sink,
		now:      time.Now,
	}
}

// Select выбирает файлы через primary; при ошибке, отличной от отмены,
// пробует fallback. Повторный вызов во время выбора отклоняется.
func (s *Session) Select(ctx context.Context, primary, fallback Selector) (registry.BatchResult, error) {
	if !s.selecting.CompareAndSwap(false, true) {
		return registry.BatchResult{}, ErrSelectionInProgress
	}
	defer s.selecting.Store(false)

	srcs, err := primary.Select(ctx)
	if err != nil && !errors.Is(err, ErrDialogCancelled) && fallback != nil {
		log.Warn().Err(err).Msg("Основной способ выбора файлов недоступен, используется запасной")
		srcs, err = fallback.Select(ctx)
	}
	if errors.Is(err, ErrDialogCancelled) {
		log.Debug().Msg("Выбор файлов отменён")
		return registry.BatchResult{}, nil
	}
	if err != nil {
		return registry.BatchResult{}, err
	}
	if len(srcs) == 0 {
		return registry.BatchResult{}, nil
	}

	return s.AddSources(ctx, srcs), nil
}

// AddSources загружает файлы в реестр
func (s *Session) AddSources(ctx context.Context, srcs []registry.Source) registry.BatchResult {
	res := s.registry.AddBatch(ctx, srcs)
	s.lastBatch = &res

	log.Info().
		Int("added", len(res.Added)).
		Int("skipped", len(res.Skipped)).
		Int("failed", len(res.Failed)).
		Int("total", s.registry.Len()).
		Msg("Загрузка файлов завершена")
	return res
}

// Files текущий список файлов
func (s *Session) Files() []*registry.LoadedFile { return s.registry.List() }

// Remove удаляет файлы по позициям и сбрасывает найденные общие колонки
func (s *Session) Remove(indices ...int) int {
	n := s.registry.Remove(indices...)
	if n > 0 {
		s.resetAnalysis()
	}
	return n
}

// Reset очищает реестр и все результаты
func (s *Session) Reset() {
	s.registry.Clear()
	s.resetAnalysis()
	s.merged = nil
	s.mergedFiles = 0
	s.lastBatch = nil
	s.lastExport = nil
	log.Info().Msg("Сессия сброшена")
}

func (s *Session) resetAnalysis() {
	s.shared = nil
	s.analyzed = false
}

// Analyze пересчитывает общие колонки по всем загруженным файлам
func (s *Session) Analyze() []string {
	files := s.registry.Loaded()
	sets := make([][]string, len(files))
	for i, f := range files {
		sets[i] = f.Columns
	}

	s.shared = columns.Intersect(sets...)
	s.analyzed = true
	s.analyzedGen = s.registry.Generation()

	log.Info().Int("files", len(files)).Strs("shared", s.shared).Msg("Анализ колонок завершён")
	return s.SharedColumns()
}

// SharedColumns копия последнего результата Analyze
func (s *Session) SharedColumns() []string {
	return append([]string(nil), s.shared...)
}

// Merge объединяет загруженные файлы по последнему найденному набору колонок
func (s *Session) Merge() (table.Dataset, error) {
	files := s.registry.Loaded()
	if len(files) == 0 {
		return nil, ErrNothingToMerge
	}
	if !s.analyzed {
		return nil, ErrNotAnalyzed
	}

	s.merged = s.merger.Merge(files, s.shared)
	s.mergedFiles = len(files)

	log.Info().
		Int("files", len(files)).
		Int("rows", s.merged.RowCount()).
		Int("columns", s.merged.ColumnCount()).
		Msg("Файлы объединены")
	return s.merged, nil
}

// Merged последний результат Merge
func (s *Session) Merged() table.Dataset { return s.merged }

// Export сериализует объединённые данные и отдаёт их получателю.
// Пустое name заменяется на имя по умолчанию с отметкой времени.
func (s *Session) Export(ctx context.Context, format export.Format, name string) (export.Destination, error) {
	if s.merged.IsEmpty() {
		return export.Destination{}, ErrNothingToExport
	}
	if name == "" {
		name = export.DefaultFileName(format, s.now())
	}

	data, err := export.Encode(s.merged, format, s.xlsx)
	if err != nil {
		return export.Destination{}, fmt.Errorf("ошибка формирования %s: %w", format, err)
	}

	dest, err := s.sink.Write(ctx, name, data)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Выгрузка не удалась")
		return export.Destination{}, err
	}
	s.lastExport = &dest
	return dest, nil
}

// Status счётчики для отображения пользователю
type Status struct {
	Files         int    `json:"files"`
	LoadedFiles   int    `json:"loaded_files"`
	Analyzed      bool   `json:"analyzed"`
	Stale         bool   `json:"stale"`
	SharedColumns int    `json:"shared_columns"`
	MergedFiles   int    `json:"merged_files"`
	MergedRows    int    `json:"merged_rows"`
	MergedColumns int    `json:"merged_columns"`
	LastAdded     int    `json:"last_added"`
	LastSkipped   int    `json:"last_skipped"`
	LastFailed    int    `json:"last_failed"`
	LastExport    string `json:"last_export,omitempty"`
}

func (s *Session) Status() Status {
	st := Status{
		Files:         s.registry.Len(),
		LoadedFiles:   len(s.registry.Loaded()),
		Analyzed:      s.analyzed,
		Stale:         s.analyzed && s.analyzedGen != s.registry.Generation(),
		SharedColumns: len(s.shared),
		MergedRows:    s.merged.RowCount(),
		MergedColumns: s.merged.ColumnCount(),
	}
	if !s.merged.IsEmpty() {
		st.MergedFiles = s.mergedFiles
	}
	if s.lastBatch != nil {
		st.LastAdded = len(s.lastBatch.Added)
		st.LastSkipped = len(s.lastBatch.Skipped)
		st.LastFailed = len(s.lastBatch.Failed)
	}
	if s.lastExport != nil {
		st.LastExport = s.lastExport.String()
	}
	return st
}
