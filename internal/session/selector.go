package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ryabkov82/table-merger/internal/parser"
	"github.com/ryabkov82/table-merger/internal/registry"
)

// ErrDialogCancelled пользователь отменил выбор; это не ошибка
var ErrDialogCancelled = errors.New("выбор файлов отменён")

// Selector выбор входных файлов
type Selector interface {
	Select(ctx context.Context) ([]registry.Source, error)
}

// SelectorFunc адаптер функции к Selector
type SelectorFunc func(ctx context.Context) ([]registry.Source, error)

func (f SelectorFunc) Select(ctx context.Context) ([]registry.Source, error) { return f(ctx) }

// PathSelector явный список путей
type PathSelector []string

func (p PathSelector) Select(context.Context) ([]registry.Source, error) {
	if len(p) == 0 {
		return nil, ErrDialogCancelled
	}
	srcs := make([]registry.Source, len(p))
	for i, path := range p {
		srcs[i] = registry.PathSource(filepath.Clean(path))
	}
	return srcs, nil
}

// DirSelector обходит папку и выбирает файлы с поддерживаемыми расширениями
type DirSelector struct {
	Dir       string
	Recursive bool
}

func (d DirSelector) Select(ctx context.Context) ([]registry.Source, error) {
	info, err := os.Stat(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка доступа к папке %s: %w", d.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s не является папкой", d.Dir)
	}

	var srcs []registry.Source
	err = filepath.WalkDir(d.Dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Ошибка при обходе папки")
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if path != d.Dir && !d.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if parser.IsSupported(path) {
			srcs = append(srcs, registry.PathSource(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка при обходе папки: %w", err)
	}

	log.Info().Int("count", len(srcs)).Str("dir", d.Dir).Msg("Найдены файлы")
	return srcs, nil
}

// ReaderSelector читает пути построчно, пустые строки и комментарии '#'
// пропускаются
type ReaderSelector struct {
	R io.Reader
}

func (s ReaderSelector) Select(context.Context) ([]registry.Source, error) {
	var srcs []registry.Source
	sc := bufio.NewScanner(s.R)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		srcs = append(srcs, registry.PathSource(filepath.Clean(line)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения списка файлов: %w", err)
	}
	if len(srcs) == 0 {
		return nil, ErrDialogCancelled
	}
	return srcs, nil
}

// MultiSelector объединяет результаты нескольких селекторов. Отмена
// отдельного селектора не считается ошибкой, пока хотя бы один вернул файлы.
type MultiSelector []Selector

func (m MultiSelector) Select(ctx context.Context) ([]registry.Source, error) {
	var all []registry.Source
	for _, s := range m {
		srcs, err := s.Select(ctx)
		if errors.Is(err, ErrDialogCancelled) {
			continue
		}
		if err != nil {
			return nil, err
		}
		all = append(all, srcs...)
	}
	if len(all) == 0 {
		return nil, ErrDialogCancelled
	}
	return all, nil
}
