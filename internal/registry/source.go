package registry

import (
	"context"
	"os"
	"path/filepath"
)

// Source источник байтов загружаемого файла
type Source interface {
	// Name имя файла с расширением, по нему определяется формат
	Name() string
	// Path путь на диске; пустой для загруженных в память файлов
	Path() string
	ReadAll(ctx context.Context) ([]byte, error)
}

// PathSource файл на диске
type PathSource string

func (p PathSource) Name() string { return filepath.Base(string(p)) }

func (p PathSource) Path() string { return string(p) }

func (p PathSource) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(string(p))
}

// BlobSource содержимое, уже находящееся в памяти (например, загрузка по HTTP)
type BlobSource struct {
	FileName string
	Data     []byte
}

func (b BlobSource) Name() string { return b.FileName }

func (b BlobSource) Path() string { return "" }

func (b BlobSource) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Data, nil
}
