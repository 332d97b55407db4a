package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrWriteFailure выгрузку не удалось доставить ни одним способом
var ErrWriteFailure = errors.New("ошибка записи результата")

// Destination куда попал результат: файл на диске или токен загрузки
type Destination struct {
	Path     string
	Token    string
	Size     int64
	Fallback bool
}

func (d Destination) String() string {
	if d.Token != "" {
		return "download:" + d.Token
	}
	return d.Path
}

// Sink получатель сериализованной выгрузки
type Sink interface {
	Write(ctx context.Context, name string, data []byte) (Destination, error)
}

// FileSink пишет на диск. Относительные имена разрешаются от Dir.
type FileSink struct {
	Dir string
	// Flat отбрасывает путь из имени и пишет файл прямо в Dir
	Flat bool
}

func (s FileSink) Write(ctx context.Context, name string, data []byte) (Destination, error) {
	if err := ctx.Err(); err != nil {
		return Destination{}, err
	}

	path := name
	if s.Flat {
		path = filepath.Base(path)
	}
	if !filepath.IsAbs(path) && s.Dir != "" {
		path = filepath.Join(s.Dir, path)
	}
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Destination{}, fmt.Errorf("ошибка создания папки %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Destination{}, fmt.Errorf("ошибка сохранения файла %s: %w", path, err)
	}

	log.Info().Str("path", path).Str("size", humanize.Bytes(uint64(len(data)))).Msg("Результат сохранён")
	return Destination{Path: path, Size: int64(len(data))}, nil
}

// Download выгрузка, доступная по токену
type Download struct {
	Name      string
	Data      []byte
	expiresAt time.Time
}

// DownloadStore хранит выгрузки в памяти ограниченное время. Используется
// как запасной путь, когда записать файл на диск не удалось.
type DownloadStore struct {
	mu    sync.Mutex
	items map[string]Download
	ttl   time.Duration
	now   func() time.Time
}

func NewDownloadStore(ttl time.Duration) *DownloadStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DownloadStore{
		items: make(map[string]Download),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *DownloadStore) Write(ctx context.Context, name string, data []byte) (Destination, error) {
	if err := ctx.Err(); err != nil {
		return Destination{}, err
	}
	token := s.Put(filepath.Base(name), data)
	log.Info().Str("token", token).Str("size", humanize.Bytes(uint64(len(data)))).Msg("Результат доступен для загрузки")
	return Destination{Path: filepath.Base(name), Token: token, Size: int64(len(data))}, nil
}

// Put сохраняет данные и возвращает токен
func (s *DownloadStore) Put(name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeExpiredLocked(now)

	token := uuid.NewString()
	s.items[token] = Download{
		Name:      name,
		Data:      data,
		expiresAt: now.Add(s.ttl),
	}
	return token
}

func (s *DownloadStore) Get(token string) (Download, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(s.now())

	d, ok := s.items[token]
	return d, ok
}

func (s *DownloadStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
}

func (s *DownloadStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *DownloadStore) purgeExpiredLocked(now time.Time) {
	for k, v := range s.items {
		if now.After(v.expiresAt) {
			delete(s.items, k)
		}
	}
}

// FallbackSink пробует Primary, при ошибке Secondary
type FallbackSink struct {
	Primary   Sink
	Secondary Sink
}

func (s FallbackSink) Write(ctx context.Context, name string, data []byte) (Destination, error) {
	dest, err := s.Primary.Write(ctx, name, data)
	if err == nil {
		return dest, nil
	}
	if s.Secondary == nil {
		return Destination{}, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	log.Warn().Err(err).Str("name", name).Msg("Не удалось записать файл, используется запасной способ")
	dest, fbErr := s.Secondary.Write(ctx, name, data)
	if fbErr != nil {
		return Destination{}, fmt.Errorf("%w: %w", ErrWriteFailure, errors.Join(err, fbErr))
	}
	dest.Fallback = true
	return dest, nil
}
