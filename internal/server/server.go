// Package server отдаёт сессию объединения таблиц по HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ryabkov82/table-merger/internal/export"
	"github.com/ryabkov82/table-merger/internal/session"
)

// MaxUploadMemory предел памяти под multipart-загрузку, остальное уходит во временные файлы
const MaxUploadMemory = 32 << 20

type Options struct {
	Addr          string
	DefaultFormat export.Format
}

// Server одна сессия на процесс. Обработчики выполняются по очереди.
type Server struct {
	mu        sync.Mutex
	sess      *session.Session
	downloads *export.DownloadStore
	format    export.Format
	router    *gin.Engine
	addr      string
}

func New(sess *session.Session, downloads *export.DownloadStore, opts Options) *Server {
	if opts.DefaultFormat == "" {
		opts.DefaultFormat = export.FormatXLSX
	}
	s := &Server{
		sess:      sess,
		downloads: downloads,
		format:    opts.DefaultFormat,
		addr:      opts.Addr,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = MaxUploadMemory
	r.Use(gin.Recovery(), requestLogger())

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/files", s.handleListFiles)
	api.POST("/files", s.handleUpload)
	api.DELETE("/files", s.handleRemove)
	api.POST("/analyze", s.handleAnalyze)
	api.DELETE("/session", s.handleReset)
	api.POST("/merge", s.handleMerge)
	api.GET("/merged", s.handlePreview)
	api.POST("/export", s.handleExport)
	api.GET("/downloads/:token", s.handleDownload)
	api.DELETE("/downloads/:token", s.handleDeleteDownload)
	return r
}

// Handler для тестов и встраивания
func (s *Server) Handler() http.Handler { return s.router }

// Run слушает Addr до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("HTTP-сервер запущен")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("Остановка HTTP-сервера")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP-запрос")
	}
}
