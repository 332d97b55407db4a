package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/ryabkov82/table-merger/internal/export"
	"github.com/ryabkov82/table-merger/internal/registry"
	"github.com/ryabkov82/table-merger/internal/session"
)

type fileView struct {
	Index         int       `json:"index"`
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Kind          string    `json:"kind"`
	Rows          int       `json:"rows"`
	Columns       []string  `json:"columns"`
	Status        string    `json:"status"`
	Sheet         string    `json:"sheet,omitempty"`
	IgnoredSheets []string  `json:"ignored_sheets,omitempty"`
	Size          string    `json:"size"`
	LoadedAt      time.Time `json:"loaded_at"`
}

func newFileView(i int, f *registry.LoadedFile) fileView {
	return fileView{
		Index:         i,
		ID:            f.ID,
		Name:          f.Name,
		Kind:          f.Kind.String(),
		Rows:          f.RowCount(),
		Columns:       f.Columns,
		Status:        string(f.Status),
		Sheet:         f.Sheet,
		IgnoredSheets: f.IgnoredSheets,
		Size:          humanize.Bytes(uint64(f.Size)),
		LoadedAt:      f.LoadedAt,
	}
}

type failedView struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type batchView struct {
	Added   []fileView   `json:"added"`
	Skipped []string     `json:"skipped"`
	Failed  []failedView `json:"failed"`
}

type statusView struct {
	session.Status
	Downloads int `json:"downloads"`
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := statusView{Status: s.sess.Status()}
	if s.downloads != nil {
		view.Downloads = s.downloads.Len()
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleReset(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sess.Reset()
	c.JSON(http.StatusOK, s.sess.Status())
}

func (s *Server) handleListFiles(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := s.sess.Files()
	out := make([]fileView, len(files))
	for i, f := range files {
		out[i] = newFileView(i, f)
	}
	c.JSON(http.StatusOK, gin.H{"files": out, "count": len(out)})
}

func (s *Server) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ожидается multipart-форма с полем files"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "файлы не переданы"})
		return
	}

	srcs := make([]registry.Source, len(headers))
	for i, h := range headers {
		srcs[i] = newUploadSource(h)
	}
	c.JSON(http.StatusOK, s.addSources(c.Request.Context(), srcs))
}

func (s *Server) addSources(ctx context.Context, srcs []registry.Source) batchView {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.sess.Files())
	res := s.sess.AddSources(ctx, srcs)

	view := batchView{
		Added:   make([]fileView, len(res.Added)),
		Skipped: res.Skipped,
		Failed:  make([]failedView, len(res.Failed)),
	}
	if view.Skipped == nil {
		view.Skipped = []string{}
	}
	for i, f := range res.Added {
		view.Added[i] = newFileView(before+i, f)
	}
	for i, fe := range res.Failed {
		view.Failed[i] = failedView{Name: fe.Name, Error: fe.Err.Error()}
	}
	return view
}

// uploadSource часть multipart-формы. Открывается при чтении, поэтому
// ошибка одной части попадает в BatchResult.Failed, а не прерывает загрузку.
type uploadSource struct {
	name string
	open func() (multipart.File, error)
}

func newUploadSource(h *multipart.FileHeader) uploadSource {
	return uploadSource{name: filepath.Base(h.Filename), open: h.Open}
}

func (u uploadSource) Name() string { return u.name }

func (u uploadSource) Path() string { return "" }

func (u uploadSource) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := u.open()
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия %s: %w", u.name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", u.name, err)
	}
	return data, nil
}

type removeRequest struct {
	Indices []int `json:"indices" binding:"required"`
}

func (s *Server) handleRemove(c *gin.Context) {
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ожидается {\"indices\": [...]}"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.sess.Remove(req.Indices...)
	c.JSON(http.StatusOK, gin.H{"removed": n, "files": len(s.sess.Files())})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shared := s.sess.Analyze()
	c.JSON(http.StatusOK, gin.H{"shared_columns": shared, "count": len(shared)})
}

func (s *Server) handleMerge(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := s.sess.Merge()
	switch {
	case errors.Is(err, session.ErrNothingToMerge), errors.Is(err, session.ErrNotAnalyzed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	header := make([]string, 0, merged.ColumnCount())
	for _, v := range merged.Header() {
		header = append(header, v.String())
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":    merged.RowCount(),
		"columns": merged.ColumnCount(),
		"header":  header,
	})
}

// DefaultPreviewRows строк в ответе /api/merged без параметра limit
const DefaultPreviewRows = 50

func (s *Server) handlePreview(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPreviewRows)))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit должен быть неотрицательным числом"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.sess.Merged()
	if merged.IsEmpty() {
		c.JSON(http.StatusConflict, gin.H{"error": session.ErrNothingToExport.Error()})
		return
	}

	rows := merged.StringRows()
	end := min(len(rows), limit+1)
	c.JSON(http.StatusOK, gin.H{
		"header": rows[0],
		"rows":   rows[1:end],
		"total":  merged.RowCount(),
	})
}

func (s *Server) handleExport(c *gin.Context) {
	format := s.format
	if q := c.Query("format"); q != "" {
		f, err := export.ParseFormat(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		format = f
	}
	var name string
	if q := c.Query("name"); q != "" {
		name = filepath.Base(q)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dest, err := s.sess.Export(c.Request.Context(), format, name)
	switch {
	case errors.Is(err, session.ErrNothingToExport):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"format":   format,
		"size":     humanize.Bytes(uint64(dest.Size)),
		"fallback": dest.Fallback,
	}
	if dest.Token != "" {
		resp["download_url"] = "/api/downloads/" + dest.Token
		resp["name"] = dest.Path
	} else {
		resp["path"] = dest.Path
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDownload(c *gin.Context) {
	if s.downloads == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "выгрузка не найдена"})
		return
	}
	dl, ok := s.downloads.Get(c.Param("token"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "выгрузка не найдена или устарела"})
		return
	}

	contentType := "application/octet-stream"
	if f, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(dl.Name), ".")); err == nil {
		contentType = f.ContentType()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Name))
	c.Data(http.StatusOK, contentType, dl.Data)
}

func (s *Server) handleDeleteDownload(c *gin.Context) {
	if s.downloads == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "выгрузка не найдена"})
		return
	}
	token := c.Param("token")
	if _, ok := s.downloads.Get(token); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "выгрузка не найдена или устарела"})
		return
	}
	s.downloads.Delete(token)
	c.Status(http.StatusNoContent)
}
