package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryabkov82/table-merger/internal/export"
	"github.com/ryabkov82/table-merger/internal/merger"
	"github.com/ryabkov82/table-merger/internal/registry"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func newSession(t *testing.T, outDir string) *Session {
	t.Helper()
	s := New(Options{Readers: 2, Sink: export.FileSink{Dir: outDir}})
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC) }
	return s
}

func TestEndToEnd(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.csv":     "Name,Age,City\nAlice,30,NYC\n",
		"b.csv":     "Name,City,Zip\nBob,LA,90001\n",
		"notes.txt": "ignored",
	})
	out := t.TempDir()
	s := newSession(t, out)
	ctx := context.Background()

	res, err := s.Select(ctx, PathSelector{
		filepath.Join(dir, "a.csv"),
		filepath.Join(dir, "b.csv"),
		filepath.Join(dir, "notes.txt"),
	}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	assert.Equal(t, []string{"notes.txt"}, res.Skipped)

	assert.Equal(t, []string{"City", "Name"}, s.Analyze())

	merged, err := s.Merge()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"City", "Name"}, {"NYC", "Alice"}, {"LA", "Bob"}}, merged.StringRows())

	dest, err := s.Export(ctx, export.FormatCSV, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "merged_data_2024-05-01T10-20-30.csv"), dest.Path)

	data, err := os.ReadFile(dest.Path)
	require.NoError(t, err)
	assert.Equal(t, "\"City\",\"Name\"\n\"NYC\",\"Alice\"\n\"LA\",\"Bob\"", string(data))

	st := s.Status()
	assert.Equal(t, Status{
		Files:         2,
		LoadedFiles:   2,
		Analyzed:      true,
		SharedColumns: 2,
		MergedFiles:   2,
		MergedRows:    2,
		MergedColumns: 2,
		LastAdded:     2,
		LastSkipped:   1,
		LastExport:    dest.Path,
	}, st)
}

func TestExportXLSXNamed(t *testing.T) {
	out := t.TempDir()
	s := newSession(t, out)
	ctx := context.Background()

	s.AddSources(ctx, []registry.Source{
		registry.BlobSource{FileName: "a.csv", Data: []byte("k,v\n1,2")},
	})
	s.Analyze()
	_, err := s.Merge()
	require.NoError(t, err)

	dest, err := s.Export(ctx, export.FormatXLSX, "result.xlsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "result.xlsx"), dest.Path)
	info, err := os.Stat(dest.Path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRemoveResetsAnalysis(t *testing.T) {
	s := newSession(t, t.TempDir())
	ctx := context.Background()
	s.AddSources(ctx, []registry.Source{
		registry.BlobSource{FileName: "a.csv", Data: []byte("x,y\n1,2")},
		registry.BlobSource{FileName: "b.csv", Data: []byte("y,z\n3,4")},
	})

	assert.Equal(t, []string{"y"}, s.Analyze())
	assert.True(t, s.Status().Analyzed)

	assert.Equal(t, 1, s.Remove(1))
	assert.Empty(t, s.SharedColumns())
	st := s.Status()
	assert.False(t, st.Analyzed)
	assert.False(t, st.Stale)
	assert.Equal(t, 0, st.SharedColumns)

	_, err := s.Merge()
	assert.ErrorIs(t, err, ErrNotAnalyzed)

	assert.Equal(t, []string{"x", "y"}, s.Analyze())
}

func TestReset(t *testing.T) {
	s := newSession(t, t.TempDir())
	s.AddSources(context.Background(), []registry.Source{
		registry.BlobSource{FileName: "a.csv", Data: []byte("k\n1")},
	})
	s.Analyze()
	_, err := s.Merge()
	require.NoError(t, err)
	require.False(t, s.Merged().IsEmpty())

	s.Reset()
	assert.Empty(t, s.Files())
	assert.True(t, s.Merged().IsEmpty())
	assert.Equal(t, Status{}, s.Status())

	_, err = s.Export(context.Background(), export.FormatCSV, "")
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestAddMarksAnalysisStale(t *testing.T) {
	s := newSession(t, t.TempDir())
	ctx := context.Background()
	s.AddSources(ctx, []registry.Source{registry.BlobSource{FileName: "a.csv", Data: []byte("x\n1")}})
	s.Analyze()
	assert.False(t, s.Status().Stale)

	s.AddSources(ctx, []registry.Source{registry.BlobSource{FileName: "b.csv", Data: []byte("y\n1")}})
	assert.True(t, s.Status().Stale)
	assert.Equal(t, []string{"x"}, s.SharedColumns())

	s.Analyze()
	assert.False(t, s.Status().Stale)
	assert.Empty(t, s.SharedColumns())
}

func TestMergeAndExportPreconditions(t *testing.T) {
	s := newSession(t, t.TempDir())

	_, err := s.Merge()
	assert.ErrorIs(t, err, ErrNothingToMerge)

	_, err = s.Export(context.Background(), export.FormatCSV, "")
	assert.ErrorIs(t, err, ErrNothingToExport)

	assert.Empty(t, s.Analyze())
}

func TestMergeWithSourceFileColumn(t *testing.T) {
	s := New(Options{Merge: merger.Options{AddSourceFile: true}})
	s.AddSources(context.Background(), []registry.Source{
		registry.BlobSource{FileName: "a.csv", Data: []byte("k\n1")},
	})
	s.Analyze()
	merged, err := s.Merge()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"k", merger.SourceFileColumn}, {"1", "a.csv"}}, merged.StringRows())
}

func TestExportFallsBackToDownloadStore(t *testing.T) {
	blocked := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))

	store := export.NewDownloadStore(time.Minute)
	s := New(Options{Sink: export.FallbackSink{Primary: export.FileSink{Dir: blocked}, Secondary: store}})
	s.AddSources(context.Background(), []registry.Source{
		registry.BlobSource{FileName: "a.csv", Data: []byte("k\n1")},
	})
	s.Analyze()
	_, err := s.Merge()
	require.NoError(t, err)

	dest, err := s.Export(context.Background(), export.FormatCSV, "out.csv")
	require.NoError(t, err)
	assert.True(t, dest.Fallback)

	dl, ok := store.Get(dest.Token)
	require.True(t, ok)
	assert.Equal(t, "\"k\"\n\"1\"", string(dl.Data))
	assert.True(t, strings.HasPrefix(s.Status().LastExport, "download:"))
}

func TestSelectCancelledIsNoop(t *testing.T) {
	s := newSession(t, t.TempDir())
	cancelled := SelectorFunc(func(context.Context) ([]registry.Source, error) {
		return nil, ErrDialogCancelled
	})
	fallbackCalled := false
	fallback := SelectorFunc(func(context.Context) ([]registry.Source, error) {
		fallbackCalled = true
		return nil, nil
	})

	res, err := s.Select(context.Background(), cancelled, fallback)
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.False(t, fallbackCalled)
	assert.Equal(t, 0, s.Status().Files)
}

func TestSelectFallback(t *testing.T) {
	s := newSession(t, t.TempDir())
	broken := SelectorFunc(func(context.Context) ([]registry.Source, error) {
		return nil, errors.New("dialog backend crashed")
	})
	fallback := SelectorFunc(func(context.Context) ([]registry.Source, error) {
		return []registry.Source{registry.BlobSource{FileName: "a.csv", Data: []byte("k\n1")}}, nil
	})

	res, err := s.Select(context.Background(), broken, fallback)
	require.NoError(t, err)
	assert.Len(t, res.Added, 1)

	_, err = s.Select(context.Background(), broken, nil)
	assert.Error(t, err)
}

func TestSelectReentrancyGuard(t *testing.T) {
	s := newSession(t, t.TempDir())
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := SelectorFunc(func(context.Context) ([]registry.Source, error) {
		close(entered)
		<-release
		return nil, ErrDialogCancelled
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.Select(ctx, slow, nil)
		done <- err
	}()

	<-entered
	_, err := s.Select(ctx, PathSelector{"x.csv"}, nil)
	assert.ErrorIs(t, err, ErrSelectionInProgress)

	close(release)
	require.NoError(t, <-done)

	failing := SelectorFunc(func(context.Context) ([]registry.Source, error) {
		return nil, errors.New("boom")
	})
	_, err = s.Select(ctx, failing, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSelectionInProgress)

	_, err = s.Select(ctx, PathSelector(nil), nil)
	assert.NoError(t, err)
}
