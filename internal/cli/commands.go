package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ryabkov82/table-merger/internal/export"
	"github.com/ryabkov82/table-merger/internal/registry"
	"github.com/ryabkov82/table-merger/internal/server"
	"github.com/ryabkov82/table-merger/internal/session"
)

// Output итог команды в JSON на stdout
type Output struct {
	Success       bool     `json:"success"`
	OutputFiles   []string `json:"output_files,omitempty"`
	Error         string   `json:"error,omitempty"`
	Duration      string   `json:"duration"`
	RowCount      int64    `json:"row_count,omitempty"`
	ColumnCount   int      `json:"column_count,omitempty"`
	SharedColumns []string `json:"shared_columns,omitempty"`
	FilesLoaded   int      `json:"files_loaded"`
	FilesSkipped  []string `json:"files_skipped,omitempty"`
	FilesFailed   []string `json:"files_failed,omitempty"`
	Fallback      bool     `json:"fallback,omitempty"`
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("dir", "", "папка с исходными файлами")
	cmd.Flags().Bool("recursive", false, "искать файлы во вложенных папках")
	cmd.Flags().Bool("add-source", false, "добавить колонку SourceFile с именем исходного файла")
}

func (a *app) mergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [files...]",
		Short: "Объединить файлы по общим колонкам и сохранить результат",
		Long: `Загружает CSV/XLSX файлы из аргументов и папки --dir, находит колонки,
общие для всех файлов, и сохраняет объединённую таблицу. Если файлы не
указаны, а stdin перенаправлен, пути читаются из stdin по одному на строку.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMerge(cmd, args)
		},
	}
	addInputFlags(cmd)
	cmd.Flags().String("out", "", "имя файла результата (по умолчанию merged_data_<время>)")
	cmd.Flags().String("out-dir", "", "папка для результата")
	cmd.Flags().String("format", "", "формат результата: csv или xlsx")
	return cmd
}

func (a *app) analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Показать колонки, общие для всех файлов",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args)
		},
	}
	addInputFlags(cmd)
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}
	addInputFlags(cmd)
	cmd.Flags().String("addr", "", "адрес HTTP-сервера")
	cmd.Flags().String("out-dir", "", "папка для результатов")
	cmd.Flags().String("format", "", "формат выгрузки по умолчанию")
	return cmd
}

// selectors основной и запасной способ выбора файлов
func (a *app) selectors(args []string) (session.Selector, session.Selector, error) {
	var primary session.MultiSelector
	if len(args) > 0 {
		primary = append(primary, session.PathSelector(args))
	}
	if a.cfg.Input.Dir != "" {
		primary = append(primary, session.DirSelector{Dir: a.cfg.Input.Dir, Recursive: a.cfg.Input.Recursive})
	}

	var fallback session.Selector
	if a.stdinPiped {
		fallback = session.ReaderSelector{R: a.stdin}
	}

	switch {
	case len(primary) > 0:
		return primary, fallback, nil
	case fallback != nil:
		return fallback, nil, nil
	default:
		return nil, nil, errors.New("не указаны исходные файлы: передайте пути, --dir или список в stdin")
	}
}

func (a *app) load(cmd *cobra.Command, sess *session.Session, args []string, out *Output) error {
	primary, fallback, err := a.selectors(args)
	if err != nil {
		return err
	}
	res, err := sess.Select(cmd.Context(), primary, fallback)
	if err != nil {
		return fmt.Errorf("ошибка выбора файлов: %w", err)
	}
	fillBatch(out, res)
	if out.FilesLoaded == 0 {
		return session.ErrNothingToMerge
	}
	return nil
}

func fillBatch(out *Output, res registry.BatchResult) {
	out.FilesLoaded = len(res.Added)
	out.FilesSkipped = res.Skipped
	for _, fe := range res.Failed {
		out.FilesFailed = append(out.FilesFailed, fe.Error())
	}
}

func (a *app) runMerge(cmd *cobra.Command, args []string) error {
	start := time.Now()
	out := Output{}

	fail := func(prefix string, err error) error {
		out.Success = false
		out.Error = fmt.Sprintf("%s: %v", prefix, err)
		out.Duration = time.Since(start).String()
		a.emitJSON(out)
		return errReported
	}

	format, err := export.ParseFormat(a.cfg.Output.Format)
	if err != nil {
		return fail("Ошибка конфигурации", err)
	}

	sess := a.newSession(a.mergeSink())
	if err := a.load(cmd, sess, args, &out); err != nil {
		return fail("Ошибка загрузки", err)
	}

	out.SharedColumns = sess.Analyze()
	merged, err := sess.Merge()
	if err != nil {
		return fail("Ошибка объединения", err)
	}
	if len(out.SharedColumns) == 0 {
		log.Warn().Msg("Общих колонок нет, результат будет пустым")
	}

	dest, err := sess.Export(cmd.Context(), format, a.cfg.Output.Path)
	if err != nil {
		return fail("Ошибка сохранения", err)
	}

	out.Success = true
	out.Fallback = dest.Fallback
	out.OutputFiles = []string{dest.String()}
	out.RowCount = int64(merged.RowCount())
	out.ColumnCount = merged.ColumnCount()
	out.Duration = time.Since(start).String()
	a.emitJSON(out)
	return nil
}

// mergeSink пишет в Output.Dir, при ошибке в запасную папку
func (a *app) mergeSink() export.Sink {
	spare := a.spareDir
	if spare == "" {
		spare = os.TempDir()
	}
	return export.FallbackSink{
		Primary:   export.FileSink{Dir: a.cfg.Output.Dir},
		Secondary: export.FileSink{Dir: spare, Flat: true},
	}
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()
	out := Output{}

	sess := a.newSession(nil)
	if err := a.load(cmd, sess, args, &out); err != nil {
		out.Error = fmt.Sprintf("Ошибка загрузки: %v", err)
		out.Duration = time.Since(start).String()
		a.emitJSON(out)
		return errReported
	}

	out.SharedColumns = sess.Analyze()
	out.ColumnCount = len(out.SharedColumns)
	out.Success = true
	out.Duration = time.Since(start).String()
	a.emitJSON(out)
	return nil
}

func (a *app) runServe(cmd *cobra.Command) error {
	ctx, cancel := setupContext(cmd.Context())
	defer cancel()

	ttl, err := a.cfg.Server.TTL()
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(a.cfg.Output.Format)
	if err != nil {
		return err
	}

	downloads := export.NewDownloadStore(ttl)
	sess := a.newSession(export.FallbackSink{
		Primary:   export.FileSink{Dir: a.cfg.Output.Dir},
		Secondary: downloads,
	})

	if a.cfg.Input.Dir != "" {
		srcs, err := session.DirSelector{Dir: a.cfg.Input.Dir, Recursive: a.cfg.Input.Recursive}.Select(ctx)
		switch {
		case errors.Is(err, session.ErrDialogCancelled):
		case err != nil:
			return err
		default:
			sess.AddSources(ctx, srcs)
		}
	}

	srv := server.New(sess, downloads, server.Options{Addr: a.cfg.Server.Addr, DefaultFormat: format})
	return srv.Run(ctx)
}

func (a *app) emitJSON(out Output) {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error().Err(err).Msg("Ошибка вывода JSON")
	}
}
