// Package cli команды table-merger: merge, analyze, serve.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ryabkov82/table-merger/internal/config"
	"github.com/ryabkov82/table-merger/internal/export"
	"github.com/ryabkov82/table-merger/internal/merger"
	"github.com/ryabkov82/table-merger/internal/session"
)

// errReported ошибка уже выведена в JSON, осталось вернуть код выхода
var errReported = errors.New("ошибка выведена")

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// stdinPiped stdin перенаправлен, из него можно читать список файлов
	stdinPiped bool
	// spareDir запасная папка, если результат не удалось записать в Output.Dir
	spareDir string

	configPath string
	logLevel   string
	cfg        *config.Config
}

// Execute запускает CLI
func Execute() {
	a := &app{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		stdinPiped: !isTerminal(os.Stdin),
		spareDir:   os.TempDir(),
	}
	if err := a.rootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			log.Error().Err(err).Msg("Ошибка выполнения")
		}
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "table-merger",
		Short:         "Объединение CSV и Excel файлов по общим колонкам",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "файл настроек TOML (по умолчанию "+config.DefaultFile+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "уровень логирования: debug, info, warn, error")

	root.AddCommand(a.mergeCmd())
	root.AddCommand(a.analyzeCmd())
	root.AddCommand(a.serveCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.setupLogger(zerolog.InfoLevel)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	lvl, _ := cfg.Log.ZerologLevel()
	a.setupLogger(lvl)
	a.cfg = cfg
	return nil
}

func (a *app) setupLogger(lvl zerolog.Level) {
	noColor := true
	if f, ok := a.stderr.(*os.File); ok {
		noColor = !isTerminal(f)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: a.stderr, NoColor: noColor}).With().Timestamp().Logger()
}

// applyFlags флаги команды перекрывают файл настроек и окружение
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("dir") {
		cfg.Input.Dir, err = flags.GetString("dir")
	}
	if err == nil && flags.Changed("recursive") {
		cfg.Input.Recursive, err = flags.GetBool("recursive")
	}
	if err == nil && flags.Changed("out") {
		cfg.Output.Path, err = flags.GetString("out")
	}
	if err == nil && flags.Changed("out-dir") {
		cfg.Output.Dir, err = flags.GetString("out-dir")
	}
	if err == nil && flags.Changed("format") {
		cfg.Output.Format, err = flags.GetString("format")
	}
	if err == nil && flags.Changed("add-source") {
		cfg.Export.AddSourceFile, err = flags.GetBool("add-source")
	}
	if err == nil && flags.Changed("addr") {
		cfg.Server.Addr, err = flags.GetString("addr")
	}
	return err
}

func (a *app) newSession(sink export.Sink) *session.Session {
	return session.New(session.Options{
		Readers: a.cfg.Input.Readers,
		Merge:   merger.Options{AddSourceFile: a.cfg.Export.AddSourceFile},
		XLSX: export.XLSXOptions{
			SheetName:  a.cfg.Export.SheetName,
			SampleRows: a.cfg.Export.SampleRows,
			BoldHeader: a.cfg.Export.BoldHeader,
		},
		Sink: sink,
	})
}

// setupContext контекст, отменяемый по SIGINT/SIGTERM
func setupContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
