package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultFile файл настроек, который ищется в текущей папке
const DefaultFile = "table-merger.toml"

const envPrefix = "TABLE_MERGER_"

type Config struct {
	Input  InputConfig  `toml:"input"`
	Output OutputConfig `toml:"output"`
	Export ExportConfig `toml:"export"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// InputConfig откуда брать исходные файлы
type InputConfig struct {
	Dir       string `toml:"dir"`
	Recursive bool   `toml:"recursive"`
	Readers   int    `toml:"readers"` // параллельные чтения файлов
}

// OutputConfig куда писать результат
type OutputConfig struct {
	Dir    string `toml:"dir"`
	Path   string `toml:"path"` // если пусто, merged_data_<время>.<ext>
	Format string `toml:"format"`
}

type ExportConfig struct {
	SheetName     string `toml:"sheet_name"`
	SampleRows    int    `toml:"sample_rows"` // строки для подбора ширины колонок
	BoldHeader    bool   `toml:"bold_header"`
	AddSourceFile bool   `toml:"add_source_file"` // колонка с именем файла
}

type ServerConfig struct {
	Addr        string `toml:"addr"`
	DownloadTTL string `toml:"download_ttl"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Default() *Config {
	return &Config{
		Input: InputConfig{
			Readers: 4,
		},
		Output: OutputConfig{
			Dir:    ".",
			Format: "xlsx",
		},
		Export: ExportConfig{
			SheetName:  "Merged Data",
			SampleRows: 1000,
			BoldHeader: true,
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			DownloadTTL: "15m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load собирает настройки: значения по умолчанию, затем TOML-файл, затем
// .env и переменные окружения TABLE_MERGER_*. Отсутствие файла по
// умолчанию допустимо, явно указанного нет.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("Файл .env не найден, используются переменные окружения")
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("ошибка чтения настроек %s: %w", path, err)
	}

	applyEnv(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Input.Dir = getEnv("INPUT_DIR", cfg.Input.Dir)
	cfg.Input.Recursive = getEnvBool("INPUT_RECURSIVE", cfg.Input.Recursive)
	cfg.Input.Readers = getEnvInt("INPUT_READERS", cfg.Input.Readers)
	cfg.Output.Dir = getEnv("OUTPUT_DIR", cfg.Output.Dir)
	cfg.Output.Path = getEnv("OUTPUT_PATH", cfg.Output.Path)
	cfg.Output.Format = getEnv("OUTPUT_FORMAT", cfg.Output.Format)
	cfg.Export.SheetName = getEnv("SHEET_NAME", cfg.Export.SheetName)
	cfg.Export.SampleRows = getEnvInt("SAMPLE_ROWS", cfg.Export.SampleRows)
	cfg.Export.AddSourceFile = getEnvBool("ADD_SOURCE_FILE", cfg.Export.AddSourceFile)
	cfg.Server.Addr = getEnv("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.DownloadTTL = getEnv("DOWNLOAD_TTL", cfg.Server.DownloadTTL)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

// Normalize приводит пути к каноническому виду
func (c *Config) Normalize() {
	if c.Input.Dir != "" {
		c.Input.Dir = filepath.Clean(c.Input.Dir)
	}
	if c.Output.Dir != "" {
		c.Output.Dir = filepath.Clean(c.Output.Dir)
	}
	if c.Output.Path != "" {
		c.Output.Path = filepath.Clean(c.Output.Path)
	}
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

func (c *Config) Validate() error {
	switch c.Output.Format {
	case "csv", "xlsx", "excel":
	default:
		return fmt.Errorf("неизвестный формат выгрузки %q: допустимы csv и xlsx", c.Output.Format)
	}
	if c.Export.SampleRows <= 0 {
		return fmt.Errorf("sample_rows должно быть больше нуля, получено %d", c.Export.SampleRows)
	}
	if c.Input.Readers <= 0 {
		return fmt.Errorf("readers должно быть больше нуля, получено %d", c.Input.Readers)
	}
	if _, err := c.Server.TTL(); err != nil {
		return err
	}
	if _, err := c.Log.ZerologLevel(); err != nil {
		return err
	}
	return nil
}

// TTL время жизни выгрузки, доступной по токену
func (s ServerConfig) TTL() (time.Duration, error) {
	d, err := time.ParseDuration(s.DownloadTTL)
	if err != nil {
		return 0, fmt.Errorf("некорректный download_ttl %q: %w", s.DownloadTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("download_ttl должен быть положительным, получено %s", d)
	}
	return d, nil
}

func (l LogConfig) ZerologLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("некорректный уровень логирования %q: %w", l.Level, err)
	}
	return lvl, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
