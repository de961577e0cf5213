// Пакет config — загрузка и валидация конфигурации docgate
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации docgate.
type Config struct {
	// Порт HTTP-сервера
	Port int

	// Области хранения: загрузки, результаты, рабочие файлы движков
	UploadDir    string
	ConvertedDir string
	TempDir      string

	// Максимальный размер тела запроса с файлами в байтах
	MaxUploadSize int64
	// Возраст, после которого файлы удаляются из областей хранения
	Retention time.Duration
	// Интервал запуска очистки
	SweepInterval time.Duration
	// Срок хранения записей журнала заданий
	JournalRetention time.Duration
	// Удалять загруженный файл сразу после успешной конвертации
	DeleteInputs bool
	// Проверять сигнатуру содержимого (MIME) перед вызовом движка
	StrictMIME bool

	// Набор языков OCR в формате tesseract (например, "eng+hin")
	OCRLanguages string
	// DPI растеризации страниц PDF
	RasterDPI int
	// Качество JPEG при растеризации
	JPEGQuality int
	// Предельное время одного вызова внешнего движка (0 — без ограничения)
	EngineTimeout time.Duration

	// Пути к внешним движкам
	TesseractBin string
	PdftoppmBin  string
	OfficeBin    string
	Docx2PDFBin  string
	PDF2DocxBin  string

	// DSN журнала заданий (пусто — in-memory)
	DatabaseURL string

	// URL JWKS endpoint (пусто — аутентификация отключена)
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Пропускать проверку TLS-сертификата JWKS endpoint
	TLSSkipVerify bool
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// Интервал проверки внешних зависимостей (topologymetrics)
	DephealthCheckInterval time.Duration

	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймауты HTTP-сервера. WriteTimeout должен покрывать самую долгую конвертацию.
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// AuthEnabled возвращает true, если настроена JWT-аутентификация.
func (c *Config) AuthEnabled() bool {
	return c.JWKSUrl != ""
}

// StorageDirs возвращает все области хранения в фиксированном порядке.
func (c *Config) StorageDirs() []string {
	return []string{c.UploadDir, c.ConvertedDir, c.TempDir}
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// DG_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("DG_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("DG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.UploadDir = getEnvDefault("DG_UPLOAD_DIR", "uploads")
	cfg.ConvertedDir = getEnvDefault("DG_CONVERTED_DIR", "converted")
	cfg.TempDir = getEnvDefault("DG_TEMP_DIR", "temp")
	if cfg.UploadDir == cfg.ConvertedDir || cfg.UploadDir == cfg.TempDir || cfg.ConvertedDir == cfg.TempDir {
		return nil, fmt.Errorf("DG_UPLOAD_DIR, DG_CONVERTED_DIR, DG_TEMP_DIR должны различаться")
	}

	// DG_MAX_UPLOAD_SIZE — максимальный размер загрузки (по умолчанию 16 MiB)
	cfg.MaxUploadSize, err = getEnvInt64("DG_MAX_UPLOAD_SIZE", 16*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("DG_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("DG_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// DG_RETENTION — окно хранения файлов (по умолчанию 24h)
	cfg.Retention, err = getEnvDuration("DG_RETENTION", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DG_RETENTION: %w", err)
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("DG_RETENTION: значение должно быть положительным")
	}

	// DG_SWEEP_INTERVAL — интервал очистки (по умолчанию 1h)
	cfg.SweepInterval, err = getEnvDuration("DG_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DG_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("DG_SWEEP_INTERVAL: значение должно быть положительным")
	}

	// DG_JOURNAL_RETENTION — срок хранения журнала (по умолчанию 30 дней)
	cfg.JournalRetention, err = getEnvDuration("DG_JOURNAL_RETENTION", 720*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DG_JOURNAL_RETENTION: %w", err)
	}

	cfg.DeleteInputs, err = getEnvBool("DG_DELETE_INPUTS", true)
	if err != nil {
		return nil, fmt.Errorf("DG_DELETE_INPUTS: %w", err)
	}

	cfg.StrictMIME, err = getEnvBool("DG_STRICT_MIME", true)
	if err != nil {
		return nil, fmt.Errorf("DG_STRICT_MIME: %w", err)
	}

	// DG_OCR_LANGUAGES — языки OCR (по умолчанию английский + хинди)
	cfg.OCRLanguages = getEnvDefault("DG_OCR_LANGUAGES", "eng+hin")

	cfg.RasterDPI, err = getEnvInt("DG_RASTER_DPI", 200)
	if err != nil {
		return nil, fmt.Errorf("DG_RASTER_DPI: %w", err)
	}
	if cfg.RasterDPI < 36 || cfg.RasterDPI > 1200 {
		return nil, fmt.Errorf("DG_RASTER_DPI: значение %d вне допустимого диапазона 36-1200", cfg.RasterDPI)
	}

	cfg.JPEGQuality, err = getEnvInt("DG_JPEG_QUALITY", 95)
	if err != nil {
		return nil, fmt.Errorf("DG_JPEG_QUALITY: %w", err)
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("DG_JPEG_QUALITY: значение %d вне допустимого диапазона 1-100", cfg.JPEGQuality)
	}

	// DG_ENGINE_TIMEOUT — предельное время вызова движка (по умолчанию 5m)
	cfg.EngineTimeout, err = getEnvDuration("DG_ENGINE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DG_ENGINE_TIMEOUT: %w", err)
	}
	if cfg.EngineTimeout < 0 {
		return nil, fmt.Errorf("DG_ENGINE_TIMEOUT: значение не может быть отрицательным")
	}

	cfg.TesseractBin = getEnvDefault("DG_TESSERACT_BIN", "tesseract")
	cfg.PdftoppmBin = getEnvDefault("DG_PDFTOPPM_BIN", "pdftoppm")
	cfg.OfficeBin = getEnvDefault("DG_OFFICE_BIN", "libreoffice")
	cfg.Docx2PDFBin = getEnvDefault("DG_DOCX2PDF_BIN", "docx2pdf")
	cfg.PDF2DocxBin = getEnvDefault("DG_PDF2DOCX_BIN", "pdf2docx")

	cfg.DatabaseURL = getEnvDefault("DG_DATABASE_URL", "")

	cfg.JWKSUrl = getEnvDefault("DG_JWKS_URL", "")
	cfg.JWKSCACert = getEnvDefault("DG_JWKS_CA_CERT", "")

	cfg.TLSSkipVerify, err = getEnvBool("DG_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("DG_TLS_SKIP_VERIFY: %w", err)
	}

	cfg.JWKSRefreshInterval, err = getEnvDuration("DG_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DG_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWKSClientTimeout, err = getEnvDuration("DG_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DG_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("DG_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DG_JWT_LEEWAY: %w", err)
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("DG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	if cfg.DephealthCheckInterval <= 0 {
		return nil, fmt.Errorf("DG_DEPHEALTH_CHECK_INTERVAL: должен быть положительным")
	}

	// DG_TLS_CERT и DG_TLS_KEY задаются только вместе
	cfg.TLSCert = getEnvDefault("DG_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("DG_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("DG_TLS_CERT и DG_TLS_KEY должны задаваться вместе")
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DG_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("DG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("DG_HTTP_READ_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DG_HTTP_READ_TIMEOUT: %w", err)
	}

	// Ответ отправляется после завершения конвертации, поэтому запас больше таймаута движка
	cfg.HTTPWriteTimeout, err = getEnvDuration("DG_HTTP_WRITE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DG_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("DG_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DG_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("DG_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 24h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
