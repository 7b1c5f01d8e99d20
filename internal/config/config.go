// Пакет config — загрузка и валидация конфигурации kardo-backend
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

// Режимы верификации JWT.
const (
	// AuthModeSecret — HS256 с общим секретом (KB_JWT_SECRET)
	AuthModeSecret = "secret"
	// AuthModeJWKS — RS256 с ключами из JWKS endpoint (KB_JWKS_URL)
	AuthModeJWKS = "jwks"
)

// Config содержит все параметры конфигурации kardo-backend.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Уникальный идентификатор инстанса (для метрик topologymetrics)
	InstanceID string
	// Путь к контент-директории загружаемых файлов
	DataDir string
	// Путь к JSON-файлу хранилища записей (db.json)
	StorePath string
	// Режим верификации JWT: secret или jwks (выводится из заданных переменных)
	AuthMode string
	// Общий секрет HS256 (режим secret)
	JWTSecret string
	// URL JWKS endpoint внешней системы входа (режим jwks)
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Пропускать проверку TLS-сертификатов JWKS endpoint
	JWKSTLSSkipVerify bool
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Максимальный размер одного файла в байтах
	MaxFileSize int64
	// Интервал запуска GC файлов-сирот
	GCInterval time.Duration
	// Минимальный возраст файла-сироты для удаления GC
	GCMinAge time.Duration
	// Язык по умолчанию для локализованных сообщений (ku, en)
	DefaultLang string
	// Путь к TLS сертификату (опционально, пустой — plain HTTP)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics (KB_DEPHEALTH_GROUP)
	DephealthGroup string
	// Имя зависимости (целевого сервиса) в метриках topologymetrics (KB_DEPHEALTH_DEP_NAME)
	DephealthDepName string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// KB_PORT — порт HTTP-сервера (по умолчанию 3001)
	port, err := getEnvInt("KB_PORT", 3001)
	if err != nil {
		return nil, fmt.Errorf("KB_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("KB_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// KB_INSTANCE_ID — идентификатор инстанса (по умолчанию "kardo-backend")
	cfg.InstanceID = getEnvDefault("KB_INSTANCE_ID", "kardo-backend")

	// KB_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("KB_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// KB_STORE_PATH — обязательный
	cfg.StorePath, err = getEnvRequired("KB_STORE_PATH")
	if err != nil {
		return nil, err
	}

	// Режим верификации JWT: ровно одна из KB_JWT_SECRET / KB_JWKS_URL
	cfg.JWTSecret = getEnvDefault("KB_JWT_SECRET", "")
	cfg.JWKSUrl = getEnvDefault("KB_JWKS_URL", "")
	switch {
	case cfg.JWTSecret != "" && cfg.JWKSUrl != "":
		return nil, fmt.Errorf("KB_JWT_SECRET и KB_JWKS_URL заданы одновременно, выберите один режим")
	case cfg.JWTSecret != "":
		cfg.AuthMode = AuthModeSecret
	case cfg.JWKSUrl != "":
		cfg.AuthMode = AuthModeJWKS
	default:
		return nil, fmt.Errorf("не задан ни KB_JWT_SECRET, ни KB_JWKS_URL")
	}

	// KB_JWKS_CA_CERT — путь к CA-сертификату для JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("KB_JWKS_CA_CERT", "")

	// KB_JWKS_TLS_SKIP_VERIFY — пропуск проверки TLS (по умолчанию false)
	cfg.JWKSTLSSkipVerify, err = getEnvBool("KB_JWKS_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("KB_JWKS_TLS_SKIP_VERIFY: %w", err)
	}

	// KB_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("KB_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("KB_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// KB_JWKS_REFRESH_INTERVAL — интервал обновления ключей (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("KB_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("KB_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// KB_JWT_LEEWAY — допуск по времени при проверке JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("KB_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("KB_JWT_LEEWAY: %w", err)
	}

	// KB_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MB)
	maxFileSize, err := getEnvInt64("KB_MAX_FILE_SIZE", 104857600)
	if err != nil {
		return nil, fmt.Errorf("KB_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("KB_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// KB_GC_INTERVAL — интервал GC (по умолчанию 1h)
	cfg.GCInterval, err = getEnvDuration("KB_GC_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("KB_GC_INTERVAL: %w", err)
	}

	// KB_GC_MIN_AGE — минимальный возраст сироты для удаления (по умолчанию 1h)
	cfg.GCMinAge, err = getEnvDuration("KB_GC_MIN_AGE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("KB_GC_MIN_AGE: %w", err)
	}

	// KB_DEFAULT_LANG — язык по умолчанию (по умолчанию "ku")
	cfg.DefaultLang = getEnvDefault("KB_DEFAULT_LANG", "ku")
	if cfg.DefaultLang != "ku" && cfg.DefaultLang != "en" {
		return nil, fmt.Errorf("KB_DEFAULT_LANG: недопустимое значение %q, допустимые: ku, en", cfg.DefaultLang)
	}

	// KB_TLS_CERT / KB_TLS_KEY — опциональная пара для HTTPS
	cfg.TLSCert = getEnvDefault("KB_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("KB_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("KB_TLS_CERT и KB_TLS_KEY должны быть заданы вместе")
	}

	// KB_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("KB_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("KB_LOG_LEVEL: %w", err)
	}

	// KB_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("KB_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("KB_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// KB_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("KB_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("KB_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// KB_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "kardo-backend")
	cfg.DephealthGroup = getEnvDefault("KB_DEPHEALTH_GROUP", "kardo-backend")

	// KB_DEPHEALTH_DEP_NAME — имя зависимости в метриках topologymetrics (по умолчанию "auth-jwks")
	cfg.DephealthDepName = getEnvDefault("KB_DEPHEALTH_DEP_NAME", "auth-jwks")

	// KB_SHUTDOWN_TIMEOUT — таймаут graceful shutdown HTTP-сервера (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("KB_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("KB_SHUTDOWN_TIMEOUT: %w", err)
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

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

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
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
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
