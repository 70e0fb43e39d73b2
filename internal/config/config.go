package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	// HTTPAddr is where the dashboard listens.
	HTTPAddr string
	// IngestorHTTPAddr serves /healthz and /metrics for the ingestor. Empty disables it.
	IngestorHTTPAddr string

	// StaticDir is the absolute path to the directory served at /static/.
	// Empty means no static route is registered.
	StaticDir string

	MQTTBroker             string
	MQTTPort               int
	MQTTTLS                bool
	MQTTCAFile             string
	MQTTCertFile           string
	MQTTKeyFile            string
	MQTTInsecureSkipVerify bool
	MQTTUsername           string
	MQTTPassword           string
	MQTTTopic              string
	MQTTClientID           string
	MQTTKeepAlive          time.Duration

	// IngestorBuffer bounds the channel between the MQTT callback and the receive loop.
	IngestorBuffer int

	StoreDriver     string
	StoreDSN        string
	SQLitePath      string
	MongoDatabase   string
	Collection      string
	StoreTimeout    time.Duration
	// MaxOpenConns caps the store's connection pool. 0 keeps the driver
	// default: one connection for SQLite, pgx's own sizing for Postgres.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DashboardWindowLimit int
	DashboardWindow      time.Duration
	DashboardRefresh     time.Duration
	DashboardCacheTTL    time.Duration
}

// QuarantineCollection is where payloads that fail validation are kept.
func (c Config) QuarantineCollection() string {
	return c.Collection + "_quarantine"
}

// MQTTBrokerURL returns the paho broker URL, ssl:// when TLS is on.
func (c Config) MQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTTTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTTBroker, c.MQTTPort)
}

func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:           appEnv,
		LogLevel:         level,
		HTTPAddr:         envString("HTTP_ADDR", ":8080"),
		IngestorHTTPAddr: envString("INGESTOR_HTTP_ADDR", ":9100"),
		MQTTBroker:       envString("MQTT_BROKER", "localhost"),
		MQTTUsername:     envString("MQTT_USERNAME", ""),
		MQTTTopic:        envString("MQTT_TOPIC", "iot/rain/esp32"),
		MQTTClientID:     envString("MQTT_CLIENT_ID", "rain-ingestor"),
		MQTTCAFile:       envString("MQTT_CA_FILE", ""),
		MQTTCertFile:     envString("MQTT_CERT_FILE", ""),
		MQTTKeyFile:      envString("MQTT_KEY_FILE", ""),
		StoreDriver:      strings.ToLower(envString("STORE_DRIVER", DriverSQLite)),
		SQLitePath:       envString("SQLITE_PATH", "data/rain.db"),
		MongoDatabase:    envString("MONGO_DATABASE", "raindash"),
		Collection:       envString("STORE_COLLECTION", "rain_data"),
		RedisAddr:        envString("REDIS_ADDR", ""),
		RedisPassword:    envString("REDIS_PASSWORD", ""),
	}

	if staticDir := strings.TrimSpace(os.Getenv("STATIC_DIR")); staticDir != "" {
		cfg.StaticDir, err = filepath.Abs(staticDir)
		if err != nil {
			return Config{}, fmt.Errorf("STATIC_DIR %q: %w", staticDir, err)
		}
	}

	if cfg.MQTTPort, err = envInt("MQTT_PORT", 8883); err != nil {
		return Config{}, err
	}
	if cfg.MQTTTLS, err = envBool("MQTT_TLS", true); err != nil {
		return Config{}, err
	}
	if cfg.MQTTInsecureSkipVerify, err = envBool("MQTT_INSECURE_SKIP_VERIFY", false); err != nil {
		return Config{}, err
	}
	if cfg.MQTTKeepAlive, err = envDuration("MQTT_KEEPALIVE", "60s"); err != nil {
		return Config{}, err
	}
	if cfg.MQTTPassword, err = envSecret("MQTT_PASSWORD"); err != nil {
		return Config{}, err
	}
	if cfg.IngestorBuffer, err = envInt("INGESTOR_BUFFER", 64); err != nil {
		return Config{}, err
	}
	if cfg.IngestorBuffer < 1 {
		return Config{}, fmt.Errorf("INGESTOR_BUFFER must be positive, got %d", cfg.IngestorBuffer)
	}

	if cfg.StoreDSN, err = envSecret("STORE_DSN"); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = envDuration("STORE_TIMEOUT", "5s"); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout <= 0 {
		return Config{}, fmt.Errorf("STORE_TIMEOUT must be positive, got %v", cfg.StoreTimeout)
	}
	if cfg.MaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", 0); err != nil {
		return Config{}, err
	}
	if cfg.MaxOpenConns < 0 {
		return Config{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be >= 0, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", 1); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxLifetime, err = envDuration("DB_CONN_MAX_LIFETIME", "0s"); err != nil {
		return Config{}, err
	}
	if cfg.LogSQL, err = envBool("LOG_SQL", false); err != nil {
		return Config{}, err
	}

	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	if cfg.DashboardWindowLimit, err = envInt("DASHBOARD_WINDOW_LIMIT", 5000); err != nil {
		return Config{}, err
	}
	if cfg.DashboardWindowLimit < 0 {
		return Config{}, fmt.Errorf("DASHBOARD_WINDOW_LIMIT must be >= 0, got %d", cfg.DashboardWindowLimit)
	}
	if cfg.DashboardWindow, err = envDuration("DASHBOARD_WINDOW", "0s"); err != nil {
		return Config{}, err
	}
	if cfg.DashboardRefresh, err = envDuration("DASHBOARD_REFRESH", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.DashboardCacheTTL, err = envDuration("DASHBOARD_CACHE_TTL", "10s"); err != nil {
		return Config{}, err
	}

	if cfg.Collection == "" {
		return Config{}, errors.New("STORE_COLLECTION must not be empty")
	}
	switch cfg.StoreDriver {
	case DriverSQLite:
	case DriverPostgres, DriverMongo:
		if cfg.StoreDSN == "" {
			return Config{}, fmt.Errorf("STORE_DSN (or STORE_DSN_FILE) is required for STORE_DRIVER %q", cfg.StoreDriver)
		}
	default:
		return Config{}, fmt.Errorf("invalid STORE_DRIVER %q (allowed: sqlite, postgres, mongo)", cfg.StoreDriver)
	}

	for name, path := range map[string]string{
		"MQTT_CA_FILE":   cfg.MQTTCAFile,
		"MQTT_CERT_FILE": cfg.MQTTCertFile,
		"MQTT_KEY_FILE":  cfg.MQTTKeyFile,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("%s %q: %w", name, path, err)
		}
	}
	if (cfg.MQTTCertFile == "") != (cfg.MQTTKeyFile == "") {
		return Config{}, errors.New("MQTT_CERT_FILE and MQTT_KEY_FILE must be set together")
	}

	return cfg, nil
}

// loadDotEnv reads ENV_FILE (default .env) into the process environment.
// Variables already set win; a missing default file is not an error.
func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("ENV_FILE %q: %w", path, err)
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func envDuration(key, def string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

// envSecret reads KEY, or the file named by KEY_FILE when KEY is unset.
// A configured file that cannot be read is an error.
func envSecret(key string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v, nil
	}
	path := strings.TrimSpace(os.Getenv(key + "_FILE"))
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s_FILE %q: %w", key, path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
