package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/seantiz/procgate/internal/metastore"
	"github.com/seantiz/procgate/internal/objectstore"
	"github.com/seantiz/procgate/internal/queue"
)

const (
	defaultTitle      = "ProcGate"
	defaultVersion    = "0.1.0"
	defaultHost       = "0.0.0.0"
	defaultPort       = 8080
	defaultLogLevel   = "info"
	defaultRedisURL   = "redis://localhost:6379/0"
	defaultSQLitePath = "procgate.db"
	defaultQueueKey   = "queue:jobs"
	defaultNATSURL    = "nats://localhost:4222"
	defaultEndpoint   = "http://localhost:9000"
	defaultRegion     = "auto"
	defaultBucket     = "proc-data"
	defaultEnvFile    = ".env"

	envConfigFile      = "PROCGATE_CONFIG"
	envEnvFile         = "PROCGATE_ENV_FILE"
	envTitle           = "PROCGATE_APP_TITLE"
	envVersion         = "PROCGATE_APP_VERSION"
	envRootPath        = "PROCGATE_ROOT_PATH"
	envHost            = "PROCGATE_HOST"
	envPort            = "PROCGATE_PORT"
	envLogLevel        = "PROCGATE_LOG_LEVEL"
	envMetaDriver      = "PROCGATE_META_DRIVER"
	envRedisURL        = "PROCGATE_REDIS_URL"
	envSQLitePath      = "PROCGATE_SQLITE_PATH"
	envQueueDriver     = "PROCGATE_QUEUE_DRIVER"
	envQueueKey        = "PROCGATE_QUEUE_KEY"
	envNATSURL         = "PROCGATE_NATS_URL"
	envObjectDriver    = "PROCGATE_OBJECT_DRIVER"
	envR2Endpoint      = "PROCGATE_R2_ENDPOINT_URL"
	envR2Region        = "PROCGATE_R2_REGION"
	envR2AccessKey     = "PROCGATE_R2_ACCESS_KEY_ID"
	envR2SecretKey     = "PROCGATE_R2_SECRET_ACCESS_KEY"
	envR2Bucket        = "PROCGATE_R2_BUCKET"
	envExternalRouters = "PROCGATE_EXTERNAL_ROUTERS"
)

// App holds HTTP application settings.
type App struct {
	// Title and Version are reported by the info endpoint.
	Title   string `toml:"title"`
	Version string `toml:"version"`
	// RootPath mounts every route under a prefix, e.g. "/api" behind an ingress.
	RootPath string `toml:"root_path"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
	// ExternalRouters lists "module:attribute" locators mounted at startup.
	ExternalRouters []string `toml:"external_routers"`
}

// Metadata selects the metadata store.
type Metadata struct {
	Driver     string `toml:"driver"`
	RedisURL   string `toml:"redis_url"`
	SQLitePath string `toml:"sqlite_path"`
}

// Queue selects the job queue. RedisURL is shared with Metadata.
type Queue struct {
	Driver  string `toml:"driver"`
	Key     string `toml:"key"`
	NATSURL string `toml:"nats_url"`
}

// Objects configures the S3-compatible object store.
type Objects struct {
	Driver          string `toml:"driver"`
	EndpointURL     string `toml:"endpoint_url"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Bucket          string `toml:"bucket"`
}

// Config holds application configuration.
type Config struct {
	App      App      `toml:"app"`
	Metadata Metadata `toml:"metadata"`
	Queue    Queue    `toml:"queue"`
	Objects  Objects  `toml:"objects"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		App: App{
			Title:    defaultTitle,
			Version:  defaultVersion,
			Host:     defaultHost,
			Port:     defaultPort,
			LogLevel: defaultLogLevel,
		},
		Metadata: Metadata{
			Driver:     metastore.DriverRedis,
			RedisURL:   defaultRedisURL,
			SQLitePath: defaultSQLitePath,
		},
		Queue: Queue{
			Driver:  queue.DriverRedis,
			Key:     defaultQueueKey,
			NATSURL: defaultNATSURL,
		},
		Objects: Objects{
			Driver:      objectstore.DriverS3,
			EndpointURL: defaultEndpoint,
			Region:      defaultRegion,
			Bucket:      defaultBucket,
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file named
// by PROCGATE_CONFIG, a .env file, and PROCGATE_* environment variables, in
// increasing precedence.
func Load() (Config, error) {
	return LoadFile(os.Getenv(envConfigFile))
}

// LoadFile is Load with an explicit TOML path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return Config{}, err
		}
	}

	envFile := os.Getenv(envEnvFile)
	if envFile == "" {
		envFile = defaultEnvFile
	}
	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.App.Title, envTitle)
	setString(&c.App.Version, envVersion)
	setString(&c.App.RootPath, envRootPath)
	setString(&c.App.Host, envHost)
	setString(&c.App.LogLevel, envLogLevel)
	if v := os.Getenv(envPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envPort, err)
		}
		c.App.Port = port
	}
	if v := os.Getenv(envExternalRouters); v != "" {
		c.App.ExternalRouters = splitList(v)
	}

	setString(&c.Metadata.Driver, envMetaDriver)
	setString(&c.Metadata.RedisURL, envRedisURL)
	setString(&c.Metadata.SQLitePath, envSQLitePath)

	setString(&c.Queue.Driver, envQueueDriver)
	setString(&c.Queue.Key, envQueueKey)
	setString(&c.Queue.NATSURL, envNATSURL)

	setString(&c.Objects.Driver, envObjectDriver)
	setString(&c.Objects.EndpointURL, envR2Endpoint)
	setString(&c.Objects.Region, envR2Region)
	setString(&c.Objects.AccessKeyID, envR2AccessKey)
	setString(&c.Objects.SecretAccessKey, envR2SecretKey)
	setString(&c.Objects.Bucket, envR2Bucket)
	return nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.App.Port)
	}
	if c.App.RootPath != "" && !strings.HasPrefix(c.App.RootPath, "/") {
		return fmt.Errorf("root path %q must start with /", c.App.RootPath)
	}
	switch c.Metadata.Driver {
	case metastore.DriverRedis, metastore.DriverSQLite:
	default:
		return fmt.Errorf("unknown metadata driver %q", c.Metadata.Driver)
	}
	switch c.Queue.Driver {
	case queue.DriverRedis, queue.DriverNATS:
	default:
		return fmt.Errorf("unknown queue driver %q", c.Queue.Driver)
	}
	switch c.Objects.Driver {
	case objectstore.DriverS3, objectstore.DriverMemory:
	default:
		return fmt.Errorf("unknown object driver %q", c.Objects.Driver)
	}
	if c.Queue.Key == "" {
		return errors.New("queue key is required")
	}
	if c.Objects.Bucket == "" {
		return errors.New("object bucket is required")
	}
	return nil
}

// WriteTOML encodes the configuration as TOML with the object store secret
// masked.
func (c Config) WriteTOML(w io.Writer) error {
	if c.Objects.SecretAccessKey != "" {
		c.Objects.SecretAccessKey = "********"
	}
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// ListenAddr joins host and port.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.App.Host, strconv.Itoa(c.App.Port))
}

// Level returns the parsed log level.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.App.LogLevel)
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the given level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
