package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of all environment variables read by the app.
const EnvPrefix = "BRAP"

// Supported relational database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit          string         `yaml:"git_commit" json:"git_commit" envconfig:"BRAP_GIT_COMMIT"`
	GitTag             string         `yaml:"git_tag" json:"git_tag" envconfig:"BRAP_GIT_TAG"`
	BuildTime          string         `yaml:"build_time" json:"build_time" envconfig:"BRAP_BUILD_TIME"`
	IsProduction       bool           `yaml:"is_production" json:"is_production" envconfig:"BRAP_IS_PRODUCTION"`
	LogLevel           zapcore.Level  `yaml:"log_level" json:"log_level" envconfig:"BRAP_LOG_LEVEL"`
	LogFolder          string         `yaml:"log_folder" json:"log_folder" envconfig:"BRAP_LOG_FOLDER"`
	LogMaxSize         int            `yaml:"log_max_size" json:"log_max_size" envconfig:"BRAP_LOG_MAX_SIZE"`
	OpsEndpointsEnable bool           `yaml:"ops_endpoints_enable" json:"ops_endpoints_enable" envconfig:"BRAP_OPS_ENDPOINTS_ENABLE"`
	ProfilerEnable     bool           `yaml:"profiler_enable" json:"profiler_enable" envconfig:"BRAP_PROFILER_ENABLE"`
	Server             ServerConfig   `yaml:"server" json:"server"`
	Redis              RedisConfig    `yaml:"redis" json:"redis"`
	BoltDB             BoltDBConfig   `yaml:"boltdb" json:"boltdb"`
	Database           DatabaseConfig `yaml:"database" json:"database"`
}

type ServerConfig struct {
	Host                    string        `yaml:"host" json:"host" envconfig:"BRAP_SERVER_HOST"`
	Port                    string        `yaml:"port" json:"port" envconfig:"BRAP_SERVER_PORT"`
	ReadTimeout             time.Duration `yaml:"read_timeout" json:"read_timeout" envconfig:"BRAP_SERVER_READ_TIMEOUT"`
	WriteTimeout            time.Duration `yaml:"write_timeout" json:"write_timeout" envconfig:"BRAP_SERVER_WRITE_TIMEOUT"`
	RequestTimeout          time.Duration `yaml:"request_timeout" json:"request_timeout" envconfig:"BRAP_SERVER_REQUEST_TIMEOUT"` // Time to wait for a request to finish
	LongRequestWriteTimeout time.Duration `yaml:"long_request_write_timeout" json:"long_request_write_timeout" envconfig:"BRAP_SERVER_LONG_REQUEST_WRITE_TIMEOUT"`
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" envconfig:"BRAP_SERVER_SHUTDOWN_TIMEOUT"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" json:"host" envconfig:"BRAP_REDIS_HOST"`
	Port          string        `yaml:"port" json:"port" envconfig:"BRAP_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" json:"dial_timeout" envconfig:"BRAP_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" json:"read_timeout" envconfig:"BRAP_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" json:"write_timeout" envconfig:"BRAP_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" json:"pool_size" envconfig:"BRAP_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" json:"pool_timeout" envconfig:"BRAP_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" json:"username" envconfig:"BRAP_REDIS_USERNAME"`
	Password      string        `yaml:"password" json:"-" envconfig:"BRAP_REDIS_PASSWORD"`
	DatabaseIndex int           `yaml:"db_index" json:"db_index" envconfig:"BRAP_REDIS_DATABASE_INDEX"`
	CacheTTL      time.Duration `yaml:"cache_ttl" json:"cache_ttl" envconfig:"BRAP_REDIS_CACHE_TTL"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" json:"filepath" envconfig:"BRAP_BOLTDB_FILE_PATH"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" envconfig:"BRAP_BOLTDB_TIMEOUT"`
	BucketName string        `yaml:"bucket_name" json:"bucket_name" envconfig:"BRAP_BOLTDB_BUCKET_NAME"`
}

type DatabaseConfig struct {
	Driver            string        `yaml:"driver" json:"driver" envconfig:"BRAP_DATABASE_DRIVER"`
	DSN               string        `yaml:"dsn" json:"-" envconfig:"BRAP_DATABASE_DSN"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns" envconfig:"BRAP_DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns" envconfig:"BRAP_DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" envconfig:"BRAP_DATABASE_CONN_MAX_LIFETIME"`
	ConnectAttempts   int           `yaml:"connect_attempts" json:"connect_attempts" envconfig:"BRAP_DATABASE_CONNECT_ATTEMPTS"`
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay" json:"connect_retry_delay" envconfig:"BRAP_DATABASE_CONNECT_RETRY_DELAY"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	if err = yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables into the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
		return errors.New("make sure to set valid redis address and port in configuration file")
	}

	config.Database.Driver = strings.ToLower(strings.TrimSpace(config.Database.Driver))
	switch config.Database.Driver {
	case "":
		config.Database.Driver = DriverPostgres
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if len(config.Database.DSN) == 0 {
		return errors.New("make sure to set a valid database dsn in configuration file")
	}

	setDefault(&config.Server.ReadTimeout, 10*time.Second)
	setDefault(&config.Server.WriteTimeout, 15*time.Second)
	setDefault(&config.Server.RequestTimeout, 10*time.Second)
	setDefault(&config.Server.LongRequestWriteTimeout, 30*time.Second)
	setDefault(&config.Server.ShutdownTimeout, 30*time.Second)
	setDefault(&config.Redis.CacheTTL, 5*time.Minute)
	setDefault(&config.BoltDB.Timeout, time.Second)
	setDefault(&config.BoltDB.FilePath, "./db/books.journal.db")
	setDefault(&config.BoltDB.BucketName, "books")
	setDefault(&config.Database.ConnectAttempts, 10)
	setDefault(&config.Database.ConnectRetryDelay, 2*time.Second)
	setDefault(&config.LogFolder, "./logs")
	setDefault(&config.LogMaxSize, 10)

	return nil
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data. A missing env file is not an error.
func LoadAndInitConfigs(configFile, envFile, gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile(configFile)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %w", err)
	}

	// Set the environment configuration.
	err = godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("failed to set environment configurations: %w", err)
	}

	// Use environment variables with prefix `BRAP`.
	err = LoadConfigEnvs(EnvPrefix, config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %w", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %w", err)
	}
	return config, nil
}
