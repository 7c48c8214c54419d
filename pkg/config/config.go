package config

import (
	"fmt"
	"time"
)

// SensitiveString hides its value when printed or logged.
type SensitiveString string

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

func (s SensitiveString) Value() string { return string(s) }

// Config is the process configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Intake   IntakeConfig   `koanf:"intake"`
	Locality LocalityConfig `koanf:"locality"`
	Runtime  RuntimeConfig  `koanf:"runtime"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	ConnString      SensitiveString `koanf:"conn_string"       env:"DB_CONN_STRING"       sensitive:"true"`
	Host            string          `koanf:"host"              env:"DB_HOST"`
	Port            string          `koanf:"port"              env:"DB_PORT"`
	User            string          `koanf:"user"              env:"DB_USER"`
	Password        SensitiveString `koanf:"password"          env:"DB_PASSWORD"          sensitive:"true"`
	DBName          string          `koanf:"name"              env:"DB_NAME"`
	SSLMode         string          `koanf:"ssl_mode"          env:"DB_SSL_MODE"`
	MaxOpenConns    int             `koanf:"max_open_conns"    env:"DB_MAX_OPEN_CONNS"    validate:"min=0"`
	MaxIdleConns    int             `koanf:"max_idle_conns"    env:"DB_MAX_IDLE_CONNS"    validate:"min=0"`
	ConnMaxLifetime time.Duration   `koanf:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	ConnectTimeout  time.Duration   `koanf:"connect_timeout"   env:"DB_CONNECT_TIMEOUT"`
	AutoMigrate     bool            `koanf:"auto_migrate"      env:"DB_AUTO_MIGRATE"`
}

// StorageConfig locates uploaded files.
type StorageConfig struct {
	RootDir   string `koanf:"root_dir"   env:"STORAGE_ROOT_DIR"   validate:"required"`
	URLPrefix string `koanf:"url_prefix" env:"STORAGE_URL_PREFIX" validate:"required,startswith=/"`
}

// IntakeConfig bounds the contact creation workflow.
type IntakeConfig struct {
	MaxProtocolAttempts int           `koanf:"max_protocol_attempts" env:"INTAKE_MAX_PROTOCOL_ATTEMPTS" validate:"min=1,max=100"`
	ProtocolBackoff     time.Duration `koanf:"protocol_backoff"      env:"INTAKE_PROTOCOL_BACKOFF"      validate:"gt=0"`
}

// LocalityConfig points at the IBGE localities API used to refresh states
// and municipalities.
type LocalityConfig struct {
	BaseURL    string        `koanf:"base_url"    env:"LOCALITY_BASE_URL"    validate:"required,http_url"`
	Timeout    time.Duration `koanf:"timeout"     env:"LOCALITY_TIMEOUT"     validate:"gt=0"`
	RetryCount int           `koanf:"retry_count" env:"LOCALITY_RETRY_COUNT" validate:"min=0,max=10"`
}

// RuntimeConfig contains logging behavior.
type RuntimeConfig struct {
	LogLevel  string `koanf:"log_level"  env:"LOG_LEVEL"  validate:"oneof=debug info warn error disabled"`
	LogJSON   bool   `koanf:"log_json"   env:"LOG_JSON"`
	LogSource bool   `koanf:"log_source" env:"LOG_SOURCE"`
}

// Default returns the configuration used when no overrides are present.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			DBName:          "credportal",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  5 * time.Second,
		},
		Storage: StorageConfig{
			RootDir:   ".",
			URLPrefix: "/uploads",
		},
		Intake: IntakeConfig{
			MaxProtocolAttempts: 10,
			ProtocolBackoff:     5 * time.Millisecond,
		},
		Locality: LocalityConfig{
			BaseURL:    "https://servicodados.ibge.gov.br/api/v1/localidades",
			Timeout:    30 * time.Second,
			RetryCount: 3,
		},
		Runtime: RuntimeConfig{
			LogLevel: "info",
		},
	}
}

// DSN returns the connection string, synthesizing one from the parts when
// ConnString is empty.
func (c *DatabaseConfig) DSN() string {
	if c.ConnString != "" {
		return c.ConnString.Value()
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password.Value(), c.Host, c.Port, c.DBName, c.SSLMode,
	)
}
