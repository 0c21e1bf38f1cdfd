// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/tracing"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
	DriverFixture  = "fixture"
)

// EnvPrefix prefixes every environment variable that is not bound by name.
const EnvPrefix = "EVENTS"

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Mongo       MongoConfig       `mapstructure:"mongo"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	AMQP        AMQPConfig        `mapstructure:"amqp"`
	Tracing     tracing.Config    `mapstructure:"tracing"`
	Log         log.Config        `mapstructure:"log"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// StoreConfig selects the persistence adapter. FallbackToFixtures switches
// to the read-only fixture adapter when the configured store cannot be
// reached at startup.
type StoreConfig struct {
	Driver             string `mapstructure:"driver"`
	FixturesPath       string `mapstructure:"fixtures_path"`
	FallbackToFixtures bool   `mapstructure:"fallback_to_fixtures"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds a libpq-compatible connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrateURL builds the URL form golang-migrate's pgx/v5 driver expects.
func (c PostgresConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LedgerConfig bounds the retry-on-conflict loop of the capacity ledger.
type LedgerConfig struct {
	MaxAttempts    uint          `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// AMQPConfig configures lifecycle notifications. An empty URL disables them.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Store: StoreConfig{
			Driver:             DriverPostgres,
			FallbackToFixtures: false,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			DBName:          "eventbooking",
			SSLMode:         "disable",
			MaxConns:        20,
			MinConns:        2,
			ConnectAttempts: 5,
			ConnectBackoff:  2 * time.Second,
			AutoMigrate:     true,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "events",
			ConnectTimeout: 10 * time.Second,
		},
		Ledger: LedgerConfig{
			MaxAttempts:    8,
			InitialBackoff: 5 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
		},
		AMQP: AMQPConfig{
			Exchange: "registrations",
		},
		Tracing: tracing.DefaultConfig(),
		Log: log.Config{
			Level:  "info",
			Format: "text",
		},
		Idempotency: IdempotencyConfig{
			TTL: 10 * time.Minute,
		},
	}
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.fixtures_path", d.Store.FixturesPath)
	v.SetDefault("store.fallback_to_fixtures", d.Store.FallbackToFixtures)

	v.SetDefault("postgres.host", d.Postgres.Host)
	v.SetDefault("postgres.port", d.Postgres.Port)
	v.SetDefault("postgres.user", d.Postgres.User)
	v.SetDefault("postgres.password", d.Postgres.Password)
	v.SetDefault("postgres.dbname", d.Postgres.DBName)
	v.SetDefault("postgres.sslmode", d.Postgres.SSLMode)
	v.SetDefault("postgres.max_conns", d.Postgres.MaxConns)
	v.SetDefault("postgres.min_conns", d.Postgres.MinConns)
	v.SetDefault("postgres.connect_attempts", d.Postgres.ConnectAttempts)
	v.SetDefault("postgres.connect_backoff", d.Postgres.ConnectBackoff)
	v.SetDefault("postgres.auto_migrate", d.Postgres.AutoMigrate)

	v.SetDefault("mongo.uri", d.Mongo.URI)
	v.SetDefault("mongo.database", d.Mongo.Database)
	v.SetDefault("mongo.connect_timeout", d.Mongo.ConnectTimeout)

	v.SetDefault("ledger.max_attempts", d.Ledger.MaxAttempts)
	v.SetDefault("ledger.initial_backoff", d.Ledger.InitialBackoff)
	v.SetDefault("ledger.max_backoff", d.Ledger.MaxBackoff)

	v.SetDefault("amqp.url", d.AMQP.URL)
	v.SetDefault("amqp.exchange", d.AMQP.Exchange)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("idempotency.ttl", d.Idempotency.TTL)

	// The original deployment's variable names.
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("postgres.host", "DB_HOST")
	_ = v.BindEnv("postgres.port", "DB_PORT")
	_ = v.BindEnv("postgres.user", "DB_USER")
	_ = v.BindEnv("postgres.password", "DB_PASSWORD")
	_ = v.BindEnv("postgres.dbname", "DB_NAME")
	_ = v.BindEnv("postgres.sslmode", "DB_SSLMODE")
	_ = v.BindEnv("mongo.uri", "MONGO_URL")
	_ = v.BindEnv("amqp.url", "RABBITMQ_URL")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			log.Debug(log.CatConfig, "loaded env file", "path", f)
		}
	}
}

// Load reads configuration from v. If path is non-empty that file must
// exist; otherwise a config.yaml in the working directory is optional.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Debug(log.CatConfig, "loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverMongo, DriverMemory, DriverFixture:
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	if c.Ledger.MaxAttempts == 0 {
		return errors.New("ledger.max_attempts must be positive")
	}
	if c.Ledger.InitialBackoff <= 0 || c.Ledger.MaxBackoff < c.Ledger.InitialBackoff {
		return errors.New("ledger backoff must satisfy 0 < initial_backoff <= max_backoff")
	}
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Idempotency.TTL < 0 {
		return errors.New("idempotency.ttl must not be negative")
	}
	return nil
}
