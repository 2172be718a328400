package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	JWT       JWTConfig       `yaml:"jwt"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Notify    NotifyConfig    `yaml:"notify"`
	Booking   BookingConfig   `yaml:"booking"`
	Reminders RemindersConfig `yaml:"reminders"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration.
// Driver "memory" runs without Postgres, for local development.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"`
}

// AWSConfig holds the event archive bucket configuration. The archive is off without a bucket.
type AWSConfig struct {
	Region        string `yaml:"region"`
	S3Bucket      string `yaml:"s3_bucket"`
	ArchivePrefix string `yaml:"archive_prefix"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// AuthConfig lists the emails that register as admins
type AuthConfig struct {
	AdminEmails []string `yaml:"admin_emails"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// RedisConfig enables cross-instance websocket fan-out when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// KafkaConfig enables the notification topic when Brokers is set
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// NotifyConfig tunes the notification dispatcher
type NotifyConfig struct {
	QueueSize       int           `yaml:"queue_size"`
	Workers         int           `yaml:"workers"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// BookingConfig tunes the acceptance transaction
type BookingConfig struct {
	TxMaxAttempts int `yaml:"tx_max_attempts"`
}

// RemindersConfig drives the daily reminder job
type RemindersConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	DaysAhead int           `yaml:"days_ahead"`
}

// Default returns the configuration used for unset values
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			Port:     5432,
			SSLMode:  "disable",
			MaxConns: 10,
		},
		AWS:       AWSConfig{Region: "us-east-1", ArchivePrefix: "events"},
		Log:       LogConfig{Level: "info"},
		Redis:     RedisConfig{Channel: "gnarhub:events"},
		Kafka:     KafkaConfig{Topic: "gnarhub.notifications"},
		Notify:    NotifyConfig{QueueSize: 1024, Workers: 4, DeliveryTimeout: 5 * time.Second},
		Booking:   BookingConfig{TxMaxAttempts: 3},
		Reminders: RemindersConfig{Interval: 24 * time.Hour, DaysAhead: 1},
	}
}

// Load reads .env (when present), the YAML file at path (when present) and then
// environment overrides, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	// .env is optional; production injects real environment variables
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	var errs []error
	applyEnv(&cfg, &errs)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, errs *[]error) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT", errs)

	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setBool(&cfg.Database.Migrate, "DATABASE_MIGRATE", errs)

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	if v := os.Getenv("ADMIN_EMAILS"); v != "" {
		cfg.Auth.AdminEmails = splitAndTrim(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitAndTrim(v)
	}
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")

	setString(&cfg.AWS.Region, "AWS_REGION")
	setString(&cfg.AWS.S3Bucket, "S3_BUCKET")
	setString(&cfg.AWS.AccessKey, "AWS_ACCESS_KEY")
	setString(&cfg.AWS.SecretKey, "AWS_SECRET_KEY")
	setString(&cfg.AWS.Endpoint, "S3_ENDPOINT")

	setInt(&cfg.Booking.TxMaxAttempts, "BOOKING_TX_MAX_ATTEMPTS", errs)
	setBool(&cfg.Reminders.Enabled, "REMINDERS_ENABLED", errs)
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, fmt.Errorf("jwt.secret is required"))
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" && c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.dsn or database.host is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver))
	}
	if c.Booking.TxMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("booking.tx_max_attempts must be > 0"))
	}
	if c.Notify.QueueSize <= 0 || c.Notify.Workers <= 0 {
		errs = append(errs, fmt.Errorf("notify.queue_size and notify.workers must be > 0"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, fmt.Errorf("kafka.topic is required when brokers are set"))
	}
	if c.Reminders.Enabled && c.Reminders.Interval <= 0 {
		errs = append(errs, fmt.Errorf("reminders.interval must be > 0"))
	}
	return errors.Join(errs...)
}

// ConnString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setString(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func setInt(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBool(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
