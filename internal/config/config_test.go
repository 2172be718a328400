package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  driver: postgres
  host: db.internal
jwt:
  secret: from-file
kafka:
  brokers: ["file:9092"]
notify:
  delivery_timeout: 2s
`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("secret = %q, want from-env", cfg.JWT.Secret)
	}
	if got := strings.Join(cfg.Kafka.Brokers, ","); got != "a:9092,b:9092" {
		t.Errorf("brokers = %q", got)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Notify.DeliveryTimeout != 2*time.Second {
		t.Errorf("delivery timeout = %v, want 2s", cfg.Notify.DeliveryTimeout)
	}
	// untouched sections keep their defaults
	if cfg.Notify.Workers != 4 || cfg.Booking.TxMaxAttempts != 3 {
		t.Errorf("defaults lost: workers=%d attempts=%d", cfg.Notify.Workers, cfg.Booking.TxMaxAttempts)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
}

func TestLoadRejectsBadEnvValue(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BOOKING_TX_MAX_ATTEMPTS", "many")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "BOOKING_TX_MAX_ATTEMPTS") {
		t.Fatalf("expected BOOKING_TX_MAX_ATTEMPTS error, got %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "sqlite"
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"jwt.secret", "database.driver", "server.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConnString(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: 5432, User: "gnar", Password: "pw", DBName: "gnarhub", SSLMode: "disable"}
	want := "host=localhost port=5432 user=gnar password=pw dbname=gnarhub sslmode=disable"
	if got := db.ConnString(); got != want {
		t.Errorf("ConnString = %q, want %q", got, want)
	}

	db.DSN = "postgres://gnar@db/gnarhub"
	if got := db.ConnString(); got != db.DSN {
		t.Errorf("ConnString = %q, want DSN", got)
	}
}
