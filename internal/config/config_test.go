package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/certledger/internal/config"
)

const ownerHex = "0x00000000000000000000000000000000000000aa"

var envKeys = []string{
	"HTTP_ADDR", "OWNER", "BASE_PATH", "STORE_DRIVER", "STORE_PATH",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "REDIS_ADDR", "REDIS_CHANNEL", "LOG_LEVEL",
	"SHUTDOWN_TIMEOUT", "PLUGIN_TIMEOUT", "LENIENT_FALLBACK",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv("CERTLEDGER_"+k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "certledger.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CERTLEDGER_OWNER", ownerHex)

	c, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.HTTP.Addr != ":8080" || c.HTTP.ShutdownTimeout != 15*time.Second {
		t.Fatalf("http defaults = %+v", c.HTTP)
	}
	if c.Store.Driver != config.DriverSQLite || c.Store.Path == "" {
		t.Fatalf("store defaults = %+v", c.Store)
	}
	if c.Ledger.BasePath != "/certledger" || c.Ledger.LenientFallback {
		t.Fatalf("ledger defaults = %+v", c.Ledger)
	}
	if c.Kafka.Brokers != "" || c.Redis.Addr != "" {
		t.Fatalf("notifiers should be off by default")
	}
	if c.OwnerAddress().String() != ownerHex {
		t.Fatalf("owner = %s", c.OwnerAddress())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
http:
  addr: ":9000"
  shutdown_timeout: 3s
ledger:
  owner: "`+ownerHex+`"
  plugin_timeout: 250ms
store:
  driver: memory
kafka:
  brokers: "k1:9092,k2:9092"
log:
  level: debug
`)
	t.Setenv("CERTLEDGER_HTTP_ADDR", ":9100")
	t.Setenv("CERTLEDGER_LENIENT_FALLBACK", "true")

	c, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.HTTP.Addr != ":9100" {
		t.Errorf("env should override file: addr = %q", c.HTTP.Addr)
	}
	if c.HTTP.ShutdownTimeout != 3*time.Second || c.Ledger.PluginTimeout != 250*time.Millisecond {
		t.Errorf("durations = %v, %v", c.HTTP.ShutdownTimeout, c.Ledger.PluginTimeout)
	}
	if c.Store.Driver != config.DriverMemory || !c.Ledger.LenientFallback {
		t.Errorf("config = %+v", c)
	}
	if c.Kafka.Brokers != "k1:9092,k2:9092" || c.Kafka.Topic != "certledger.events" {
		t.Errorf("kafka = %+v", c.Kafka)
	}
	level, err := c.Log.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("level = %v, %v", level, err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "missing owner"},
		{name: "bad owner", env: map[string]string{"OWNER": "0x1234"}},
		{name: "unknown driver", env: map[string]string{"OWNER": ownerHex, "STORE_DRIVER": "oracle"}},
		{name: "bad duration", env: map[string]string{"OWNER": ownerHex, "PLUGIN_TIMEOUT": "soon"}},
		{name: "bad bool", env: map[string]string{"OWNER": ownerHex, "LENIENT_FALLBACK": "maybe"}},
		{name: "bad level", env: map[string]string{"OWNER": ownerHex, "LOG_LEVEL": "loud"}},
		{name: "bad yaml", file: "http: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv("CERTLEDGER_"+k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			if _, err := config.Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CERTLEDGER_OWNER", ownerHex)
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
