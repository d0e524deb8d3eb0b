package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
)

const testYAML = `
backend:
  url: "http://backend.test"
  timeout: 5s
feed:
  url: "wss://feed.test/ws"
  keepalive: 30s
replay:
  source: s3
  interval: 1500ms
kafka:
  brokers: ["k1:9092"]
watch:
  locations:
    - location_id: "cabin"
      name: "Cabin"
      lat: 38.5
      lon: -120.25
      radius_miles: 12.5
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigYAMLAndDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Backend.URL != "http://backend.test" || cfg.Backend.Timeout != 5*time.Second {
		t.Fatalf("backend=%+v", cfg.Backend)
	}
	if cfg.Replay.Source != "s3" || cfg.Replay.Interval != 1500*time.Millisecond {
		t.Fatalf("replay=%+v", cfg.Replay)
	}
	if cfg.HTTP.Listen != ":8003" || cfg.Mode != "live" || cfg.Replay.DefaultRange != "24h" {
		t.Fatalf("defaults not applied: listen=%q mode=%q range=%q", cfg.HTTP.Listen, cfg.Mode, cfg.Replay.DefaultRange)
	}
	if cfg.Alerts.Interval != 5*time.Minute || cfg.Watch.RefreshInterval != time.Minute {
		t.Fatalf("interval defaults: alerts=%v watch=%v", cfg.Alerts.Interval, cfg.Watch.RefreshInterval)
	}

	if len(cfg.Watch.Locations) != 1 {
		t.Fatalf("locations=%d want 1", len(cfg.Watch.Locations))
	}
	loc := cfg.Watch.Locations[0]
	if loc.ID != "cabin" || loc.RadiusMiles != 12.5 || loc.Lon != -120.25 || loc.Status != models.WatchStatusActive {
		t.Fatalf("location=%+v", loc)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://override.test")
	t.Setenv("FEED_KEEPALIVE", "10s")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("SYNC_MODE", "replay")

	cfg, err := LoadConfig(writeConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Backend.URL != "http://override.test" {
		t.Fatalf("backend url=%q want override", cfg.Backend.URL)
	}
	if cfg.Feed.Keepalive != 10*time.Second {
		t.Fatalf("keepalive=%v want 10s", cfg.Feed.Keepalive)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("brokers=%v want [a:9092 b:9092]", cfg.Kafka.Brokers)
	}
	if cfg.Mode != "replay" {
		t.Fatalf("mode=%q want replay", cfg.Mode)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
