package config

import (
	"os"
	"strings"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config структура конфига
type Config struct {
	HTTP struct {
		Listen string `yaml:"listen" env:"HTTP_LISTEN"`
	} `yaml:"http"`

	Backend struct {
		URL     string        `yaml:"url" env:"BACKEND_URL"`
		Timeout time.Duration `yaml:"timeout" env:"BACKEND_TIMEOUT"`
	} `yaml:"backend"`

	Feed struct {
		URL         string        `yaml:"url" env:"FEED_URL"`
		Keepalive   time.Duration `yaml:"keepalive" env:"FEED_KEEPALIVE"`
		BaseBackoff time.Duration `yaml:"base_backoff" env:"FEED_BASE_BACKOFF"`
		MaxBackoff  time.Duration `yaml:"max_backoff" env:"FEED_MAX_BACKOFF"`
		DialTimeout time.Duration `yaml:"dial_timeout" env:"FEED_DIAL_TIMEOUT"`
	} `yaml:"feed"`

	Replay struct {
		// api или s3
		Source       string        `yaml:"source" env:"REPLAY_SOURCE"`
		DefaultRange string        `yaml:"default_range" env:"REPLAY_DEFAULT_RANGE"`
		Interval     time.Duration `yaml:"interval" env:"REPLAY_INTERVAL"`
		Bucket       string        `yaml:"bucket" env:"REPLAY_BUCKET"`
	} `yaml:"replay"`

	Mode string `yaml:"mode" env:"SYNC_MODE"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
		Secure    bool   `yaml:"secure" env:"MINIO_SECURE"`
	} `yaml:"minio"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`

	Kafka struct {
		Brokers         []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		GroupID         string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
		AlertTopic      string   `yaml:"alert_topic" env:"ALERT_TOPIC"`
		WatchEventTopic string   `yaml:"watch_event_topic" env:"WATCH_EVENT_TOPIC"`
	} `yaml:"kafka"`

	Alerts struct {
		Enabled  bool          `yaml:"enabled" env:"ALERTS_ENABLED"`
		Interval time.Duration `yaml:"interval" env:"ALERTS_INTERVAL"`
		DedupTTL time.Duration `yaml:"dedup_ttl" env:"ALERTS_DEDUP_TTL"`
	} `yaml:"alerts"`

	Watch struct {
		RefreshInterval time.Duration          `yaml:"refresh_interval" env:"WATCH_REFRESH_INTERVAL"`
		Locations       []models.WatchLocation `yaml:"locations"`
	} `yaml:"watch"`
}

func LoadConfig(filename string) (*Config, error) {
	cfg := &Config{}

	if filename == "" {
		filename = "local.yaml"
	}
	path := filename
	if !strings.Contains(filename, "/") {
		path = "internal/config/" + filename
	}

	// Читаем YAML
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Парсим YAML в структуру
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Парсим переменные окружения с приоритетом
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8003"
	}
	if c.Mode == "" {
		c.Mode = "live"
	}
	if c.Replay.Source == "" {
		c.Replay.Source = "api"
	}
	if c.Replay.DefaultRange == "" {
		c.Replay.DefaultRange = string(models.DefaultRange)
	}
	if c.Alerts.Interval <= 0 {
		c.Alerts.Interval = 5 * time.Minute
	}
	if c.Watch.RefreshInterval <= 0 {
		c.Watch.RefreshInterval = time.Minute
	}
	for i := range c.Watch.Locations {
		if c.Watch.Locations[i].Status == "" {
			c.Watch.Locations[i].Status = models.WatchStatusActive
		}
	}
}
