package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Capitan-Parrot/wildfire-live/internal/api"
	"github.com/Capitan-Parrot/wildfire-live/internal/config"
	"github.com/Capitan-Parrot/wildfire-live/internal/database"
	"github.com/Capitan-Parrot/wildfire-live/internal/feed"
	"github.com/Capitan-Parrot/wildfire-live/internal/geofence"
	"github.com/Capitan-Parrot/wildfire-live/internal/kafka"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/Capitan-Parrot/wildfire-live/internal/reconciler"
	"github.com/Capitan-Parrot/wildfire-live/internal/replay"
	"github.com/Capitan-Parrot/wildfire-live/internal/s3"
	"github.com/Capitan-Parrot/wildfire-live/internal/services/backend"
	"github.com/Capitan-Parrot/wildfire-live/internal/syncer"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.Println("Main: init...")

	if err := godotenv.Load(); err != nil {
		log.Println("Main: .env not found, using environment")
	}

	// Чтение конфига
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// База данных нужна только для точек наблюдения
	var watchStore syncer.WatchStore
	if cfg.Postgres.DSN != "" {
		db, err := database.New(cfg.Postgres.DSN)
		if err != nil {
			log.Fatal(err)
		}
		if err := db.Init(); err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		watchStore = db
	}

	backendClient := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout)

	// Источник снимков для replay
	var source replay.Source = backendClient
	if cfg.Replay.Source == "s3" {
		minioClient, err := s3.NewMinioClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Replay.Bucket, cfg.Minio.Secure)
		if err != nil {
			log.Fatalf("Failed connect to MinIO: %v", err)
		}
		source = minioClient
	}

	var alerts syncer.AlertEvaluator
	if cfg.Alerts.Enabled {
		evaluator, closeAlerts := newEvaluator(ctx, cfg)
		defer closeAlerts()
		alerts = evaluator
	}

	feedManager := feed.NewManager(feed.Options{
		URL:         cfg.Feed.URL,
		Keepalive:   cfg.Feed.Keepalive,
		BaseBackoff: cfg.Feed.BaseBackoff,
		MaxBackoff:  cfg.Feed.MaxBackoff,
		DialTimeout: cfg.Feed.DialTimeout,
	})
	engine := replay.NewEngine(source, replay.Options{Interval: cfg.Replay.Interval})

	mode, err := syncer.ParseMode(cfg.Mode)
	if err != nil {
		log.Fatal(err)
	}
	rng, err := models.ParseRange(cfg.Replay.DefaultRange)
	if err != nil {
		log.Fatal(err)
	}

	s := syncer.New(feedManager, engine, reconciler.New(), geofence.NewIndex(), backendClient,
		syncer.NewWatches(watchStore, cfg.Watch.Locations), alerts, syncer.Options{
			Mode:                 mode,
			Range:                rng,
			WatchRefreshInterval: cfg.Watch.RefreshInterval,
			AlertInterval:        cfg.Alerts.Interval,
		})

	// Изменения точек наблюдения из других сервисов
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.WatchEventTopic != "" {
		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.WatchEventTopic)
		if err != nil {
			log.Fatalf("Failed to create Kafka consumer: %v", err)
		}
		defer consumer.Close()
		go consumer.StartListening(ctx, s.HandleWatchEvent)
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	srv := &http.Server{Addr: cfg.HTTP.Listen, Handler: api.NewRouter(api.NewHandlers(s))}
	go func() {
		log.Printf("Starting sync API server on %s", cfg.HTTP.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Println("Завершение работы...")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Printf("API server shutdown error: %v", err)
	}
	cancel() // Stop goroutines
	<-done
}

// newEvaluator собирает проверку алертов: Redis для дедупликации, если
// доступен, и Kafka для публикации. вторая функция закрывает созданные клиенты
func newEvaluator(ctx context.Context, cfg *config.Config) (*geofence.Evaluator, func()) {
	var closers []func() error

	var dedup geofence.Deduper = geofence.NewMemoryDeduper(cfg.Alerts.DedupTTL, nil)
	if cfg.Redis.Addr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Printf("Main: redis unavailable, dedup in memory: %v", err)
			rc.Close()
		} else {
			dedup = geofence.NewRedisDeduper(rc, cfg.Alerts.DedupTTL)
			closers = append(closers, rc.Close)
		}
	}

	var publisher geofence.Publisher
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.AlertTopic != "" {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
		if err != nil {
			log.Fatalf("Failed to create Kafka producer: %v", err)
		}
		publisher = producer
		closers = append(closers, producer.Close)
	}

	return geofence.NewEvaluator(dedup, publisher), closeAll(closers)
}

// closeAll закрывает клиенты в обратном порядке; ошибки только логируются
func closeAll(closers []func() error) func() {
	return func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Printf("Main: close error: %v", err)
			}
		}
	}
}
