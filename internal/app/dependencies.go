package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ims/internal/health"
	"github.com/vladislavdragonenkov/ims/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/service/orderbook"
	"github.com/vladislavdragonenkov/ims/internal/service/payment"
	"github.com/vladislavdragonenkov/ims/internal/storage/file"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
	"github.com/vladislavdragonenkov/ims/internal/storage/postgres"
)

// Параметры breaker для публикации в Kafka.
const (
	kafkaBreakerFailures = 5
	kafkaBreakerReset    = 30 * time.Second
)

// runtimeDependencies — собранный граф зависимостей сервиса.
type runtimeDependencies struct {
	store     domain.InventoryStore
	orders    domain.OrderRepository
	timeline  domain.TimelineRepository
	snapshots domain.SnapshotRepository
	payments  *payment.Registry
	book      *orderbook.Book
	metrics   *metrics.InventoryMetrics
	producer  *kafka.Producer
	checkers  map[string]healthcheck.Checker
	closeFn   func() error
}

// storageBackend — то, что зависит от выбранного драйвера.
type storageBackend struct {
	snapshots domain.SnapshotRepository
	timeline  domain.TimelineRepository
	checkers  map[string]healthcheck.Checker
	closeFn   func() error
}

// initRuntimeDependencies собирает зависимости по конфигурации. registerer
// nil означает глобальный реестр Prometheus.
func initRuntimeDependencies(ctx context.Context, cfg Config, registerer prometheus.Registerer, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var m *metrics.InventoryMetrics
	if registerer != nil {
		m = metrics.NewInventoryMetricsWithRegisterer(registerer)
	} else {
		m = metrics.NewInventoryMetrics()
	}

	producer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	if err != nil {
		// Kafka необязательна: события остаются в timeline.
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		producer = nil
	}

	store := memory.NewInventoryStore()
	orders := memory.NewOrderRepository()
	payments := payment.NewRegistry(
		payment.WithLogger(logger.WithField("component", "payment-registry")),
		payment.WithMetrics(m),
	)

	bookOpts := []orderbook.Option{
		orderbook.WithLogger(logger.WithField("component", "order-book")),
		orderbook.WithMetrics(m),
		orderbook.WithTimeline(backend.timeline),
	}
	if producer != nil {
		publisherLogger := logger.WithField("component", "kafka-publisher")
		bookOpts = append(bookOpts, orderbook.WithPublisher(kafka.NewResilientPublisher(
			producer,
			kafka.DefaultRetryConfig(),
			kafka.NewCircuitBreaker(kafkaBreakerFailures, kafkaBreakerReset, publisherLogger),
			publisherLogger,
		)))
	}

	return &runtimeDependencies{
		store:     store,
		orders:    orders,
		timeline:  backend.timeline,
		snapshots: backend.snapshots,
		payments:  payments,
		book:      orderbook.NewBook(store, orders, payments, bookOpts...),
		metrics:   m,
		producer:  producer,
		checkers:  backend.checkers,
		closeFn:   backend.closeFn,
	}, nil
}

// snapshotMaxAge — порог свежести снимка для health: три пропущенных автосохранения.
func snapshotMaxAge(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	return 3 * interval
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (storageBackend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	maxAge := snapshotMaxAge(cfg.SnapshotInterval)

	switch driver {
	case StorageDriverMemory:
		snapshots := memory.NewSnapshotRepository()
		logger.Info("using in-memory storage, snapshots do not survive restart")
		return storageBackend{
			snapshots: snapshots,
			timeline:  memory.NewTimelineRepository(),
			checkers:  map[string]healthcheck.Checker{},
			closeFn:   func() error { return nil },
		}, nil

	case StorageDriverFile:
		snapshots := file.NewSnapshotRepository(cfg.SnapshotPath, logger.WithField("component", "file-snapshots"))
		logger.WithFields(log.Fields{
			"path":     snapshots.Path(),
			"csv_path": snapshots.CSVPath(),
		}).Info("using file storage")
		return storageBackend{
			snapshots: snapshots,
			timeline:  memory.NewTimelineRepository(),
			checkers: map[string]healthcheck.Checker{
				"snapshot": healthcheck.NewSnapshotChecker(snapshots, maxAge),
			},
			closeFn: func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, logger.WithField("component", "postgres"))
		if err != nil {
			return storageBackend{}, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return storageBackend{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		snapshots := postgres.NewSnapshotRepository(store)
		logger.Info("using postgres storage")
		return storageBackend{
			snapshots: snapshots,
			timeline:  postgres.NewTimelineRepository(store),
			checkers: map[string]healthcheck.Checker{
				"postgres": healthcheck.NewSimpleChecker("postgres", store.Ping),
				"snapshot": healthcheck.NewSnapshotChecker(snapshots, maxAge),
			},
			closeFn: store.Close,
		}, nil

	default:
		return storageBackend{}, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}

// close освобождает внешние ресурсы в обратном порядке создания.
func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil {
		return
	}
	closeKafka(d.producer, logger)
	if d.closeFn != nil {
		if err := d.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}
}
