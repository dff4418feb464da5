package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ims/internal/tracing"
	"github.com/vladislavdragonenkov/ims/internal/version"
)

// Драйверы хранилища снимков склада.
const (
	StorageDriverMemory   = "memory"
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	// StorageDriver выбирает, где хранятся снимки склада и история заказов.
	StorageDriver       string
	SnapshotPath        string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// SnapshotInterval — период автосохранения; 0 — только при остановке.
	SnapshotInterval time.Duration

	// Пустой список брокеров отключает публикацию событий.
	KafkaBrokers []string
	KafkaTopic   string

	// Пустой адрес коллектора оставляет трассировку выключенной.
	OTelEndpoint    string
	OTelInsecure    bool
	OTelSampleRatio float64

	LogLevel string
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		SnapshotPath:        "data/inventory.json",
		PostgresAutoMigrate: true,
		SnapshotInterval:    time.Minute,
		KafkaTopic:          kafka.DefaultTopic,
		OTelSampleRatio:     1,
		LogLevel:            "info",
	}
}

// Validate проверяет согласованность настроек хранилища.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.StorageDriver)) {
	case StorageDriverMemory:
	case StorageDriverFile:
		if strings.TrimSpace(c.SnapshotPath) == "" {
			return fmt.Errorf("snapshot path is required for %s storage driver", StorageDriverFile)
		}
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("postgres dsn is required for %s storage driver", StorageDriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.StorageDriver)
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("snapshot interval must be >= 0, got %s", c.SnapshotInterval)
	}
	return c.tracingConfig().Validate()
}

func (c Config) tracingConfig() tracing.Config {
	return tracing.Config{
		Endpoint:       c.OTelEndpoint,
		Insecure:       c.OTelInsecure,
		ServiceName:    tracing.DefaultServiceName,
		ServiceVersion: version.GetVersion(),
		SampleRatio:    c.OTelSampleRatio,
	}
}
