package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/app"
	"github.com/vladislavdragonenkov/ims/internal/version"
)

const (
	envGRPCAddr            = "IMS_GRPC_ADDR"
	envMetricsAddr         = "IMS_METRICS_ADDR"
	envStorageDriver       = "IMS_STORAGE_DRIVER"
	envSnapshotPath        = "IMS_SNAPSHOT_PATH"
	envSnapshotInterval    = "IMS_SNAPSHOT_INTERVAL"
	envPostgresDSN         = "IMS_POSTGRES_DSN"
	envPostgresAutoMigrate = "IMS_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers        = "IMS_KAFKA_BROKERS"
	envKafkaTopic          = "IMS_KAFKA_TOPIC"
	envOTelEndpoint        = "IMS_OTEL_ENDPOINT"
	envOTelInsecure        = "IMS_OTEL_INSECURE"
	envOTelSampleRatio     = "IMS_OTEL_SAMPLE_RATIO"
	envLogLevel            = "IMS_LOG_LEVEL"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не прерывают запуск: остаётся значение по умолчанию,
// а причина попадает в warnings.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
	}

	if v, ok := nonEmpty(lookup, envGRPCAddr); ok {
		cfg.GRPCAddr = v
	}
	if v, ok := nonEmpty(lookup, envMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := nonEmpty(lookup, envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v, ok := nonEmpty(lookup, envSnapshotPath); ok {
		cfg.SnapshotPath = v
	}
	if v, ok := nonEmpty(lookup, envSnapshotInterval); ok {
		interval, err := parseDuration(v, func(d time.Duration) bool { return d >= 0 }, "must be >= 0")
		if err != nil {
			warn(envSnapshotInterval, v, err)
		} else {
			cfg.SnapshotInterval = interval
		}
	}
	if v, ok := nonEmpty(lookup, envPostgresDSN); ok {
		cfg.PostgresDSN = v
	}
	if v, ok := nonEmpty(lookup, envPostgresAutoMigrate); ok {
		enabled, err := parseBool(v)
		if err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = enabled
		}
	}
	if v, ok := nonEmpty(lookup, envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	if v, ok := nonEmpty(lookup, envKafkaTopic); ok {
		cfg.KafkaTopic = v
	}
	if v, ok := nonEmpty(lookup, envOTelEndpoint); ok {
		cfg.OTelEndpoint = v
	}
	if v, ok := nonEmpty(lookup, envOTelInsecure); ok {
		insecure, err := parseBool(v)
		if err != nil {
			warn(envOTelInsecure, v, err)
		} else {
			cfg.OTelInsecure = insecure
		}
	}
	if v, ok := nonEmpty(lookup, envOTelSampleRatio); ok {
		ratio, err := parseRatio(v)
		if err != nil {
			warn(envOTelSampleRatio, v, err)
		} else {
			cfg.OTelSampleRatio = ratio
		}
	}
	if v, ok := nonEmpty(lookup, envLogLevel); ok {
		if _, err := log.ParseLevel(v); err != nil {
			warn(envLogLevel, v, err)
		} else {
			cfg.LogLevel = strings.ToLower(v)
		}
	}

	return cfg, warnings
}

func nonEmpty(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", value)
	}
}

func parseDuration(value string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(parsed) {
		return 0, fmt.Errorf("value %s %s", parsed, rule)
	}
	return parsed, nil
}

func parseRatio(value string) (float64, error) {
	ratio, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	if ratio < 0 || ratio > 1 {
		return 0, fmt.Errorf("value %v must be within [0, 1]", ratio)
	}
	return ratio, nil
}

func main() {
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	if err := setupLogger(cfg.LogLevel); err != nil {
		log.WithError(err).Warn("invalid log level, using info")
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka_enabled":  len(cfg.KafkaBrokers) > 0,
		"tracing":        cfg.OTelEndpoint != "",
		"version":        version.String(),
	}).Info("запускаем InventoryService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("InventoryService остановлен")
}
