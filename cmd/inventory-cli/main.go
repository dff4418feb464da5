// Command inventory-cli — интерактивное меню склада в терминале.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/cli"
	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/service/orderbook"
	"github.com/vladislavdragonenkov/ims/internal/service/payment"
	"github.com/vladislavdragonenkov/ims/internal/storage/file"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

const envSnapshotPath = "IMS_SNAPSHOT_PATH"

// snapshotOpener открывает файловые снимки. Пустое имя означает defaultPath,
// относительное имя кладётся рядом с ним.
func snapshotOpener(defaultPath string, logger *log.Entry) cli.SnapshotOpener {
	return func(name string) (domain.SnapshotRepository, error) {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			name = defaultPath
		case !filepath.IsAbs(name):
			name = filepath.Join(filepath.Dir(defaultPath), name)
		}
		return file.NewSnapshotRepository(name, logger), nil
	}
}

func newMenu(in io.Reader, out io.Writer, snapshotPath string, logger *log.Entry) *cli.Menu {
	// Метрики CLI никуда не экспортируются, поэтому реестр локальный.
	m := metrics.NewInventoryMetricsWithRegisterer(prometheus.NewRegistry())

	store := memory.NewInventoryStore()
	payments := payment.NewRegistry(
		payment.WithLogger(logger.WithField("component", "payment-registry")),
		payment.WithMetrics(m),
	)
	book := orderbook.NewBook(store, memory.NewOrderRepository(), payments,
		orderbook.WithLogger(logger.WithField("component", "order-book")),
		orderbook.WithMetrics(m),
		orderbook.WithTimeline(memory.NewTimelineRepository()),
	)

	return cli.NewMenu(in, out, store, book, payments,
		cli.WithLogger(logger.WithField("component", "cli")),
		cli.WithSnapshotOpener(snapshotOpener(snapshotPath, logger.WithField("component", "file-snapshots"))),
	)
}

func main() {
	defaultPath := "data/inventory.json"
	if v, ok := os.LookupEnv(envSnapshotPath); ok && strings.TrimSpace(v) != "" {
		defaultPath = strings.TrimSpace(v)
	}
	snapshotPath := flag.String("snapshot", defaultPath, "default inventory snapshot file")
	logLevel := flag.String("log-level", "warn", "log level (logs go to stderr)")
	flag.Parse()

	log.SetOutput(os.Stderr)
	if level, err := log.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(log.WarnLevel)
		log.WithError(err).Warn("invalid log level, using warn")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	menu := newMenu(os.Stdin, os.Stdout, *snapshotPath, log.WithField("app", "inventory-cli"))
	if err := menu.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("menu stopped with error")
	}
}
