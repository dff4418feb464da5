// Command loadtest нагружает InventoryService сценариями заказов и печатает
// сводку задержек по методам.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcsvc "github.com/vladislavdragonenkov/ims/internal/service/grpc"
)

type loadMode string

const (
	modeCreate        loadMode = "create"
	modeCreateProcess loadMode = "create-process"
	modeCreateCancel  loadMode = "create-cancel"
)

const (
	loadPayPalEmail    = "loadtest@ims.local"
	loadPayPalPassword = "loadtest"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	itemID      int64
	price       string
	stock       int
	outputPath  string
}

// invoker реализуется *grpcsvc.Client и фейком в тестах.
type invoker interface {
	Call(ctx context.Context, method string, request map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error)
}

func parseConfig(args []string, stderr io.Writer) (config, error) {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var cfg config
	var modeValue string

	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "scenarios to execute; with -duration acts as an upper bound only when set explicitly")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 5m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 8, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-process | create-cancel")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "percent of create-process scenarios that cancel instead of paying (0..100)")
	fs.Int64Var(&cfg.itemID, "item-id", 900001, "id of the electronics item used by the scenarios")
	fs.StringVar(&cfg.price, "price", "10.00", "price of the load item")
	fs.IntVar(&cfg.stock, "stock", 1_000_000, "stock of the load item")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.cancelRate < 0 || cfg.cancelRate > 100:
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	case cfg.itemID <= 0:
		return cfg, errors.New("item-id must be > 0")
	case cfg.stock <= 0:
		return cfg, errors.New("stock must be > 0")
	case strings.TrimSpace(cfg.price) == "":
		return cfg, errors.New("price is required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case modeCreate, modeCreateProcess, modeCreateCancel:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.WithError(err).Fatal("invalid config")
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]invoker, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			log.WithError(dialErr).Fatal("failed to create grpc client connection")
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	if err := prepare(clients[0], cfg); err != nil {
		log.WithError(err).Fatal("failed to prepare load item and payment method")
	}

	startedAt := time.Now()
	col := newCollector()
	runWorkers(clients, cfg, col)
	result := col.buildReport(startedAt, time.Since(startedAt))

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			log.WithError(err).Fatal("failed to write report")
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// prepare заводит товар и PayPal-аккаунт для сценариев. Уже существующие
// объекты от прошлых прогонов не считаются ошибкой.
func prepare(client invoker, cfg config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	_, err := client.Call(ctx, grpcsvc.MethodAddItem, map[string]any{
		"kind":            "electronics",
		"id":              cfg.itemID,
		"name":            "Load test item",
		"description":     "created by loadtest",
		"price":           cfg.price,
		"quantity":        cfg.stock,
		"warranty_expiry": time.Now().AddDate(1, 0, 0).Format(time.DateOnly),
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("add load item: %w", err)
	}

	_, err = client.Call(ctx, grpcsvc.MethodRegisterPaymentMethod, map[string]any{
		"kind":     "paypal",
		"email":    loadPayPalEmail,
		"password": loadPayPalPassword,
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("register payment method: %w", err)
	}
	return nil
}

func runWorkers(clients []invoker, cfg config, col *collector) {
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func(client invoker) {
			defer wg.Done()
			for index := range jobs {
				_ = runScenario(client, cfg, index, col)
			}
		}(clients[w%len(clients)])
	}
	dispatchJobs(jobs, cfg)
	wg.Wait()
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()
	for i := 0; !cfg.totalSet || i < cfg.total; i++ {
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario создаёт заказ на одну единицу товара и, в зависимости от
// режима, оплачивает или отменяет его.
func runScenario(client invoker, cfg config, index int, col *collector) (err error) {
	start := time.Now()
	defer func() {
		col.record(scenarioKey, time.Since(start), grpcCode(err))
	}()

	created, err := timedCall(client, cfg.timeout, grpcsvc.MethodCreateOrder, map[string]any{
		"lines": []any{map[string]any{"item_id": cfg.itemID, "qty": 1}},
	}, col)
	if err != nil {
		return err
	}
	fields := created.GetFields()
	orderID := fields["id"].GetNumberValue()
	total := fields["total"].GetStringValue()
	if orderID <= 0 || total == "" {
		return status.Error(codes.Internal, "create response misses id or total")
	}

	switch {
	case cfg.mode == modeCreate:
		return nil
	case shouldCancel(cfg, index):
		_, err = timedCall(client, cfg.timeout, grpcsvc.MethodCancelOrder, map[string]any{"id": orderID}, col)
	default:
		_, err = timedCall(client, cfg.timeout, grpcsvc.MethodProcessOrder, map[string]any{
			"id":     orderID,
			"kind":   "paypal",
			"key":    loadPayPalEmail,
			"secret": loadPayPalPassword,
			"amount": total,
		}, col)
	}
	return err
}

func timedCall(client invoker, timeout time.Duration, method string, req map[string]any, col *collector) (*structpb.Struct, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.Call(ctx, method, req)
	col.record(method, time.Since(start), grpcCode(err))
	return resp, err
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

// shouldCancel детерминированно выбирает cancelRate процентов сценариев.
func shouldCancel(cfg config, index int) bool {
	switch cfg.mode {
	case modeCreateCancel:
		return true
	case modeCreateProcess:
		return cfg.cancelRate > 0 && (cfg.cancelRate >= 100 || index%100 < cfg.cancelRate)
	default:
		return false
	}
}
