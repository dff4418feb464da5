package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/ims/internal/health"
	grpcsvc "github.com/vladislavdragonenkov/ims/internal/service/grpc"
	"github.com/vladislavdragonenkov/ims/internal/tracing"
	"github.com/vladislavdragonenkov/ims/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает gRPC-сервис склада и HTTP-сервер метрик и блокируется до
// отмены ctx. Перед остановкой сохраняет снимок склада.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	if err := deps.restoreSnapshot(ctx, logger); err != nil {
		return err
	}

	var serviceOpts []grpcsvc.ServiceOption
	tp, shutdownTracing, err := tracing.Setup(ctx, cfg.tracingConfig(), logger.WithField("layer", "tracing"))
	if err != nil {
		logger.WithError(err).Warn("tracing setup failed, spans are not exported")
	}
	if tp != nil {
		serviceOpts = append(serviceOpts, grpcsvc.WithTracerProvider(tp))
	}
	defer flushTracing(shutdownTracing, logger)

	serviceLogger := logger.WithField("layer", "grpc")
	inventoryService := grpcsvc.NewInventoryService(deps.store, deps.book, deps.payments, serviceLogger, serviceOpts...)

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		tracing.UnaryServerInterceptor(),
		grpcMetrics.UnaryServerInterceptor(),
	))

	grpcsvc.RegisterInventoryServer(grpcServer, inventoryService)
	grpcMetrics.InitializeMetrics(grpcServer)

	// reflection нужен grpcurl: сервис описан без .proto.
	reflection.Register(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}

	metricsSrv, err := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		deps.runSnapshotLoop(loopCtx, cfg.SnapshotInterval, logger)
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.Shutdown()
		stopGRPC(grpcServer, logger)
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	stopLoop()
	<-loopDone
	shutdownHTTP(metricsSrv, logger)

	saveCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := deps.persistSnapshot(saveCtx, logger); err != nil {
		logger.WithError(err).Error("failed to save inventory snapshot on shutdown")
	} else {
		logger.WithField("items", deps.store.Len()).Info("inventory snapshot saved on shutdown")
	}

	return runErr
}

// flushTracing отправляет накопленные span-ы перед выходом.
func flushTracing(shutdown tracing.ShutdownFunc, logger *log.Entry) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.WithError(err).Warn("tracing shutdown with error")
	}
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// newHTTPMux собирает маршруты метрик и health-проб.
func newHTTPMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// startMetricsServer слушает addr и обслуживает newHTTPMux в фоне.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) (*http.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:           newHTTPMux(healthHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", lis.Addr())
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", lis.Addr(), lis.Addr(), lis.Addr())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv, nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
