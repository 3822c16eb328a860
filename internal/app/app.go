// Package app собирает order-service: хранилище, справочники, сценарии заказов,
// REST и gRPC серверы, метрики и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/joeltadeu/pact-shopping-api/internal/health"
	"github.com/joeltadeu/pact-shopping-api/internal/messaging/kafka"
	"github.com/joeltadeu/pact-shopping-api/internal/metrics"
	"github.com/joeltadeu/pact-shopping-api/internal/service/idempotency"
	"github.com/joeltadeu/pact-shopping-api/internal/service/order"
	"github.com/joeltadeu/pact-shopping-api/internal/service/outbox"
	"github.com/joeltadeu/pact-shopping-api/internal/transport/grpcsvc"
	"github.com/joeltadeu/pact-shopping-api/internal/transport/httpapi"
	"github.com/joeltadeu/pact-shopping-api/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run запускает сервис и блокируется до отмены ctx или падения одного из серверов.
// При штатной остановке возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if deps.closeFn == nil {
			return
		}
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	orderMetrics := metrics.NewOrderMetrics()
	ports, err := initLookups(cfg, orderMetrics, logger)
	if err != nil {
		return fmt.Errorf("init lookups: %w", err)
	}

	// Без Kafka события в outbox не пишутся: публиковать их некому.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	serviceOpts := []order.Option{
		order.WithLogger(logger.WithField("layer", "order")),
		order.WithMetrics(orderMetrics),
	}
	if kafkaProducer != nil {
		serviceOpts = append(serviceOpts, order.WithOutbox(deps.outboxRepo))
	}
	service := order.NewService(deps.repo, ports.customers, ports.products, ports.prices, serviceOpts...)
	guard := idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL, logger.WithField("layer", "idempotency"))

	apiHandler := httpapi.NewHandler(service,
		httpapi.WithLogger(logger.WithField("layer", "http")),
		httpapi.WithMetrics(metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)),
		httpapi.WithIdempotency(guard),
	)

	grpcServer, healthServer := newGRPCServer(service, guard, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion(), version.GetCommit())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	if kafkaProducer != nil {
		healthHandler.RegisterChecker("outbox", healthcheck.NewBacklogChecker("outbox", outboxBacklog{repo: deps.outboxRepo}, cfg.OutboxMaxPending))
	}

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	apiSrv := &http.Server{Handler: apiHandler, ReadHeaderTimeout: 5 * time.Second}

	group, groupCtx := errgroup.WithContext(ctx)
	metricsSrv := startMetricsServer(groupCtx, cfg.MetricsAddr, logger, healthHandler)

	group.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("REST API слушает %s", httpLis.Addr())
		if err := apiSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if kafkaProducer != nil {
		worker := newOutboxWorker(cfg, deps, kafkaProducer, logger)
		group.Go(func() error {
			worker.Run(groupCtx)
			return nil
		})
	}

	cleanup := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("layer", "idempotency-cleanup")),
		idempotency.WithMetrics(metrics.NewCleanupMetrics(prometheus.DefaultRegisterer)),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	group.Go(func() error {
		cleanup.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return nil
	})

	err = group.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// newGRPCServer регистрирует сервис заказов, health и reflection.
func newGRPCServer(service grpcsvc.OrderService, guard *idempotency.Guard, logger *log.Entry) (*grpc.Server, *health.Server) {
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
		grpcMetrics.UnaryServerInterceptor(),
		grpcsvc.UnaryLoggingInterceptor(logger.WithField("layer", "grpc")),
	))
	grpcsvc.Register(grpcServer, grpcsvc.NewServer(service, guard, logger.WithField("layer", "grpc")))
	grpcMetrics.InitializeMetrics(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)
	return grpcServer, healthServer
}

func newOutboxWorker(cfg Config, deps runtimeDependencies, producer *kafka.Producer, logger *log.Entry) *outbox.Worker {
	return outbox.NewWorker(deps.outboxRepo, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(prometheus.DefaultRegisterer)),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQ)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics и health probes.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
