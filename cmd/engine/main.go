// Command engine is the scheduler/worker daemon: it wires config,
// Postgres-backed persistence, the State Manager, Handler Registry,
// Event Bus, Scheduler, Approval/Form Coordinators, and the Archival
// Service, then serves the WebSocket event-fan-out route until an
// interrupt signal drains everything. Grounded on cmd/worker/main.go's
// wiring order and graceful-shutdown pattern (context cancellation,
// goroutines per subsystem, signal.Notify on SIGINT/SIGTERM, Wait()
// drains).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nodeflow/engine/internal/approval"
	"github.com/nodeflow/engine/internal/archive"
	"github.com/nodeflow/engine/internal/config"
	"github.com/nodeflow/engine/internal/credential"
	"github.com/nodeflow/engine/internal/eventbus"
	"github.com/nodeflow/engine/internal/expression"
	"github.com/nodeflow/engine/internal/form"
	"github.com/nodeflow/engine/internal/handler"
	"github.com/nodeflow/engine/internal/observability"
	"github.com/nodeflow/engine/internal/scheduler"
	"github.com/nodeflow/engine/internal/state"
	"github.com/nodeflow/engine/internal/store"
	"github.com/nodeflow/engine/internal/wsgateway"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Observability)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flushSentry, err := observability.InitSentry(cfg.Observability)
	if err != nil {
		logger.Error("sentry init failed", "error", err)
	}
	defer flushSentry()

	_, shutdownTracer, err := observability.InitTracer(ctx, cfg.Observability)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	}
	defer shutdownTracer(context.Background())

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var stateStore state.Store
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		stateStore = state.NewRedisStore(rdb, 24*time.Hour)
		logger.Info("state manager backed by redis", "address", cfg.Redis.Address)
	} else {
		stateStore = state.NewMemStore()
		logger.Info("state manager backed by in-memory store")
	}

	registry := handler.NewRegistry()
	creds := credential.NewFake()

	bus := eventbus.New(cfg.Event.SubscriberQueueDepth)

	execStore := store.NewExecutionStore(db)
	approvalStore := store.NewApprovalStore(db)
	formStore := store.NewFormStore(db)
	archiveStore := store.NewArchiveStore(db)

	pool := scheduler.NewPool(ctx, cfg.Worker.PoolSize)
	schedCfg := scheduler.Config{
		PerExecutionCap:   cfg.Worker.PerExecutionCap,
		PoolSize:          cfg.Worker.PoolSize,
		NodeTimeout:       cfg.Node.DefaultTimeout,
		DefaultMaxRetries: 3,
	}
	evaluator := expression.NewEvaluator()
	sched := scheduler.New(registry, evaluator, creds, stateStore, eventbus.SchedulerPublisher{Bus: bus}, execStore, pool, schedCfg, logger)

	approvalCoord := approval.New(approvalStore, sched, eventbus.ApprovalPublisher{Bus: bus})
	approvalSweeper := approval.NewSweeper(approvalCoord, logger, "@every "+cfg.Approval.SweepInterval.String())
	if err := approvalSweeper.Start(ctx); err != nil {
		logger.Error("approval sweeper start failed", "error", err)
	}
	defer approvalSweeper.Stop()

	formCoord := form.New(formStore, sched)
	formSweeper := form.NewSweeper(formCoord, logger, "")
	if err := formSweeper.Start(ctx); err != nil {
		logger.Error("form sweeper start failed", "error", err)
	}
	defer formSweeper.Stop()

	archiveSvc := archive.New(archiveStore, stateStore, logger, archive.Config{
		ArchiveAfter:  0,
		BatchSize:     cfg.Archive.BatchSize,
		RetentionDays: cfg.Archive.RetentionDays,
	})
	archiveSweeper := archive.NewSweeper(archiveSvc, logger, "@every "+cfg.Archive.SweepInterval.String(), "")
	if err := archiveSweeper.Start(ctx); err != nil {
		logger.Error("archive sweeper start failed", "error", err)
	}
	defer archiveSweeper.Stop()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	go recordEventMetrics(ctx, bus, metrics)

	gateway := wsgateway.New(bus, logger)
	router := chi.NewRouter()
	router.Use(observability.HTTPMiddleware)
	gateway.Routes(router)
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	srv := &http.Server{Addr: cfg.Server.Address, Handler: router}
	go func() {
		logger.Info("engine listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := pool.Wait(); err != nil {
		logger.Error("worker pool drain error", "error", err)
	}
}

// recordEventMetrics subscribes to the bus's global topic and turns
// lifecycle events into the Prometheus collectors observability.Metrics
// exposes, so a scrape reflects executions/nodes/approvals without the
// Scheduler or Approval Coordinator importing Prometheus directly.
func recordEventMetrics(ctx context.Context, bus *eventbus.Bus, m *observability.Metrics) {
	sub := bus.Subscribe(eventbus.GlobalTopic)
	defer bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case e := <-sub.Events():
			switch e.Type {
			case eventbus.EventExecutionCompleted, eventbus.EventExecutionFailed, eventbus.EventExecutionCancelled:
				m.ExecutionsTotal.WithLabelValues("", string(e.Type)).Inc()
			case eventbus.EventNodeCompleted, eventbus.EventNodeFailed:
				m.NodeExecutionTotal.WithLabelValues("", string(e.Type)).Inc()
			case eventbus.EventApprovalResolved:
				status, _ := e.Data["status"].(string)
				m.ApprovalResolved.WithLabelValues("", status).Inc()
			}
		}
	}
}
