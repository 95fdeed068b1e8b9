package main

import (
	"context"
	"fmt"
	"time"

	"fleximart-etl/config"
	"fleximart-etl/internal/broker"
	"fleximart-etl/internal/checkpoint"
	"fleximart-etl/internal/redisclient"
	"fleximart-etl/internal/service"
	"fleximart-etl/internal/store"
	"fleximart-etl/internal/util"

	"go.uber.org/zap"
)

// app owns every connection a command needs
type app struct {
	cfg       *config.Config
	source    *store.Store
	warehouse *store.Warehouse
	watermark *checkpoint.PebbleWatermark
	redis     *redisclient.Client
	producer  *broker.Producer
	pipeline  *service.Pipeline

	closers []func() error
}

func newApp(cfg *config.Config, withWarehouse bool) (*app, error) {
	logger := util.GetLogger()
	a := &app{cfg: cfg}

	src, err := store.NewStore(cfg.Database.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("source store: %w", err)
	}
	a.source = src
	a.closers = append(a.closers, src.Close)
	logger.Info("Source database connected")

	var (
		warehouse service.WarehouseStore
		watermark service.Watermark
	)
	if withWarehouse {
		wh, err := store.NewWarehouse(cfg.Database.WarehouseURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("warehouse store: %w", err)
		}
		a.warehouse = wh
		a.closers = append(a.closers, wh.Close)
		warehouse = wh
		logger.Info("Warehouse database connected")

		wm, err := checkpoint.Open(cfg.Input.CheckpointDir)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("checkpoint: %w", err)
		}
		a.watermark = wm
		a.closers = append(a.closers, wm.Close)
		watermark = wm
	}

	opts := []service.PipelineOption{
		service.WithInput(cfg.Input.Dir, cfg.Input.ReportPath),
	}

	if cfg.Redis.Enabled {
		rc, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = rc
		a.closers = append(a.closers, rc.Close)
		opts = append(opts,
			service.WithRunLock(rc, cfg.Pipeline.RunLockTTL()),
			service.WithReportCache(rc))
		logger.Info("Redis connected")
	}

	if cfg.Kafka.Enabled {
		a.producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicRunEvents)
		a.closers = append(a.closers, a.producer.Close)
		opts = append(opts, service.WithEvents(broker.NewEventPublisher(a.producer)))
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicRunEvents))
	}

	a.pipeline = service.NewPipeline(src, warehouse, watermark, opts...)
	return a, nil
}

// close releases connections in reverse order of opening
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			util.GetLogger().Warn("Error closing resource", zap.Error(err))
		}
	}
	a.closers = nil
}

// initTracing starts the tracer when enabled and returns its shutdown func
func initTracing(cfg *config.Config) (func(), error) {
	if !cfg.Observ.TracingEnabled {
		return func() {}, nil
	}

	tp, err := util.InitTracer(cfg.Observ.ServiceName, cfg.Server.Env, cfg.Observ.JaegerEndpoint)
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			util.GetLogger().Warn("Error shutting down tracer", zap.Error(err))
		}
	}, nil
}
