package worker

import (
	"context"
	"errors"

	"fleximart-etl/internal/broker"
	"fleximart-etl/internal/models"
	"fleximart-etl/internal/service"
	"fleximart-etl/internal/util"

	"go.uber.org/zap"
)

// WarehouseRunner runs the warehouse pipeline
type WarehouseRunner interface {
	RunWarehouse(ctx context.Context) (*service.RunResult, error)
}

// WarehouseWorker starts a warehouse transform whenever a normalized run completes
type WarehouseWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	runner       WarehouseRunner
	logger       *zap.Logger
}

// NewWarehouseWorker creates a new warehouse worker
func NewWarehouseWorker(consumer *broker.Consumer, runner WarehouseRunner) *WarehouseWorker {
	w := &WarehouseWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		runner:       runner,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnRunCompleted(w.HandleRunCompleted)
	w.eventHandler.OnRunFailed(w.HandleRunFailed)

	return w
}

// Start starts the worker
func (w *WarehouseWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting warehouse worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *WarehouseWorker) Stop() error {
	w.logger.Info("Stopping warehouse worker")
	return w.consumer.Close()
}

// HandleRunCompleted chains the warehouse transform onto a normalized run
func (w *WarehouseWorker) HandleRunCompleted(ctx context.Context, event *models.RunCompletedEvent) error {
	if event.Pipeline != models.PipelineNormalized {
		return nil
	}

	w.logger.Info("Normalized run completed, transforming warehouse",
		zap.String("run_id", event.RunID))

	res, err := w.runner.RunWarehouse(ctx)
	if errors.Is(err, service.ErrRunInProgress) {
		w.logger.Info("Warehouse run already in progress, skipping", zap.String("run_id", event.RunID))
		return nil
	}
	if err != nil {
		return err
	}

	w.logger.Info("Warehouse transformed",
		zap.String("trigger_run_id", event.RunID),
		zap.String("run_id", res.RunID))
	return nil
}

// HandleRunFailed logs failed runs of either pipeline
func (w *WarehouseWorker) HandleRunFailed(ctx context.Context, event *models.RunFailedEvent) error {
	w.logger.Warn("Pipeline run failed",
		zap.String("pipeline", event.Pipeline),
		zap.String("run_id", event.RunID),
		zap.String("reason", event.Reason))
	return nil
}
