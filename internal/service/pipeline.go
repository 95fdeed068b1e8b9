package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleximart-etl/internal/cleanse"
	"fleximart-etl/internal/ingest"
	"fleximart-etl/internal/models"
	"fleximart-etl/internal/report"
	"fleximart-etl/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lock keys, prefixed with "lock:" by the redis client
const (
	lockNormalized = "etl:normalized"
	lockWarehouse  = "etl:warehouse"
)

// ErrRunInProgress is returned when another run holds the pipeline lock
var ErrRunInProgress = errors.New("pipeline run already in progress")

// RunResult is the outcome of one successful pipeline run
type RunResult struct {
	RunID    string
	Pipeline string
	Metrics  *report.Metrics
}

// Pipeline runs the normalized and warehouse stages and reports on them
type Pipeline struct {
	loader      *Loader
	reconciler  *Reconciler
	transformer *Transformer

	inputDir   string
	reportPath string

	locker  RunLocker
	lockTTL time.Duration
	events  RunEventPublisher
	cache   ReportCache

	logger *zap.Logger
}

// PipelineOption configures the optional collaborators of a Pipeline
type PipelineOption func(*Pipeline)

// WithRunLock refuses to start a run while another one holds the lock
func WithRunLock(locker RunLocker, ttl time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.locker = locker
		p.lockTTL = ttl
	}
}

// WithEvents publishes run outcomes
func WithEvents(events RunEventPublisher) PipelineOption {
	return func(p *Pipeline) {
		p.events = events
	}
}

// WithReportCache keeps the last report of every pipeline
func WithReportCache(cache ReportCache) PipelineOption {
	return func(p *Pipeline) {
		p.cache = cache
	}
}

// WithInput sets where raw files are read from and where the report is written
func WithInput(inputDir, reportPath string) PipelineOption {
	return func(p *Pipeline) {
		p.inputDir = inputDir
		p.reportPath = reportPath
	}
}

// NewPipeline creates a new pipeline. warehouse may be nil when only the
// normalized pipeline is run.
func NewPipeline(source SourceStore, warehouse WarehouseStore, watermark Watermark, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		loader:     NewLoader(source),
		reconciler: NewReconciler(source),
		logger:     util.GetLogger(),
	}
	if warehouse != nil {
		p.transformer = NewTransformer(source, warehouse, watermark)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunNormalized reads the raw files from the input directory and runs the
// normalized pipeline on them
func (p *Pipeline) RunNormalized(ctx context.Context) (*RunResult, error) {
	batch, err := ingest.ReadDir(ctx, p.inputDir)
	if err != nil {
		p.recordFailure(ctx, models.PipelineNormalized, "", err)
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return p.ProcessBatch(ctx, batch)
}

// ProcessBatch cleanses and loads one raw batch, reconciles its sales and
// writes the data-quality report
func (p *Pipeline) ProcessBatch(ctx context.Context, batch *models.RawBatch) (*RunResult, error) {
	ctx, span := util.StartSpan(ctx, "Pipeline.ProcessBatch")
	defer span.End()

	return p.run(ctx, models.PipelineNormalized, lockNormalized, func(ctx context.Context, m *report.Metrics) error {
		customers := cleanse.Customers(batch.Customers)
		products := cleanse.Products(batch.Products)
		observeCleanse(EntityCustomers, customers.Metrics, cleanse.CustomersRead)
		observeCleanse(EntityProducts, products.Metrics, cleanse.ProductsRead)

		m.Merge(customers.Metrics)
		if err := p.stage(ctx, "load_customers", m, func(ctx context.Context) (*report.Metrics, error) {
			return p.loader.LoadCustomers(ctx, customers.Rows)
		}); err != nil {
			return err
		}

		m.Merge(products.Metrics)
		if err := p.stage(ctx, "load_products", m, func(ctx context.Context) (*report.Metrics, error) {
			return p.loader.LoadProducts(ctx, products.Rows)
		}); err != nil {
			return err
		}

		if err := p.stage(ctx, "reconcile_sales", m, func(ctx context.Context) (*report.Metrics, error) {
			return p.reconciler.Reconcile(ctx, batch.Sales)
		}); err != nil {
			return err
		}

		if p.reportPath != "" {
			if err := report.WriteFile(p.reportPath, m); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			p.logger.Info("Data quality report written", zap.String("path", p.reportPath))
		}
		return nil
	})
}

// RunWarehouse rebuilds the dimensional store from the normalized store
func (p *Pipeline) RunWarehouse(ctx context.Context) (*RunResult, error) {
	if p.transformer == nil {
		return nil, errors.New("warehouse store not configured")
	}

	ctx, span := util.StartSpan(ctx, "Pipeline.RunWarehouse")
	defer span.End()

	return p.run(ctx, models.PipelineWarehouse, lockWarehouse, func(ctx context.Context, m *report.Metrics) error {
		return p.stage(ctx, "transform", m, p.transformer.Transform)
	})
}

// RebuildWarehouse is RunWarehouse over every order item, ignoring the
// saved fact watermark
func (p *Pipeline) RebuildWarehouse(ctx context.Context) (*RunResult, error) {
	if p.transformer == nil {
		return nil, errors.New("warehouse store not configured")
	}

	ctx, span := util.StartSpan(ctx, "Pipeline.RebuildWarehouse")
	defer span.End()

	return p.run(ctx, models.PipelineWarehouse, lockWarehouse, func(ctx context.Context, m *report.Metrics) error {
		return p.stage(ctx, "transform_full", m, p.transformer.Rebuild)
	})
}

// LastReport returns the cached report of the last successful run
func (p *Pipeline) LastReport(ctx context.Context, pipeline string) (*models.RunReport, error) {
	if p.cache == nil {
		return nil, nil
	}
	return p.cache.GetRunReport(ctx, pipeline)
}

// run wraps body with the run lock, run bookkeeping and notifications
func (p *Pipeline) run(ctx context.Context, pipeline, lockKey string, body func(context.Context, *report.Metrics) error) (*RunResult, error) {
	runID := uuid.New().String()
	logger := p.logger.With(zap.String("pipeline", pipeline), zap.String("run_id", runID))

	if p.locker != nil {
		acquired, err := p.locker.AcquireLock(ctx, lockKey, p.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !acquired {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := p.locker.ReleaseLock(context.Background(), lockKey); err != nil {
				logger.Warn("Failed to release run lock", zap.Error(err))
			}
		}()
	}

	logger.Info("Run started")
	start := time.Now()

	m := report.New()
	if err := body(ctx, m); err != nil {
		logger.Error("Run failed", zap.Error(err))
		p.recordFailure(ctx, pipeline, runID, err)
		return nil, err
	}

	util.RunsTotal.WithLabelValues(pipeline, "success").Inc()
	logger.Info("Run completed", zap.Duration("duration", time.Since(start)))

	result := &RunResult{RunID: runID, Pipeline: pipeline, Metrics: m}
	p.notifyCompleted(ctx, result)
	return result, nil
}

// stage runs one stage, times it and merges its metrics into m
func (p *Pipeline) stage(ctx context.Context, name string, m *report.Metrics, fn func(context.Context) (*report.Metrics, error)) error {
	start := time.Now()
	defer func() {
		util.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	sm, err := fn(ctx)
	if err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	m.Merge(sm)
	return nil
}

func (p *Pipeline) notifyCompleted(ctx context.Context, result *RunResult) {
	now := time.Now().UTC()

	if p.cache != nil {
		rep := &models.RunReport{
			RunID:       result.RunID,
			Pipeline:    result.Pipeline,
			CompletedAt: now,
		}
		for _, k := range result.Metrics.Keys() {
			rep.Metrics = append(rep.Metrics, models.MetricValue{Key: k, Value: result.Metrics.Get(k)})
		}
		if err := p.cache.SaveRunReport(ctx, rep); err != nil {
			p.logger.Warn("Failed to cache run report", zap.String("run_id", result.RunID), zap.Error(err))
		}
	}

	if p.events != nil {
		event := &models.RunCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeRunCompleted,
				Timestamp: now,
			},
			RunID:    result.RunID,
			Pipeline: result.Pipeline,
			Metrics:  result.Metrics.Map(),
		}
		if err := p.events.PublishRunCompleted(ctx, event); err != nil {
			p.logger.Warn("Failed to publish run completed event", zap.String("run_id", result.RunID), zap.Error(err))
		}
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, pipeline, runID string, cause error) {
	util.RunsTotal.WithLabelValues(pipeline, "failed").Inc()
	if p.events == nil {
		return
	}

	event := &models.RunFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRunFailed,
			Timestamp: time.Now().UTC(),
		},
		RunID:    runID,
		Pipeline: pipeline,
		Reason:   cause.Error(),
	}
	if err := p.events.PublishRunFailed(ctx, event); err != nil {
		p.logger.Warn("Failed to publish run failed event", zap.Error(err))
	}
}

func observeCleanse(entity string, m *report.Metrics, readKey string) {
	util.RowsReadTotal.WithLabelValues(entity).Add(float64(m.Get(readKey)))
	for _, k := range m.Keys() {
		// kept rows (e.g. unrepresentable phones) are not rejections
		if !strings.Contains(k, "_dropped_") && !strings.HasSuffix(k, "_duplicates") {
			continue
		}
		util.RowsRejectedTotal.WithLabelValues(entity, k).Add(float64(m.Get(k)))
	}
}
