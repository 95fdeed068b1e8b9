package service

import (
	"context"
	"time"

	"fleximart-etl/internal/models"
	"fleximart-etl/internal/store"
)

// SourceStore is the normalized store as seen by the pipeline stages
type SourceStore interface {
	Begin(ctx context.Context) (store.Tx, error)
	CustomerIdentities(ctx context.Context) (map[string]int64, error)
	ProductIdentities(ctx context.Context) (map[models.ProductKey]models.ProductRef, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListOrderDates(ctx context.Context) ([]time.Time, error)
	ListSalesLines(ctx context.Context, afterItemID int64) ([]models.SalesLine, error)
}

// WarehouseStore is the dimensional store
type WarehouseStore interface {
	Begin(ctx context.Context) (store.WarehouseTx, error)
}

// Watermark remembers the highest order item already turned into a fact
type Watermark interface {
	Load() (int64, error)
	Save(orderItemID int64) error
	// Reset forgets the watermark so every order item is scanned again
	Reset() error
}

// RunLocker guards a pipeline against concurrent runs
type RunLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// RunEventPublisher announces finished runs
type RunEventPublisher interface {
	PublishRunCompleted(ctx context.Context, event *models.RunCompletedEvent) error
	PublishRunFailed(ctx context.Context, event *models.RunFailedEvent) error
}

// ReportCache keeps the last report of every pipeline
type ReportCache interface {
	SaveRunReport(ctx context.Context, report *models.RunReport) error
	GetRunReport(ctx context.Context, pipeline string) (*models.RunReport, error)
}
