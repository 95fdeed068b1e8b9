package service

import (
	"context"
	"fmt"

	"fleximart-etl/internal/models"
	"fleximart-etl/internal/report"
	"fleximart-etl/internal/store"
	"fleximart-etl/internal/util"

	"go.uber.org/zap"
)

// Entity names used as metric prefixes and metric labels
const (
	EntityCustomers = "customers"
	EntityProducts  = "products"
)

// Loader persists cleansed candidates into the normalized store.
// Rows already present are skipped, never overwritten.
type Loader struct {
	store  SourceStore
	logger *zap.Logger
}

// NewLoader creates a new loader
func NewLoader(store SourceStore) *Loader {
	return &Loader{
		store:  store,
		logger: util.GetLogger(),
	}
}

// LoadCustomers inserts customers keyed by email
func (l *Loader) LoadCustomers(ctx context.Context, customers []models.Customer) (*report.Metrics, error) {
	ctx, span := util.StartSpan(ctx, "Loader.LoadCustomers")
	defer span.End()

	return l.load(ctx, EntityCustomers, len(customers), func(tx store.Tx, i int) (string, error) {
		return customers[i].Email, tx.InsertCustomer(ctx, &customers[i])
	})
}

// LoadProducts inserts products keyed by (name, category)
func (l *Loader) LoadProducts(ctx context.Context, products []models.Product) (*report.Metrics, error) {
	ctx, span := util.StartSpan(ctx, "Loader.LoadProducts")
	defer span.End()

	return l.load(ctx, EntityProducts, len(products), func(tx store.Tx, i int) (string, error) {
		p := &products[i]
		return p.ProductName + " / " + p.Category, tx.InsertProduct(ctx, p)
	})
}

// load runs insert for every row inside one transaction and classifies each
// row's outcome. insert returns the row's identity for logging.
func (l *Loader) load(ctx context.Context, entity string, n int, insert func(tx store.Tx, i int) (string, error)) (*report.Metrics, error) {
	var (
		loaded   = entity + "_loaded"
		skipped  = entity + "_skipped_existing"
		rejected = entity + "_rejected_constraint"
		failed   = entity + "_failed"
	)

	m := report.New()
	m.Add(loaded, 0)
	m.Add(skipped, 0)
	m.Add(rejected, 0)
	m.Add(failed, 0)

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin %s load: %w", entity, err)
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			_ = tx.Rollback()
			return nil, err
		}

		key, err := insert(tx, i)
		switch store.Classify(err) {
		case store.KindNone:
			m.Inc(loaded)
		case store.Duplicate:
			m.Inc(skipped)
		case store.ConstraintViolation:
			m.Inc(rejected)
			util.RowsRejectedTotal.WithLabelValues(entity, "constraint").Inc()
			l.logger.Warn("Row rejected by constraint",
				zap.String("entity", entity),
				zap.String("key", key),
				zap.Error(err))
		default:
			m.Inc(failed)
			util.RowsRejectedTotal.WithLabelValues(entity, "failed").Inc()
			l.logger.Error("Row insert failed",
				zap.String("entity", entity),
				zap.String("key", key),
				zap.Error(err))
		}
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to commit %s load: %w", entity, err)
	}

	util.RowsLoadedTotal.WithLabelValues(entity).Add(float64(m.Get(loaded)))
	l.logger.Info("Entities loaded",
		zap.String("entity", entity),
		zap.Int64("loaded", m.Get(loaded)),
		zap.Int64("skipped_existing", m.Get(skipped)),
		zap.Int64("rejected", m.Get(rejected)+m.Get(failed)))

	return m, nil
}
