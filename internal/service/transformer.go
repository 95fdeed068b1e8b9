package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleximart-etl/internal/models"
	"fleximart-etl/internal/report"
	"fleximart-etl/internal/store"
	"fleximart-etl/internal/util"

	"go.uber.org/zap"
)

// Warehouse metric keys
const (
	DimCustomerInserted      = "dim_customer_inserted"
	DimProductInserted       = "dim_product_inserted"
	DimDateInserted          = "dim_date_inserted"
	FactSalesInserted        = "fact_sales_inserted"
	FactSalesSkippedExisting = "fact_sales_skipped_existing"
)

// ErrDimensionKeyMissing is returned when a fact references a dimension row
// that does not exist
var ErrDimensionKeyMissing = errors.New("dimension key missing")

// Transformer rebuilds the star schema from the normalized store
type Transformer struct {
	source    SourceStore
	warehouse WarehouseStore
	watermark Watermark
	logger    *zap.Logger
}

// NewTransformer creates a new transformer. watermark may be nil, in which
// case every order item is considered on every run.
func NewTransformer(source SourceStore, warehouse WarehouseStore, watermark Watermark) *Transformer {
	return &Transformer{
		source:    source,
		warehouse: warehouse,
		watermark: watermark,
		logger:    util.GetLogger(),
	}
}

// Transform loads the dimensions and the new facts in one warehouse
// transaction. Any dimension key miss rolls the whole run back.
func (t *Transformer) Transform(ctx context.Context) (*report.Metrics, error) {
	ctx, span := util.StartSpan(ctx, "Transformer.Transform")
	defer span.End()

	customers, err := t.source.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read customers: %w", err)
	}
	products, err := t.source.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	dates, err := t.source.ListOrderDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read order dates: %w", err)
	}

	tx, err := t.warehouse.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin warehouse transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	after, err := t.scanFrom(ctx, tx)
	if err != nil {
		return nil, err
	}
	lines, err := t.source.ListSalesLines(ctx, after)
	if err != nil {
		return nil, fmt.Errorf("failed to read sales lines: %w", err)
	}

	m := report.New()

	n, err := tx.InsertDimCustomers(ctx, dimCustomers(customers))
	if err != nil {
		return nil, fmt.Errorf("failed to load dim_customer: %w", err)
	}
	m.Add(DimCustomerInserted, n)

	n, err = tx.InsertDimProducts(ctx, dimProducts(products))
	if err != nil {
		return nil, fmt.Errorf("failed to load dim_product: %w", err)
	}
	m.Add(DimProductInserted, n)

	n, err = tx.InsertDimDates(ctx, dimDates(dates))
	if err != nil {
		return nil, fmt.Errorf("failed to load dim_date: %w", err)
	}
	m.Add(DimDateInserted, n)

	facts, maxItemID, err := t.resolveFacts(ctx, tx, lines)
	if err != nil {
		return nil, err
	}

	n, err = tx.InsertFacts(ctx, facts)
	if err != nil {
		return nil, fmt.Errorf("failed to load fact_sales: %w", err)
	}
	m.Add(FactSalesInserted, n)
	m.Add(FactSalesSkippedExisting, int64(len(facts))-n)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit warehouse transaction: %w", err)
	}
	committed = true
	util.FactRowsInsertedTotal.Add(float64(m.Get(FactSalesInserted)))

	// saved after commit; fact_sales dedups on order_item_id if this fails
	if t.watermark != nil && maxItemID > after {
		if err := t.watermark.Save(maxItemID); err != nil {
			t.logger.Warn("Failed to advance fact watermark",
				zap.Int64("order_item_id", maxItemID),
				zap.Error(err))
		}
	}

	t.logger.Info("Warehouse loaded",
		zap.Int64("dim_customer_inserted", m.Get(DimCustomerInserted)),
		zap.Int64("dim_product_inserted", m.Get(DimProductInserted)),
		zap.Int64("dim_date_inserted", m.Get(DimDateInserted)),
		zap.Int64("fact_sales_inserted", m.Get(FactSalesInserted)),
		zap.Int64("fact_sales_skipped_existing", m.Get(FactSalesSkippedExisting)))

	return m, nil
}

// Rebuild forgets the fact watermark and transforms every order item again.
// Facts already present are counted as skipped.
func (t *Transformer) Rebuild(ctx context.Context) (*report.Metrics, error) {
	if t.watermark != nil {
		if err := t.watermark.Reset(); err != nil {
			return nil, fmt.Errorf("failed to reset watermark: %w", err)
		}
		t.logger.Info("Fact watermark reset")
	}
	return t.Transform(ctx)
}

// scanFrom returns the order item id facts are read after. The saved
// watermark is capped by what fact_sales actually holds, so a recreated
// warehouse is refilled from the start.
func (t *Transformer) scanFrom(ctx context.Context, tx store.WarehouseTx) (int64, error) {
	if t.watermark == nil {
		return 0, nil
	}
	saved, err := t.watermark.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load watermark: %w", err)
	}
	loaded, err := tx.MaxFactItemID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read fact high-water mark: %w", err)
	}
	if saved > loaded {
		t.logger.Warn("Fact watermark ahead of warehouse, rescanning",
			zap.Int64("watermark", saved),
			zap.Int64("warehouse_max_order_item_id", loaded))
		return loaded, nil
	}
	return saved, nil
}

// keySource is the part of a warehouse transaction that resolves surrogate keys
type keySource interface {
	CustomerKeys(ctx context.Context) (map[int64]int64, error)
	ProductKeys(ctx context.Context) (map[int64]int64, error)
	DateKeys(ctx context.Context) (map[string]int64, error)
}

// resolveFacts maps every sales line onto its dimension keys and returns the
// facts with the highest order item id seen
func (t *Transformer) resolveFacts(ctx context.Context, keys keySource, lines []models.SalesLine) ([]models.FactSales, int64, error) {
	customerKeys, err := keys.CustomerKeys(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load customer keys: %w", err)
	}
	productKeys, err := keys.ProductKeys(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load product keys: %w", err)
	}
	dateKeys, err := keys.DateKeys(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load date keys: %w", err)
	}

	var maxItemID int64
	facts := make([]models.FactSales, 0, len(lines))
	for _, l := range lines {
		customerKey, ok := customerKeys[l.CustomerID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: customer_id %d", ErrDimensionKeyMissing, l.CustomerID)
		}
		productKey, ok := productKeys[l.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: product_id %d", ErrDimensionKeyMissing, l.ProductID)
		}
		day := models.DateOnly(l.OrderDate).Format(models.DateLayout)
		dateKey, ok := dateKeys[day]
		if !ok {
			return nil, 0, fmt.Errorf("%w: date %s", ErrDimensionKeyMissing, day)
		}

		facts = append(facts, models.FactSales{
			CustomerKey:  customerKey,
			ProductKey:   productKey,
			DateKey:      dateKey,
			OrderItemID:  l.OrderItemID,
			QuantitySold: l.Quantity,
			SalesAmount:  l.Subtotal,
		})
		if l.OrderItemID > maxItemID {
			maxItemID = l.OrderItemID
		}
	}
	return facts, maxItemID, nil
}

func dimCustomers(customers []models.Customer) []models.DimCustomer {
	out := make([]models.DimCustomer, 0, len(customers))
	for _, c := range customers {
		out = append(out, models.DimCustomer{
			CustomerID: c.CustomerID,
			FullName:   c.FullName(),
			Email:      c.Email,
			City:       c.City,
		})
	}
	return out
}

func dimProducts(products []models.Product) []models.DimProduct {
	out := make([]models.DimProduct, 0, len(products))
	for _, p := range products {
		out = append(out, models.DimProduct{
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
			Category:    p.Category,
			Price:       p.Price,
		})
	}
	return out
}

func dimDates(dates []time.Time) []models.DimDate {
	seen := make(map[string]struct{}, len(dates))
	out := make([]models.DimDate, 0, len(dates))
	for _, d := range dates {
		dd := models.NewDimDate(d)
		k := dd.FullDate.Format(models.DateLayout)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, dd)
	}
	return out
}
