package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fleximart-etl/internal/models"
	"fleximart-etl/internal/normalize"
	"fleximart-etl/internal/report"
	"fleximart-etl/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sales metric keys
const (
	SalesRead            = "sales_read"
	SalesInvalidDate     = "sales_invalid_date"
	SalesInvalidCustomer = "sales_invalid_customer"
	SalesInvalidProduct  = "sales_invalid_product"
	SalesInvalidQuantity = "sales_invalid_quantity"
	OrdersEmpty          = "orders_empty"
	OrdersCreated        = "orders_created"
	OrderItemsCreated    = "order_items_created"
	OrdersFailed         = "orders_failed"
)

const EntitySales = "sales"

// rejection reasons for etl_rows_rejected_total
const (
	reasonInvalidDate     = "invalid_date"
	reasonInvalidCustomer = "invalid_customer"
	reasonInvalidProduct  = "invalid_product"
	reasonInvalidQuantity = "invalid_quantity"
)

// OrderPlan is one order ready to persist. Items carry no ids yet.
type OrderPlan struct {
	Email      string
	CustomerID int64
	OrderDate  time.Time
	Items      []models.OrderItem
	Total      decimal.Decimal
}

type orderGroup struct {
	email string
	date  time.Time
	rows  []models.RawSale
}

// PlanOrders groups sales lines by (customer email, order date) in order of
// first appearance and prices every resolvable line. It has no side effects.
func PlanOrders(
	sales []models.RawSale,
	customers map[string]int64,
	products map[models.ProductKey]models.ProductRef,
) ([]OrderPlan, *report.Metrics) {
	m := report.New()
	m.Add(SalesRead, int64(len(sales)))
	m.Add(SalesInvalidDate, 0)
	m.Add(SalesInvalidCustomer, 0)
	m.Add(SalesInvalidProduct, 0)
	m.Add(SalesInvalidQuantity, 0)
	m.Add(OrdersEmpty, 0)

	type groupKey struct {
		email string
		date  string
	}
	index := make(map[groupKey]int)
	var groups []*orderGroup

	for _, row := range sales {
		date, ok := normalize.Date(row.OrderDate)
		if !ok {
			m.Inc(SalesInvalidDate)
			continue
		}

		email := normalize.Email(row.CustomerEmail)
		k := groupKey{email: email, date: date.Format(models.DateLayout)}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, &orderGroup{email: email, date: date})
		}
		groups[i].rows = append(groups[i].rows, row)
	}

	plans := make([]OrderPlan, 0, len(groups))
	for _, g := range groups {
		customerID, ok := customers[g.email]
		if g.email == "" || !ok {
			m.Add(SalesInvalidCustomer, int64(len(g.rows)))
			continue
		}

		plan := OrderPlan{
			Email:      g.email,
			CustomerID: customerID,
			OrderDate:  g.date,
			Total:      decimal.Zero,
		}

		for _, row := range g.rows {
			key := models.ProductKey{
				Name:     strings.TrimSpace(row.ProductName),
				Category: normalize.Category(row.Category),
			}
			ref, ok := products[key]
			if !ok {
				m.Inc(SalesInvalidProduct)
				continue
			}

			qty, ok := parseQuantity(row.Quantity)
			if !ok || qty < 1 {
				m.Inc(SalesInvalidQuantity)
				continue
			}

			subtotal := ref.Price.Mul(decimal.NewFromInt(int64(qty)))
			plan.Items = append(plan.Items, models.OrderItem{
				ProductID: ref.ProductID,
				Quantity:  qty,
				UnitPrice: ref.Price,
				Subtotal:  subtotal,
			})
			plan.Total = plan.Total.Add(subtotal)
		}

		if len(plan.Items) == 0 {
			m.Inc(OrdersEmpty)
			continue
		}
		plans = append(plans, plan)
	}

	return plans, m
}

// parseQuantity accepts integers and whole-number decimals such as "2.0"
func parseQuantity(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		return n, true
	}
	d, err := decimal.NewFromString(value)
	if err != nil || !d.IsInteger() {
		return 0, false
	}
	return int(d.IntPart()), true
}

// Reconciler rebuilds orders from sales lines
type Reconciler struct {
	store  SourceStore
	logger *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(store SourceStore) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Reconcile resolves sales against the stored customers and products and
// persists every order with its items in its own transaction
func (r *Reconciler) Reconcile(ctx context.Context, sales []models.RawSale) (*report.Metrics, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	customers, err := r.store.CustomerIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer identities: %w", err)
	}
	products, err := r.store.ProductIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load product identities: %w", err)
	}

	plans, m := PlanOrders(sales, customers, products)
	m.Add(OrdersCreated, 0)
	m.Add(OrderItemsCreated, 0)
	m.Add(OrdersFailed, 0)

	util.RowsReadTotal.WithLabelValues(EntitySales).Add(float64(m.Get(SalesRead)))
	util.RowsRejectedTotal.WithLabelValues(EntitySales, reasonInvalidDate).Add(float64(m.Get(SalesInvalidDate)))
	util.RowsRejectedTotal.WithLabelValues(EntitySales, reasonInvalidCustomer).Add(float64(m.Get(SalesInvalidCustomer)))
	util.RowsRejectedTotal.WithLabelValues(EntitySales, reasonInvalidProduct).Add(float64(m.Get(SalesInvalidProduct)))
	util.RowsRejectedTotal.WithLabelValues(EntitySales, reasonInvalidQuantity).Add(float64(m.Get(SalesInvalidQuantity)))

	for i := range plans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		plan := &plans[i]
		if err := r.persistOrder(ctx, plan); err != nil {
			m.Inc(OrdersFailed)
			r.logger.Error("Failed to persist order",
				zap.String("email", plan.Email),
				zap.String("order_date", plan.OrderDate.Format(models.DateLayout)),
				zap.Int("items", len(plan.Items)),
				zap.Error(err))
			continue
		}

		m.Inc(OrdersCreated)
		m.Add(OrderItemsCreated, int64(len(plan.Items)))
		util.OrdersCreatedTotal.Inc()
	}

	r.logger.Info("Sales reconciled",
		zap.Int64("orders_created", m.Get(OrdersCreated)),
		zap.Int64("order_items_created", m.Get(OrderItemsCreated)),
		zap.Int64("orders_failed", m.Get(OrdersFailed)))

	return m, nil
}

// persistOrder writes the order and its items atomically
func (r *Reconciler) persistOrder(ctx context.Context, plan *OrderPlan) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin order transaction: %w", err)
	}

	order := &models.Order{
		CustomerID:  plan.CustomerID,
		OrderDate:   plan.OrderDate,
		TotalAmount: plan.Total,
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range plan.Items {
		item := plan.Items[i]
		item.OrderID = order.OrderID
		if err := tx.CreateOrderItem(ctx, &item); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}
