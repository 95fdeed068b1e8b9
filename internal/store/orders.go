package store

import (
	"context"
	"time"

	"fleximart-etl/internal/models"
)

// CreateOrder creates a new order and captures its id
func (t *sqlTx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, order_date, total_amount)
		VALUES ($1, $2, $3)
		RETURNING order_id`

	err := t.tx.GetContext(ctx, &order.OrderID, query,
		order.CustomerID, order.OrderDate, order.TotalAmount)
	return classified("insert order", err)
}

// CreateOrderItem creates a new order item
func (t *sqlTx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING order_item_id`

	err := t.tx.GetContext(ctx, &item.OrderItemID, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal)
	return classified("insert order item", err)
}

// ListOrderDates retrieves the distinct order dates
func (s *Store) ListOrderDates(ctx context.Context) ([]time.Time, error) {
	var dates []time.Time
	err := s.db.SelectContext(ctx, &dates, "SELECT DISTINCT order_date FROM orders ORDER BY order_date")
	return dates, classified("select order dates", err)
}

// ListSalesLines retrieves every order item with id above afterItemID,
// joined with its order
func (s *Store) ListSalesLines(ctx context.Context, afterItemID int64) ([]models.SalesLine, error) {
	var lines []models.SalesLine
	err := s.db.SelectContext(ctx, &lines, `
		SELECT oi.order_item_id, o.order_id, o.customer_id, oi.product_id,
		       o.order_date, oi.quantity, oi.subtotal
		FROM orders o
		JOIN order_items oi ON o.order_id = oi.order_id
		WHERE oi.order_item_id > $1
		ORDER BY oi.order_item_id`, afterItemID)
	return lines, classified("select sales lines", err)
}
