package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"fleximart-etl/internal/models"
)

// bulkChunk bounds rows per multi-row INSERT; postgres allows 65535 parameters
const bulkChunk = 1000

// WarehouseTx is a unit of work on the dimensional store
type WarehouseTx interface {
	InsertDimCustomers(ctx context.Context, rows []models.DimCustomer) (int64, error)
	InsertDimProducts(ctx context.Context, rows []models.DimProduct) (int64, error)
	InsertDimDates(ctx context.Context, rows []models.DimDate) (int64, error)
	// CustomerKeys maps customer_id to customer_key
	CustomerKeys(ctx context.Context) (map[int64]int64, error)
	// ProductKeys maps product_id to product_key
	ProductKeys(ctx context.Context) (map[int64]int64, error)
	// DateKeys maps a DateLayout-formatted date to date_key
	DateKeys(ctx context.Context) (map[string]int64, error)
	// InsertFacts inserts facts not yet present and reports how many were new
	InsertFacts(ctx context.Context, rows []models.FactSales) (int64, error)
	// MaxFactItemID is the highest order_item_id in fact_sales, 0 when empty
	MaxFactItemID(ctx context.Context) (int64, error)
	Commit() error
	Rollback() error
}

// Warehouse is the dimensional (star schema) store
type Warehouse struct {
	db *sqlx.DB
}

// NewWarehouse connects to the warehouse database
func NewWarehouse(databaseURL string) (*Warehouse, error) {
	db, err := connect(databaseURL)
	if err != nil {
		return nil, err
	}
	return &Warehouse{db: db}, nil
}

// Close closes the database connection
func (w *Warehouse) Close() error {
	return w.db.Close()
}

// GetDB returns the underlying database connection
func (w *Warehouse) GetDB() *sqlx.DB {
	return w.db
}

// Begin opens a warehouse transaction
func (w *Warehouse) Begin(ctx context.Context) (WarehouseTx, error) {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classified("begin warehouse", err)
	}
	return &warehouseTx{tx: tx}, nil
}

type warehouseTx struct {
	tx *sqlx.Tx
}

func (t *warehouseTx) Commit() error {
	return classified("commit warehouse", t.tx.Commit())
}

func (t *warehouseTx) Rollback() error {
	return t.tx.Rollback()
}

// bulkInsert runs prefix VALUES ... suffix in chunks and sums rows affected.
// args yields the column values of row i.
func (t *warehouseTx) bulkInsert(ctx context.Context, op, prefix, suffix string, n, cols int, args func(i int) []interface{}) (int64, error) {
	var total int64
	for start := 0; start < n; start += bulkChunk {
		end := start + bulkChunk
		if end > n {
			end = n
		}

		values := make([]interface{}, 0, (end-start)*cols)
		for i := start; i < end; i++ {
			values = append(values, args(i)...)
		}

		query := fmt.Sprintf("%s VALUES %s %s", prefix, valuesList(end-start, cols), suffix)
		res, err := t.tx.ExecContext(ctx, query, values...)
		if err != nil {
			return total, classified(op, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, classified(op, err)
		}
		total += affected
	}
	return total, nil
}

func (t *warehouseTx) InsertDimCustomers(ctx context.Context, rows []models.DimCustomer) (int64, error) {
	return t.bulkInsert(ctx, "insert dim_customer",
		"INSERT INTO dim_customer (customer_id, full_name, email, city)",
		"ON CONFLICT (customer_id) DO NOTHING",
		len(rows), 4, func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.CustomerID, r.FullName, r.Email, r.City}
		})
}

func (t *warehouseTx) InsertDimProducts(ctx context.Context, rows []models.DimProduct) (int64, error) {
	return t.bulkInsert(ctx, "insert dim_product",
		"INSERT INTO dim_product (product_id, product_name, category, price)",
		"ON CONFLICT (product_id) DO NOTHING",
		len(rows), 4, func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.ProductID, r.ProductName, r.Category, r.Price}
		})
}

func (t *warehouseTx) InsertDimDates(ctx context.Context, rows []models.DimDate) (int64, error) {
	return t.bulkInsert(ctx, "insert dim_date",
		"INSERT INTO dim_date (full_date, day, month, month_name, year)",
		"ON CONFLICT (full_date) DO NOTHING",
		len(rows), 5, func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.FullDate, r.Day, r.Month, r.MonthName, r.Year}
		})
}

func (t *warehouseTx) InsertFacts(ctx context.Context, rows []models.FactSales) (int64, error) {
	return t.bulkInsert(ctx, "insert fact_sales",
		"INSERT INTO fact_sales (customer_key, product_key, date_key, order_item_id, quantity_sold, sales_amount)",
		"ON CONFLICT (order_item_id) DO NOTHING",
		len(rows), 6, func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.CustomerKey, r.ProductKey, r.DateKey, r.OrderItemID, r.QuantitySold, r.SalesAmount}
		})
}

func (t *warehouseTx) CustomerKeys(ctx context.Context) (map[int64]int64, error) {
	return t.keyMap(ctx, "select customer keys", "SELECT customer_id AS id, customer_key AS key FROM dim_customer")
}

func (t *warehouseTx) ProductKeys(ctx context.Context) (map[int64]int64, error) {
	return t.keyMap(ctx, "select product keys", "SELECT product_id AS id, product_key AS key FROM dim_product")
}

func (t *warehouseTx) keyMap(ctx context.Context, op, query string) (map[int64]int64, error) {
	var rows []struct {
		ID  int64 `db:"id"`
		Key int64 `db:"key"`
	}
	if err := t.tx.SelectContext(ctx, &rows, query); err != nil {
		return nil, classified(op, err)
	}

	keys := make(map[int64]int64, len(rows))
	for _, r := range rows {
		keys[r.ID] = r.Key
	}
	return keys, nil
}

func (t *warehouseTx) DateKeys(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		FullDate time.Time `db:"full_date"`
		DateKey  int64     `db:"date_key"`
	}
	if err := t.tx.SelectContext(ctx, &rows, "SELECT full_date, date_key FROM dim_date"); err != nil {
		return nil, classified("select date keys", err)
	}

	keys := make(map[string]int64, len(rows))
	for _, r := range rows {
		keys[r.FullDate.Format(models.DateLayout)] = r.DateKey
	}
	return keys, nil
}

func (t *warehouseTx) MaxFactItemID(ctx context.Context) (int64, error) {
	var id int64
	err := t.tx.GetContext(ctx, &id, "SELECT COALESCE(MAX(order_item_id), 0) FROM fact_sales")
	if err != nil {
		return 0, classified("select max fact order_item_id", err)
	}
	return id, nil
}

// CountFacts returns the number of fact rows
func (w *Warehouse) CountFacts(ctx context.Context) (int64, error) {
	var n int64
	err := w.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM fact_sales")
	return n, classified("count fact_sales", err)
}
