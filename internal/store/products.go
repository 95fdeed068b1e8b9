package store

import (
	"context"
	"database/sql"
	"errors"

	"fleximart-etl/internal/models"
)

// InsertProduct inserts a product keyed by (name, category)
func (t *sqlTx) InsertProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (product_name, category, price, stock_quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_name, category) DO NOTHING
		RETURNING product_id`

	return t.withSavepoint(ctx, func() error {
		err := t.tx.GetContext(ctx, &p.ProductID, query,
			p.ProductName, p.Category, p.Price, p.StockQuantity)
		if errors.Is(err, sql.ErrNoRows) {
			return &PersistError{Kind: Duplicate, Op: "insert product", Err: ErrDuplicate}
		}
		return classified("insert product", err)
	})
}

// ProductIdentities maps every (name, category) to its id and current price
func (s *Store) ProductIdentities(ctx context.Context) (map[models.ProductKey]models.ProductRef, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT product_id, product_name, category, price, stock_quantity FROM products")
	if err != nil {
		return nil, classified("select product identities", err)
	}

	refs := make(map[models.ProductKey]models.ProductRef, len(products))
	for _, p := range products {
		refs[models.ProductKey{Name: p.ProductName, Category: p.Category}] = models.ProductRef{
			ProductID: p.ProductID,
			Price:     p.Price,
		}
	}
	return refs, nil
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT product_id, product_name, category, price, stock_quantity FROM products ORDER BY product_id")
	return products, classified("select products", err)
}
