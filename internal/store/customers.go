package store

import (
	"context"
	"database/sql"
	"errors"

	"fleximart-etl/internal/models"
)

// InsertCustomer inserts a customer keyed by its lowercase email
func (t *sqlTx) InsertCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (first_name, last_name, email, phone, city, registration_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
		RETURNING customer_id`

	return t.withSavepoint(ctx, func() error {
		err := t.tx.GetContext(ctx, &c.CustomerID, query,
			c.FirstName, c.LastName, c.Email, c.Phone, c.City, c.RegistrationDate)
		if errors.Is(err, sql.ErrNoRows) {
			return &PersistError{Kind: Duplicate, Op: "insert customer", Err: ErrDuplicate}
		}
		return classified("insert customer", err)
	})
}

// CustomerIdentities maps every customer email to its id
func (s *Store) CustomerIdentities(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		CustomerID int64  `db:"customer_id"`
		Email      string `db:"email"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT customer_id, email FROM customers"); err != nil {
		return nil, classified("select customer identities", err)
	}

	ids := make(map[string]int64, len(rows))
	for _, r := range rows {
		ids[r.Email] = r.CustomerID
	}
	return ids, nil
}

// ListCustomers retrieves all customers
func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.SelectContext(ctx, &customers, `
		SELECT customer_id, first_name, last_name, email, phone, city, registration_date
		FROM customers ORDER BY customer_id`)
	return customers, classified("select customers", err)
}
