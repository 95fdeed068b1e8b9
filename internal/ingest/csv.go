package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"fleximart-etl/internal/models"
)

// Default file names inside an input directory
const (
	CustomersFile = "customers_raw.csv"
	ProductsFile  = "products_raw.csv"
	SalesFile     = "sales_raw.csv"
)

// ReadDir reads the three raw tables from dir concurrently
func ReadDir(ctx context.Context, dir string) (*models.RawBatch, error) {
	var batch models.RawBatch
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := readFile(filepath.Join(dir, CustomersFile))
		if err != nil {
			return err
		}
		batch.Customers = CustomersFromRows(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := readFile(filepath.Join(dir, ProductsFile))
		if err != nil {
			return err
		}
		batch.Products = ProductsFromRows(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := readFile(filepath.Join(dir, SalesFile))
		if err != nil {
			return err
		}
		batch.Sales = SalesFromRows(rows)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &batch, nil
}

func readFile(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

// ReadTable reads a headed CSV table into one map per row keyed by the
// lowercased header. Cells are trimmed; short rows yield empty cells.
func ReadTable(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	}

	var rows []map[string]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CustomersFromRows maps table rows onto raw customers
func CustomersFromRows(rows []map[string]string) []models.RawCustomer {
	out := make([]models.RawCustomer, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.RawCustomer{
			FirstName:        r["first_name"],
			LastName:         r["last_name"],
			Email:            r["email"],
			Phone:            r["phone"],
			City:             r["city"],
			RegistrationDate: r["registration_date"],
		})
	}
	return out
}

// ProductsFromRows maps table rows onto raw products
func ProductsFromRows(rows []map[string]string) []models.RawProduct {
	out := make([]models.RawProduct, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.RawProduct{
			ProductName:   r["product_name"],
			Category:      r["category"],
			Price:         r["price"],
			StockQuantity: r["stock_quantity"],
		})
	}
	return out
}

// SalesFromRows maps table rows onto raw sales lines
func SalesFromRows(rows []map[string]string) []models.RawSale {
	out := make([]models.RawSale, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.RawSale{
			CustomerEmail: r["customer_email"],
			OrderDate:     r["order_date"],
			ProductName:   r["product_name"],
			Category:      r["category"],
			Quantity:      r["quantity"],
		})
	}
	return out
}
