// Package cleanse filters, coerces and deduplicates raw extract rows into
// load candidates. Cleansers never fail: every rejected row is counted in the
// returned metrics instead.
package cleanse

import (
	"github.com/go-playground/validator/v10"

	"fleximart-etl/internal/report"
)

// Metric keys
const (
	CustomersRead                 = "customers_read"
	CustomersDroppedMissing       = "customers_dropped_missing"
	CustomersDuplicates           = "customers_duplicates"
	CustomersPhoneUnrepresentable = "customers_phone_unrepresentable"
	CustomersDroppedInvalidDate   = "customers_dropped_invalid_date"

	ProductsRead                = "products_read"
	ProductsDroppedMissing      = "products_dropped_missing"
	ProductsDroppedInvalidPrice = "products_dropped_invalid_price"
	ProductsDroppedInvalidStock = "products_dropped_invalid_stock"
	ProductsDuplicates          = "products_duplicates"
)

var validate = validator.New()

// Result is the output of one cleanser
type Result[T any] struct {
	Rows    []T
	Metrics *report.Metrics
}

// hasRequired reports whether every field tagged `validate:"required"` is set
func hasRequired(row any) bool {
	return validate.Struct(row) == nil
}
