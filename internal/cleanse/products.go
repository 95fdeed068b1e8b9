package cleanse

import (
	"github.com/shopspring/decimal"

	"fleximart-etl/internal/models"
	"fleximart-etl/internal/normalize"
	"fleximart-etl/internal/report"
)

// MaxPrice is the sanity bound for a product price
var MaxPrice = decimal.NewFromInt(100000)

// Products turns raw product rows into load candidates
func Products(rows []models.RawProduct) Result[models.Product] {
	m := report.New()
	m.Add(ProductsRead, int64(len(rows)))
	m.Add(ProductsDroppedMissing, 0)
	m.Add(ProductsDroppedInvalidPrice, 0)
	m.Add(ProductsDroppedInvalidStock, 0)
	m.Add(ProductsDuplicates, 0)

	candidates := make([]models.Product, 0, len(rows))

	for _, raw := range rows {
		raw = raw.Trimmed()
		if !hasRequired(raw) {
			m.Inc(ProductsDroppedMissing)
			continue
		}

		// non-numeric prices count as missing
		price, err := decimal.NewFromString(raw.Price)
		if err != nil {
			m.Inc(ProductsDroppedMissing)
			continue
		}
		if !price.IsPositive() || price.GreaterThan(MaxPrice) {
			m.Inc(ProductsDroppedInvalidPrice)
			continue
		}

		stock, ok := parseStock(raw.StockQuantity)
		if !ok {
			m.Inc(ProductsDroppedInvalidStock)
			continue
		}

		candidates = append(candidates, models.Product{
			ProductName:   raw.ProductName,
			Category:      normalize.Category(raw.Category),
			Price:         price,
			StockQuantity: stock,
		})
	}

	seen := make(map[models.ProductKey]struct{}, len(candidates))
	out := make([]models.Product, 0, len(candidates))
	for _, p := range candidates {
		key := models.ProductKey{Name: p.ProductName, Category: p.Category}
		if _, dup := seen[key]; dup {
			m.Inc(ProductsDuplicates)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}

	return Result[models.Product]{Rows: out, Metrics: m}
}

// parseStock defaults missing or non-numeric stock to zero and truncates
// fractions. Negative stock is rejected.
func parseStock(value string) (int, bool) {
	if value == "" {
		return 0, true
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, true
	}
	if d.IsNegative() {
		return 0, false
	}
	return int(d.IntPart()), true
}
