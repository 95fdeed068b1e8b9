package cleanse

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleximart-etl/internal/models"
)

func TestCustomers_DropsDedupsAndNormalizes(t *testing.T) {
	rows := []models.RawCustomer{
		{FirstName: "Ana", LastName: "Rao", Email: "A@x.com", Phone: "98765 43210", City: "Pune", RegistrationDate: "15-03-2024"},
		{FirstName: "Ana", LastName: "Rao", Email: "a@X.com", Phone: "", RegistrationDate: "2024-03-16"},
		{FirstName: "", LastName: "Lee", Email: "b@x.com", RegistrationDate: "2024-03-15"},
		{FirstName: "Bo", LastName: "Lee", Email: "  ", RegistrationDate: "2024-03-15"},
		{FirstName: "Cy", LastName: "Ng", Email: "c@x.com", Phone: "12345", RegistrationDate: "2024/03/15"},
		{FirstName: "Di", LastName: "Oz", Email: "d@x.com", RegistrationDate: "2024-13-45"},
	}

	res := Customers(rows)

	require.Len(t, res.Rows, 2)

	first := res.Rows[0]
	assert.Equal(t, "a@x.com", first.Email)
	require.NotNil(t, first.Phone)
	assert.Equal(t, "+91-9876543210", *first.Phone)
	require.NotNil(t, first.City)
	assert.Equal(t, "Pune", *first.City)
	assert.True(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Equal(first.RegistrationDate))

	second := res.Rows[1]
	assert.Equal(t, "c@x.com", second.Email)
	assert.Nil(t, second.Phone, "unrepresentable phone is kept as absent")
	assert.Nil(t, second.City)

	assert.Equal(t, int64(6), res.Metrics.Get(CustomersRead))
	assert.Equal(t, int64(2), res.Metrics.Get(CustomersDroppedMissing))
	assert.Equal(t, int64(1), res.Metrics.Get(CustomersDuplicates))
	assert.Equal(t, int64(1), res.Metrics.Get(CustomersPhoneUnrepresentable))
	assert.Equal(t, int64(1), res.Metrics.Get(CustomersDroppedInvalidDate))
}

func TestCustomers_DedupKeepsFirstEvenWhenItsDateIsBad(t *testing.T) {
	rows := []models.RawCustomer{
		{FirstName: "A", LastName: "B", Email: "a@x.com", RegistrationDate: "not a date"},
		{FirstName: "A", LastName: "B", Email: "A@X.COM", RegistrationDate: "2024-01-01"},
	}

	res := Customers(rows)

	assert.Empty(t, res.Rows)
	assert.Equal(t, int64(1), res.Metrics.Get(CustomersDuplicates))
	assert.Equal(t, int64(1), res.Metrics.Get(CustomersDroppedInvalidDate))
}

func TestProducts_BoundsCoercionAndDedup(t *testing.T) {
	rows := []models.RawProduct{
		{ProductName: "Widget", Category: " tools ", Price: "50", StockQuantity: ""},
		{ProductName: "Widget", Category: "TOOLS", Price: "55", StockQuantity: "3"},
		{ProductName: "Widget", Category: "garden", Price: "12.50", StockQuantity: "7.9"},
		{ProductName: "Gadget", Category: "tools", Price: "abc"},
		{ProductName: "Gizmo", Category: "", Price: "10"},
		{ProductName: "Free", Category: "tools", Price: "0"},
		{ProductName: "Yacht", Category: "boats", Price: "100000.01"},
		{ProductName: "Ship", Category: "boats", Price: "100000"},
		{ProductName: "Ghost", Category: "tools", Price: "5", StockQuantity: "-2"},
		{ProductName: "Odd", Category: "tools", Price: "5", StockQuantity: "lots"},
	}

	res := Products(rows)

	require.Len(t, res.Rows, 4)

	assert.Equal(t, "Widget", res.Rows[0].ProductName)
	assert.Equal(t, "Tools", res.Rows[0].Category)
	assert.True(t, decimal.NewFromInt(50).Equal(res.Rows[0].Price))
	assert.Equal(t, 0, res.Rows[0].StockQuantity)

	assert.Equal(t, "Garden", res.Rows[1].Category)
	assert.Equal(t, 7, res.Rows[1].StockQuantity)

	assert.Equal(t, "Ship", res.Rows[2].ProductName)
	assert.Equal(t, "Odd", res.Rows[3].ProductName)
	assert.Equal(t, 0, res.Rows[3].StockQuantity)

	for _, p := range res.Rows {
		assert.True(t, p.Price.IsPositive())
		assert.True(t, p.Price.LessThanOrEqual(MaxPrice))
		assert.GreaterOrEqual(t, p.StockQuantity, 0)
	}

	assert.Equal(t, int64(10), res.Metrics.Get(ProductsRead))
	assert.Equal(t, int64(2), res.Metrics.Get(ProductsDroppedMissing))
	assert.Equal(t, int64(2), res.Metrics.Get(ProductsDroppedInvalidPrice))
	assert.Equal(t, int64(1), res.Metrics.Get(ProductsDroppedInvalidStock))
	assert.Equal(t, int64(1), res.Metrics.Get(ProductsDuplicates))
}
