package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleximart-etl/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	widget = models.ProductKey{Name: "Widget", Category: "Tools"}
	gadget = models.ProductKey{Name: "Gadget", Category: "Electronics"}
)

func testProducts() map[models.ProductKey]models.ProductRef {
	return map[models.ProductKey]models.ProductRef{
		widget: {ProductID: 10, Price: decimal.NewFromInt(50)},
		gadget: {ProductID: 11, Price: decimal.RequireFromString("19.99")},
	}
}

func TestPlanOrders(t *testing.T) {
	customers := map[string]int64{"a@x.com": 1, "b@x.com": 2}
	sales := []models.RawSale{
		{CustomerEmail: "A@x.com", OrderDate: "15-03-2024", ProductName: "Widget", Category: "tools", Quantity: "2"},
		{CustomerEmail: "a@x.com", OrderDate: "2024/03/15", ProductName: "Gadget", Category: "ELECTRONICS", Quantity: "3"},
		{CustomerEmail: "b@x.com", OrderDate: "2024-03-16", ProductName: "Widget", Category: "Tools", Quantity: "0"},
		{CustomerEmail: "c@x.com", OrderDate: "2024-03-16", ProductName: "Widget", Category: "tools", Quantity: "1"},
		{CustomerEmail: "c@x.com", OrderDate: "2024-03-16", ProductName: "Gadget", Category: "electronics", Quantity: "1"},
		{CustomerEmail: "a@x.com", OrderDate: "2024-13-45", ProductName: "Widget", Category: "tools", Quantity: "1"},
		{CustomerEmail: "", OrderDate: "2024-03-17", ProductName: "Widget", Category: "tools", Quantity: "1"},
		{CustomerEmail: "a@x.com", OrderDate: "2024-03-15", ProductName: "Nope", Category: "tools", Quantity: "1"},
		{CustomerEmail: "b@x.com", OrderDate: "2024-03-16", ProductName: "Gadget", Category: "electronics", Quantity: "1.5"},
	}

	plans, m := PlanOrders(sales, customers, testProducts())

	assert.Equal(t, int64(9), m.Get(SalesRead))
	assert.Equal(t, int64(1), m.Get(SalesInvalidDate))
	assert.Equal(t, int64(3), m.Get(SalesInvalidCustomer))
	assert.Equal(t, int64(1), m.Get(SalesInvalidProduct))
	assert.Equal(t, int64(2), m.Get(SalesInvalidQuantity))
	assert.Equal(t, int64(1), m.Get(OrdersEmpty))

	require.Len(t, plans, 1)
	plan := plans[0]
	assert.Equal(t, int64(1), plan.CustomerID)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), plan.OrderDate)
	require.Len(t, plan.Items, 2)

	assert.Equal(t, int64(10), plan.Items[0].ProductID)
	assert.True(t, decimal.NewFromInt(100).Equal(plan.Items[0].Subtotal))
	assert.True(t, decimal.RequireFromString("59.97").Equal(plan.Items[1].Subtotal))
	assert.True(t, decimal.RequireFromString("159.97").Equal(plan.Total))

	sum := decimal.Zero
	for _, it := range plan.Items {
		assert.True(t, it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Equal(it.Subtotal))
		sum = sum.Add(it.Subtotal)
	}
	assert.True(t, sum.Equal(plan.Total))
}

func TestPlanOrders_UnknownCustomerRejectsWholeGroup(t *testing.T) {
	sales := []models.RawSale{
		{CustomerEmail: "ghost@x.com", OrderDate: "2024-01-01", ProductName: "Widget", Category: "Tools", Quantity: "1"},
		{CustomerEmail: "ghost@x.com", OrderDate: "2024-01-01", ProductName: "Gadget", Category: "Electronics", Quantity: "2"},
	}

	plans, m := PlanOrders(sales, map[string]int64{}, testProducts())
	assert.Empty(t, plans)
	assert.Equal(t, int64(2), m.Get(SalesInvalidCustomer))
}

func TestReconcile_FailedOrderRollsBackAlone(t *testing.T) {
	src := newFakeSource()
	src.customers = []models.Customer{{CustomerID: 1, Email: "a@x.com"}, {CustomerID: 2, Email: "b@x.com"}}
	src.products = []models.Product{
		{ProductID: 10, ProductName: "Widget", Category: "Tools", Price: decimal.NewFromInt(50)},
		{ProductID: 11, ProductName: "Gadget", Category: "Electronics", Price: decimal.NewFromInt(20)},
	}
	src.nextID = 100
	src.itemErr[11] = errors.New("deadlock detected")

	sales := []models.RawSale{
		{CustomerEmail: "a@x.com", OrderDate: "2024-01-01", ProductName: "Widget", Category: "Tools", Quantity: "1"},
		{CustomerEmail: "a@x.com", OrderDate: "2024-01-01", ProductName: "Gadget", Category: "Electronics", Quantity: "1"},
		{CustomerEmail: "b@x.com", OrderDate: "2024-01-02", ProductName: "Widget", Category: "Tools", Quantity: "3"},
	}

	m, err := NewReconciler(src).Reconcile(context.Background(), sales)
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.Get(OrdersFailed))
	assert.Equal(t, int64(1), m.Get(OrdersCreated))
	assert.Equal(t, int64(1), m.Get(OrderItemsCreated))

	require.Len(t, src.orders, 1)
	assert.Equal(t, int64(2), src.orders[0].CustomerID)
	assert.True(t, decimal.NewFromInt(150).Equal(src.orders[0].TotalAmount))
	require.Len(t, src.items, 1)
	assert.Equal(t, src.orders[0].OrderID, src.items[0].OrderID)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2", 2, true},
		{" 3 ", 3, true},
		{"2.0", 2, true},
		{"4.00", 4, true},
		{"1.5", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"-1", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseQuantity(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPlanOrders_WholeNumberDecimalQuantity(t *testing.T) {
	sales := []models.RawSale{
		{CustomerEmail: "a@x.com", OrderDate: "2024-01-01", ProductName: "Widget", Category: "Tools", Quantity: "2.0"},
	}
	plans, m := PlanOrders(sales, map[string]int64{"a@x.com": 1}, testProducts())

	assert.Equal(t, int64(0), m.Get(SalesInvalidQuantity))
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Items, 1)
	assert.Equal(t, 2, plans[0].Items[0].Quantity)
}
