package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents a cleansed customer in the normalized store
type Customer struct {
	CustomerID       int64     `db:"customer_id" json:"customer_id"`
	FirstName        string    `db:"first_name" json:"first_name"`
	LastName         string    `db:"last_name" json:"last_name"`
	Email            string    `db:"email" json:"email"`
	Phone            *string   `db:"phone" json:"phone,omitempty"`
	City             *string   `db:"city" json:"city,omitempty"`
	RegistrationDate time.Time `db:"registration_date" json:"registration_date"`
}

// FullName joins first and last name the way the warehouse displays it
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Product represents a cleansed product in the normalized store
type Product struct {
	ProductID     int64           `db:"product_id" json:"product_id"`
	ProductName   string          `db:"product_name" json:"product_name"`
	Category      string          `db:"category" json:"category"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
}

// ProductKey is the natural identity of a product
type ProductKey struct {
	Name     string
	Category string
}

// ProductRef is what the reconciler needs to price a line
type ProductRef struct {
	ProductID int64
	Price     decimal.Decimal
}

// Order represents one customer's purchases on one calendar date
type Order struct {
	OrderID     int64           `db:"order_id" json:"order_id"`
	CustomerID  int64           `db:"customer_id" json:"customer_id"`
	OrderDate   time.Time       `db:"order_date" json:"order_date"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
}

// OrderItem represents a priced line of an order
type OrderItem struct {
	OrderItemID int64           `db:"order_item_id" json:"order_item_id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal    decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// SalesLine is an order item joined with its order, as read for fact loading
type SalesLine struct {
	OrderItemID int64           `db:"order_item_id"`
	OrderID     int64           `db:"order_id"`
	CustomerID  int64           `db:"customer_id"`
	ProductID   int64           `db:"product_id"`
	OrderDate   time.Time       `db:"order_date"`
	Quantity    int             `db:"quantity"`
	Subtotal    decimal.Decimal `db:"subtotal"`
}

// DimCustomer is the customer dimension row
type DimCustomer struct {
	CustomerKey int64   `db:"customer_key" json:"customer_key"`
	CustomerID  int64   `db:"customer_id" json:"customer_id"`
	FullName    string  `db:"full_name" json:"full_name"`
	Email       string  `db:"email" json:"email"`
	City        *string `db:"city" json:"city,omitempty"`
}

// DimProduct is the product dimension row
type DimProduct struct {
	ProductKey  int64           `db:"product_key" json:"product_key"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Category    string          `db:"category" json:"category"`
	Price       decimal.Decimal `db:"price" json:"price"`
}

// DimDate is the calendar dimension row
type DimDate struct {
	DateKey   int64     `db:"date_key" json:"date_key"`
	FullDate  time.Time `db:"full_date" json:"full_date"`
	Day       int       `db:"day" json:"day"`
	Month     int       `db:"month" json:"month"`
	MonthName string    `db:"month_name" json:"month_name"`
	Year      int       `db:"year" json:"year"`
}

// NewDimDate decomposes a calendar date into its dimension attributes
func NewDimDate(d time.Time) DimDate {
	d = DateOnly(d)
	return DimDate{
		FullDate:  d,
		Day:       d.Day(),
		Month:     int(d.Month()),
		MonthName: d.Month().String(),
		Year:      d.Year(),
	}
}

// FactSales is one sold order line in the warehouse
type FactSales struct {
	CustomerKey  int64           `db:"customer_key" json:"customer_key"`
	ProductKey   int64           `db:"product_key" json:"product_key"`
	DateKey      int64           `db:"date_key" json:"date_key"`
	OrderItemID  int64           `db:"order_item_id" json:"order_item_id"`
	QuantitySold int             `db:"quantity_sold" json:"quantity_sold"`
	SalesAmount  decimal.Decimal `db:"sales_amount" json:"sales_amount"`
}

// DateLayout is the canonical calendar date format used for keys
const DateLayout = "2006-01-02"

// DateOnly truncates t to its UTC calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
