package models

import "strings"

// RawCustomer is one untyped customer row from the upstream extract.
// Empty strings mean the cell was missing.
type RawCustomer struct {
	FirstName        string `validate:"required"`
	LastName         string `validate:"required"`
	Email            string `validate:"required"`
	Phone            string
	City             string
	RegistrationDate string `validate:"required"`
}

// RawProduct is one untyped product row from the upstream extract
type RawProduct struct {
	ProductName   string `validate:"required"`
	Category      string `validate:"required"`
	Price         string `validate:"required"`
	StockQuantity string
}

// RawSale is one untyped sales line from the upstream extract
type RawSale struct {
	CustomerEmail string
	OrderDate     string
	ProductName   string
	Category      string
	Quantity      string
}

// RawBatch holds the three raw tables of one extract
type RawBatch struct {
	Customers []RawCustomer
	Products  []RawProduct
	Sales     []RawSale
}

// Trimmed returns the row with surrounding whitespace removed from every cell
func (r RawCustomer) Trimmed() RawCustomer {
	return RawCustomer{
		FirstName:        strings.TrimSpace(r.FirstName),
		LastName:         strings.TrimSpace(r.LastName),
		Email:            strings.TrimSpace(r.Email),
		Phone:            strings.TrimSpace(r.Phone),
		City:             strings.TrimSpace(r.City),
		RegistrationDate: strings.TrimSpace(r.RegistrationDate),
	}
}

// Trimmed returns the row with surrounding whitespace removed from every cell
func (r RawProduct) Trimmed() RawProduct {
	return RawProduct{
		ProductName:   strings.TrimSpace(r.ProductName),
		Category:      strings.TrimSpace(r.Category),
		Price:         strings.TrimSpace(r.Price),
		StockQuantity: strings.TrimSpace(r.StockQuantity),
	}
}
