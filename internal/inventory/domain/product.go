package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// InsufficientStockError reports a debit that would drive a product's
// quantity below zero.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Product is the inventory-bearing catalog entry. Quantity never goes
// negative; Price carries two fractional digits.
type Product struct {
	ID          string
	StoreID     string
	Name        string
	SKU         string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Version     int64
}

func NewProduct(id, storeID, name, sku string, price decimal.Decimal, quantity int) (Product, error) {
	if id == "" {
		return Product{}, errors.New("product id is required")
	}
	if price.IsNegative() {
		return Product{}, fmt.Errorf("product %s: price cannot be negative", id)
	}
	if quantity < 0 {
		return Product{}, fmt.Errorf("product %s: quantity cannot be negative", id)
	}
	return Product{
		ID:       id,
		StoreID:  storeID,
		Name:     name,
		SKU:      sku,
		Price:    price.Round(2),
		Quantity: quantity,
	}, nil
}

// Debit removes amount units and returns the new quantity.
func (p *Product) Debit(amount int) (int, error) {
	if amount <= 0 {
		return p.Quantity, ErrInvalidQuantity
	}
	if p.Quantity < amount {
		return p.Quantity, &InsufficientStockError{ProductID: p.ID, Available: p.Quantity, Requested: amount}
	}
	p.Quantity -= amount
	p.Version++
	return p.Quantity, nil
}

// Credit adds amount units back. Growth is unbounded: restoring more than
// was taken is the caller's mistake, not the ledger's.
func (p *Product) Credit(amount int) (int, error) {
	if amount <= 0 {
		return p.Quantity, ErrInvalidQuantity
	}
	p.Quantity += amount
	p.Version++
	return p.Quantity, nil
}
