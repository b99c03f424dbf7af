package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for sale at the register.
// Stock is informational only: the register never blocks a sale on it.
type Product struct {
	ID       string
	Name     string
	Barcode  string
	Price    decimal.Decimal
	Category string
	Stock    int
	Unit     string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	// Search matches products by name substring or exact barcode.
	Search(ctx context.Context, query string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
