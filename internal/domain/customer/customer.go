package customer

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer represents a buyer attachable to a cart. Every directory is
// expected to hold one default walk-in customer, so a cart always has a
// customer even before the operator picks one.
type Customer struct {
	ID    string
	Name  string
	Phone string
	Email string
	Tier  string
}

// Directory defines read operations over the customer records.
type Directory interface {
	List(ctx context.Context) ([]Customer, error)
	GetByID(ctx context.Context, id string) (*Customer, error)
	// Default returns the walk-in customer used for anonymous sales.
	Default(ctx context.Context) (*Customer, error)
}
