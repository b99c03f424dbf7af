package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tillpoint/internal/domain/cart"
	"github.com/xenking/tillpoint/internal/domain/customer"
	"github.com/xenking/tillpoint/internal/domain/payment"
)

// ErrNotFound is returned when a requested sale does not exist.
var ErrNotFound = errors.New("sale not found")

// Sale is an immutable record of a completed, paid transaction. Lines and
// the customer are snapshots taken at settlement time; mutating the cart
// afterwards never affects a recorded sale. Tendered and Change are zero for
// non-cash methods.
type Sale struct {
	ID         string
	Lines      []cart.Line
	Total      decimal.Decimal
	Customer   customer.Customer
	Method     payment.Method
	Tendered   decimal.Decimal
	Change     decimal.Decimal
	OperatorID string
	CreatedAt  time.Time
}

// Sink accepts one finalized sale per successful settlement and persists it.
type Sink interface {
	Record(ctx context.Context, s *Sale) error
}

// Archive provides read access to recorded sales, e.g. for receipts.
type Archive interface {
	GetByID(ctx context.Context, id string) (*Sale, error)
}
