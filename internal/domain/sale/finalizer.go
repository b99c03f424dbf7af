package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/tillpoint/internal/domain/cart"
	"github.com/xenking/tillpoint/internal/domain/payment"
	"github.com/xenking/tillpoint/internal/domain/pricing"
)

// ErrEmptyCart is returned when finalization is attempted on a cart with no
// lines. Nothing is created and the cart is left untouched.
var ErrEmptyCart = errors.New("cart has no lines")

// SinkError wraps a persistence failure so callers can tell "sale not
// recorded" apart from validation failures. The cart is not reset when this
// is returned, so the operator can retry without losing its contents.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sale not recorded: %s", e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Finalizer converts a cart plus a validated payment attempt into a Sale.
type Finalizer struct {
	sink Sink
	now  func() time.Time
}

// NewFinalizer creates a Finalizer that records sales through the given sink.
func NewFinalizer(sink Sink) *Finalizer {
	return &Finalizer{sink: sink, now: time.Now}
}

// Finalize builds a Sale from the cart's current lines and customer, hands
// it to the sink, and only then resets the cart to empty with the default
// customer. The attempt must come from payment.Validate; operatorID is the
// authenticated identity of the till operator.
//
// Finalization is all-or-nothing: a precondition failure or sink error
// leaves the cart exactly as it was.
func (f *Finalizer) Finalize(ctx context.Context, c *cart.Cart, attempt payment.Attempt, operatorID string) (*Sale, error) {
	lines := c.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	s := &Sale{
		ID:         uuid.New().String(),
		Lines:      lines,
		Total:      pricing.Total(lines),
		Customer:   c.Customer(),
		Method:     attempt.Method,
		Tendered:   attempt.Tendered,
		Change:     attempt.Change,
		OperatorID: operatorID,
		CreatedAt:  f.now().UTC(),
	}

	if err := f.sink.Record(ctx, s); err != nil {
		return nil, &SinkError{Err: err}
	}

	c.Reset()
	return s, nil
}
