package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tillpoint/internal/domain/customer"
	"github.com/xenking/tillpoint/internal/domain/product"
)

// ErrCustomerMissing is returned when an operation would leave the cart
// without a customer. The caller is expected to always hold at least the
// default walk-in customer, so hitting this indicates a contract violation.
var ErrCustomerMissing = errors.New("cart customer must not be empty")

// Line is one product entry in a cart. Name, unit price and unit are copied
// from the catalog at the time of add, so later catalog edits do not affect
// an open cart.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Unit      string          `json:"unit"`
	Quantity  int             `json:"quantity"`
}

// Cart is the mutable working state of one in-progress transaction: an
// ordered sequence of lines plus the selected customer. Line order is
// insertion order and only matters for display.
//
// A Cart has a single writer. It performs no locking itself; each operator
// session owns an independent Cart and the session layer serializes access.
//
// Invariants held after every operation:
//   - every line has Quantity > 0
//   - no two lines share a product ID
//   - exactly one customer is attached
type Cart struct {
	lines      []Line
	customer   customer.Customer
	defaultCus customer.Customer
}

// New creates an empty cart attached to the given default customer.
func New(defaultCustomer customer.Customer) *Cart {
	return &Cart{
		customer:   defaultCustomer,
		defaultCus: defaultCustomer,
	}
}

// AddItem adds one unit of the product. When a line for the product already
// exists its quantity is incremented; otherwise a new line is appended with
// quantity 1. Stock is not checked here.
func (c *Cart) AddItem(p product.Product) {
	for i := range c.lines {
		if c.lines[i].ProductID == p.ID {
			c.lines[i].Quantity++
			return
		}
	}
	c.lines = append(c.lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Unit:      p.Unit,
		Quantity:  1,
	})
}

// SetQuantity sets the line's quantity to qty exactly. A qty <= 0 removes
// the line. Unknown product IDs are a no-op.
func (c *Cart) SetQuantity(productID string, qty int) {
	if qty <= 0 {
		c.RemoveItem(productID)
		return
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity = qty
			return
		}
	}
}

// RemoveItem deletes the line for the product if present; no-op otherwise.
func (c *Cart) RemoveItem(productID string) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Clear empties all lines. The selected customer is preserved; only a
// finalized sale resets it back to the default.
func (c *Cart) Clear() {
	c.lines = nil
}

// SetCustomer replaces the selected customer. An empty customer ID is
// rejected with ErrCustomerMissing so the slot can never become empty.
func (c *Cart) SetCustomer(cust customer.Customer) error {
	if cust.ID == "" {
		return ErrCustomerMissing
	}
	c.customer = cust
	return nil
}

// Customer returns the currently selected customer.
func (c *Cart) Customer() customer.Customer {
	return c.customer
}

// Lines returns a copy of the cart lines in insertion order. Mutating the
// returned slice does not affect the cart.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

// Reset empties the cart and restores the default customer. Used after a
// successful settlement; regular clearing goes through Clear.
func (c *Cart) Reset() {
	c.lines = nil
	c.customer = c.defaultCus
}
