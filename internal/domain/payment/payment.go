package payment

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method enumerates the supported settlement methods. Only cash carries a
// tendered amount; card and transfer settle for the exact total.
type Method string

const (
	Cash     Method = "cash"
	Card     Method = "card"
	Transfer Method = "transfer"
)

// Sentinel errors for payment validation.
var (
	// ErrNothingToPay is returned when settlement is attempted against a
	// non-positive total. Distinct from insufficient funds: the fix is to
	// put something in the cart, not to tender more.
	ErrNothingToPay = errors.New("nothing to pay")
	// ErrUnknownMethod is returned for a method outside the closed set.
	ErrUnknownMethod = errors.New("unknown payment method")
)

// InvalidAmountError indicates the tendered input could not be parsed as a
// non-negative amount.
type InvalidAmountError struct {
	Input string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid tendered amount %q", e.Input)
}

// InsufficientFundsError indicates cash tendered below the total. Shortfall
// is total minus tendered, so the operator can be told how much is missing.
type InsufficientFundsError struct {
	Shortfall decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s short", e.Shortfall.StringFixed(2))
}

// Attempt is the outcome of a successful validation. Tendered and Change are
// zero for card and transfer; invalid states like a transfer carrying change
// cannot be constructed through Validate.
type Attempt struct {
	Method   Method
	Tendered decimal.Decimal
	Change   decimal.Decimal
}

// ParseMethod maps free-form input to a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case Cash:
		return Cash, nil
	case Card:
		return Card, nil
	case Transfer:
		return Transfer, nil
	default:
		return "", ErrUnknownMethod
	}
}

// Validate decides whether settlement may proceed for the given total.
//
// The total must be positive; an empty cart never reaches a valid attempt.
// Card and transfer are valid unconditionally (processor interaction is the
// collaborator's concern). Cash parses the free-form tendered input and is
// valid iff tendered >= total, with change = tendered - total rounded to
// cents. Tendered equal to the total is valid with zero change.
func Validate(method Method, tendered string, total decimal.Decimal) (Attempt, error) {
	if !total.IsPositive() {
		return Attempt{}, ErrNothingToPay
	}

	switch method {
	case Card, Transfer:
		return Attempt{Method: method}, nil
	case Cash:
		amount, err := decimal.NewFromString(strings.TrimSpace(tendered))
		if err != nil || amount.IsNegative() {
			return Attempt{}, &InvalidAmountError{Input: tendered}
		}
		if amount.LessThan(total) {
			return Attempt{}, &InsufficientFundsError{
				Shortfall: total.Sub(amount).Round(2),
			}
		}
		return Attempt{
			Method:   Cash,
			Tendered: amount,
			Change:   amount.Sub(total).Round(2),
		}, nil
	default:
		return Attempt{}, ErrUnknownMethod
	}
}
