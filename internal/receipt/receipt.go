// Package receipt formats finalized sales as plain-text till receipts.
// Rendering is read-only over a Sale and feeds nothing back into the core.
package receipt

import (
	"fmt"
	"strings"

	"github.com/xenking/tillpoint/internal/domain/payment"
	"github.com/xenking/tillpoint/internal/domain/pricing"
	"github.com/xenking/tillpoint/internal/domain/sale"
)

const defaultWidth = 40

// Renderer produces monospace till-roll receipts.
type Renderer struct {
	// StoreName is printed centered at the top of every receipt.
	StoreName string
	// Width is the roll width in characters. Zero means 40.
	Width int
}

// Render formats the sale as a text receipt.
func (r *Renderer) Render(s *sale.Sale) string {
	width := r.Width
	if width <= 0 {
		width = defaultWidth
	}
	rule := strings.Repeat("-", width)

	var b strings.Builder
	if r.StoreName != "" {
		b.WriteString(center(r.StoreName, width))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Sale %s\n", s.ID)
	fmt.Fprintf(&b, "%s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Operator: %s\n", s.OperatorID)
	fmt.Fprintf(&b, "Customer: %s\n", s.Customer.Name)
	b.WriteString(rule)
	b.WriteByte('\n')

	for _, l := range s.Lines {
		fmt.Fprintf(&b, "%s\n", l.Name)
		qty := fmt.Sprintf("  %d %s x %s", l.Quantity, l.Unit, l.UnitPrice.StringFixed(2))
		amount := pricing.Subtotal(l).StringFixed(2)
		b.WriteString(alignRow(qty, amount, width))
		b.WriteByte('\n')
	}

	b.WriteString(rule)
	b.WriteByte('\n')
	b.WriteString(alignRow(fmt.Sprintf("TOTAL (%d items)", pricing.ItemCount(s.Lines)), s.Total.StringFixed(2), width))
	b.WriteByte('\n')
	b.WriteString(alignRow(methodLabel(s.Method), "", width))
	b.WriteByte('\n')

	if s.Method == payment.Cash {
		b.WriteString(alignRow("Tendered", s.Tendered.StringFixed(2), width))
		b.WriteByte('\n')
		b.WriteString(alignRow("Change", s.Change.StringFixed(2), width))
		b.WriteByte('\n')
	}

	return b.String()
}

func methodLabel(m payment.Method) string {
	switch m {
	case payment.Cash:
		return "Paid in cash"
	case payment.Card:
		return "Paid by card"
	case payment.Transfer:
		return "Paid by transfer"
	default:
		return string(m)
	}
}

// alignRow left-aligns label and right-aligns amount on one line of the
// given width, separated by at least one space.
func alignRow(label, amount string, width int) string {
	pad := width - len(label) - len(amount)
	if pad < 1 {
		pad = 1
	}
	return label + strings.Repeat(" ", pad) + amount
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s
}
