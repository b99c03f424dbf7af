package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/tillpoint/internal/domain/cart"
	"github.com/xenking/tillpoint/internal/domain/payment"
	"github.com/xenking/tillpoint/internal/domain/pricing"
	"github.com/xenking/tillpoint/internal/domain/sale"
)

type checkoutRequest struct {
	Method string `json:"method"`
	// Tendered is free-form operator input; it is parsed and validated only
	// for cash.
	Tendered string `json:"tendered"`
}

type saleView struct {
	ID        string       `json:"id"`
	Lines     []lineView   `json:"lines"`
	Total     string       `json:"total"`
	Customer  customerView `json:"customer"`
	Method    string       `json:"method"`
	Tendered  string       `json:"tendered,omitempty"`
	Change    string       `json:"change,omitempty"`
	Operator  string       `json:"operator"`
	CreatedAt string       `json:"created_at"`
}

func toSaleView(s *sale.Sale) saleView {
	lines := make([]lineView, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = lineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Unit:      l.Unit,
			Quantity:  l.Quantity,
			Subtotal:  pricing.Subtotal(l).StringFixed(2),
		}
	}

	view := saleView{
		ID:        s.ID,
		Lines:     lines,
		Total:     s.Total.StringFixed(2),
		Customer:  toCustomerView(s.Customer),
		Method:    string(s.Method),
		Operator:  s.OperatorID,
		CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if s.Method == payment.Cash {
		view.Tendered = s.Tendered.StringFixed(2)
		view.Change = s.Change.StringFixed(2)
	}
	return view
}

// checkout validates the payment against the cart total and, when valid,
// finalizes the sale. Validation and finalization happen under the session
// lock so the total cannot drift between the two steps.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	method, err := payment.ParseMethod(req.Method)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown payment method", "unknown_method")
		return
	}

	var recorded *sale.Sale
	doErr := s.Do(func(c *cart.Cart) error {
		if c.Empty() {
			return sale.ErrEmptyCart
		}

		attempt, err := payment.Validate(method, req.Tendered, pricing.Total(c.Lines()))
		if err != nil {
			return err
		}

		recorded, err = h.finalizer.Finalize(r.Context(), c, attempt, operator.ID)
		return err
	})
	if doErr != nil {
		h.writeCheckoutError(w, r, doErr)
		return
	}

	writeJSON(w, r, http.StatusCreated, toSaleView(recorded))
}

// writeCheckoutError maps settlement errors to responses. Every recoverable
// condition keeps its own reason so the till UI can react precisely: keep
// the dialog open, fix the amount, or retry the recording.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sale.ErrEmptyCart) {
		writeError(w, r, http.StatusConflict, "cart is empty", "empty_cart")
		return
	}
	if errors.Is(err, payment.ErrNothingToPay) {
		writeError(w, r, http.StatusConflict, "nothing to pay", "nothing_to_pay")
		return
	}

	var iaErr *payment.InvalidAmountError
	if errors.As(err, &iaErr) {
		writeError(w, r, http.StatusUnprocessableEntity, iaErr.Error(), "invalid_amount")
		return
	}

	var ifErr *payment.InsufficientFundsError
	if errors.As(err, &ifErr) {
		writeJSON(w, r, http.StatusPaymentRequired, errorResponse{
			Code:      http.StatusPaymentRequired,
			Message:   ifErr.Error(),
			Reason:    "insufficient_funds",
			Shortfall: ifErr.Shortfall.StringFixed(2),
		})
		return
	}

	var sinkErr *sale.SinkError
	if errors.As(err, &sinkErr) {
		// The cart is intact; the operator can retry.
		writeError(w, r, http.StatusServiceUnavailable, "sale not recorded", "sale_not_recorded")
		return
	}

	h.internalError(w, r, err)
}

// getSale returns a recorded sale.
func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.sales.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sale.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "sale not found", "sale_not_found")
			return
		}
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toSaleView(s))
}

// getReceipt renders a recorded sale as a plain-text till receipt.
func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	s, err := h.sales.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sale.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "sale not found", "sale_not_found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.receipts.Render(s)))
}
