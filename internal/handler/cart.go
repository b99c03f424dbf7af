package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/tillpoint/internal/domain/cart"
	"github.com/xenking/tillpoint/internal/domain/customer"
	"github.com/xenking/tillpoint/internal/domain/pricing"
	"github.com/xenking/tillpoint/internal/domain/product"
)

type lineView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Unit      string `json:"unit"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

// cartView is the full cart state plus derived totals. Totals are computed
// from the lines on every request, never cached.
type cartView struct {
	SessionID string       `json:"session_id"`
	Lines     []lineView   `json:"lines"`
	Total     string       `json:"total"`
	ItemCount int          `json:"item_count"`
	Customer  customerView `json:"customer"`
}

func toCartView(sessionID string, c *cart.Cart) cartView {
	lines := c.Lines()
	views := make([]lineView, len(lines))
	for i, l := range lines {
		views[i] = lineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Unit:      l.Unit,
			Quantity:  l.Quantity,
			Subtotal:  pricing.Subtotal(l).StringFixed(2),
		}
	}
	return cartView{
		SessionID: sessionID,
		Lines:     views,
		Total:     pricing.Total(lines).StringFixed(2),
		ItemCount: pricing.ItemCount(lines),
		Customer:  toCustomerView(c.Customer()),
	}
}

// openSession creates a session with an empty cart attached to the default
// walk-in customer.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Open(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	var view cartView
	_ = s.Do(func(c *cart.Cart) error {
		view = toCartView(s.ID, c)
		return nil
	})
	writeJSON(w, r, http.StatusCreated, view)
}

// closeSession discards the session and its cart. Nothing was committed, so
// there is nothing to roll back.
func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Close(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var view cartView
	_ = s.Do(func(c *cart.Cart) error {
		view = toCartView(s.ID, c)
		return nil
	})
	writeJSON(w, r, http.StatusOK, view)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
}

// addItem adds one unit of the product to the cart, merging into an existing
// line when present.
func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusUnprocessableEntity, "product not found", "product_not_found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	var view cartView
	_ = s.Do(func(c *cart.Cart) error {
		c.AddItem(*p)
		view = toCartView(s.ID, c)
		return nil
	})
	writeJSON(w, r, http.StatusOK, view)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// setQuantity sets a line's quantity exactly; zero or negative removes the
// line. Unknown products are a no-op, mirroring the cart semantics.
func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req setQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var view cartView
	_ = s.Do(func(c *cart.Cart) error {
		c.SetQuantity(r.PathValue("productID"), req.Quantity)
		view = toCartView(s.ID, c)
		return nil
	})
	writeJSON(w, r, http.StatusOK, view)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var view cartView
	_ = s.Do(func(c *cart.Cart) error {
		c.RemoveItem(r.PathValue("productID"))
		view = toCartView(s.ID, c)
		return nil
	})
	writeJSON(w, r, http.StatusOK, view)
}

// clearCart empties the lines but keeps the selected customer.
func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var view cartView
	_ = s.Do(func(c *cart.Cart) error {
		c.Clear()
		view = toCartView(s.ID, c)
		return nil
	})
	writeJSON(w, r, http.StatusOK, view)
}

type setCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

// setCustomer attaches a customer from the directory to the cart.
func (h *Handler) setCustomer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req setCustomerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cust, err := h.customers.GetByID(r.Context(), req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			writeError(w, r, http.StatusUnprocessableEntity, "customer not found", "customer_not_found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	var view cartView
	doErr := s.Do(func(c *cart.Cart) error {
		if err := c.SetCustomer(*cust); err != nil {
			return err
		}
		view = toCartView(s.ID, c)
		return nil
	})
	if doErr != nil {
		// Directory returned a customer without an ID: a contract violation,
		// not an operator mistake.
		h.internalError(w, r, doErr)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}
