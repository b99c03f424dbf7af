package handler

import (
	"net/http"

	"github.com/xenking/tillpoint/internal/domain/customer"
	"github.com/xenking/tillpoint/internal/domain/product"
)

type productView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Barcode  string `json:"barcode"`
	Price    string `json:"price"`
	Category string `json:"category"`
	Stock    int    `json:"stock"`
	Unit     string `json:"unit"`
}

type customerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	Tier  string `json:"tier"`
}

func toProductView(p product.Product) productView {
	return productView{
		ID:       p.ID,
		Name:     p.Name,
		Barcode:  p.Barcode,
		Price:    p.Price.StringFixed(2),
		Category: p.Category,
		Stock:    p.Stock,
		Unit:     p.Unit,
	}
}

func toCustomerView(c customer.Customer) customerView {
	return customerView{
		ID:    c.ID,
		Name:  c.Name,
		Phone: c.Phone,
		Email: c.Email,
		Tier:  c.Tier,
	}
}

// listProducts serves the catalog, optionally filtered by the free-text or
// barcode ?query= parameter.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []product.Product
		err      error
	)
	if query := r.URL.Query().Get("query"); query != "" {
		products, err = h.products.Search(r.Context(), query)
	} else {
		products, err = h.products.List(r.Context())
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	views := make([]productView, len(products))
	for i, p := range products {
		views[i] = toProductView(p)
	}
	writeJSON(w, r, http.StatusOK, views)
}

// listCustomers serves the customer directory, default customer first.
func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	views := make([]customerView, len(customers))
	for i, c := range customers {
		views[i] = toCustomerView(c)
	}
	writeJSON(w, r, http.StatusOK, views)
}
