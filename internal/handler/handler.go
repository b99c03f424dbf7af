// Package handler exposes the register over HTTP. It owns no business rules:
// every request is translated into domain operations and every domain error
// is mapped to a JSON error response the till UI can act on.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tillpoint/internal/domain/customer"
	"github.com/xenking/tillpoint/internal/domain/product"
	"github.com/xenking/tillpoint/internal/domain/sale"
	"github.com/xenking/tillpoint/internal/receipt"
	"github.com/xenking/tillpoint/internal/session"
)

// Handler serves the register API.
type Handler struct {
	products  product.Repository
	customers customer.Directory
	sessions  *session.Registry
	finalizer *sale.Finalizer
	sales     sale.Archive
	receipts  *receipt.Renderer
}

// NewHandler constructs a Handler with the required collaborators.
func NewHandler(
	products product.Repository,
	customers customer.Directory,
	sessions *session.Registry,
	finalizer *sale.Finalizer,
	sales sale.Archive,
	receipts *receipt.Renderer,
) *Handler {
	return &Handler{
		products:  products,
		customers: customers,
		sessions:  sessions,
		finalizer: finalizer,
		sales:     sales,
		receipts:  receipts,
	}
}

// Routes returns the API route table. Paths are rooted at /api.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/customers", h.listCustomers)

	mux.HandleFunc("POST /api/sessions", h.openSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.closeSession)
	mux.HandleFunc("GET /api/sessions/{id}/cart", h.getCart)
	mux.HandleFunc("DELETE /api/sessions/{id}/cart", h.clearCart)
	mux.HandleFunc("POST /api/sessions/{id}/items", h.addItem)
	mux.HandleFunc("PUT /api/sessions/{id}/items/{productID}", h.setQuantity)
	mux.HandleFunc("DELETE /api/sessions/{id}/items/{productID}", h.removeItem)
	mux.HandleFunc("PUT /api/sessions/{id}/customer", h.setCustomer)
	mux.HandleFunc("POST /api/sessions/{id}/checkout", h.checkout)

	mux.HandleFunc("GET /api/sales/{id}", h.getSale)
	mux.HandleFunc("GET /api/sales/{id}/receipt", h.getReceipt)

	return mux
}

// errorResponse is the JSON body for all error statuses. Reason is a stable
// machine-readable discriminator so the till UI can keep the payment dialog
// open (insufficient_funds, invalid_amount) or disable the settle action
// (empty_cart) without parsing messages.
type errorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Reason    string `json:"reason,omitempty"`
	Shortfall string `json:"shortfall,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message, reason string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: message, Reason: reason})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("internal error", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "internal error", "")
}

// session resolves the {id} path value to an active session, writing a 404
// if it is unknown. The bool reports whether the caller may proceed.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, "session not found", "session_not_found")
		return nil, false
	}
	return s, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body", "")
		return false
	}
	return true
}
