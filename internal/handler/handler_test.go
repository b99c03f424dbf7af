package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tillpoint/internal/domain/auth"
	"github.com/xenking/tillpoint/internal/domain/customer"
	"github.com/xenking/tillpoint/internal/domain/product"
	"github.com/xenking/tillpoint/internal/domain/sale"
	"github.com/xenking/tillpoint/internal/receipt"
	"github.com/xenking/tillpoint/internal/session"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProductRepo) Search(_ context.Context, query string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		if p.Barcode == query || p.Name == query {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

type mockDirectory struct {
	byID map[string]*customer.Customer
	def  customer.Customer
}

func (m *mockDirectory) List(_ context.Context) ([]customer.Customer, error) {
	out := []customer.Customer{m.def}
	for _, c := range m.byID {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockDirectory) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (m *mockDirectory) Default(_ context.Context) (*customer.Customer, error) {
	def := m.def
	return &def, nil
}

type mockSaleStore struct {
	byID      map[string]*sale.Sale
	recordErr error
}

func (m *mockSaleStore) Record(_ context.Context, s *sale.Sale) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.byID[s.ID] = s
	return nil
}

func (m *mockSaleStore) GetByID(_ context.Context, id string) (*sale.Sale, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, sale.ErrNotFound
	}
	return s, nil
}

type mockAPIKeyRepo struct {
	byHash map[string]*auth.OperatorKey
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.OperatorKey, error) {
	k, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return k, nil
}

// --- Helpers ---

type fixture struct {
	handler *Handler
	server  http.Handler
	sales   *mockSaleStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &mockProductRepo{byID: map[string]*product.Product{
		"p1": {ID: "p1", Name: "Apple", Barcode: "8901", Price: decimal.RequireFromString("25.50"), Unit: "kg", Stock: 10},
		"p2": {ID: "p2", Name: "Banana", Barcode: "8902", Price: decimal.RequireFromString("10.00"), Unit: "kg", Stock: 5},
	}}
	directory := &mockDirectory{
		byID: map[string]*customer.Customer{
			"c1": {ID: "c1", Name: "Ada", Tier: "member"},
		},
		def: customer.Customer{ID: "walk-in", Name: "Walk-in customer", Tier: "regular"},
	}
	sales := &mockSaleStore{byID: make(map[string]*sale.Sale)}

	h := NewHandler(
		products,
		directory,
		session.NewRegistry(directory, time.Hour),
		sale.NewFinalizer(sales),
		sales,
		&receipt.Renderer{StoreName: "Test Store"},
	)

	// Inject a fixed operator identity; KeyAuth itself is covered separately.
	server := withOperator(h.Routes(), &auth.OperatorKey{ID: "op-1", Name: "Till 1"})

	return &fixture{handler: h, server: server, sales: sales}
}

func withOperator(next http.Handler, key *auth.OperatorKey) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey{}, key)))
	})
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (f *fixture) openSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeAs[cartView](t, rec).SessionID
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]productView](t, rec), 2)
}

func TestListProducts_BarcodeQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products?query=8901", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	products := decodeAs[[]productView](t, rec)
	require.Len(t, products, 1)
	assert.Equal(t, "Apple", products[0].Name)
}

func TestOpenSession_DefaultCustomer(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	view := decodeAs[cartView](t, rec)
	assert.NotEmpty(t, view.SessionID)
	assert.Empty(t, view.Lines)
	assert.Equal(t, "walk-in", view.Customer.ID)
	assert.Equal(t, "0.00", view.Total)
}

func TestAddItem_MergesAndTotals(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)

	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})
	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeAs[cartView](t, rec)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, "51.00", view.Lines[0].Subtotal)
	assert.Equal(t, "51.00", view.Total)
	assert.Equal(t, 2, view.ItemCount)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)

	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "missing"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "product_not_found", decodeAs[errorResponse](t, rec).Reason)
}

func TestSetQuantity_ZeroRemovesLine(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})

	rec := f.do(t, http.MethodPut, "/api/sessions/"+id+"/items/p1", setQuantityRequest{Quantity: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeAs[cartView](t, rec).Lines)
}

func TestClearCart_KeepsCustomer(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})
	f.do(t, http.MethodPut, "/api/sessions/"+id+"/customer", setCustomerRequest{CustomerID: "c1"})

	rec := f.do(t, http.MethodDelete, "/api/sessions/"+id+"/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeAs[cartView](t, rec)
	assert.Empty(t, view.Lines)
	assert.Equal(t, "c1", view.Customer.ID)
}

func TestSetCustomer_Unknown(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)

	rec := f.do(t, http.MethodPut, "/api/sessions/"+id+"/customer", setCustomerRequest{CustomerID: "missing"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "customer_not_found", decodeAs[errorResponse](t, rec).Reason)
}

func TestCheckout_CashEndToEnd(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})

	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", checkoutRequest{Method: "cash", Tendered: "60.00"})
	require.Equal(t, http.StatusCreated, rec.Code)

	view := decodeAs[saleView](t, rec)
	assert.Equal(t, "51.00", view.Total)
	assert.Equal(t, "60.00", view.Tendered)
	assert.Equal(t, "9.00", view.Change)
	assert.Equal(t, "op-1", view.Operator)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)

	// Cart is empty immediately after settlement.
	cartRec := f.do(t, http.MethodGet, "/api/sessions/"+id+"/cart", nil)
	cart := decodeAs[cartView](t, cartRec)
	assert.Empty(t, cart.Lines)
	assert.Equal(t, "walk-in", cart.Customer.ID)

	// The archived sale is unaffected by further cart use.
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})
	archived, err := f.sales.GetByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, archived.Lines[0].Quantity)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)

	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", checkoutRequest{Method: "cash", Tendered: "10.00"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "empty_cart", decodeAs[errorResponse](t, rec).Reason)
}

func TestCheckout_InvalidAmountKeepsCart(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p2"})
	f.do(t, http.MethodPut, "/api/sessions/"+id+"/items/p2", setQuantityRequest{Quantity: 3})

	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", checkoutRequest{Method: "cash", Tendered: "abc"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_amount", decodeAs[errorResponse](t, rec).Reason)

	cartRec := f.do(t, http.MethodGet, "/api/sessions/"+id+"/cart", nil)
	assert.Equal(t, "30.00", decodeAs[cartView](t, cartRec).Total)
}

func TestCheckout_InsufficientFundsReportsShortfall(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})

	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", checkoutRequest{Method: "cash", Tendered: "20.00"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	resp := decodeAs[errorResponse](t, rec)
	assert.Equal(t, "insufficient_funds", resp.Reason)
	assert.Equal(t, "5.50", resp.Shortfall)
}

func TestCheckout_SinkErrorKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.sales.recordErr = errors.New("db write failed")
	id := f.openSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})

	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", checkoutRequest{Method: "card"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "sale_not_recorded", decodeAs[errorResponse](t, rec).Reason)

	cartRec := f.do(t, http.MethodGet, "/api/sessions/"+id+"/cart", nil)
	assert.Len(t, decodeAs[cartView](t, cartRec).Lines, 1)
}

func TestCheckout_CardOmitsTender(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p2"})

	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", checkoutRequest{Method: "card"})
	require.Equal(t, http.StatusCreated, rec.Code)

	view := decodeAs[saleView](t, rec)
	assert.Equal(t, "card", view.Method)
	assert.Empty(t, view.Tendered)
	assert.Empty(t, view.Change)
}

func TestCheckout_UnknownSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/sessions/missing/checkout", checkoutRequest{Method: "card"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReceipt(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)
	f.do(t, http.MethodPost, "/api/sessions/"+id+"/items", addItemRequest{ProductID: "p1"})

	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout", checkoutRequest{Method: "cash", Tendered: "30.00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	saleID := decodeAs[saleView](t, rec).ID

	receiptRec := f.do(t, http.MethodGet, "/api/sales/"+saleID+"/receipt", nil)
	require.Equal(t, http.StatusOK, receiptRec.Code)
	assert.Contains(t, receiptRec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, receiptRec.Body.String(), "Test Store")
	assert.Contains(t, receiptRec.Body.String(), "Apple")
}

func TestKeyAuth(t *testing.T) {
	pepper := []byte("test-pepper")
	apiKey := "till-key-1"

	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(apiKey))
	hash := hex.EncodeToString(mac.Sum(nil))

	repo := &mockAPIKeyRepo{byHash: map[string]*auth.OperatorKey{
		hash: {ID: "op-1", KeyHash: hash, Name: "Till 1"},
	}}

	var seen *auth.OperatorKey
	protected := KeyAuth(repo, pepper)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Valid key.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(apiKeyHeader, apiKey)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "op-1", seen.ID)

	// Wrong key.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(apiKeyHeader, "wrong")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Missing key.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
