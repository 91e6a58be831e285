package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/service"
)

// memOrders rejects unknown customers the way the orders foreign key does.
type memOrders struct {
	orders    map[int64]*models.Order
	nextID    int64
	customers *memCustomers
}

func (r *memOrders) Create(ctx context.Context, o *models.Order) error {
	if _, ok := r.customers.customers[o.CustomerID]; !ok {
		return apperrors.NewNotFoundError("customer", o.CustomerID)
	}
	r.nextID++
	o.ID = r.nextID
	copied := *o
	r.orders[o.ID] = &copied
	return nil
}

func (r *memOrders) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("order", id)
	}
	copied := *o
	return &copied, nil
}

func (r *memOrders) List(ctx context.Context, f models.OrderListFilter) ([]*models.Order, error) {
	ids := make([]int64, 0, len(r.orders))
	for id := range r.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*models.Order, 0)
	for i, id := range ids {
		if i >= f.Skip && len(out) < f.Limit {
			out = append(out, r.orders[id])
		}
	}
	return out, nil
}

func (r *memOrders) Update(ctx context.Context, id int64, apply func(*models.Order) error) (*models.Order, error) {
	stored, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("order", id)
	}
	copied := *stored
	if err := apply(&copied); err != nil {
		return nil, err
	}
	if _, ok := r.customers.customers[copied.CustomerID]; !ok {
		return nil, apperrors.NewNotFoundError("customer", copied.CustomerID)
	}
	r.orders[id] = &copied
	result := copied
	return &result, nil
}

func (r *memOrders) Delete(ctx context.Context, id int64) error {
	if _, ok := r.orders[id]; !ok {
		return apperrors.NewNotFoundError("order", id)
	}
	delete(r.orders, id)
	return nil
}

type memProducts struct {
	products map[int64]*models.Product
}

func (r *memProducts) Create(ctx context.Context, p *models.Product) error {
	p.ID = int64(len(r.products) + 100)
	r.products[p.ID] = p
	return nil
}

func (r *memProducts) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("product", id)
	}
	return p, nil
}

func (r *memProducts) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	out := make(map[int64]*models.Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *memProducts) List(ctx context.Context, f models.ListFilter) ([]*models.Product, error) {
	out := make([]*models.Product, 0)
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *memProducts) Update(ctx context.Context, p *models.Product) error {
	r.products[p.ID] = p
	return nil
}

func (r *memProducts) Delete(ctx context.Context, id int64) error {
	return apperrors.NewConflictError("product", "product is referenced by existing orders")
}

type memCustomers struct {
	customers map[int64]*models.Customer
}

func (r *memCustomers) Create(ctx context.Context, c *models.Customer) error {
	for _, existing := range r.customers {
		if existing.Email == c.Email {
			return apperrors.NewConflictError("email", "email "+c.Email+" is already registered")
		}
	}
	c.ID = int64(len(r.customers) + 1)
	r.customers[c.ID] = c
	return nil
}

func (r *memCustomers) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("customer", id)
	}
	return c, nil
}

func (r *memCustomers) List(ctx context.Context, f models.ListFilter) ([]*models.Customer, error) {
	return []*models.Customer{}, nil
}

func (r *memCustomers) Update(ctx context.Context, c *models.Customer) error {
	r.customers[c.ID] = c
	return nil
}

func (r *memCustomers) Delete(ctx context.Context, id int64) error {
	delete(r.customers, id)
	return nil
}

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(ctx context.Context) error {
	return p.err
}

func newTestRouter(t *testing.T, db Pinger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Version: "1.2.3"}
	logger := logging.Discard()

	products := &memProducts{products: map[int64]*models.Product{
		10: {ID: 10, Name: "Widget", Price: decimal.RequireFromString("5.5"), Status: models.ProductStatusActive},
	}}
	customers := &memCustomers{customers: map[int64]*models.Customer{
		1: {ID: 1, Name: "Ann", Email: "ann@example.com"},
	}}
	orders := &memOrders{orders: make(map[int64]*models.Order), customers: customers}

	orderService := service.NewOrderService(orders, products, nil, nil, nil, cfg, logger)
	h := NewHandlers(
		orderService,
		service.NewProductService(products, logger),
		service.NewCustomerService(customers, logger),
		db,
		cfg,
		logger,
	)

	router := gin.New()
	h.RegisterRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(router, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	resp := decodeBody(t, w)
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
	if resp["service"] != "sales-service" {
		t.Errorf("Expected service 'sales-service', got %v", resp["service"])
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		pinger     Pinger
		wantStatus int
	}{
		{"database reachable", stubPinger{}, http.StatusOK},
		{"database down", stubPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.pinger)
			w := doRequest(router, http.MethodGet, "/ready", "")
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestLiveRootAndVersion(t *testing.T) {
	router := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/live", "").Code)

	root := decodeBody(t, doRequest(router, http.MethodGet, "/", ""))
	assert.Equal(t, "1.2.3", root["version"])

	version := decodeBody(t, doRequest(router, http.MethodGet, "/version", ""))
	assert.Equal(t, "1.2.3", version["version"])
	assert.NotEmpty(t, version["go_version"])
}

func TestCreateOrder(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/orders",
		`{"customer_id": 1, "items": [{"product_id": 10, "quantity": 3}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeBody(t, w)
	assert.Equal(t, 16.5, resp["subtotal"])
	assert.Equal(t, 16.5, resp["total"])
	assert.Equal(t, 0.0, resp["tax"])
	assert.Equal(t, "pending", resp["status"])

	items := resp["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, 5.5, item["price"])
	assert.Equal(t, 16.5, item["total"])
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantDetails map[string]interface{}
	}{
		{
			name:       "malformed body",
			body:       `{"customer_id": `,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "zero quantity",
			body:        `{"customer_id": 1, "items": [{"product_id": 10, "quantity": 0}]}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: map[string]interface{}{"field": "items[0]", "item_index": 0.0},
		},
		{
			name:        "quantity beyond integer column",
			body:        `{"customer_id": 1, "items": [{"product_id": 10, "quantity": 3000000000}]}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: map[string]interface{}{"field": "items[0]", "item_index": 0.0},
		},
		{
			name:        "empty items",
			body:        `{"customer_id": 1, "items": []}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: map[string]interface{}{"field": "items"},
		},
		{
			name:        "unknown product",
			body:        `{"customer_id": 1, "items": [{"product_id": 10, "quantity": 1}, {"product_id": 77, "quantity": 1}]}`,
			wantStatus:  http.StatusNotFound,
			wantDetails: map[string]interface{}{"product_id": 77.0, "item_index": 1.0},
		},
		{
			name:       "unknown customer",
			body:       `{"customer_id": 5, "items": [{"product_id": 10, "quantity": 1}]}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:        "inconsistent line total",
			body:        `{"customer_id": 1, "items": [{"product_id": 10, "quantity": 2, "price": 1, "total": 5}]}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: map[string]interface{}{"field": "items[0]", "product_id": 10.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, nil)

			w := doRequest(router, http.MethodPost, "/api/v1/orders", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			resp := decodeBody(t, w)
			assert.NotEmpty(t, resp["error"])
			if tt.wantDetails != nil {
				details, ok := resp["details"].(map[string]interface{})
				require.True(t, ok, "missing details: %s", w.Body.String())
				for k, v := range tt.wantDetails {
					assert.Equal(t, v, details[k], k)
				}
			}

			list := doRequest(router, http.MethodGet, "/api/v1/orders", "")
			assert.JSONEq(t, `[]`, list.Body.String())
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	router := newTestRouter(t, nil)

	created := doRequest(router, http.MethodPost, "/api/v1/orders",
		`{"customer_id": 1, "tax": 1.5, "items": [{"product_id": 10, "quantity": 1}]}`)
	require.Equal(t, http.StatusCreated, created.Code)

	got := doRequest(router, http.MethodGet, "/api/v1/orders/1", "")
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, 7.0, decodeBody(t, got)["total"])

	bad := doRequest(router, http.MethodPut, "/api/v1/orders/1", `{"status": "delivered"}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	updated := doRequest(router, http.MethodPut, "/api/v1/orders/1", `{"status": "processing", "shipping": 2}`)
	require.Equal(t, http.StatusOK, updated.Code)
	resp := decodeBody(t, updated)
	assert.Equal(t, "processing", resp["status"])
	assert.Equal(t, 5.5, resp["subtotal"])
	assert.Equal(t, 9.0, resp["total"])

	deleted := doRequest(router, http.MethodDelete, "/api/v1/orders/1", "")
	require.Equal(t, http.StatusOK, deleted.Code)
	assert.Equal(t, "Order deleted successfully", decodeBody(t, deleted)["message"])

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/api/v1/orders/1", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodDelete, "/api/v1/orders/1", "").Code)
}

func TestOrderRequestParsing(t *testing.T) {
	router := newTestRouter(t, nil)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/api/v1/orders/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/api/v1/orders/0", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/api/v1/orders?limit=ten", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/api/v1/orders?skip=-1", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/v1/orders?skip=0&limit=500", "").Code)
}

func TestCatalogEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)

	product := doRequest(router, http.MethodPost, "/api/v1/products", `{"name": "Gadget", "price": 2.25, "stock": 3}`)
	require.Equal(t, http.StatusCreated, product.Code, product.Body.String())
	resp := decodeBody(t, product)
	assert.Equal(t, 2.25, resp["price"])
	assert.Equal(t, "active", resp["status"])

	invalid := doRequest(router, http.MethodPost, "/api/v1/products", `{"name": "", "price": 1}`)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	referenced := doRequest(router, http.MethodDelete, "/api/v1/products/10", "")
	assert.Equal(t, http.StatusConflict, referenced.Code)

	duplicate := doRequest(router, http.MethodPost, "/api/v1/customers", `{"name": "Ann B", "email": "ann@example.com"}`)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Equal(t, "email", decodeBody(t, duplicate)["details"].(map[string]interface{})["field"])

	customer := doRequest(router, http.MethodPost, "/api/v1/customers", `{"name": "Bob", "email": "bob@example.com"}`)
	assert.Equal(t, http.StatusCreated, customer.Code)

	for _, body := range []string{
		`{"name": "Bob", "email": "Bob <bob@example.com>"}`,
		`{"name": "Bob", "email": "bob"}`,
		`{"name": "Bob"}`,
	} {
		rejected := doRequest(router, http.MethodPost, "/api/v1/customers", body)
		require.Equal(t, http.StatusBadRequest, rejected.Code, body)
		assert.Equal(t, "email", decodeBody(t, rejected)["details"].(map[string]interface{})["field"], body)
	}

	badUpdate := doRequest(router, http.MethodPut, "/api/v1/customers/1", `{"email": "Ann <ann@example.com>"}`)
	assert.Equal(t, http.StatusBadRequest, badUpdate.Code)

	missing := doRequest(router, http.MethodGet, "/api/v1/customers/99", "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestHandleError_Internal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handlers{logger: logging.Discard()}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)

	h.handleError(c, errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "internal server error"}`, w.Body.String())
}
