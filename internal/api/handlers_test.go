package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/inventory-audit/internal/domain/eventlog"
	"github.com/example/inventory-audit/internal/domain/product"
	"github.com/example/inventory-audit/internal/infrastructure/store/mocks"
	"github.com/example/inventory-audit/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler   http.Handler
	store     *mocks.MockStore
	publisher *mocks.MockPublisher
}

func newTestServer() *testServer {
	st := mocks.NewMockStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	st.Memory.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	publisher := mocks.NewMockPublisher()
	recorder := eventlog.NewRecorder(st, publisher, nil)
	handlers := NewHandlers(product.NewService(st, recorder), recorder, st, nil)

	return &testServer{
		handler:   NewRouter(handlers, nil, nil, nil),
		store:     st,
		publisher: publisher,
	}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) create(t *testing.T, name string, quantity int, category string) model.Product {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/products",
		fmt.Sprintf(`{"name":%q,"quantity":%d,"category":%q}`, name, quantity, category))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Product model.Product `json:"product"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Product
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

// ============================================
// End-to-end scenario
// ============================================

func TestProductLifecycle_Lap(t *testing.T) {
	s := newTestServer()

	created := s.create(t, "Lap", 5, "electronics")
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Lap", created.Name)

	rec := s.do(t, http.MethodPatch, fmt.Sprintf("/products/%d", created.ID), `{"quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[struct {
		Message string        `json:"message"`
		Product model.Product `json:"product"`
	}](t, rec)
	assert.Equal(t, "Product updated successfully", updated.Message)
	assert.Equal(t, 0, updated.Product.Quantity)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Product deleted successfully", decode[map[string]any](t, rec)["message"])

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/event-logs?productId=%d", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]model.EventLog](t, rec)
	require.Len(t, logs, 3)
	assert.Equal(t, model.ActionDeleted, logs[0].Action)
	assert.Equal(t, model.ActionUpdated, logs[1].Action)
	require.NotNil(t, logs[1].Details)
	assert.Equal(t, "Updated fields: quantity", *logs[1].Details)
	assert.Equal(t, model.ActionAdded, logs[2].Action)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/products/%d", created.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Len(t, s.publisher.Calls(), 3)
}

// ============================================
// Create
// ============================================

func TestCreateProduct_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing name", `{"quantity":1,"category":"electronics"}`, `"name" is required`},
		{"short name", `{"name":"ab","quantity":1,"category":"electronics"}`, `"name" length must be at least 3 characters long`},
		{"empty name", `{"name":"","quantity":1,"category":"electronics"}`, `"name" is not allowed to be empty`},
		{"numeric name", `{"name":123,"quantity":1,"category":"electronics"}`, `"name" must be a string`},
		{"missing quantity", `{"name":"Mouse","category":"electronics"}`, `"quantity" is required`},
		{"negative quantity", `{"name":"Mouse","quantity":-1,"category":"electronics"}`, `"quantity" must be greater than or equal to 0`},
		{"fractional quantity", `{"name":"Mouse","quantity":1.5,"category":"electronics"}`, `"quantity" must be an integer`},
		{"text quantity", `{"name":"Mouse","quantity":"many","category":"electronics"}`, `"quantity" must be a number`},
		{"null quantity", `{"name":"Mouse","quantity":null,"category":"electronics"}`, `"quantity" must be a number`},
		{"short category", `{"name":"Mouse","quantity":1,"category":"io"}`, `"category" length must be at least 3 characters long`},
		{"unknown key", `{"name":"Mouse","quantity":1,"category":"electronics","price":9}`, `"price" is not allowed`},
		{"array body", `[1,2]`, `"value" must be of type object`},
		{"malformed", `{"name":`, `Invalid request body`},
		{"trailing data", `{"name":"Mouse","quantity":1,"category":"electronics"} {}`, `Invalid request body`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()

			rec := s.do(t, http.MethodPost, "/products", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, errorOf(t, rec))
			assert.Zero(t, s.store.Count("InsertProduct"))
		})
	}
}

func TestCreateProduct_NumericStringQuantity(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPost, "/products", `{"name":"Mouse","quantity":"7","category":"electronics"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	p := decode[struct {
		Product model.Product `json:"product"`
	}](t, rec).Product
	assert.Equal(t, 7, p.Quantity)
}

func TestCreateProduct_DuplicateName(t *testing.T) {
	s := newTestServer()
	s.create(t, "Mouse", 1, "electronics")

	rec := s.do(t, http.MethodPost, "/products", `{"name":"Mouse","quantity":2,"category":"peripherals"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Product with this name already exists", errorOf(t, rec))
}

func TestCreateProduct_StoreFailure(t *testing.T) {
	s := newTestServer()
	s.store.Fail("InsertProduct", errors.New("connection reset by peer"))

	rec := s.do(t, http.MethodPost, "/products", `{"name":"Mouse","quantity":2,"category":"peripherals"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server error", errorOf(t, rec))
}

// ============================================
// Update
// ============================================

func TestUpdateProduct_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"negative quantity", `{"quantity":-3}`, "Quantity must be a valid number and >= 0"},
		{"text quantity", `{"quantity":"lots"}`, "Quantity must be a valid number and >= 0"},
		{"blank name", `{"name":"   "}`, "Name cannot be empty"},
		{"null name", `{"name":null}`, "Name cannot be empty"},
		{"blank category", `{"category":""}`, "Category cannot be empty"},
		{"empty body", `{}`, "No fields to update"},
		{"only unknown keys", `{"price":3}`, "No fields to update"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			p := s.create(t, "Keyboard", 4, "peripherals")

			rec := s.do(t, http.MethodPatch, fmt.Sprintf("/products/%d", p.ID), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, errorOf(t, rec))
			assert.Zero(t, s.store.Count("UpdateProduct"))
		})
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPatch, "/products/999", `{"quantity":1}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", errorOf(t, rec))
}

func TestUpdateProduct_InvalidID(t *testing.T) {
	s := newTestServer()

	for _, id := range []string{"abc", "0", "-1", "1.5"} {
		rec := s.do(t, http.MethodPatch, "/products/"+id, `{"quantity":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
		assert.Equal(t, "Invalid product ID", errorOf(t, rec))
	}
}

func TestUpdateProduct_RenameToExisting(t *testing.T) {
	s := newTestServer()
	s.create(t, "Mouse", 1, "peripherals")
	p := s.create(t, "Keyboard", 1, "peripherals")

	rec := s.do(t, http.MethodPatch, fmt.Sprintf("/products/%d", p.ID), `{"name":"Mouse"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Product with this name already exists", errorOf(t, rec))
}

// ============================================
// Delete
// ============================================

func TestDeleteProduct_QuantityNotZero(t *testing.T) {
	s := newTestServer()
	p := s.create(t, "Monitor", 2, "displays")

	rec := s.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", p.ID), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Product quantity must be 0 before it can be deleted", errorOf(t, rec))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, fmt.Sprintf("/products/%d", p.ID), "").Code)
}

func TestDeleteProduct_NotFoundIsBadRequest(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodDelete, "/products/42", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Product not found", errorOf(t, rec))
}

// ============================================
// Reads
// ============================================

func TestGetProducts(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	s.create(t, "Mouse", 1, "peripherals")
	s.create(t, "Laptop", 3, "electronics")

	products := decode[[]model.Product](t, s.do(t, http.MethodGet, "/products", ""))
	require.Len(t, products, 2)
	assert.Equal(t, "Mouse", products[0].Name)
	assert.Equal(t, "Laptop", products[1].Name)
}

func TestGetProducts_StoreFailure(t *testing.T) {
	s := newTestServer()
	s.store.Fail("ListProducts", errors.New("too many connections"))

	rec := s.do(t, http.MethodGet, "/products", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "too many connections")
}

func TestFilterByCategory(t *testing.T) {
	s := newTestServer()
	s.create(t, "Mouse", 1, "peripherals")
	s.create(t, "Laptop", 3, "electronics")

	rec := s.do(t, http.MethodGet, "/products/filter/category?category=electronics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]model.Product](t, rec)
	require.Len(t, products, 1)
	assert.Equal(t, "Laptop", products[0].Name)

	rec = s.do(t, http.MethodGet, "/products/filter/category?category=Electronics", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/products/filter/category", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilterByQuantity(t *testing.T) {
	s := newTestServer()
	for i, q := range []int{0, 5, 10, 11} {
		s.create(t, fmt.Sprintf("item-%d", i), q, "general")
	}

	rec := s.do(t, http.MethodGet, "/products/filter/quantity?minQuantity=5&maxQuantity=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]model.Product](t, rec)
	require.Len(t, products, 2)
	assert.Equal(t, 5, products[0].Quantity)
	assert.Equal(t, 10, products[1].Quantity)

	rec = s.do(t, http.MethodGet, "/products/filter/quantity?minQuantity=10&maxQuantity=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestFilterByQuantity_Invalid(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"minQuantity=1", "Both minQuantity and maxQuantity are required"},
		{"maxQuantity=1", "Both minQuantity and maxQuantity are required"},
		{"minQuantity=&maxQuantity=4", "Both minQuantity and maxQuantity are required"},
		{"minQuantity=a&maxQuantity=4", "Quantity values must be valid numbers"},
		{"minQuantity=1&maxQuantity=4.5", "Quantity values must be valid numbers"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			s := newTestServer()

			rec := s.do(t, http.MethodGet, "/products/filter/quantity?"+tt.query, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, errorOf(t, rec))
		})
	}
}

func TestGetPaginatedProducts(t *testing.T) {
	s := newTestServer()
	for i := 0; i < 25; i++ {
		s.create(t, fmt.Sprintf("item-%02d", i), i, "general")
	}

	rec := s.do(t, http.MethodGet, "/products/paginated", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[PaginatedResponse](t, rec)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 10, page.ItemsPerPage)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 25, page.TotalProducts)
	assert.Len(t, page.Products, 10)

	page = decode[PaginatedResponse](t, s.do(t, http.MethodGet, "/products/paginated?page=3&itemsPerPage=10", ""))
	assert.Len(t, page.Products, 5)
	assert.Equal(t, "item-20", page.Products[0].Name)

	page = decode[PaginatedResponse](t, s.do(t, http.MethodGet, "/products/paginated?page=9", ""))
	assert.Empty(t, page.Products)
	assert.Equal(t, 25, page.TotalProducts)
}

func TestGetPaginatedProducts_Invalid(t *testing.T) {
	s := newTestServer()

	for _, q := range []string{"page=0", "page=-1", "itemsPerPage=0", "page=x", "itemsPerPage=2.5"} {
		rec := s.do(t, http.MethodGet, "/products/paginated?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, "page and itemsPerPage must be positive integers", errorOf(t, rec))
	}
}

// ============================================
// Event logs
// ============================================

func TestGetEventLogs(t *testing.T) {
	s := newTestServer()
	a := s.create(t, "Mouse", 1, "peripherals")
	b := s.create(t, "Laptop", 0, "electronics")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", b.ID), "").Code)

	logs := decode[[]model.EventLog](t, s.do(t, http.MethodGet, "/event-logs", ""))
	require.Len(t, logs, 3)
	assert.Equal(t, b.ID, logs[0].ProductID)
	assert.Equal(t, model.ActionDeleted, logs[0].Action)
	assert.Equal(t, a.ID, logs[2].ProductID)

	logs = decode[[]model.EventLog](t, s.do(t, http.MethodGet, fmt.Sprintf("/event-logs?productId=%d", a.ID), ""))
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionAdded, logs[0].Action)

	rec := s.do(t, http.MethodGet, "/event-logs?productId=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================
// Routing and health
// ============================================

func TestRouter_MethodNotAllowed(t *testing.T) {
	s := newTestServer()

	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/products"},
		{http.MethodPut, "/products/1"},
		{http.MethodPost, "/products/paginated"},
		{http.MethodDelete, "/event-logs"},
	} {
		rec := s.do(t, tc.method, tc.path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, tc.method+" "+tc.path)
	}
}

func TestRouter_LoginNotRegisteredWithoutAuth(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPost, "/auth/login", `{"username":"admin","password":"secret"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RequestIDHeader(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/products", "")

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s.store.PingErr = errors.New("dial tcp: connection refused")
	rec = s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{product.ErrDuplicateName, http.StatusBadRequest},
		{product.ErrQuantityNotZero, http.StatusBadRequest},
		{product.ErrInvalidRange, http.StatusBadRequest},
		{product.ErrProductNotFound, http.StatusNotFound},
		{invalid("bad"), http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestDecodeObject_TooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	rec := httptest.NewRecorder()

	_, err := decodeObject(rec, req)

	require.Error(t, err)
	assert.Equal(t, "Request body too large", err.Error())
}
