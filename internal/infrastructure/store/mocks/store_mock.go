package mocks

import (
	"context"
	"sync"

	"github.com/example/inventory-audit/internal/infrastructure/store"
	"github.com/example/inventory-audit/internal/model"
)

// MockStore wraps a MemoryStore, records every statement it receives and
// fails the ones named in FailOn. Statements issued inside WithTx are
// recorded and failed the same way.
type MockStore struct {
	store.Queries
	Memory *store.MemoryStore

	mu      sync.Mutex
	Calls   []string
	FailOn  map[string]error
	TxCalls int
	PingErr error
}

// NewMockStore creates a new MockStore over an empty MemoryStore
func NewMockStore() *MockStore {
	m := &MockStore{
		Memory: store.NewMemoryStore(),
		FailOn: make(map[string]error),
	}
	m.Queries = recordingQueries{inner: m.Memory, mock: m}
	return m
}

func (m *MockStore) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	m.mu.Lock()
	m.TxCalls++
	m.mu.Unlock()
	return m.Memory.WithTx(ctx, func(q store.Queries) error {
		return fn(recordingQueries{inner: q, mock: m})
	})
}

func (m *MockStore) Ping(ctx context.Context) error {
	if m.PingErr != nil {
		return m.PingErr
	}
	return m.Memory.Ping(ctx)
}

func (m *MockStore) Close() error {
	return nil
}

// Fail makes every later call to the named statement return err
func (m *MockStore) Fail(statement string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailOn[statement] = err
}

// Count returns how many times the named statement was issued
func (m *MockStore) Count(statement string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == statement {
			n++
		}
	}
	return n
}

// Reset clears recorded calls and injected failures
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.TxCalls = 0
	m.FailOn = make(map[string]error)
	m.PingErr = nil
}

func (m *MockStore) record(statement string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, statement)
	return m.FailOn[statement]
}

type recordingQueries struct {
	inner store.Queries
	mock  *MockStore
}

func (r recordingQueries) InsertProduct(ctx context.Context, name string, quantity int, category string) (*model.Product, error) {
	if err := r.mock.record("InsertProduct"); err != nil {
		return nil, err
	}
	return r.inner.InsertProduct(ctx, name, quantity, category)
}

func (r recordingQueries) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if err := r.mock.record("GetProduct"); err != nil {
		return nil, err
	}
	return r.inner.GetProduct(ctx, id)
}

func (r recordingQueries) ProductNameExists(ctx context.Context, name string) (bool, error) {
	if err := r.mock.record("ProductNameExists"); err != nil {
		return false, err
	}
	return r.inner.ProductNameExists(ctx, name)
}

func (r recordingQueries) UpdateProduct(ctx context.Context, id int64, set []store.Assignment) (*model.Product, error) {
	if err := r.mock.record("UpdateProduct"); err != nil {
		return nil, err
	}
	return r.inner.UpdateProduct(ctx, id, set)
}

func (r recordingQueries) DeleteEmptyProduct(ctx context.Context, id int64) (*model.Product, error) {
	if err := r.mock.record("DeleteEmptyProduct"); err != nil {
		return nil, err
	}
	return r.inner.DeleteEmptyProduct(ctx, id)
}

func (r recordingQueries) ListProducts(ctx context.Context) ([]model.Product, error) {
	if err := r.mock.record("ListProducts"); err != nil {
		return nil, err
	}
	return r.inner.ListProducts(ctx)
}

func (r recordingQueries) ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error) {
	if err := r.mock.record("ListProductsByCategory"); err != nil {
		return nil, err
	}
	return r.inner.ListProductsByCategory(ctx, category)
}

func (r recordingQueries) ListProductsByQuantity(ctx context.Context, min, max int) ([]model.Product, error) {
	if err := r.mock.record("ListProductsByQuantity"); err != nil {
		return nil, err
	}
	return r.inner.ListProductsByQuantity(ctx, min, max)
}

func (r recordingQueries) ListProductsPage(ctx context.Context, limit, offset int) ([]model.Product, int, error) {
	if err := r.mock.record("ListProductsPage"); err != nil {
		return nil, 0, err
	}
	return r.inner.ListProductsPage(ctx, limit, offset)
}

func (r recordingQueries) InsertEventLog(ctx context.Context, productID int64, action model.Action, details *string) (*model.EventLog, error) {
	if err := r.mock.record("InsertEventLog"); err != nil {
		return nil, err
	}
	return r.inner.InsertEventLog(ctx, productID, action, details)
}

func (r recordingQueries) ListEventLogs(ctx context.Context, productID *int64) ([]model.EventLog, error) {
	if err := r.mock.record("ListEventLogs"); err != nil {
		return nil, err
	}
	return r.inner.ListEventLogs(ctx, productID)
}
