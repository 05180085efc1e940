package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/inventory-audit/internal/model"
)

// MemoryStore is an in-process Store. It enforces the same constraints as
// the Postgres schema (unique name, non-negative quantity) and rolls a
// transaction back by restoring a copy of its state.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

type memState struct {
	products      map[int64]model.Product
	events        []model.EventLog
	nextProductID int64
	nextEventID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			products:      make(map[int64]model.Product),
			nextProductID: 1,
			nextEventID:   1,
		},
		now: time.Now,
	}
}

// SetClock replaces the timestamp source used for event log rows
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.state.clone()
	if err := fn(memQueries{state: s.state, now: s.now}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

// locked runs fn against the live state under the store mutex
func (s *MemoryStore) locked(ctx context.Context, fn func(q memQueries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(memQueries{state: s.state, now: s.now})
}

func (s *MemoryStore) InsertProduct(ctx context.Context, name string, quantity int, category string) (p *model.Product, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		p, err = q.InsertProduct(ctx, name, quantity, category)
		return err
	})
	return p, err
}

func (s *MemoryStore) GetProduct(ctx context.Context, id int64) (p *model.Product, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		p, err = q.GetProduct(ctx, id)
		return err
	})
	return p, err
}

func (s *MemoryStore) ProductNameExists(ctx context.Context, name string) (exists bool, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		exists, err = q.ProductNameExists(ctx, name)
		return err
	})
	return exists, err
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, id int64, set []Assignment) (p *model.Product, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		p, err = q.UpdateProduct(ctx, id, set)
		return err
	})
	return p, err
}

func (s *MemoryStore) DeleteEmptyProduct(ctx context.Context, id int64) (p *model.Product, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		p, err = q.DeleteEmptyProduct(ctx, id)
		return err
	})
	return p, err
}

func (s *MemoryStore) ListProducts(ctx context.Context) (ps []model.Product, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		ps, err = q.ListProducts(ctx)
		return err
	})
	return ps, err
}

func (s *MemoryStore) ListProductsByCategory(ctx context.Context, category string) (ps []model.Product, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		ps, err = q.ListProductsByCategory(ctx, category)
		return err
	})
	return ps, err
}

func (s *MemoryStore) ListProductsByQuantity(ctx context.Context, min, max int) (ps []model.Product, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		ps, err = q.ListProductsByQuantity(ctx, min, max)
		return err
	})
	return ps, err
}

func (s *MemoryStore) ListProductsPage(ctx context.Context, limit, offset int) (ps []model.Product, total int, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		ps, total, err = q.ListProductsPage(ctx, limit, offset)
		return err
	})
	return ps, total, err
}

func (s *MemoryStore) InsertEventLog(ctx context.Context, productID int64, action model.Action, details *string) (e *model.EventLog, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		e, err = q.InsertEventLog(ctx, productID, action, details)
		return err
	})
	return e, err
}

func (s *MemoryStore) ListEventLogs(ctx context.Context, productID *int64) (es []model.EventLog, err error) {
	err = s.locked(ctx, func(q memQueries) error {
		es, err = q.ListEventLogs(ctx, productID)
		return err
	})
	return es, err
}

// memQueries operates on state the caller has already locked
type memQueries struct {
	state *memState
	now   func() time.Time
}

func (q memQueries) InsertProduct(ctx context.Context, name string, quantity int, category string) (*model.Product, error) {
	if q.nameTaken(name, 0) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity %d", ErrCheckViolation, quantity)
	}
	p := model.Product{
		ID:       q.state.nextProductID,
		Name:     name,
		Quantity: quantity,
		Category: category,
	}
	q.state.nextProductID++
	q.state.products[p.ID] = p
	return &p, nil
}

func (q memQueries) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, ok := q.state.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (q memQueries) ProductNameExists(ctx context.Context, name string) (bool, error) {
	return q.nameTaken(name, 0), nil
}

func (q memQueries) UpdateProduct(ctx context.Context, id int64, set []Assignment) (*model.Product, error) {
	p, ok := q.state.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, a := range set {
		switch a.Column {
		case ColumnName:
			name, ok := a.Value.(string)
			if !ok {
				return nil, fmt.Errorf("store: name must be a string, got %T", a.Value)
			}
			if q.nameTaken(name, id) {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
			}
			p.Name = name
		case ColumnCategory:
			category, ok := a.Value.(string)
			if !ok {
				return nil, fmt.Errorf("store: category must be a string, got %T", a.Value)
			}
			p.Category = category
		case ColumnQuantity:
			quantity, ok := a.Value.(int)
			if !ok {
				return nil, fmt.Errorf("store: quantity must be an int, got %T", a.Value)
			}
			if quantity < 0 {
				return nil, fmt.Errorf("%w: quantity %d", ErrCheckViolation, quantity)
			}
			p.Quantity = quantity
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, a.Column)
		}
	}
	q.state.products[id] = p
	return &p, nil
}

func (q memQueries) DeleteEmptyProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, ok := q.state.products[id]
	if !ok || p.Quantity != 0 {
		return nil, ErrNotFound
	}
	delete(q.state.products, id)
	return &p, nil
}

func (q memQueries) ListProducts(ctx context.Context) ([]model.Product, error) {
	return q.filter(func(model.Product) bool { return true }), nil
}

func (q memQueries) ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return q.filter(func(p model.Product) bool { return p.Category == category }), nil
}

func (q memQueries) ListProductsByQuantity(ctx context.Context, min, max int) ([]model.Product, error) {
	return q.filter(func(p model.Product) bool { return p.Quantity >= min && p.Quantity <= max }), nil
}

func (q memQueries) ListProductsPage(ctx context.Context, limit, offset int) ([]model.Product, int, error) {
	all := q.filter(func(model.Product) bool { return true })
	total := len(all)
	if offset >= total {
		return []model.Product{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (q memQueries) InsertEventLog(ctx context.Context, productID int64, action model.Action, details *string) (*model.EventLog, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: action %q", ErrCheckViolation, action)
	}
	e := model.EventLog{
		ID:        q.state.nextEventID,
		ProductID: productID,
		Action:    action,
		Timestamp: q.now(),
	}
	if details != nil {
		d := *details
		e.Details = &d
	}
	q.state.nextEventID++
	q.state.events = append(q.state.events, e)
	return &e, nil
}

func (q memQueries) ListEventLogs(ctx context.Context, productID *int64) ([]model.EventLog, error) {
	logs := make([]model.EventLog, 0, len(q.state.events))
	for _, e := range q.state.events {
		if productID == nil || e.ProductID == *productID {
			logs = append(logs, e)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].Timestamp.Equal(logs[j].Timestamp) {
			return logs[i].Timestamp.After(logs[j].Timestamp)
		}
		return logs[i].ID > logs[j].ID
	})
	return logs, nil
}

func (q memQueries) nameTaken(name string, exceptID int64) bool {
	for id, p := range q.state.products {
		if id != exceptID && p.Name == name {
			return true
		}
	}
	return false
}

// filter returns matching products ordered by id
func (q memQueries) filter(keep func(model.Product) bool) []model.Product {
	products := make([]model.Product, 0, len(q.state.products))
	for _, p := range q.state.products {
		if keep(p) {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func (s *memState) clone() *memState {
	c := &memState{
		products:      make(map[int64]model.Product, len(s.products)),
		events:        make([]model.EventLog, len(s.events)),
		nextProductID: s.nextProductID,
		nextEventID:   s.nextEventID,
	}
	for id, p := range s.products {
		c.products[id] = p
	}
	copy(c.events, s.events)
	return c
}
