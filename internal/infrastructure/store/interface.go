package store

import (
	"context"
	"errors"

	"github.com/example/inventory-audit/internal/model"
)

var (
	ErrNotFound       = errors.New("store: no rows")
	ErrDuplicateName  = errors.New("store: product name already exists")
	ErrCheckViolation = errors.New("store: check constraint violated")
	ErrUnknownColumn  = errors.New("store: column is not updatable")
)

// Column is a product column that a partial update may assign
type Column string

const (
	ColumnName     Column = "name"
	ColumnCategory Column = "category"
	ColumnQuantity Column = "quantity"
)

// UpdatableColumns is the whitelist, in the order assignments are emitted
var UpdatableColumns = []Column{ColumnName, ColumnCategory, ColumnQuantity}

// Updatable reports whether c is on the whitelist
func (c Column) Updatable() bool {
	for _, u := range UpdatableColumns {
		if c == u {
			return true
		}
	}
	return false
}

// Assignment sets one whitelisted column
type Assignment struct {
	Column Column
	Value  any
}

// Queries is the set of statements run against the store. Both the pooled
// handle and a transaction handle satisfy it.
type Queries interface {
	InsertProduct(ctx context.Context, name string, quantity int, category string) (*model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ProductNameExists(ctx context.Context, name string) (bool, error)
	UpdateProduct(ctx context.Context, id int64, set []Assignment) (*model.Product, error)
	// DeleteEmptyProduct removes the row only when its quantity is zero and
	// returns ErrNotFound when no row matched.
	DeleteEmptyProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error)
	ListProductsByQuantity(ctx context.Context, min, max int) ([]model.Product, error)
	// ListProductsPage returns one page ordered by id and the total row count,
	// both read from the same snapshot.
	ListProductsPage(ctx context.Context, limit, offset int) ([]model.Product, int, error)

	InsertEventLog(ctx context.Context, productID int64, action model.Action, details *string) (*model.EventLog, error)
	// ListEventLogs returns entries newest first; a nil productID lists all.
	ListEventLogs(ctx context.Context, productID *int64) ([]model.EventLog, error)
}

// Store is the gateway owned by the process and injected into services
type Store interface {
	Queries
	// WithTx runs fn in one transaction, committing when fn returns nil
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close() error
}
