package product

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/example/inventory-audit/internal/domain"
	"github.com/example/inventory-audit/internal/domain/eventlog"
	"github.com/example/inventory-audit/internal/infrastructure/store"
	"github.com/example/inventory-audit/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/example/inventory-audit/internal/domain/product"

// MaxItemsPerPage caps the page size accepted by Paginate
const MaxItemsPerPage = 100

var (
	ErrProductNotFound   = fmt.Errorf("%w: product not found", domain.ErrNotFound)
	ErrDuplicateName     = fmt.Errorf("%w: product with this name already exists", domain.ErrConflict)
	ErrQuantityNotZero   = fmt.Errorf("%w: quantity must be zero", domain.ErrConflict)
	ErrNegativeQuantity  = fmt.Errorf("%w: quantity must be greater than or equal to 0", domain.ErrInvalidArgument)
	ErrInvalidRange      = fmt.Errorf("%w: quantity range must be valid numbers", domain.ErrInvalidArgument)
	ErrInvalidPagination = fmt.Errorf("%w: page and itemsPerPage must be positive integers", domain.ErrInvalidArgument)
)

// Service is the product repository. Every mutation and its audit entry
// are written in one store transaction; the entry is published after
// commit.
type Service struct {
	store    store.Store
	recorder *eventlog.Recorder
	tracer   trace.Tracer
}

func NewService(s store.Store, recorder *eventlog.Recorder) *Service {
	return &Service{
		store:    s,
		recorder: recorder,
		tracer:   otel.Tracer(tracerName),
	}
}

// Create inserts a product and appends an Added entry. Names are compared
// case-sensitively; the UNIQUE constraint on name closes the race between
// the existence check and the insert.
func (s *Service) Create(ctx context.Context, name string, quantity int, category string) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.Create", trace.WithAttributes(
		attribute.String("product.name", name),
		attribute.Int("product.quantity", quantity),
	))
	defer span.End()

	var (
		created *model.Product
		entry   *model.EventLog
	)
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		exists, err := q.ProductNameExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateName
		}
		created, err = q.InsertProduct(ctx, name, quantity, category)
		if err != nil {
			return err
		}
		entry, err = s.recorder.Append(ctx, q, created.ID, model.ActionAdded, nil)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(attribute.Int64("product.id", created.ID))
	s.recorder.Publish(ctx, entry, created)
	return created, nil
}

// Update applies the fields present in u. An empty update returns
// domain.ErrNoOp without touching the store. Callers must reject a
// negative quantity beforehand; the store constraint is only a backstop.
func (s *Service) Update(ctx context.Context, id int64, u model.ProductUpdate) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.Update",
		trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	set, fields := assignments(u)
	if len(set) == 0 {
		return nil, domain.ErrNoOp
	}
	span.SetAttributes(attribute.StringSlice("product.updated_fields", fields))

	var (
		updated *model.Product
		entry   *model.EventLog
	)
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		updated, err = q.UpdateProduct(ctx, id, set)
		if err != nil {
			return err
		}
		details := eventlog.UpdatedFieldsDetails(fields)
		entry, err = s.recorder.Append(ctx, q, id, model.ActionUpdated, &details)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.recorder.Publish(ctx, entry, updated)
	return updated, nil
}

// Delete removes a product whose quantity is zero and returns the row as it
// was before removal.
func (s *Service) Delete(ctx context.Context, id int64) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.Delete",
		trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	var (
		deleted *model.Product
		entry   *model.EventLog
	)
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		current, err := q.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if current.Quantity > 0 {
			return ErrQuantityNotZero
		}

		deleted, err = q.DeleteEmptyProduct(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// the row changed after it was read
			if _, getErr := q.GetProduct(ctx, id); errors.Is(getErr, store.ErrNotFound) {
				return ErrProductNotFound
			}
			return ErrQuantityNotZero
		}
		if err != nil {
			return err
		}
		entry, err = s.recorder.Append(ctx, q, id, model.ActionDeleted, nil)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.recorder.Publish(ctx, entry, deleted)
	return deleted, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.GetByID",
		trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	return p, nil
}

// GetAll returns every product in the store's natural order
func (s *Service) GetAll(ctx context.Context) ([]model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.GetAll")
	defer span.End()

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fail(span, err)
	}
	return products, nil
}

// FilterByCategory matches category exactly. The empty string is a value,
// not a wildcard.
func (s *Service) FilterByCategory(ctx context.Context, category string) ([]model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.FilterByCategory",
		trace.WithAttributes(attribute.String("product.category", category)))
	defer span.End()

	products, err := s.store.ListProductsByCategory(ctx, category)
	if err != nil {
		return nil, fail(span, err)
	}
	return products, nil
}

// FilterByQuantity parses both bounds and returns products with
// min <= quantity <= max.
func (s *Service) FilterByQuantity(ctx context.Context, min, max string) ([]model.Product, error) {
	lo, errMin := strconv.Atoi(strings.TrimSpace(min))
	hi, errMax := strconv.Atoi(strings.TrimSpace(max))
	if errMin != nil || errMax != nil {
		return nil, ErrInvalidRange
	}
	return s.FilterByQuantityRange(ctx, lo, hi)
}

func (s *Service) FilterByQuantityRange(ctx context.Context, min, max int) ([]model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.FilterByQuantity", trace.WithAttributes(
		attribute.Int("filter.min_quantity", min),
		attribute.Int("filter.max_quantity", max),
	))
	defer span.End()

	if min > max {
		return []model.Product{}, nil
	}
	products, err := s.store.ListProductsByQuantity(ctx, min, max)
	if err != nil {
		return nil, fail(span, err)
	}
	return products, nil
}

// Paginate returns page number page (1-based) of itemsPerPage products
// ordered by id. Non-positive arguments fail with ErrInvalidPagination and
// itemsPerPage is capped at MaxItemsPerPage.
func (s *Service) Paginate(ctx context.Context, page, itemsPerPage int) (*model.Page, error) {
	ctx, span := s.tracer.Start(ctx, "product.Paginate", trace.WithAttributes(
		attribute.Int("page.number", page),
		attribute.Int("page.size", itemsPerPage),
	))
	defer span.End()

	if page < 1 || itemsPerPage < 1 {
		return nil, ErrInvalidPagination
	}
	if itemsPerPage > MaxItemsPerPage {
		itemsPerPage = MaxItemsPerPage
	}
	if page-1 > math.MaxInt32/itemsPerPage {
		return nil, ErrInvalidPagination
	}
	offset := (page - 1) * itemsPerPage

	items, total, err := s.store.ListProductsPage(ctx, itemsPerPage, offset)
	if err != nil {
		return nil, fail(span, err)
	}
	return &model.Page{
		Items:        items,
		CurrentPage:  page,
		ItemsPerPage: itemsPerPage,
		TotalPages:   TotalPages(total, itemsPerPage),
		TotalCount:   total,
	}, nil
}

// TotalPages is ceil(total / perPage)
func TotalPages(total, perPage int) int {
	if perPage < 1 || total < 1 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// assignments turns the present fields of u into whitelisted column
// assignments and the matching field names, in whitelist order.
func assignments(u model.ProductUpdate) ([]store.Assignment, []string) {
	var (
		set    []store.Assignment
		fields []string
	)
	if u.Name != nil {
		set = append(set, store.Assignment{Column: store.ColumnName, Value: *u.Name})
		fields = append(fields, string(store.ColumnName))
	}
	if u.Category != nil {
		set = append(set, store.Assignment{Column: store.ColumnCategory, Value: *u.Category})
		fields = append(fields, string(store.ColumnCategory))
	}
	if u.Quantity != nil {
		set = append(set, store.Assignment{Column: store.ColumnQuantity, Value: *u.Quantity})
		fields = append(fields, string(store.ColumnQuantity))
	}
	return set, fields
}

func fail(span trace.Span, err error) error {
	err = mapStoreError(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func mapStoreError(err error) error {
	switch {
	case domain.Classified(err):
		return err
	case errors.Is(err, store.ErrNotFound):
		return ErrProductNotFound
	case errors.Is(err, store.ErrDuplicateName):
		return ErrDuplicateName
	case errors.Is(err, store.ErrCheckViolation):
		return ErrNegativeQuantity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return domain.Unavailable(err)
	}
}
