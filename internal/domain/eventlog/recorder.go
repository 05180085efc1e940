package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/example/inventory-audit/internal/domain"
	"github.com/example/inventory-audit/internal/infrastructure/store"
	"github.com/example/inventory-audit/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/example/inventory-audit/internal/domain/eventlog"

var ErrInvalidAction = fmt.Errorf("%w: unknown event log action", domain.ErrInvalidArgument)

// Publisher forwards committed entries to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Recorder appends audit entries and reads them back. It never updates or
// deletes an entry.
type Recorder struct {
	store     store.Queries
	publisher Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewRecorder creates a recorder reading from q. publisher may be nil.
func NewRecorder(q store.Queries, publisher Publisher, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:     q,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "eventlog")),
		tracer:    otel.Tracer(tracerName),
	}
}

// Append writes one entry through q, which is normally the transaction
// handle of the mutation being audited. A nil q writes through the
// recorder's own store.
func (r *Recorder) Append(ctx context.Context, q store.Queries, productID int64, action model.Action, details *string) (*model.EventLog, error) {
	ctx, span := r.tracer.Start(ctx, "eventlog.Append", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.String("eventlog.action", string(action)),
	))
	defer span.End()

	if !action.Valid() {
		return nil, ErrInvalidAction
	}
	if q == nil {
		q = r.store
	}
	entry, err := q.InsertEventLog(ctx, productID, action, details)
	if err != nil {
		span.RecordError(err)
		return nil, unavailable(err)
	}
	return entry, nil
}

// ListAll returns every entry, newest first
func (r *Recorder) ListAll(ctx context.Context) ([]model.EventLog, error) {
	ctx, span := r.tracer.Start(ctx, "eventlog.ListAll")
	defer span.End()

	logs, err := r.store.ListEventLogs(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return nil, unavailable(err)
	}
	return logs, nil
}

// ListByProduct returns the entries of one product, newest first
func (r *Recorder) ListByProduct(ctx context.Context, productID int64) ([]model.EventLog, error) {
	ctx, span := r.tracer.Start(ctx, "eventlog.ListByProduct",
		trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	logs, err := r.store.ListEventLogs(ctx, &productID)
	if err != nil {
		span.RecordError(err)
		return nil, unavailable(err)
	}
	return logs, nil
}

// Publish hands a committed entry to the publisher. The entry is already
// durable, so a failure is logged and not returned.
func (r *Recorder) Publish(ctx context.Context, entry *model.EventLog, product *model.Product) {
	if r.publisher == nil || entry == nil || product == nil {
		return
	}
	msg := Message{Entry: *entry, Product: *product}
	key := strconv.FormatInt(entry.ProductID, 10)
	if err := r.publisher.Publish(ctx, key, msg); err != nil {
		r.logger.Warn("failed to publish event log entry",
			zap.Int64("event_log_id", entry.ID),
			zap.Int64("product_id", entry.ProductID),
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}

func unavailable(err error) error {
	if domain.Classified(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.Unavailable(err)
}
