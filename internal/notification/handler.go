package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/inventory-audit/internal/domain/eventlog"
	"github.com/example/inventory-audit/internal/email"
	"github.com/example/inventory-audit/internal/model"
	"go.uber.org/zap"
)

// AlertSender delivers stock alerts
type AlertSender interface {
	SendStockAlert(to string, alert email.StockAlert) error
}

// Handler turns published event log entries into stock alerts
type Handler struct {
	sender    AlertSender
	recipient string
	threshold int
	logger    *zap.Logger
}

// NewHandler creates a handler that alerts recipient when a product's
// quantity drops to threshold or below.
func NewHandler(sender AlertSender, recipient string, threshold int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sender:    sender,
		recipient: recipient,
		threshold: threshold,
		logger:    logger.With(zap.String("component", "notifier")),
	}
}

// HandleEvent processes one message from Kafka. Malformed payloads are
// returned as errors so the consumer logs them.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var msg eventlog.Message
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("unmarshal event log message: %w", err)
	}

	if !h.shouldAlert(msg) {
		return nil
	}

	alert := email.StockAlert{
		ProductID: msg.Product.ID,
		Name:      msg.Product.Name,
		Category:  msg.Product.Category,
		Quantity:  msg.Product.Quantity,
		Action:    string(msg.Entry.Action),
		At:        msg.Entry.Timestamp,
	}
	if err := h.sender.SendStockAlert(h.recipient, alert); err != nil {
		return fmt.Errorf("send stock alert for product %d: %w", msg.Product.ID, err)
	}

	h.logger.Info("stock alert sent",
		zap.Int64("product_id", msg.Product.ID),
		zap.Int("quantity", msg.Product.Quantity),
		zap.String("to", h.recipient),
	)
	return nil
}

// shouldAlert skips deletions and updates that did not touch quantity
func (h *Handler) shouldAlert(msg eventlog.Message) bool {
	if msg.Product.Quantity > h.threshold {
		return false
	}
	switch msg.Entry.Action {
	case model.ActionAdded:
		return true
	case model.ActionUpdated:
		for _, f := range eventlog.ParseUpdatedFields(msg.Entry.Details) {
			if f == "quantity" {
				return true
			}
		}
		return false
	default:
		return false
	}
}
