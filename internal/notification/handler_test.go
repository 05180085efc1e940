package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/inventory-audit/internal/domain/eventlog"
	"github.com/example/inventory-audit/internal/email"
	"github.com/example/inventory-audit/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	sent []email.StockAlert
	to   []string
	err  error
}

func (m *mockSender) SendStockAlert(to string, alert email.StockAlert) error {
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.sent = append(m.sent, alert)
	return nil
}

func newTestHandler(threshold int) (*Handler, *mockSender) {
	sender := &mockSender{}
	return NewHandler(sender, "ops@example.com", threshold, nil), sender
}

func encode(t *testing.T, action model.Action, details *string, p model.Product) []byte {
	t.Helper()
	data, err := json.Marshal(eventlog.Message{
		Entry: model.EventLog{
			ID:        1,
			ProductID: p.ID,
			Action:    action,
			Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Details:   details,
		},
		Product: p,
	})
	require.NoError(t, err)
	return data
}

func strPtr(s string) *string { return &s }

func TestHandler_QuantityUpdatedToZero_SendsAlert(t *testing.T) {
	h, sender := newTestHandler(0)
	p := model.Product{ID: 3, Name: "Lap", Quantity: 0, Category: "electronics"}
	details := strPtr(eventlog.UpdatedFieldsDetails([]string{"quantity"}))

	err := h.HandleEvent(context.Background(), []byte("3"), encode(t, model.ActionUpdated, details, p))

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, sender.to)
	assert.Equal(t, int64(3), sender.sent[0].ProductID)
	assert.Equal(t, "Lap", sender.sent[0].Name)
	assert.Equal(t, "Updated", sender.sent[0].Action)
}

func TestHandler_Decisions(t *testing.T) {
	quantity := strPtr(eventlog.UpdatedFieldsDetails([]string{"quantity"}))
	nameOnly := strPtr(eventlog.UpdatedFieldsDetails([]string{"name"}))

	tests := []struct {
		name      string
		threshold int
		action    model.Action
		details   *string
		quantity  int
		wantSent  bool
	}{
		{"added empty", 0, model.ActionAdded, nil, 0, true},
		{"added stocked", 0, model.ActionAdded, nil, 5, false},
		{"rename of empty product", 0, model.ActionUpdated, nameOnly, 0, false},
		{"quantity above threshold", 2, model.ActionUpdated, quantity, 3, false},
		{"quantity at threshold", 2, model.ActionUpdated, quantity, 2, true},
		{"deleted", 0, model.ActionDeleted, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sender := newTestHandler(tt.threshold)
			p := model.Product{ID: 1, Name: "Mouse", Quantity: tt.quantity, Category: "peripherals"}

			err := h.HandleEvent(context.Background(), nil, encode(t, tt.action, tt.details, p))

			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, len(sender.sent) == 1)
		})
	}
}

func TestHandler_MalformedPayload(t *testing.T) {
	h, sender := newTestHandler(0)

	err := h.HandleEvent(context.Background(), nil, []byte("{not json"))

	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandler_SendFailure(t *testing.T) {
	h, sender := newTestHandler(0)
	sender.err = errors.New("smtp down")
	p := model.Product{ID: 9, Name: "Cable", Quantity: 0, Category: "accessories"}

	err := h.HandleEvent(context.Background(), nil, encode(t, model.ActionAdded, nil, p))

	require.Error(t, err)
	assert.ErrorIs(t, err, sender.err)
	assert.Contains(t, err.Error(), "product 9")
}
