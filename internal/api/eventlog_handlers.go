package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/example/inventory-audit/internal/model"
)

// GetEventLogs lists audit entries newest first, optionally for one product.
// Entries of deleted products are still returned.
func (h *Handlers) GetEventLogs(w http.ResponseWriter, r *http.Request) {
	var (
		logs []model.EventLog
		err  error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("productId")); raw != "" {
		id, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil || id < 1 {
			respondJSONError(w, "productId must be a positive integer", http.StatusBadRequest)
			return
		}
		logs, err = h.logs.ListByProduct(r.Context(), id)
	} else {
		logs, err = h.logs.ListAll(r.Context())
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
