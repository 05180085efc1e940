package eventlog

import (
	"strings"

	"github.com/example/inventory-audit/internal/model"
)

const updatedFieldsPrefix = "Updated fields: "

// Message is the payload published for every committed log entry. Product
// is the row as it stood after the mutation (before it, for a delete).
type Message struct {
	Entry   model.EventLog `json:"entry"`
	Product model.Product  `json:"product"`
}

// UpdatedFieldsDetails formats the details of an Updated entry
func UpdatedFieldsDetails(fields []string) string {
	return updatedFieldsPrefix + strings.Join(fields, ", ")
}

// ParseUpdatedFields returns the field names listed in an Updated entry's
// details, or nil when details are absent or not in that form.
func ParseUpdatedFields(details *string) []string {
	if details == nil || !strings.HasPrefix(*details, updatedFieldsPrefix) {
		return nil
	}
	list := strings.TrimPrefix(*details, updatedFieldsPrefix)
	if list == "" {
		return nil
	}
	return strings.Split(list, ", ")
}
