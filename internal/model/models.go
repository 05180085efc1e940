package model

import "time"

// Action is the kind of mutation recorded in the event log
type Action string

const (
	ActionAdded   Action = "Added"
	ActionUpdated Action = "Updated"
	ActionDeleted Action = "Deleted"
)

// Valid reports whether a is one of the known actions
func (a Action) Valid() bool {
	switch a {
	case ActionAdded, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// Product is an inventory item
type Product struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Category string `json:"category"`
}

// ProductUpdate is a partial update. A nil field is absent; a non-nil field
// is rewritten even when it equals the stored value.
type ProductUpdate struct {
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
}

// Empty reports whether no field is present
func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Category == nil && u.Quantity == nil
}

// EventLog is an immutable audit record of a product mutation
type EventLog struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Details   *string   `json:"details,omitempty"`
}

// Page is one page of products ordered by id
type Page struct {
	Items        []Product `json:"items"`
	CurrentPage  int       `json:"current_page"`
	ItemsPerPage int       `json:"items_per_page"`
	TotalPages   int       `json:"total_pages"`
	TotalCount   int       `json:"total_count"`
}
