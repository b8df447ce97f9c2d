package domain

import (
	"fmt"
	"time"
)

type TableStatus string

const (
	TableEmpty    TableStatus = "EMPTY"
	TableOccupied TableStatus = "OCCUPIED"
	TableReserved TableStatus = "RESERVED"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableEmpty, TableOccupied, TableReserved:
		return true
	}
	return false
}

var tableTransitions = map[TableStatus][]TableStatus{
	TableEmpty:    {TableOccupied, TableReserved},
	TableOccupied: {TableEmpty},
	TableReserved: {TableEmpty},
}

// CanTransition reports whether the table state machine allows from -> to.
func CanTransition(from, to TableStatus) bool {
	for _, next := range tableTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Table struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Location       string      `json:"location"`
	Capacity       int         `json:"capacity"`
	Status         TableStatus `json:"status"`
	OccupiedBy     *string     `json:"-"`
	CurrentOrderID *int64      `json:"currentOrderId"`
	HelpRequested  bool        `json:"helpRequested"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// HelpRequest is the projection polled by waiter clients.
type HelpRequest struct {
	TableID   int64  `json:"tableId"`
	TableName string `json:"tableName"`
}

func (t Table) stateDetails() map[string]any {
	return map[string]any{
		"tableId":        t.ID,
		"status":         t.Status,
		"currentOrderId": t.CurrentOrderID,
	}
}

func (t Table) transitionError(to TableStatus) *Error {
	return ConflictError(
		fmt.Sprintf("Table %s cannot move from %s to %s", t.Name, t.Status, to),
		t.stateDetails(),
	)
}

// Guard returns a ConflictError when the state machine forbids moving the
// table to status to.
func (t Table) Guard(to TableStatus) error {
	if CanTransition(t.Status, to) {
		return nil
	}
	return t.transitionError(to)
}

// IsOwnedBy reports whether the table is occupied by the given session.
func (t Table) IsOwnedBy(sessionID string) bool {
	return t.Status == TableOccupied && t.OccupiedBy != nil && *t.OccupiedBy == sessionID
}

// Open moves an empty table to occupied for orderID. occupant may be nil when
// staff open the table.
func (t *Table) Open(orderID int64, occupant *string) error {
	if !CanTransition(t.Status, TableOccupied) {
		return t.transitionError(TableOccupied)
	}
	t.Status = TableOccupied
	t.CurrentOrderID = &orderID
	t.OccupiedBy = occupant
	return nil
}

// Free returns the table to empty and drops its order and occupant.
func (t *Table) Free() {
	t.Status = TableEmpty
	t.CurrentOrderID = nil
	t.OccupiedBy = nil
}

// Reserve holds an empty table. Reserving a reserved table is a no-op.
func (t *Table) Reserve() error {
	if t.Status == TableReserved {
		return nil
	}
	if !CanTransition(t.Status, TableReserved) {
		return t.transitionError(TableReserved)
	}
	t.Status = TableReserved
	t.CurrentOrderID = nil
	t.OccupiedBy = nil
	return nil
}

// CancelReservation returns a reserved table to empty.
func (t *Table) CancelReservation() error {
	if t.Status != TableReserved {
		return ConflictError(fmt.Sprintf("Table %s is not reserved", t.Name), t.stateDetails())
	}
	t.Status = TableEmpty
	t.CurrentOrderID = nil
	t.OccupiedBy = nil
	return nil
}

// Consistent checks the occupancy invariant against the order the table
// points at. order is nil when the referenced order does not exist.
func (t Table) Consistent(order *Order) bool {
	if t.Status != TableOccupied {
		return t.CurrentOrderID == nil
	}
	if t.CurrentOrderID == nil || order == nil {
		return false
	}
	return order.ID == *t.CurrentOrderID && !order.IsPaid && order.TableID == t.ID
}
