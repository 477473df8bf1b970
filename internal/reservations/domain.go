package reservations

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
)

// State enumerates the reservation lifecycle. Released and Consumed are
// terminal.
type State string

const (
	// StateActive reservations subtract from available-to-promise.
	StateActive State = "ACTIVE"
	// StateReleased reservations were cancelled.
	StateReleased State = "RELEASED"
	// StateConsumed reservations were settled by the matching physical issue.
	StateConsumed State = "CONSUMED"
)

// Reservation is a soft hold against a (product, warehouse, location) key.
// It never moves physical stock.
type Reservation struct {
	ID           string           `json:"id"`
	ProductRef   string           `json:"product_ref"`
	ProductKind  lots.ProductKind `json:"product_kind"`
	WarehouseRef string           `json:"warehouse_ref"`
	LocationRef  string           `json:"location_ref"`
	Quantity     decimal.Decimal  `json:"quantity"`
	State        State            `json:"state"`
	ReferenceID  string           `json:"reference_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// PromiseKey addresses the availability bucket a reservation holds against.
type PromiseKey struct {
	ProductRef   string
	ProductKind  lots.ProductKind
	WarehouseRef string
	LocationRef  string
}

// String renders the canonical lock/key form.
func (k PromiseKey) String() string {
	return strings.Join([]string{k.ProductRef, string(k.ProductKind), k.WarehouseRef, k.LocationRef}, "|")
}

var (
	// ErrInsufficientAvailability indicates the hold exceeds available-to-promise.
	ErrInsufficientAvailability = errors.New("reservations: insufficient availability")
	// ErrAlreadyConsumed indicates Consume was invoked more than once.
	ErrAlreadyConsumed = errors.New("reservations: already consumed")
	// ErrNotFound indicates a missing reservation.
	ErrNotFound = errors.New("reservations: reservation not found")
	// ErrInvalidQuantity indicates a non-positive hold quantity.
	ErrInvalidQuantity = errors.New("reservations: quantity must be positive")
)
