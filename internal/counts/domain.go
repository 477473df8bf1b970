package counts

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arabica-erp/arabica-erp/internal/inventory"
)

// State enumerates the count lifecycle. Closed is terminal.
type State string

const (
	// StateOpen counts accept line additions and edits.
	StateOpen State = "OPEN"
	// StateClosed counts are settled; reclosing is rejected.
	StateClosed State = "CLOSED"
)

// Line is one counted stock key. Difference and SystemQuantityAtClose are
// filled at close time, not when the line is added.
type Line struct {
	StockKey              inventory.StockKey `json:"stock_key"`
	CountedQuantity       decimal.Decimal    `json:"counted_quantity"`
	SystemQuantityAtClose decimal.Decimal    `json:"system_quantity_at_close"`
	Difference            decimal.Decimal    `json:"difference"`
	AdjustmentMovementID  string             `json:"adjustment_movement_id,omitempty"`
	Settled               bool               `json:"settled"`
}

// CycleCount is a physical count session.
type CycleCount struct {
	ID       string     `json:"id"`
	State    State      `json:"state"`
	Lines    []Line     `json:"lines"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// LineResult reports the outcome of settling one line at close.
type LineResult struct {
	StockKey   inventory.StockKey
	MovementID string
	Err        error
}

var (
	// ErrAlreadyClosed indicates a close attempt on a settled count.
	ErrAlreadyClosed = errors.New("counts: count already closed")
	// ErrNotFound indicates a missing count.
	ErrNotFound = errors.New("counts: count not found")
	// ErrNotOpen indicates line edits attempted on a closed count.
	ErrNotOpen = errors.New("counts: count not open")
)
