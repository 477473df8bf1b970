package lots

import (
	"errors"
	"time"
)

// ProductKind distinguishes the two stock populations the ledger tracks.
type ProductKind string

const (
	// KindRawMaterial marks green coffee, packaging and other inputs.
	KindRawMaterial ProductKind = "RAW_MATERIAL"
	// KindFinishedGood marks roasted/packed sellable product.
	KindFinishedGood ProductKind = "FINISHED_GOOD"
)

// Status enumerates the lot lifecycle.
type Status string

const (
	// StatusActive lots are eligible for issues.
	StatusActive Status = "ACTIVE"
	// StatusBlocked lots are held back, automatically on expiry.
	StatusBlocked Status = "BLOCKED"
	// StatusClosed is terminal and manual.
	StatusClosed Status = "CLOSED"
)

// Lot is a tracked batch of product with optional expiry.
type Lot struct {
	ID          string      `json:"id"`
	ProductRef  string      `json:"product_ref"`
	ProductKind ProductKind `json:"product_kind"`
	Origin      string      `json:"origin,omitempty"`
	ReceivedAt  time.Time   `json:"received_at"`
	ProducedAt  *time.Time  `json:"produced_at,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	Status      Status      `json:"status"`
}

// Expired reports whether the lot carries an expiry in the past.
func (l Lot) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// ErrNotFound indicates a missing lot.
var ErrNotFound = errors.New("lots: lot not found")

// ErrLotExists indicates a duplicate registration.
var ErrLotExists = errors.New("lots: lot already registered")

// ErrLotClosed indicates a transition attempted on a terminal lot.
var ErrLotClosed = errors.New("lots: lot is closed")
