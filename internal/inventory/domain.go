package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// KindReceipt represents an inbound movement (purchase receipt, production output).
	KindReceipt MovementKind = "RECEIPT"
	// KindIssue represents an outbound movement (consumption, dispatch).
	KindIssue MovementKind = "ISSUE"
	// KindPositiveAdjustment corrects stock upwards.
	KindPositiveAdjustment MovementKind = "ADJUST_POS"
	// KindNegativeAdjustment corrects stock downwards.
	KindNegativeAdjustment MovementKind = "ADJUST_NEG"
	// KindTransferOut is the issue half of a transfer pair.
	KindTransferOut MovementKind = "TRANSFER_OUT"
	// KindTransferIn is the receipt half of a transfer pair.
	KindTransferIn MovementKind = "TRANSFER_IN"
)

// Inbound reports whether the kind increases stock.
func (k MovementKind) Inbound() bool {
	return k == KindReceipt || k == KindPositiveAdjustment || k == KindTransferIn
}

// CostingMethod selects how issue costs are derived. The method is fixed per
// ledger entry at creation and never changes afterwards.
type CostingMethod string

const (
	// WeightedAverage blends a single unit cost recomputed on every receipt.
	WeightedAverage CostingMethod = "WEIGHTED_AVERAGE"
	// FIFO drains cost layers oldest-received-first.
	FIFO CostingMethod = "FIFO"
)

// Valid reports whether the method is one of the two supported policies.
func (m CostingMethod) Valid() bool {
	return m == WeightedAverage || m == FIFO
}

// StockKey identifies exactly one stock ledger entry.
type StockKey struct {
	ProductRef   string           `json:"product_ref"`
	ProductKind  lots.ProductKind `json:"product_kind"`
	LotRef       string           `json:"lot_ref,omitempty"`
	WarehouseRef string           `json:"warehouse_ref"`
	LocationRef  string           `json:"location_ref"`
}

// String renders the canonical key form used for store and lock addressing.
func (k StockKey) String() string {
	return strings.Join([]string{k.ProductRef, string(k.ProductKind), k.LotRef, k.WarehouseRef, k.LocationRef}, "|")
}

// CostLayer is a FIFO-mode slice of stock received at a specific unit cost.
type CostLayer struct {
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	ReceivedAt        time.Time       `json:"received_at"`
}

// StockLedgerEntry is the mutable aggregate per stock key. Layers are kept
// oldest first; sum of layer quantities equals Quantity in FIFO mode.
type StockLedgerEntry struct {
	Key           StockKey        `json:"key"`
	CostingMethod CostingMethod   `json:"costing_method"`
	Quantity      decimal.Decimal `json:"quantity"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	CostLayers    []CostLayer     `json:"cost_layers,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// UnitCost returns the entry's current carrying cost per unit.
func (e StockLedgerEntry) UnitCost() decimal.Decimal {
	if e.CostingMethod == FIFO {
		if e.Quantity.IsZero() {
			return decimal.Zero
		}
		total := decimal.Zero
		for _, layer := range e.CostLayers {
			total = total.Add(layer.QuantityRemaining.Mul(layer.UnitCost))
		}
		return total.Div(e.Quantity)
	}
	return e.AverageCost
}

// Value returns quantity times carrying cost.
func (e StockLedgerEntry) Value() decimal.Decimal {
	if e.CostingMethod == FIFO {
		total := decimal.Zero
		for _, layer := range e.CostLayers {
			total = total.Add(layer.QuantityRemaining.Mul(layer.UnitCost))
		}
		return total
	}
	return e.Quantity.Mul(e.AverageCost)
}

// ConsumedLayer records one FIFO layer drawn by an issue.
type ConsumedLayer struct {
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// MovementRecord is the immutable journal row written for every accepted
// movement. BalanceQuantity/BalanceCost snapshot the entry as of commit.
type MovementRecord struct {
	ID              string           `json:"id"`
	CorrelationID   string           `json:"correlation_id,omitempty"`
	Kind            MovementKind     `json:"kind"`
	ProductRef      string           `json:"product_ref"`
	ProductKind     lots.ProductKind `json:"product_kind"`
	LotRef          string           `json:"lot_ref,omitempty"`
	WarehouseRef    string           `json:"warehouse_ref"`
	LocationRef     string           `json:"location_ref"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitCost        decimal.Decimal  `json:"unit_cost"`
	CostingMethod   CostingMethod    `json:"costing_method"`
	ConsumedLayers  []ConsumedLayer  `json:"consumed_layers,omitempty"`
	BalanceQuantity decimal.Decimal  `json:"balance_quantity"`
	BalanceCost     decimal.Decimal  `json:"balance_cost"`
	At              time.Time        `json:"at"`
	Note            string           `json:"note,omitempty"`
}

// Key rebuilds the stock key the record was posted against.
func (r MovementRecord) StockKey() StockKey {
	return StockKey{
		ProductRef:   r.ProductRef,
		ProductKind:  r.ProductKind,
		LotRef:       r.LotRef,
		WarehouseRef: r.WarehouseRef,
		LocationRef:  r.LocationRef,
	}
}

// KardexLine is one step of a replayed movement history.
type KardexLine struct {
	Movement        MovementRecord  `json:"movement"`
	RunningQuantity decimal.Decimal `json:"running_quantity"`
	RunningCost     decimal.Decimal `json:"running_cost"`
}

var (
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrCostingMethodConflict indicates a method mismatch against an existing entry.
	ErrCostingMethodConflict = errors.New("inventory: costing method conflicts with ledger entry")
	// ErrInsufficientStock indicates an issue requesting more than available.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrLotExpired indicates an issue against an expired lot.
	ErrLotExpired = errors.New("inventory: lot expired")
	// ErrLotNotActive indicates an issue against a blocked or closed lot.
	ErrLotNotActive = errors.New("inventory: lot not active")
	// ErrDuplicateMovement indicates a correlation id reused with a different payload.
	ErrDuplicateMovement = errors.New("inventory: duplicate movement")
	// ErrStorageUnavailable wraps backing store failures; never retried internally.
	ErrStorageUnavailable = errors.New("inventory: storage unavailable")
	// ErrCompensationFailed indicates a half-applied transfer whose reversal
	// did not commit; must be escalated, the stock would otherwise leak.
	ErrCompensationFailed = errors.New("inventory: transfer compensation failed")
	// ErrEntryNotFound indicates a missing ledger entry.
	ErrEntryNotFound = errors.New("inventory: ledger entry not found")
)

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
