package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
)

const (
	ledgerPrefix = "ledger:"
	kardexPrefix = "kardex:"
)

// Ledger is the persistence port of the costing engine. The engine is the
// only writer of ledger entries and movement records.
type Ledger interface {
	// GetEntry returns the entry and its store version, ErrEntryNotFound when absent.
	GetEntry(ctx context.Context, key StockKey) (StockLedgerEntry, int64, error)
	// CommitMovement persists the entry (compare-and-swap on version, 0 to
	// create) and appends the movement record, as one unit when the store
	// supports it.
	CommitMovement(ctx context.Context, entry StockLedgerEntry, version int64, rec MovementRecord) (int64, error)
	// MovementsByKey returns the key's journal in (timestamp, id) order.
	MovementsByKey(ctx context.Context, key StockKey, from, to time.Time) ([]MovementRecord, error)
	// EntriesSnapshot lists all live ledger entries.
	EntriesSnapshot(ctx context.Context) ([]StockLedgerEntry, error)
	// QuantityByLot sums the product's quantity held under lotRef across locations.
	QuantityByLot(ctx context.Context, productRef string, kind lots.ProductKind, lotRef string) (decimal.Decimal, error)
	// QuantityAt sums the product's quantity at a warehouse/location across lots.
	QuantityAt(ctx context.Context, productRef string, kind lots.ProductKind, warehouseRef, locationRef string) (decimal.Decimal, error)
}

// NewLedger constructs the document-store backed ledger.
func NewLedger(store docstore.Store) Ledger {
	return &ledgerRepo{store: store}
}

type ledgerRepo struct {
	store docstore.Store
}

// ErrVersionConflict re-exported for the engine's CAS retry loop.
var errVersionConflict = docstore.ErrVersionConflict

func (r *ledgerRepo) GetEntry(ctx context.Context, key StockKey) (StockLedgerEntry, int64, error) {
	doc, err := r.store.Get(ctx, ledgerPrefix+key.String())
	if errors.Is(err, docstore.ErrNotFound) {
		return StockLedgerEntry{}, 0, ErrEntryNotFound
	}
	if err != nil {
		return StockLedgerEntry{}, 0, storageErr(err)
	}
	var entry StockLedgerEntry
	if err := json.Unmarshal(doc.Value, &entry); err != nil {
		return StockLedgerEntry{}, 0, fmt.Errorf("inventory: decode entry %s: %w", key, err)
	}
	return entry, doc.Version, nil
}

func (r *ledgerRepo) CommitMovement(ctx context.Context, entry StockLedgerEntry, version int64, rec MovementRecord) (int64, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("inventory: encode entry %s: %w", entry.Key, err)
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("inventory: encode movement %s: %w", rec.ID, err)
	}
	journal := kardexPrefix + entry.Key.String()
	journalRec := docstore.Record{ID: rec.ID, At: rec.At, Value: recJSON}

	entryKey := ledgerPrefix + entry.Key.String()
	if committer, ok := r.store.(docstore.Committer); ok {
		next, err := committer.PutAppend(ctx, entryKey, entryJSON, version, journal, journalRec)
		if err != nil {
			if errors.Is(err, docstore.ErrVersionConflict) {
				return 0, err
			}
			return 0, storageErr(err)
		}
		return next, nil
	}

	// Entry first, journal second; the per-key lock keeps the pair private
	// until both writes land.
	next, err := r.store.Put(ctx, entryKey, entryJSON, version)
	if err != nil {
		if errors.Is(err, docstore.ErrVersionConflict) {
			return 0, err
		}
		return 0, storageErr(err)
	}
	if err := r.store.Append(ctx, journal, journalRec); err != nil {
		return 0, storageErr(err)
	}
	return next, nil
}

func (r *ledgerRepo) MovementsByKey(ctx context.Context, key StockKey, from, to time.Time) ([]MovementRecord, error) {
	recs, err := r.store.Range(ctx, kardexPrefix+key.String(), from, to)
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]MovementRecord, 0, len(recs))
	for _, rec := range recs {
		var movement MovementRecord
		if err := json.Unmarshal(rec.Value, &movement); err != nil {
			return nil, fmt.Errorf("inventory: decode movement %s: %w", rec.ID, err)
		}
		out = append(out, movement)
	}
	return out, nil
}

func (r *ledgerRepo) EntriesSnapshot(ctx context.Context) ([]StockLedgerEntry, error) {
	docs, err := r.store.ListPrefix(ctx, ledgerPrefix)
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]StockLedgerEntry, 0, len(docs))
	for _, doc := range docs {
		var entry StockLedgerEntry
		if err := json.Unmarshal(doc.Value, &entry); err != nil {
			return nil, fmt.Errorf("inventory: decode entry %s: %w", doc.Key, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *ledgerRepo) QuantityByLot(ctx context.Context, productRef string, kind lots.ProductKind, lotRef string) (decimal.Decimal, error) {
	total := decimal.Zero
	entries, err := r.entriesForProduct(ctx, productRef, kind)
	if err != nil {
		return decimal.Zero, err
	}
	for _, entry := range entries {
		if entry.Key.LotRef == lotRef {
			total = total.Add(entry.Quantity)
		}
	}
	return total, nil
}

func (r *ledgerRepo) QuantityAt(ctx context.Context, productRef string, kind lots.ProductKind, warehouseRef, locationRef string) (decimal.Decimal, error) {
	total := decimal.Zero
	entries, err := r.entriesForProduct(ctx, productRef, kind)
	if err != nil {
		return decimal.Zero, err
	}
	for _, entry := range entries {
		if entry.Key.WarehouseRef == warehouseRef && entry.Key.LocationRef == locationRef {
			total = total.Add(entry.Quantity)
		}
	}
	return total, nil
}

func (r *ledgerRepo) entriesForProduct(ctx context.Context, productRef string, kind lots.ProductKind) ([]StockLedgerEntry, error) {
	prefix := ledgerPrefix + productRef + "|" + string(kind) + "|"
	docs, err := r.store.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]StockLedgerEntry, 0, len(docs))
	for _, doc := range docs {
		var entry StockLedgerEntry
		if err := json.Unmarshal(doc.Value, &entry); err != nil {
			return nil, fmt.Errorf("inventory: decode entry %s: %w", doc.Key, err)
		}
		out = append(out, entry)
	}
	return out, nil
}
