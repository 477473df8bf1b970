package inventory

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/arabica-erp/arabica-erp/internal/shared"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// Kardex reconstructs per-key movement history with running balances by
// folding the journal through the exact arithmetic the live engine applies.
type Kardex struct {
	ledger Ledger
}

// NewKardex builds the reconstructor.
func NewKardex(ledger Ledger) *Kardex {
	return &Kardex{ledger: ledger}
}

// ReplayOptions bounds and windows a replay. Zero times are open ended; a
// zero PerPage disables pagination.
type ReplayOptions struct {
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

// Replay folds the key's journal in (timestamp, id) order and returns the
// lines whose movements fall inside the window. The fold always starts from
// the empty entry so running balances stay exact regardless of the window.
func (k *Kardex) Replay(ctx context.Context, key StockKey, opts ReplayOptions) ([]KardexLine, shared.Pagination, error) {
	var lines []KardexLine
	err := k.stream(ctx, key, opts.From, opts.To, func(line KardexLine) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if opts.PerPage <= 0 {
		return lines, shared.NewPagination(1, len(lines), len(lines)), nil
	}
	p := shared.NewPagination(opts.Page, opts.PerPage, len(lines))
	start := p.Offset()
	if start >= len(lines) {
		return []KardexLine{}, p, nil
	}
	end := start + p.PerPage
	if end > len(lines) {
		end = len(lines)
	}
	return lines[start:end], p, nil
}

// Reconstruct folds the full journal and returns the resulting entry state,
// the replayed twin of the live ledger entry.
func (k *Kardex) Reconstruct(ctx context.Context, key StockKey) (StockLedgerEntry, error) {
	entry := StockLedgerEntry{Key: key}
	movements, err := k.ledger.MovementsByKey(ctx, key, time.Time{}, time.Time{})
	if err != nil {
		return StockLedgerEntry{}, err
	}
	for _, rec := range movements {
		entry, err = fold(entry, rec)
		if err != nil {
			return StockLedgerEntry{}, err
		}
	}
	return entry, nil
}

// WriteCSV streams the full replay as CSV.
func (k *Kardex) WriteCSV(ctx context.Context, w io.Writer, key StockKey, from, to time.Time) error {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true

	header := []string{"At", "Movement ID", "Kind", "Lot", "Quantity", "Unit Cost", "Running Quantity", "Running Cost", "Note"}
	if err := writer.Write(header); err != nil {
		return err
	}
	pending := 0
	err := k.stream(ctx, key, from, to, func(line KardexLine) error {
		row := []string{
			line.Movement.At.UTC().Format(time.RFC3339),
			line.Movement.ID,
			string(line.Movement.Kind),
			line.Movement.LotRef,
			line.Movement.Quantity.String(),
			line.Movement.UnitCost.String(),
			line.RunningQuantity.String(),
			line.RunningCost.String(),
			line.Movement.Note,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
		pending++
		if pending >= csvFlushEvery {
			writer.Flush()
			if err := writer.Error(); err != nil {
				return err
			}
			pending = 0
		}
		return nil
	})
	if err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

// stream folds the whole journal from empty and invokes fn for every line
// whose movement timestamp falls inside [from, to].
func (k *Kardex) stream(ctx context.Context, key StockKey, from, to time.Time, fn func(KardexLine) error) error {
	movements, err := k.ledger.MovementsByKey(ctx, key, time.Time{}, time.Time{})
	if err != nil {
		return err
	}
	entry := StockLedgerEntry{Key: key}
	for _, rec := range movements {
		entry, err = fold(entry, rec)
		if err != nil {
			return err
		}
		if !from.IsZero() && rec.At.Before(from) {
			continue
		}
		if !to.IsZero() && rec.At.After(to) {
			continue
		}
		if err := fn(KardexLine{
			Movement:        rec,
			RunningQuantity: entry.Quantity,
			RunningCost:     entry.UnitCost(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// fold applies one journal record to the reconstructed entry using the same
// costing functions as the live engine. Any divergence between the two is a
// correctness bug.
func fold(entry StockLedgerEntry, rec MovementRecord) (StockLedgerEntry, error) {
	if entry.CostingMethod == "" {
		entry.CostingMethod = rec.CostingMethod
	}
	if rec.Kind.Inbound() {
		return applyReceipt(entry, rec.Quantity, rec.UnitCost, rec.At), nil
	}
	next, _, _, err := applyIssue(entry, rec.Quantity, rec.At)
	if err != nil {
		return StockLedgerEntry{}, fmt.Errorf("inventory: replay %s: %w", rec.ID, err)
	}
	return next, nil
}
