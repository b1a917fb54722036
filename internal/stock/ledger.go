// Package stock applies signed per-size stock movements for sales,
// returns and reversals.
package stock

import (
	"context"
	"fmt"

	"atenea/backend/internal/domain"
)

// Adjuster is the storage primitive the ledger needs. Implementations
// must apply delta atomically and return the new quantity on hand.
type Adjuster interface {
	AdjustStock(ctx context.Context, itemID string, size string, delta int) (int, error)
}

// Movement is one signed change to an item's size counter. Positive
// deltas put units back on the shelf.
type Movement struct {
	InventoryID string
	Size        string
	Delta       int
}

type Ledger struct {
	store Adjuster
}

func NewLedger(store Adjuster) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Decrement(ctx context.Context, itemID, size string, qty int) (int, error) {
	return l.store.AdjustStock(ctx, itemID, size, -qty)
}

func (l *Ledger) Increment(ctx context.Context, itemID, size string, qty int) (int, error) {
	return l.store.AdjustStock(ctx, itemID, size, qty)
}

// Restock is Increment under the name used for returns and reversals.
func (l *Ledger) Restock(ctx context.Context, itemID, size string, qty int) (int, error) {
	return l.Increment(ctx, itemID, size, qty)
}

// Apply runs movements in order and stops at the first failure. Movements
// already applied are not undone.
func (l *Ledger) Apply(ctx context.Context, movements []Movement) error {
	for _, mv := range movements {
		if mv.Delta == 0 {
			continue
		}
		if _, err := l.store.AdjustStock(ctx, mv.InventoryID, mv.Size, mv.Delta); err != nil {
			return fmt.Errorf("adjust stock %s/%s by %d: %w", mv.InventoryID, mv.Size, mv.Delta, err)
		}
	}
	return nil
}

// SaleMovements lists the stock effect of checking out a cart: a sale
// line takes units off the shelf, a return line puts them back. Lines
// without an inventory link or size are skipped.
func SaleMovements(items []domain.CartLineItem) []Movement {
	out := make([]Movement, 0, len(items))
	for _, item := range items {
		if item.InventoryID == "" || item.Size == "" {
			continue
		}
		delta := -item.Quantity
		if item.IsReturn {
			delta = item.Quantity
		}
		out = append(out, Movement{InventoryID: item.InventoryID, Size: item.Size, Delta: delta})
	}
	return out
}

// ReversalMovements undoes the stock effect of persisted lines.
func ReversalMovements(lines []domain.SaleLine) []Movement {
	out := make([]Movement, 0, len(lines))
	for _, line := range lines {
		if line.InventoryID == "" || line.Size == "" {
			continue
		}
		delta := line.Quantity
		if line.IsReturn() {
			delta = -line.Quantity
		}
		out = append(out, Movement{InventoryID: line.InventoryID, Size: line.Size, Delta: delta})
	}
	return out
}
