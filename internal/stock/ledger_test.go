package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"atenea/backend/internal/domain"
)

type fakeShelf struct {
	counts map[string]int
	failOn string
}

func (f *fakeShelf) AdjustStock(_ context.Context, itemID, size string, delta int) (int, error) {
	key := itemID + "/" + size
	if key == f.failOn {
		return 0, errors.New("boom")
	}
	f.counts[key] += delta
	return f.counts[key], nil
}

func TestSaleThenReversalRestoresStock(t *testing.T) {
	ctx := context.Background()
	shelf := &fakeShelf{counts: map[string]int{"inv-1/M": 5, "inv-2/L": 1}}
	ledger := NewLedger(shelf)

	items := []domain.CartLineItem{
		{ID: "a", Quantity: 2, ListPrice: 5000, InventoryID: "inv-1", Size: "M"},
		{ID: "b", Quantity: 1, ListPrice: 7000, InventoryID: "inv-2", Size: "L", IsReturn: true},
		{ID: "c", Quantity: 1, ListPrice: 100},
	}
	require.NoError(t, ledger.Apply(ctx, SaleMovements(items)))
	require.Equal(t, 3, shelf.counts["inv-1/M"])
	require.Equal(t, 2, shelf.counts["inv-2/L"])

	persisted := []domain.SaleLine{
		{Quantity: 2, Price: 5000, InventoryID: "inv-1", Size: "M"},
		{Quantity: 1, Price: -7000, InventoryID: "inv-2", Size: "L"},
		{Quantity: 1, Price: 100},
	}
	require.NoError(t, ledger.Apply(ctx, ReversalMovements(persisted)))
	require.Equal(t, 5, shelf.counts["inv-1/M"])
	require.Equal(t, 1, shelf.counts["inv-2/L"])
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	shelf := &fakeShelf{counts: map[string]int{}, failOn: "inv-2/S"}
	ledger := NewLedger(shelf)

	err := ledger.Apply(context.Background(), []Movement{
		{InventoryID: "inv-1", Size: "S", Delta: -1},
		{InventoryID: "inv-2", Size: "S", Delta: -1},
		{InventoryID: "inv-3", Size: "S", Delta: -1},
	})
	require.Error(t, err)
	require.Equal(t, -1, shelf.counts["inv-1/S"])
	require.NotContains(t, shelf.counts, "inv-3/S")
}

func TestDecrementAndRestock(t *testing.T) {
	shelf := &fakeShelf{counts: map[string]int{"inv-1/U": 4}}
	ledger := NewLedger(shelf)

	qty, err := ledger.Decrement(context.Background(), "inv-1", "U", 3)
	require.NoError(t, err)
	require.Equal(t, 1, qty)

	qty, err = ledger.Restock(context.Background(), "inv-1", "U", 2)
	require.NoError(t, err)
	require.Equal(t, 3, qty)
}

func TestReversalTakesBackZeroPricedReturn(t *testing.T) {
	ctx := context.Background()
	shelf := &fakeShelf{counts: map[string]int{"inv-1/M": 3}}
	ledger := NewLedger(shelf)

	items := []domain.CartLineItem{
		{ID: "a", Quantity: 1, ListPrice: 0, InventoryID: "inv-1", Size: "M", IsReturn: true},
	}
	require.NoError(t, ledger.Apply(ctx, SaleMovements(items)))
	require.Equal(t, 4, shelf.counts["inv-1/M"])

	persisted := []domain.SaleLine{
		{ProductName: domain.ReturnMarker + "Remera", Quantity: 1, Price: 0, InventoryID: "inv-1", Size: "M"},
	}
	require.NoError(t, ledger.Apply(ctx, ReversalMovements(persisted)))
	require.Equal(t, 3, shelf.counts["inv-1/M"])
}
