package numbering

import (
	"testing"

	"github.com/stretchr/testify/require"

	"atenea/backend/internal/domain"
)

func TestClassify(t *testing.T) {
	sale := []domain.CartLineItem{{ID: "a", Quantity: 1, ListPrice: 1000}}
	withReturn := append([]domain.CartLineItem{{ID: "b", Quantity: 1, ListPrice: 800, IsReturn: true}}, sale...)

	require.Equal(t, KindSale, Classify(sale, false))
	require.Equal(t, KindPending, Classify(sale, true))
	require.Equal(t, KindExchange, Classify(withReturn, false))
	require.Equal(t, KindExchange, Classify(withReturn, true))
}

func TestNextCountsDistinctTransactionsOnDate(t *testing.T) {
	history := []domain.SaleLine{
		{Date: "2026-03-14", TransactionID: "V260314001"},
		{Date: "2026-03-14", TransactionID: "V260314001"},
		{Date: "2026-03-14", TransactionID: "S260314002"},
		{Date: "2026-03-13", TransactionID: "V260313001"},
	}

	id, err := Next(history, "2026-03-14", KindSale)
	require.NoError(t, err)
	require.Equal(t, "V260314003", id)

	id, err = Next(history, "2026-03-15", KindExchange)
	require.NoError(t, err)
	require.Equal(t, "C260315001", id)
}

func TestNextReusesSlotAfterDeletion(t *testing.T) {
	// V260314003 was deleted.
	history := []domain.SaleLine{
		{Date: "2026-03-14", TransactionID: "V260314001"},
		{Date: "2026-03-14", TransactionID: "S260314002"},
	}
	id, err := Next(history, "2026-03-14", KindSale)
	require.NoError(t, err)
	require.Equal(t, "V260314003", id)
}

func TestNextSkipsOccupiedSlot(t *testing.T) {
	// V260314002 was deleted, so the counted slot 003 is still in use.
	history := []domain.SaleLine{
		{Date: "2026-03-14", TransactionID: "V260314001"},
		{Date: "2026-03-14", TransactionID: "V260314003"},
	}
	id, err := Next(history, "2026-03-14", KindSale)
	require.NoError(t, err)
	require.Equal(t, "V260314004", id)

	id, err = Next(history, "2026-03-14", KindPending)
	require.NoError(t, err)
	require.Equal(t, "S260314003", id)
}

func TestNextRejectsBadDate(t *testing.T) {
	_, err := Next(nil, "14/03/2026", KindSale)
	require.Error(t, err)
}
