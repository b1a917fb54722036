package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"atenea/backend/internal/domain"
	"atenea/backend/internal/store"
)

func TestAdjustStockIsAtomicUnderConcurrency(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AdjustStock(ctx, "inv-buzo-frisa", "U", -1)
		}()
	}
	wg.Wait()

	item, err := s.GetInventoryItem(ctx, "inv-buzo-frisa")
	require.NoError(t, err)
	require.Equal(t, -45, item.Stock["U"])
}

func TestAdjustStockUnknownItem(t *testing.T) {
	_, err := New().AdjustStock(context.Background(), "missing", "M", 1)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateInventoryRejectsDuplicateName(t *testing.T) {
	s := NewSeeded()
	_, err := s.CreateInventoryItem(context.Background(), domain.InventoryItem{
		Name: "  remera LINO ", Category: "Remeras", SalePrice: 100,
	})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestDeleteSalesByTransaction(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InsertSaleLines(ctx, []domain.SaleLine{
		{Date: "2026-03-14", TransactionID: "V260314001", ProductName: "A", Quantity: 1},
		{Date: "2026-03-14", TransactionID: "V260314001", ProductName: "B", Quantity: 1},
		{Date: "2026-03-14", TransactionID: "V260314002", ProductName: "C", Quantity: 1},
	}))

	deleted, err := s.DeleteSalesByTransaction(ctx, "V260314001")
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	_, err = s.DeleteSalesByTransaction(ctx, "V260314001")
	require.ErrorIs(t, err, store.ErrNotFound)

	rest, err := s.ListSalesOnDate(ctx, "2026-03-14")
	require.NoError(t, err)
	require.Len(t, rest, 1)
}

func TestVoucherLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.CreateVoucher(ctx, domain.Voucher{Code: "VALE-V260314-AAAA", InitialAmount: 1000, CurrentAmount: 1000, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.CreateVoucher(ctx, domain.Voucher{Code: "VALE-V260101-BBBB", InitialAmount: 500, CurrentAmount: 500, ExpiresAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	_, err = s.MarkVoucherUsed(ctx, "VALE-V260101-BBBB")
	require.ErrorIs(t, err, store.ErrVoucherUnavailable)

	used, err := s.MarkVoucherUsed(ctx, "VALE-V260314-AAAA")
	require.NoError(t, err)
	require.Equal(t, domain.VoucherStatusUsed, used.Status)
	require.Equal(t, int64(0), used.CurrentAmount)
	require.Equal(t, int64(1000), used.InitialAmount)

	expired, err := s.ExpireVouchers(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	active, err := s.ListVouchers(ctx, domain.VoucherStatusActive)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestVoidVoucher(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.CreateVoucher(ctx, domain.Voucher{Code: "VALE-V260314-CCCC", InitialAmount: 1000, CurrentAmount: 1000, ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	voided, err := s.VoidVoucher(ctx, "VALE-V260314-CCCC")
	require.NoError(t, err)
	require.Equal(t, domain.VoucherStatusExpired, voided.Status)
	require.Equal(t, int64(0), voided.CurrentAmount)

	_, err = s.VoidVoucher(ctx, "VALE-V260314-CCCC")
	require.ErrorIs(t, err, store.ErrVoucherUnavailable)

	_, err = s.VoidVoucher(ctx, "VALE-V260314-NONE")
	require.ErrorIs(t, err, store.ErrNotFound)
}
