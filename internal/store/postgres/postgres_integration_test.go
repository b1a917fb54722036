package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"atenea/backend/internal/domain"
	"atenea/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("ATENEA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set ATENEA_TEST_DATABASE_URL to run postgres integration test")
	}

	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestSaleLinesRoundTripAndStockAdjust(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	itemID := fmt.Sprintf("inv-it-%d", stamp)
	txID := fmt.Sprintf("V-IT-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE transaction_id = $1`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, itemID)
	})

	if _, err := s.CreateInventoryItem(ctx, domain.InventoryItem{
		ID: itemID, Name: fmt.Sprintf("Remera IT %d", stamp), Category: "Remeras",
		SalePrice: 5000, Stock: map[string]int{"M": 10}, Owner: "owner",
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	qty, err := s.AdjustStock(ctx, itemID, "M", -2)
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if qty != 8 {
		t.Fatalf("expected 8 on hand, got %d", qty)
	}
	if qty, err = s.AdjustStock(ctx, itemID, "XL", 1); err != nil || qty != 1 {
		t.Fatalf("expected new size counter 1, got %d (%v)", qty, err)
	}

	payments := []domain.PaymentAllocation{{Method: domain.PaymentCash, Amount: 9000, DiscountItems: []string{"l1"}}}
	if err := s.InsertSaleLines(ctx, []domain.SaleLine{{
		Date: "2026-03-14", TransactionID: txID, ProductName: "Remera IT", Quantity: 2,
		Price: 4500, ListPrice: 5000, PaymentMethod: domain.PaymentCash, Payments: payments,
		Status: domain.SaleStatusCompleted, Size: "M", InventoryID: itemID, Owner: "owner",
	}}); err != nil {
		t.Fatalf("insert lines: %v", err)
	}

	lines, err := s.ListSalesByTransaction(ctx, txID)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(lines) != 1 || lines[0].Date != "2026-03-14" || len(lines[0].Payments) != 1 || lines[0].Payments[0].DiscountItems[0] != "l1" {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	deleted, err := s.DeleteSalesByTransaction(ctx, txID)
	if err != nil || deleted != 1 {
		t.Fatalf("expected 1 deleted line, got %d (%v)", deleted, err)
	}
}

func TestVoucherConsumedOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	code := fmt.Sprintf("VALE-IT%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM vouchers WHERE code = $1`, code)
	})

	if _, err := s.CreateVoucher(ctx, domain.Voucher{
		Code: code, InitialAmount: 1000, CurrentAmount: 1000,
		ExpiresAt: time.Now().Add(24 * time.Hour), Owner: "owner",
	}); err != nil {
		t.Fatalf("create voucher: %v", err)
	}

	used, err := s.MarkVoucherUsed(ctx, code)
	if err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if used.Status != domain.VoucherStatusUsed || used.CurrentAmount != 0 {
		t.Fatalf("unexpected voucher after use: %+v", used)
	}
	if _, err := s.MarkVoucherUsed(ctx, code); !errors.Is(err, store.ErrVoucherUnavailable) {
		t.Fatalf("expected ErrVoucherUnavailable on second use, got %v", err)
	}
}
