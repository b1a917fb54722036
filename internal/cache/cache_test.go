package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"atenea/backend/internal/domain"
)

func sampleDraft() domain.Draft {
	return domain.Draft{
		Form:  "sale",
		Owner: "owner",
		Data: domain.MultiSaleData{
			Date:  "2026-03-14",
			Items: []domain.CartLineItem{{ID: "l1", ProductName: "Remera", Quantity: 1, ListPrice: 5000}},
		},
		SavedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestRedisDraftStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisDraftStore(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Set(ctx, sampleDraft(), time.Hour))

	got, ok, err := store.Get(ctx, "owner", "sale")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Remera", got.Data.Items[0].ProductName)

	mr.FastForward(2 * time.Hour)
	_, ok, err = store.Get(ctx, "owner", "sale")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisDraftStoreDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisDraftStore(mr.Addr(), "", 0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, sampleDraft(), 0))
	require.NoError(t, store.Delete(ctx, "owner", "sale"))
	_, ok, err := store.Get(ctx, "owner", "sale")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryDraftStoreExpires(t *testing.T) {
	store := NewMemoryDraftStore()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, sampleDraft(), time.Minute))
	_, ok, _ := store.Get(ctx, "owner", "sale")
	require.True(t, ok)

	_, ok, _ = store.Get(ctx, "accountant", "sale")
	require.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = store.Get(ctx, "owner", "sale")
	require.False(t, ok)
}
