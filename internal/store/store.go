package store

import (
	"context"
	"errors"
	"time"

	"atenea/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrDuplicate          = errors.New("duplicate")
	ErrVoucherUnavailable = errors.New("voucher unavailable")
)

type Repository interface {
	ListSales(ctx context.Context) ([]domain.SaleLine, error)
	ListSalesOnDate(ctx context.Context, date string) ([]domain.SaleLine, error)
	ListSalesByTransaction(ctx context.Context, transactionID string) ([]domain.SaleLine, error)
	InsertSaleLines(ctx context.Context, lines []domain.SaleLine) error
	DeleteSalesByTransaction(ctx context.Context, transactionID string) (int, error)

	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)

	ListInventory(ctx context.Context) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	AdjustStock(ctx context.Context, itemID string, size string, delta int) (int, error)

	CreateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error)
	GetVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error)
	ListVouchers(ctx context.Context, status string) ([]domain.Voucher, error)
	MarkVoucherUsed(ctx context.Context, code string) (*domain.Voucher, error)
	VoidVoucher(ctx context.Context, code string) (*domain.Voucher, error)
	ExpireVouchers(ctx context.Context, now time.Time) (int, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
