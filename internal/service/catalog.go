package service

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"atenea/backend/internal/domain"
	"atenea/backend/internal/store"
)

// ListTransactions groups persisted lines by transaction. An empty date
// lists every transaction.
func (s *Service) ListTransactions(ctx context.Context, date string) ([]domain.Transaction, error) {
	var (
		lines []domain.SaleLine
		err   error
	)
	if date == "" {
		lines, err = s.repo.ListSales(ctx)
	} else {
		lines, err = s.repo.ListSalesOnDate(ctx, date)
	}
	if err != nil {
		return nil, err
	}
	return groupTransactions(lines), nil
}

func (s *Service) GetTransaction(ctx context.Context, transactionID string) (domain.Transaction, error) {
	lines, err := s.repo.ListSalesByTransaction(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if len(lines) == 0 {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
	}
	return groupTransactions(lines)[0], nil
}

// groupTransactions folds lines into transactions, newest date first. The
// first line of each group supplies the shared header fields.
func groupTransactions(lines []domain.SaleLine) []domain.Transaction {
	index := make(map[string]int)
	out := make([]domain.Transaction, 0, len(lines))
	for _, line := range lines {
		pos, ok := index[line.TransactionID]
		if !ok {
			pos = len(out)
			index[line.TransactionID] = pos
			out = append(out, domain.Transaction{
				ID:       line.TransactionID,
				Date:     line.Date,
				Status:   line.Status,
				ClientID: line.ClientID,
				Payments: line.Payments,
			})
		}
		out[pos].Lines = append(out[pos].Lines, line)
		out[pos].Total += line.Price * int64(line.Quantity)
	}
	slices.SortStableFunc(out, func(a, b domain.Transaction) int {
		if a.Date != b.Date {
			return strings.Compare(b.Date, a.Date)
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Service) ListVouchers(ctx context.Context, status string) ([]domain.Voucher, error) {
	switch status {
	case "", domain.VoucherStatusActive, domain.VoucherStatusUsed, domain.VoucherStatusExpired:
	default:
		return nil, invalid(fmt.Sprintf("unknown voucher status %q", status))
	}
	return s.repo.ListVouchers(ctx, status)
}

func (s *Service) GetVoucher(ctx context.Context, code string) (domain.Voucher, error) {
	voucher, err := s.repo.GetVoucherByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return domain.Voucher{}, err
	}
	return *voucher, nil
}

// ExpireVouchers flags active vouchers past their expiry. It runs from the
// background worker and needs no actor.
func (s *Service) ExpireVouchers(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireVouchers(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("vouchers expired", zap.Int("count", expired))
		s.refresh(ctx)
	}
	return expired, nil
}

func (s *Service) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.repo.ListInventory(ctx)
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryCreateRequest) (domain.InventoryItem, error) {
	actor, err := requireOwner(ctx)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.validateStruct(req); err != nil {
		return domain.InventoryItem{}, err
	}

	created, err := s.repo.CreateInventoryItem(ctx, domain.InventoryItem{
		Name:        req.Name,
		Category:    req.Category,
		Subcategory: strings.TrimSpace(req.Subcategory),
		Material:    strings.TrimSpace(req.Material),
		CostPrice:   req.CostPrice,
		SalePrice:   req.SalePrice,
		Stock:       req.Stock,
		Owner:       actor.Username,
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	s.refresh(ctx)
	return *created, nil
}

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

func (s *Service) CreateClient(ctx context.Context, draft domain.ClientDraft) (domain.Client, error) {
	actor, err := requireOwner(ctx)
	if err != nil {
		return domain.Client{}, err
	}
	if err := s.validateStruct(draft); err != nil {
		return domain.Client{}, err
	}
	created, err := s.repo.CreateClient(ctx, domain.Client{
		Name:  draft.Name,
		Phone: draft.Phone,
		Email: draft.Email,
		Owner: actor.Username,
	})
	if err != nil {
		return domain.Client{}, err
	}
	s.refresh(ctx)
	return *created, nil
}

var draftFormPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

func (s *Service) GetDraft(ctx context.Context, form string) (domain.Draft, error) {
	actor, err := draftActor(ctx, form)
	if err != nil {
		return domain.Draft{}, err
	}
	draft, ok, err := s.drafts.Get(ctx, actor.Username, form)
	if err != nil {
		return domain.Draft{}, err
	}
	if !ok {
		return domain.Draft{}, fmt.Errorf("draft %s: %w", form, store.ErrNotFound)
	}
	return *draft, nil
}

func (s *Service) SaveDraft(ctx context.Context, form string, data domain.MultiSaleData) (domain.Draft, error) {
	actor, err := draftActor(ctx, form)
	if err != nil {
		return domain.Draft{}, err
	}
	draft := domain.Draft{Form: form, Owner: actor.Username, Data: data, SavedAt: s.now()}
	if err := s.drafts.Set(ctx, draft, s.draftTTL); err != nil {
		return domain.Draft{}, err
	}
	return draft, nil
}

func (s *Service) DeleteDraft(ctx context.Context, form string) error {
	actor, err := draftActor(ctx, form)
	if err != nil {
		return err
	}
	return s.drafts.Delete(ctx, actor.Username, form)
}

func draftActor(ctx context.Context, form string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.Actor{}, ErrForbidden
	}
	if !draftFormPattern.MatchString(form) {
		return domain.Actor{}, invalid(fmt.Sprintf("invalid draft form %q", form))
	}
	return actor, nil
}
