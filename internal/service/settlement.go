package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"atenea/backend/internal/domain"
	"atenea/backend/internal/money"
	"atenea/backend/internal/numbering"
	"atenea/backend/internal/stock"
	"atenea/backend/internal/store"
	"atenea/backend/internal/xid"
)

const (
	// RoundingThreshold bounds the collected/owed mismatch recorded as a
	// rounding line instead of being treated as a layaway or credit.
	RoundingThreshold = 1000

	roundingProductName = "Ajuste redondeo"
	roundingSize        = "-"
	dateLayout          = "2006-01-02"
)

// settlement holds the figures derived from a submission before any write.
type settlement struct {
	totals        money.Totals
	adjustment    int64
	pending       bool
	voucherAmount int64
	kind          string
}

func computeSettlement(data domain.MultiSaleData) settlement {
	totals := money.Compute(data.Items, data.Payments)
	diff := totals.TotalCollected - totals.NetTotal

	var st settlement
	st.totals = totals
	if totals.NetTotal >= 0 && diff != 0 && money.Abs(diff) < RoundingThreshold {
		st.adjustment = diff
	}
	owed := totals.NetTotal + st.adjustment
	st.pending = totals.TotalCollected < owed && !data.ForceCompleted
	st.voucherAmount = max(0, totals.TotalCollected-owed)
	st.kind = numbering.Classify(data.Items, st.pending)
	return st
}

// SaveSale settles a checkout: it links or creates the client, issues a
// credit voucher for any overpayment, consumes redeemed vouchers, writes
// one line per cart item and moves stock. Editing keeps the transaction
// identifier, reverses the previous stock effect before reapplying and
// replaces the voucher it issued when the credit amount changes.
// Steps run as independent writes; a failure leaves earlier steps in place.
func (s *Service) SaveSale(ctx context.Context, data domain.MultiSaleData) (domain.SettlementResult, error) {
	result, err := s.saveSale(ctx, data)
	if err != nil {
		s.logger.Error("settlement failed",
			zap.String("date", data.Date),
			zap.Bool("edit", data.IsEdit),
			zap.String("previous_transaction_id", data.PreviousTransactionID),
			zap.Error(err))
		return domain.SettlementResult{Success: false, Error: err.Error()}, err
	}
	return result, nil
}

func (s *Service) saveSale(ctx context.Context, data domain.MultiSaleData) (domain.SettlementResult, error) {
	actor, err := requireOwner(ctx)
	if err != nil {
		return domain.SettlementResult{}, err
	}
	if err := s.validateSubmission(data); err != nil {
		return domain.SettlementResult{}, err
	}

	var previous []domain.SaleLine
	if data.IsEdit {
		previous, err = s.repo.ListSalesByTransaction(ctx, data.PreviousTransactionID)
		if err != nil {
			return domain.SettlementResult{}, err
		}
		if len(previous) == 0 {
			return domain.SettlementResult{}, fmt.Errorf("transaction %s: %w", data.PreviousTransactionID, store.ErrNotFound)
		}
	}
	// An edit may resubmit vouchers the original checkout already consumed.
	redeemed := redeemedCodes(previous)
	if err := s.checkVouchers(ctx, data.Payments, redeemed); err != nil {
		return domain.SettlementResult{}, err
	}

	if err := s.checkInventory(ctx, data.Items); err != nil {
		return domain.SettlementResult{}, err
	}

	st := computeSettlement(data)
	prior, err := s.planPriorVoucher(ctx, previous, st.voucherAmount)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	clientID, err := s.resolveClient(ctx, actor, data)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	now := s.now()

	var issued *domain.VoucherDescriptor
	if prior.keep != nil {
		issued = &domain.VoucherDescriptor{Code: prior.keep.Code, Amount: prior.keep.InitialAmount, ExpiresAt: prior.keep.ExpiresAt}
	} else {
		if prior.void != "" {
			if _, err := s.repo.VoidVoucher(ctx, prior.void); err != nil {
				return domain.SettlementResult{}, fmt.Errorf("void voucher %s: %w", prior.void, err)
			}
		}
		if st.voucherAmount > 0 {
			issued, err = s.issueVoucher(ctx, actor, data.Date, st.kind, st.voucherAmount, now)
			if err != nil {
				return domain.SettlementResult{}, err
			}
		}
	}
	issuedCode := ""
	if issued != nil {
		issuedCode = issued.Code
	}

	for _, alloc := range data.Payments {
		if alloc.Method != domain.PaymentVoucher {
			continue
		}
		if _, done := redeemed[alloc.VoucherCode]; done {
			continue
		}
		if _, err := s.repo.MarkVoucherUsed(ctx, alloc.VoucherCode); err != nil {
			return domain.SettlementResult{}, fmt.Errorf("redeem voucher %s: %w", alloc.VoucherCode, err)
		}
	}

	transactionID := data.PreviousTransactionID
	createdAt := now
	if data.IsEdit {
		createdAt = previous[0].CreatedAt
		if err := s.ledger.Apply(ctx, stock.ReversalMovements(previous)); err != nil {
			return domain.SettlementResult{}, fmt.Errorf("reverse previous stock: %w", err)
		}
		if _, err := s.repo.DeleteSalesByTransaction(ctx, transactionID); err != nil {
			return domain.SettlementResult{}, fmt.Errorf("delete previous lines: %w", err)
		}
	} else {
		sameDay, err := s.repo.ListSalesOnDate(ctx, data.Date)
		if err != nil {
			return domain.SettlementResult{}, err
		}
		transactionID, err = numbering.Next(sameDay, data.Date, st.kind)
		if err != nil {
			return domain.SettlementResult{}, invalid(err.Error())
		}
	}

	lines := buildLines(data, st, lineContext{
		transactionID: transactionID,
		clientID:      clientID,
		issuedVoucher: issuedCode,
		owner:         actor.Username,
		createdAt:     createdAt,
		expiresAt:     now.Add(s.layawayValidity),
	})
	if err := s.repo.InsertSaleLines(ctx, lines); err != nil {
		return domain.SettlementResult{}, fmt.Errorf("insert sale lines: %w", err)
	}

	if err := s.ledger.Apply(ctx, stock.SaleMovements(data.Items)); err != nil {
		return domain.SettlementResult{}, fmt.Errorf("apply stock: %w", err)
	}

	status := domain.SaleStatusCompleted
	if st.pending {
		status = domain.SaleStatusPending
	}
	s.logger.Info("sale settled",
		zap.String("transaction_id", transactionID),
		zap.String("status", status),
		zap.Int64("net_total", st.totals.NetTotal),
		zap.Int64("collected", st.totals.TotalCollected),
		zap.Int64("rounding", st.adjustment),
		zap.String("voucher", issuedCode),
		zap.Bool("notify_whatsapp", data.NotifyWhatsApp))

	s.refresh(ctx)

	return domain.SettlementResult{
		Success:       true,
		TransactionID: transactionID,
		Status:        status,
		Voucher:       issued,
	}, nil
}

func (s *Service) validateSubmission(data domain.MultiSaleData) error {
	if err := s.validateStruct(data); err != nil {
		return err
	}

	lineIDs := make(map[string]struct{}, len(data.Items))
	for _, item := range data.Items {
		if strings.TrimSpace(item.ProductName) == "" {
			return invalid("product name is required")
		}
		if _, dup := lineIDs[item.ID]; dup {
			return invalid(fmt.Sprintf("duplicate cart line %s", item.ID))
		}
		lineIDs[item.ID] = struct{}{}
	}

	codes := make(map[string]struct{})
	for i, alloc := range data.Payments {
		if !alloc.Method.Valid() {
			return invalid(fmt.Sprintf("payment %d: unknown method %q", i, alloc.Method))
		}
		if alloc.Amount < 0 {
			return invalid(fmt.Sprintf("payment %d: negative amount", i))
		}
		if alloc.Installments > 0 && alloc.Method != domain.PaymentCredit {
			return invalid(fmt.Sprintf("payment %d: installments apply to credit only", i))
		}
		if alloc.Method != domain.PaymentCash && (alloc.Rounding != 0 || len(alloc.DiscountItems) > 0) {
			return invalid(fmt.Sprintf("payment %d: rounding and discounts apply to cash only", i))
		}
		for _, id := range alloc.DiscountItems {
			if _, ok := lineIDs[id]; !ok {
				return invalid(fmt.Sprintf("payment %d: discount references unknown line %s", i, id))
			}
		}
		switch {
		case alloc.Method == domain.PaymentVoucher && alloc.VoucherCode == "":
			return invalid(fmt.Sprintf("payment %d: voucher code is required", i))
		case alloc.Method != domain.PaymentVoucher && alloc.VoucherCode != "":
			return invalid(fmt.Sprintf("payment %d: voucher code on non-voucher payment", i))
		}
		if alloc.VoucherCode != "" {
			if _, dup := codes[alloc.VoucherCode]; dup {
				return invalid(fmt.Sprintf("voucher %s used twice", alloc.VoucherCode))
			}
			codes[alloc.VoucherCode] = struct{}{}
		}
	}
	return nil
}

// checkVouchers rejects redemptions of unknown, spent or expired vouchers
// before anything is written.
func (s *Service) checkVouchers(ctx context.Context, payments []domain.PaymentAllocation, redeemed map[string]struct{}) error {
	now := s.now()
	for _, alloc := range payments {
		if alloc.Method != domain.PaymentVoucher {
			continue
		}
		if _, done := redeemed[alloc.VoucherCode]; done {
			continue
		}
		voucher, err := s.repo.GetVoucherByCode(ctx, alloc.VoucherCode)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("voucher %s: %w", alloc.VoucherCode, store.ErrVoucherUnavailable)
			}
			return err
		}
		if voucher.Status != domain.VoucherStatusActive || !voucher.ExpiresAt.After(now) {
			return fmt.Errorf("voucher %s (%s, expires %s): %w", alloc.VoucherCode, voucher.Status, voucher.ExpiresAt.Format(dateLayout), store.ErrVoucherUnavailable)
		}
		if alloc.Amount > voucher.CurrentAmount {
			return invalid(fmt.Sprintf("voucher %s covers at most %d", alloc.VoucherCode, voucher.CurrentAmount))
		}
	}
	return nil
}

// checkInventory rejects cart lines linked to inventory items that do not
// exist, so a bad link fails before the first write.
func (s *Service) checkInventory(ctx context.Context, items []domain.CartLineItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.InventoryID == "" {
			continue
		}
		if _, ok := seen[item.InventoryID]; ok {
			continue
		}
		seen[item.InventoryID] = struct{}{}
		if _, err := s.repo.GetInventoryItem(ctx, item.InventoryID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalid(fmt.Sprintf("line %s: unknown inventory item %s", item.ID, item.InventoryID))
			}
			return err
		}
	}
	return nil
}

// priorVoucher says what an edit does with the credit voucher the original
// checkout issued: keep it as is, or void it before issuing a new one.
type priorVoucher struct {
	keep *domain.Voucher
	void string
}

func (s *Service) planPriorVoucher(ctx context.Context, previous []domain.SaleLine, amount int64) (priorVoucher, error) {
	if len(previous) == 0 || previous[0].IssuedVoucher == "" {
		return priorVoucher{}, nil
	}
	code := previous[0].IssuedVoucher
	voucher, err := s.repo.GetVoucherByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return priorVoucher{}, nil
		}
		return priorVoucher{}, err
	}
	if voucher.InitialAmount == amount {
		return priorVoucher{keep: voucher}, nil
	}
	if voucher.Status != domain.VoucherStatusActive {
		return priorVoucher{}, fmt.Errorf("voucher %s issued by %s is %s, credit cannot change: %w",
			code, previous[0].TransactionID, voucher.Status, store.ErrVoucherUnavailable)
	}
	return priorVoucher{void: code}, nil
}

func redeemedCodes(lines []domain.SaleLine) map[string]struct{} {
	codes := make(map[string]struct{})
	if len(lines) == 0 {
		return codes
	}
	for _, alloc := range lines[0].Payments {
		if alloc.Method == domain.PaymentVoucher && alloc.VoucherCode != "" {
			codes[alloc.VoucherCode] = struct{}{}
		}
	}
	return codes
}

func (s *Service) resolveClient(ctx context.Context, actor domain.Actor, data domain.MultiSaleData) (string, error) {
	if data.ClientID != "" {
		if _, err := s.repo.GetClient(ctx, data.ClientID); err != nil {
			return "", fmt.Errorf("client %s: %w", data.ClientID, err)
		}
		return data.ClientID, nil
	}
	if data.NewClient == nil {
		return "", nil
	}
	client, err := s.repo.CreateClient(ctx, domain.Client{
		Name:  data.NewClient.Name,
		Phone: data.NewClient.Phone,
		Email: data.NewClient.Email,
		Owner: actor.Username,
	})
	if err != nil {
		return "", fmt.Errorf("create client: %w", err)
	}
	return client.ID, nil
}

const voucherCodeAttempts = 3

func (s *Service) issueVoucher(ctx context.Context, actor domain.Actor, date, kind string, amount int64, now time.Time) (*domain.VoucherDescriptor, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, invalid(err.Error())
	}
	expiresAt := now.Add(s.voucherValidity)

	for attempt := 0; attempt < voucherCodeAttempts; attempt++ {
		code := fmt.Sprintf("VALE-%s%s-%s", kind, day.Format("060102"), xid.Suffix(4))
		voucher, err := s.repo.CreateVoucher(ctx, domain.Voucher{
			Code:          code,
			InitialAmount: amount,
			CurrentAmount: amount,
			Status:        domain.VoucherStatusActive,
			ExpiresAt:     expiresAt,
			Owner:         actor.Username,
			CreatedAt:     now,
		})
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("issue voucher: %w", err)
		}
		return &domain.VoucherDescriptor{Code: voucher.Code, Amount: voucher.InitialAmount, ExpiresAt: voucher.ExpiresAt}, nil
	}
	return nil, fmt.Errorf("issue voucher: no free code after %d attempts: %w", voucherCodeAttempts, store.ErrDuplicate)
}

type lineContext struct {
	transactionID string
	clientID      string
	issuedVoucher string
	owner         string
	createdAt     time.Time
	expiresAt     time.Time
}

// buildLines turns the cart into persisted rows sharing one identifier,
// status and payment array. Return lines carry a negative price.
func buildLines(data domain.MultiSaleData, st settlement, lc lineContext) []domain.SaleLine {
	status := domain.SaleStatusCompleted
	var expiresAt *time.Time
	if st.pending {
		status = domain.SaleStatusPending
		at := lc.expiresAt
		expiresAt = &at
	}
	primary := primaryMethod(data.Payments, st.voucherAmount)

	base := domain.SaleLine{
		Date:          data.Date,
		TransactionID: lc.transactionID,
		PaymentMethod: primary,
		Payments:      data.Payments,
		Status:        status,
		ExpiresAt:     expiresAt,
		ClientID:      lc.clientID,
		IssuedVoucher: lc.issuedVoucher,
		Owner:         lc.owner,
		CreatedAt:     lc.createdAt,
	}

	lines := make([]domain.SaleLine, 0, len(data.Items)+1)
	for _, item := range data.Items {
		line := base
		line.ProductName = strings.TrimSpace(item.ProductName)
		line.Quantity = item.Quantity
		line.Price = money.EffectivePrice(item, data.Payments)
		line.ListPrice = item.ListPrice
		line.UnitCost = item.UnitCost
		line.Size = item.Size
		line.InventoryID = item.InventoryID
		if item.IsReturn {
			line.ProductName = domain.ReturnMarker + line.ProductName
			line.Price = -line.Price
		}
		lines = append(lines, line)
	}

	if st.adjustment != 0 {
		line := base
		line.ProductName = roundingProductName
		line.Quantity = 1
		line.Price = st.adjustment
		line.Size = roundingSize
		lines = append(lines, line)
	}
	return lines
}

func primaryMethod(payments []domain.PaymentAllocation, voucherAmount int64) domain.PaymentMethod {
	if len(payments) > 0 {
		return payments[0].Method
	}
	if voucherAmount > 0 {
		return domain.PaymentVoucher
	}
	return domain.PaymentCash
}
