package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"atenea/backend/internal/domain"
	"atenea/backend/internal/stock"
	"atenea/backend/internal/store"
)

// DeleteTransaction puts stock back from the persisted lines and then
// deletes every line sharing the identifier. Vouchers issued or consumed
// by the transaction are left as they are.
func (s *Service) DeleteTransaction(ctx context.Context, transactionID string) (domain.DeleteResult, error) {
	if _, err := requireOwner(ctx); err != nil {
		return domain.DeleteResult{}, err
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domain.DeleteResult{}, invalid("transaction id is required")
	}

	lines, err := s.repo.ListSalesByTransaction(ctx, transactionID)
	if err != nil {
		return domain.DeleteResult{}, err
	}
	if len(lines) == 0 {
		return domain.DeleteResult{}, fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
	}

	if err := s.ledger.Apply(ctx, stock.ReversalMovements(lines)); err != nil {
		s.logger.Error("reverse stock failed", zap.String("transaction_id", transactionID), zap.Error(err))
		return domain.DeleteResult{}, fmt.Errorf("reverse stock: %w", err)
	}
	deleted, err := s.repo.DeleteSalesByTransaction(ctx, transactionID)
	if err != nil {
		s.logger.Error("delete lines failed", zap.String("transaction_id", transactionID), zap.Error(err))
		return domain.DeleteResult{}, err
	}

	s.logger.Info("transaction deleted", zap.String("transaction_id", transactionID), zap.Int("lines", deleted))
	s.refresh(ctx)
	return domain.DeleteResult{TransactionID: transactionID, DeletedLines: deleted}, nil
}
