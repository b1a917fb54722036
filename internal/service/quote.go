package service

import (
	"fmt"

	"atenea/backend/internal/domain"
	"atenea/backend/internal/money"
	"atenea/backend/internal/payment"
	"atenea/backend/internal/store"
)

// Quote prices a cart against its payments without writing anything.
func (s *Service) Quote(req domain.QuoteRequest) (domain.QuoteResponse, error) {
	if err := s.validateStruct(req); err != nil {
		return domain.QuoteResponse{}, err
	}
	return quote(req.Items, req.Payments), nil
}

// EditAllocations applies one payment editing step and returns the new
// payment list together with the recomputed totals.
func (s *Service) EditAllocations(req domain.AllocationEditRequest) (domain.AllocationEditResponse, error) {
	if err := s.validateStruct(req); err != nil {
		return domain.AllocationEditResponse{}, err
	}

	m := payment.NewManager(req.Items, req.Payments)
	var err error
	switch req.Op {
	case domain.AllocationOpAdd:
		if !req.Method.Valid() {
			return domain.AllocationEditResponse{}, invalid(fmt.Sprintf("unknown method %q", req.Method))
		}
		m.Add(req.Method)
	case domain.AllocationOpSet:
		err = m.SetAmount(req.Index, req.Amount)
	case domain.AllocationOpRemove:
		err = m.Remove(req.Index)
	case domain.AllocationOpDiscount:
		err = m.ToggleItemDiscount(req.Index, req.LineID)
	case domain.AllocationOpRounding:
		err = m.ApplyRounding(req.Index, req.Denomination)
	}
	if err != nil {
		return domain.AllocationEditResponse{}, fmt.Errorf("%w: %w", store.ErrInvalidTransaction, err)
	}

	allocations := m.Allocations()
	return domain.AllocationEditResponse{
		Payments: allocations,
		Quote:    quote(m.Items(), allocations),
	}, nil
}

func quote(items []domain.CartLineItem, payments []domain.PaymentAllocation) domain.QuoteResponse {
	totals := money.Compute(items, payments)
	lines := make([]domain.LineQuote, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.LineQuote{
			ID:             item.ID,
			EffectivePrice: money.EffectivePrice(item, payments),
			LineTotal:      money.LineTotal(item, payments),
			Discounted:     money.Discounted(item, payments),
		})
	}
	return domain.QuoteResponse{
		SubtotalAtList:   totals.SubtotalAtList,
		NetTotal:         totals.NetTotal,
		Savings:          totals.Savings,
		TotalCollected:   totals.TotalCollected,
		BalanceRemaining: totals.BalanceRemaining,
		Lines:            lines,
	}
}
