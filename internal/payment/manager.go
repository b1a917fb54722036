// Package payment keeps the list of payment allocations for a cart while it
// is being built or edited.
package payment

import (
	"errors"
	"slices"

	"atenea/backend/internal/domain"
	"atenea/backend/internal/money"
)

var (
	ErrIndexOutOfRange = errors.New("payment: allocation index out of range")
	ErrNotCash         = errors.New("payment: operation requires a cash allocation")
	ErrUnknownLine     = errors.New("payment: unknown cart line")
	ErrDenomination    = errors.New("payment: rounding denomination must be 0, 100, 500 or 1000")
)

// Manager edits the allocations of one cart.
type Manager struct {
	items       []domain.CartLineItem
	allocations []domain.PaymentAllocation
}

// NewManager copies items and allocations so callers keep their own slices.
func NewManager(items []domain.CartLineItem, allocations []domain.PaymentAllocation) *Manager {
	m := &Manager{items: slices.Clone(items)}
	m.allocations = make([]domain.PaymentAllocation, 0, len(allocations))
	for _, alloc := range allocations {
		m.allocations = append(m.allocations, cloneAllocation(alloc))
	}
	return m
}

// SetItems replaces the cart. Discount effects are derived on read, so
// amounts are not touched.
func (m *Manager) SetItems(items []domain.CartLineItem) {
	m.items = slices.Clone(items)
}

func (m *Manager) Items() []domain.CartLineItem {
	return slices.Clone(m.items)
}

func (m *Manager) Allocations() []domain.PaymentAllocation {
	out := make([]domain.PaymentAllocation, 0, len(m.allocations))
	for _, alloc := range m.allocations {
		out = append(out, cloneAllocation(alloc))
	}
	return out
}

func (m *Manager) Totals() money.Totals {
	return money.Compute(m.items, m.allocations)
}

// Add appends an allocation that covers whatever is still owed.
func (m *Manager) Add(method domain.PaymentMethod) int {
	amount := max(0, m.Totals().BalanceRemaining)
	m.allocations = append(m.allocations, domain.PaymentAllocation{Method: method, Amount: amount})
	return len(m.allocations) - 1
}

// SetAmount sets one allocation's amount. With exactly two allocations the
// other one takes the rest of the net total.
func (m *Manager) SetAmount(index int, amount int64) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	m.allocations[index].Amount = amount
	if len(m.allocations) == 2 {
		other := 1 - index
		m.allocations[other].Amount = max(0, m.net()-amount)
	}
	return nil
}

func (m *Manager) Remove(index int) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	m.allocations = slices.Delete(m.allocations, index, index+1)
	return nil
}

// ToggleItemDiscount adds or removes a cart line from a cash allocation's
// discount items and moves the allocation amount by the resulting change
// in the net total.
func (m *Manager) ToggleItemDiscount(index int, lineID string) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	alloc := &m.allocations[index]
	if alloc.Method != domain.PaymentCash {
		return ErrNotCash
	}
	if !slices.ContainsFunc(m.items, func(item domain.CartLineItem) bool { return item.ID == lineID }) {
		return ErrUnknownLine
	}

	before := m.net()
	if pos := slices.Index(alloc.DiscountItems, lineID); pos >= 0 {
		alloc.DiscountItems = slices.Delete(alloc.DiscountItems, pos, pos+1)
	} else {
		alloc.DiscountItems = append(alloc.DiscountItems, lineID)
	}
	alloc.Amount += m.net() - before
	return nil
}

// ApplyRounding sets a cash allocation so that all allocations together
// reach the net total rounded down to the denomination.
func (m *Manager) ApplyRounding(index int, denomination int64) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	switch denomination {
	case 0, 100, 500, 1000:
	default:
		return ErrDenomination
	}
	alloc := &m.allocations[index]
	if alloc.Method != domain.PaymentCash {
		return ErrNotCash
	}

	others := money.Collected(m.allocations) - alloc.Amount
	alloc.Rounding = denomination
	alloc.Amount = max(0, money.FloorTo(m.net(), denomination)-others)
	return nil
}

func (m *Manager) net() int64 {
	return money.NetTotal(m.items, m.allocations)
}

func (m *Manager) checkIndex(index int) error {
	if index < 0 || index >= len(m.allocations) {
		return ErrIndexOutOfRange
	}
	return nil
}

func cloneAllocation(src domain.PaymentAllocation) domain.PaymentAllocation {
	dst := src
	dst.DiscountItems = slices.Clone(src.DiscountItems)
	return dst
}
