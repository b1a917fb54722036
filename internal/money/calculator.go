// Package money computes cart prices, the cash discount and payment balance.
// Everything here is pure and recomputed on every cart or payment change.
package money

import (
	"github.com/shopspring/decimal"

	"atenea/backend/internal/domain"
)

// CashDiscountPercent is the discount granted to cart lines that a cash
// allocation lists in its discount items.
const CashDiscountPercent = 10

var discountFactor = decimal.NewFromInt(100 - CashDiscountPercent).Div(decimal.NewFromInt(100))

// Totals summarises a cart against its payment allocations.
type Totals struct {
	SubtotalAtList   int64
	NetTotal         int64
	Savings          int64
	TotalCollected   int64
	BalanceRemaining int64
}

// Discounted reports whether any cash allocation applies its discount to the line.
func Discounted(item domain.CartLineItem, allocations []domain.PaymentAllocation) bool {
	for _, alloc := range allocations {
		if alloc.AppliesDiscountTo(item.ID) {
			return true
		}
	}
	return false
}

// DiscountedPrice rounds listPrice × 0.9 to the nearest whole unit.
func DiscountedPrice(listPrice int64) int64 {
	return decimal.NewFromInt(listPrice).Mul(discountFactor).Round(0).IntPart()
}

// EffectivePrice is the unsigned unit price the line is charged at.
func EffectivePrice(item domain.CartLineItem, allocations []domain.PaymentAllocation) int64 {
	if Discounted(item, allocations) {
		return DiscountedPrice(item.ListPrice)
	}
	return item.ListPrice
}

// LineTotal is the signed contribution of a line to the net total.
func LineTotal(item domain.CartLineItem, allocations []domain.PaymentAllocation) int64 {
	return sign(item) * EffectivePrice(item, allocations) * int64(item.Quantity)
}

// Compute derives every cart total in one pass.
func Compute(items []domain.CartLineItem, allocations []domain.PaymentAllocation) Totals {
	var totals Totals
	for _, item := range items {
		totals.SubtotalAtList += sign(item) * item.ListPrice * int64(item.Quantity)
		totals.NetTotal += LineTotal(item, allocations)
	}
	totals.Savings = totals.SubtotalAtList - totals.NetTotal
	totals.TotalCollected = Collected(allocations)
	totals.BalanceRemaining = totals.NetTotal - totals.TotalCollected
	return totals
}

// NetTotal is the signed sum of all line totals.
func NetTotal(items []domain.CartLineItem, allocations []domain.PaymentAllocation) int64 {
	var total int64
	for _, item := range items {
		total += LineTotal(item, allocations)
	}
	return total
}

// Collected sums the allocation amounts.
func Collected(allocations []domain.PaymentAllocation) int64 {
	var total int64
	for _, alloc := range allocations {
		total += alloc.Amount
	}
	return total
}

// FloorTo rounds amount down to a multiple of denomination. A denomination
// below 1 leaves the amount untouched.
func FloorTo(amount int64, denomination int64) int64 {
	if denomination < 1 {
		return amount
	}
	q := amount / denomination
	if amount%denomination != 0 && amount < 0 {
		q--
	}
	return q * denomination
}

func Abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(item domain.CartLineItem) int64 {
	if item.IsReturn {
		return -1
	}
	return 1
}
