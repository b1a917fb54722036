// Package numbering builds the human readable transaction identifiers
// printed on receipts, of the form {kind}{YYMMDD}{seq}.
package numbering

import (
	"fmt"
	"time"

	"atenea/backend/internal/domain"
)

const (
	KindSale     = "V"
	KindPending  = "S"
	KindExchange = "C"
)

const dateLayout = "2006-01-02"

// Classify picks the identifier prefix. Any return line makes the checkout
// an exchange, otherwise a pending balance makes it a layaway.
func Classify(items []domain.CartLineItem, pending bool) string {
	for _, item := range items {
		if item.IsReturn {
			return KindExchange
		}
	}
	if pending {
		return KindPending
	}
	return KindSale
}

// Sequence counts the distinct transactions already recorded on date and
// returns the next number. It is derived from surviving rows, so deleted
// transactions free their slot.
func Sequence(history []domain.SaleLine, date string) int {
	seen := make(map[string]struct{})
	for _, line := range history {
		if line.Date != date || line.TransactionID == "" {
			continue
		}
		seen[line.TransactionID] = struct{}{}
	}
	return len(seen) + 1
}

// Next composes the identifier for a new transaction of the given kind on
// date (YYYY-MM-DD). When a deletion in the middle of the day leaves the
// counted slot occupied, the sequence moves forward to the first free one.
func Next(history []domain.SaleLine, date, kind string) (string, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("numbering: invalid date %q: %w", date, err)
	}
	taken := make(map[string]struct{}, len(history))
	for _, line := range history {
		taken[line.TransactionID] = struct{}{}
	}
	prefix := kind + day.Format("060102")
	for seq := Sequence(history, date); ; seq++ {
		id := fmt.Sprintf("%s%03d", prefix, seq)
		if _, ok := taken[id]; !ok {
			return id, nil
		}
	}
}
