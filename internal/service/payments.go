package service

import (
	"slices"
	"time"

	"dapurpos/backend/internal/domain"
)

// governingTotal is the amount the payment ledger reconciles against.
// Orders keyed off line items use the item subtotal; others fall back to the
// computed total.
func governingTotal(order domain.Order) int64 {
	if order.SubTotal > 0 {
		return order.SubTotal
	}
	return order.Total
}

// historyEntry snapshots the order's payment state as one append-only ledger
// event. paidDelta is the incremental amount of this transaction only.
func historyEntry(order domain.Order, action string, paidDelta int64, at time.Time, description string) domain.PaymentHistoryEntry {
	total := governingTotal(order)
	payments := make([]domain.Payment, len(order.Payments))
	copy(payments, order.Payments)
	return domain.PaymentHistoryEntry{
		At:          at,
		Action:      action,
		Total:       total,
		Paid:        paidDelta,
		TotalPaid:   order.CumulativePaid,
		Remaining:   total - order.CumulativePaid,
		Payments:    payments,
		Description: description,
	}
}

// classifyAction names an order edit by what moved, checked in priority
// order: item total up, item total down, paid amount, payment-type set,
// anything else.
func classifyAction(old domain.Order, updated domain.Order) string {
	oldTotal, newTotal := governingTotal(old), governingTotal(updated)
	switch {
	case newTotal > oldTotal:
		return domain.HistoryActionAddItem
	case newTotal < oldTotal:
		return domain.HistoryActionRemoveItem
	case updated.CumulativePaid != old.CumulativePaid:
		return domain.HistoryActionPaymentReceived
	case !sameTypeSet(distinctTypes(old.Payments), distinctTypes(updated.Payments)):
		return domain.HistoryActionModeChanged
	default:
		return domain.HistoryActionEdited
	}
}

// distinctTypes returns the sorted set of payment types present.
func distinctTypes(payments []domain.Payment) []string {
	seen := make(map[string]struct{}, len(payments))
	types := make([]string, 0, len(payments))
	for _, payment := range payments {
		if _, ok := seen[payment.Type]; ok {
			continue
		}
		seen[payment.Type] = struct{}{}
		types = append(types, payment.Type)
	}
	slices.Sort(types)
	return types
}

func sameTypeSet(a []string, b []string) bool {
	return slices.Equal(a, b)
}
