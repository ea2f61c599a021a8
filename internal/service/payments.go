package service

import (
	"fmt"
	"strings"

	"tokoban/backend/internal/domain"
)

func normalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

// reconcilePayments turns requested payments into the rows stored on a sale
// and the header summary. Non-positive amounts are dropped first. A single
// remaining payment takes the whole total; several must use distinct methods
// and add up to the total exactly. A zero total keeps the method as summary
// but stores no payment row.
func reconcilePayments(inputs []domain.PaymentInput, legacyMethod string, total int64) ([]domain.Payment, string, error) {
	kept := make([]domain.Payment, 0, len(inputs))
	for _, in := range inputs {
		if in.Amount <= 0 {
			continue
		}
		method := normalizeMethod(in.Method)
		if !domain.IsPaymentMethod(method) {
			return nil, "", fmt.Errorf("%w: unsupported payment method %q", domain.ErrInvalidRequest, in.Method)
		}
		kept = append(kept, domain.Payment{Method: method, Amount: in.Amount})
	}

	switch len(kept) {
	case 0:
		method := normalizeMethod(legacyMethod)
		if method == "" {
			return nil, "", fmt.Errorf("%w: payment_type is required", domain.ErrInvalidRequest)
		}
		if !domain.IsPaymentMethod(method) {
			return nil, "", fmt.Errorf("%w: unsupported payment method %q", domain.ErrInvalidRequest, legacyMethod)
		}
		return singlePayment(method, total), method, nil
	case 1:
		return singlePayment(kept[0].Method, total), kept[0].Method, nil
	}

	seen := make(map[string]struct{}, len(kept))
	var sum int64
	for _, p := range kept {
		if _, dup := seen[p.Method]; dup {
			return nil, "", fmt.Errorf("%w: %s", domain.ErrDuplicatePaymentMethod, p.Method)
		}
		seen[p.Method] = struct{}{}
		sum += p.Amount
	}
	if sum != total {
		return nil, "", fmt.Errorf("%w: payments %d, total %d", domain.ErrPaymentMismatch, sum, total)
	}
	return kept, domain.PaymentMixed, nil
}

// rebalancePayments adapts stored payments to a new total when the caller did
// not resupply them. One payment is rescaled; with several, the whole delta
// lands on the currently largest payment.
func rebalancePayments(existing []domain.Payment, summary string, newTotal int64) ([]domain.Payment, string, error) {
	switch len(existing) {
	case 0:
		method := normalizeMethod(summary)
		if method == "" || method == domain.PaymentMixed {
			return nil, "", fmt.Errorf("%w: sale has no payment to adjust", domain.ErrPaymentAdjustmentInvalid)
		}
		return singlePayment(method, newTotal), method, nil
	case 1:
		return singlePayment(existing[0].Method, newTotal), existing[0].Method, nil
	}

	out := append([]domain.Payment(nil), existing...)
	var sum int64
	largest := 0
	for i, p := range out {
		sum += p.Amount
		if p.Amount > out[largest].Amount {
			largest = i
		}
	}
	adjusted := out[largest].Amount + (newTotal - sum)
	if adjusted <= 0 {
		return nil, "", fmt.Errorf("%w: %s would become %d", domain.ErrPaymentAdjustmentInvalid, out[largest].Method, adjusted)
	}
	out[largest].Amount = adjusted
	return out, domain.PaymentMixed, nil
}

func singlePayment(method string, amount int64) []domain.Payment {
	if amount <= 0 {
		return nil
	}
	return []domain.Payment{{Method: method, Amount: amount}}
}
