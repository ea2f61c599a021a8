package domain

import "errors"

var (
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrProductNotSellable        = errors.New("product is not active for this store")
	ErrDuplicateProductReference = errors.New("duplicate product in request")
	ErrDuplicatePaymentMethod    = errors.New("duplicate payment method")
	ErrPaymentMismatch           = errors.New("payments do not add up to the sale total")
	ErrPaymentAdjustmentInvalid  = errors.New("payments cannot absorb the new total; resupply the payment split")
	ErrInvoiceVoided             = errors.New("invoice is void")
	ErrReferenceNotFound         = errors.New("not found")
	ErrInvalidData               = errors.New("invalid data")
	ErrInvalidRequest            = errors.New("invalid request")
	ErrForbidden                 = errors.New("forbidden")

	// ErrBalanceNotFound means a balance row was locked without being ensured
	// first. It is a server defect, not a user error.
	ErrBalanceNotFound = errors.New("balance row not found")
)

// IsUserError reports whether err should be surfaced to the caller as a
// client-side failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrInsufficientStock,
		ErrProductNotSellable,
		ErrDuplicateProductReference,
		ErrDuplicatePaymentMethod,
		ErrPaymentMismatch,
		ErrPaymentAdjustmentInvalid,
		ErrInvoiceVoided,
		ErrReferenceNotFound,
		ErrInvalidData,
		ErrInvalidRequest,
		ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
