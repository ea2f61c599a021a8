package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokoban/backend/internal/domain"
)

func TestReconcilePayments(t *testing.T) {
	tests := []struct {
		name        string
		inputs      []domain.PaymentInput
		legacy      string
		total       int64
		want        []domain.Payment
		wantSummary string
		wantErr     error
	}{
		{
			name:        "legacy method takes the total",
			legacy:      "transfer",
			total:       90000,
			want:        []domain.Payment{{Method: domain.PaymentTransfer, Amount: 90000}},
			wantSummary: domain.PaymentTransfer,
		},
		{
			name:        "single payment amount is overwritten",
			inputs:      []domain.PaymentInput{{Method: "qris", Amount: 5}},
			legacy:      "CASH",
			total:       90000,
			want:        []domain.Payment{{Method: domain.PaymentQRIS, Amount: 90000}},
			wantSummary: domain.PaymentQRIS,
		},
		{
			name: "non-positive amounts are dropped first",
			inputs: []domain.PaymentInput{
				{Method: "CASH", Amount: 0},
				{Method: "DEBIT", Amount: -10},
				{Method: "QRIS", Amount: 1000},
			},
			total:       90000,
			want:        []domain.Payment{{Method: domain.PaymentQRIS, Amount: 90000}},
			wantSummary: domain.PaymentQRIS,
		},
		{
			name: "split must match the total",
			inputs: []domain.PaymentInput{
				{Method: "CASH", Amount: 50000},
				{Method: "QRIS", Amount: 77000},
			},
			total: 127000,
			want: []domain.Payment{
				{Method: domain.PaymentCash, Amount: 50000},
				{Method: domain.PaymentQRIS, Amount: 77000},
			},
			wantSummary: domain.PaymentMixed,
		},
		{
			name: "split short of the total",
			inputs: []domain.PaymentInput{
				{Method: "CASH", Amount: 50000},
				{Method: "QRIS", Amount: 70000},
			},
			total:   127000,
			wantErr: domain.ErrPaymentMismatch,
		},
		{
			name: "duplicate method after normalization",
			inputs: []domain.PaymentInput{
				{Method: " cash", Amount: 50000},
				{Method: "CASH", Amount: 77000},
			},
			total:   127000,
			wantErr: domain.ErrDuplicatePaymentMethod,
		},
		{
			name:        "zero total keeps the method without a row",
			legacy:      "cash",
			total:       0,
			wantSummary: domain.PaymentCash,
		},
		{
			name:        "single payment against zero total",
			inputs:      []domain.PaymentInput{{Method: "QRIS", Amount: 5000}},
			total:       0,
			wantSummary: domain.PaymentQRIS,
		},
		{
			name: "split against zero total",
			inputs: []domain.PaymentInput{
				{Method: "CASH", Amount: 1000},
				{Method: "QRIS", Amount: 1000},
			},
			total:   0,
			wantErr: domain.ErrPaymentMismatch,
		},
		{
			name:    "no method at all",
			total:   1000,
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "unknown method",
			inputs:  []domain.PaymentInput{{Method: "BITCOIN", Amount: 1000}},
			total:   1000,
			wantErr: domain.ErrInvalidRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, summary, err := reconcilePayments(tc.inputs, tc.legacy, tc.total)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantSummary, summary)
		})
	}
}

func TestRebalancePayments(t *testing.T) {
	t.Run("single payment is rescaled", func(t *testing.T) {
		got, summary, err := rebalancePayments([]domain.Payment{{Method: "CASH", Amount: 127000}}, "CASH", 132000)
		require.NoError(t, err)
		assert.Equal(t, []domain.Payment{{Method: "CASH", Amount: 132000}}, got)
		assert.Equal(t, "CASH", summary)
	})

	t.Run("rescaled to zero drops the row", func(t *testing.T) {
		got, summary, err := rebalancePayments([]domain.Payment{{Method: "CASH", Amount: 5000}}, "CASH", 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, "CASH", summary)
	})

	t.Run("delta lands on the largest payment", func(t *testing.T) {
		existing := []domain.Payment{{Method: "CASH", Amount: 50000}, {Method: "QRIS", Amount: 77000}}
		got, summary, err := rebalancePayments(existing, domain.PaymentMixed, 117000)
		require.NoError(t, err)
		assert.Equal(t, []domain.Payment{{Method: "CASH", Amount: 50000}, {Method: "QRIS", Amount: 67000}}, got)
		assert.Equal(t, domain.PaymentMixed, summary)
		assert.Equal(t, int64(77000), existing[1].Amount, "input slice must not be modified")
	})

	t.Run("largest payment cannot reach zero", func(t *testing.T) {
		existing := []domain.Payment{{Method: "CASH", Amount: 70000}, {Method: "QRIS", Amount: 57000}}
		_, _, err := rebalancePayments(existing, domain.PaymentMixed, 57000)
		require.ErrorIs(t, err, domain.ErrPaymentAdjustmentInvalid)
	})

	t.Run("no payments falls back to the summary method", func(t *testing.T) {
		got, _, err := rebalancePayments(nil, "TRANSFER", 5000)
		require.NoError(t, err)
		assert.Equal(t, []domain.Payment{{Method: "TRANSFER", Amount: 5000}}, got)

		_, _, err = rebalancePayments(nil, domain.PaymentMixed, 5000)
		require.ErrorIs(t, err, domain.ErrPaymentAdjustmentInvalid)
	})
}
