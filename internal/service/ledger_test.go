package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
	"tokoban/backend/internal/store/memory"
)

// skipEnsureRepo hands out transactions whose EnsureBalances does nothing, so
// balance rows missing from a store stay missing.
type skipEnsureRepo struct {
	*memory.Store
}

func (r skipEnsureRepo) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return r.Store.RunInTx(ctx, func(tx store.Tx) error {
		return fn(skipEnsureTx{tx})
	})
}

type skipEnsureTx struct {
	store.Tx
}

func (skipEnsureTx) EnsureBalances(context.Context, string, []string) error {
	return nil
}

func TestMissingBalanceRowIsReported(t *testing.T) {
	const branch = "branch-2"

	tests := []struct {
		name string
		run  func(svc *Service) error
	}{
		{
			name: "sale",
			run: func(svc *Service) error {
				_, err := svc.CreateSale(adminCtx(), branch, domain.SaleCreateRequest{
					PlateNo:     "B 90",
					PaymentType: "CASH",
					Items:       []domain.SaleItemInput{{ProductID: memory.SeedTireID, Qty: 1}},
				})
				return err
			},
		},
		{
			name: "adjustment",
			run: func(svc *Service) error {
				_, err := svc.AdjustInventory(adminCtx(), branch, domain.AdjustmentRequest{
					ProductID: memory.SeedTireID,
					QtyDelta:  3,
					UnitCost:  int64Ptr(40000),
				})
				return err
			},
		},
		{
			name: "supplier invoice",
			run: func(svc *Service) error {
				_, err := svc.CreateSupplierInvoice(adminCtx(), branch, tireInvoice("INV-B2", 4, 40000))
				return err
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := memory.NewSeeded(zap.NewNop())
			svc := New(skipEnsureRepo{repo}, nil, zap.NewNop(), Options{DefaultStoreID: testStore})

			err := tc.run(svc)
			require.ErrorIs(t, err, domain.ErrBalanceNotFound)

			_, err = repo.GetBalance(context.Background(), branch, memory.SeedTireID)
			require.ErrorIs(t, err, domain.ErrReferenceNotFound)
			ledger, err := svc.ListLedger(context.Background(), domain.LedgerFilter{StoreID: branch, Limit: 200})
			require.NoError(t, err)
			assert.Empty(t, ledger)
			invoices, err := svc.ListSupplierInvoices(context.Background(), domain.InvoiceListFilter{StoreID: branch})
			require.NoError(t, err)
			assert.Empty(t, invoices)
		})
	}
}
