package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store/memory"
)

func TestAdjustInventoryResetOnlyWritesNoLedger(t *testing.T) {
	svc, repo := newTestService(t)
	before := len(ledgerFor(t, svc, memory.SeedOilID))

	resp, err := svc.AdjustInventory(adminCtx(), testStore, domain.AdjustmentRequest{
		ProductID:    memory.SeedOilID,
		ResetAvgCost: true,
	})
	require.NoError(t, err)
	assert.False(t, resp.LedgerWritten)
	assert.Equal(t, int64(40), resp.Balance.QtyOnHand)
	assert.Equal(t, int64(0), resp.Balance.AvgUnitCost)

	bal := balanceOf(t, repo, memory.SeedOilID)
	assert.Equal(t, int64(40), bal.QtyOnHand)
	assert.Equal(t, int64(0), bal.AvgUnitCost)
	assert.Len(t, ledgerFor(t, svc, memory.SeedOilID), before)
}

func TestAdjustInventoryRejectsZeroDelta(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AdjustInventory(adminCtx(), testStore, domain.AdjustmentRequest{ProductID: memory.SeedOilID})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestAdjustInventoryPositiveDelta(t *testing.T) {
	tests := []struct {
		name     string
		unitCost *int64
		wantAvg  int64
		wantCost int64
	}{
		{name: "explicit unit cost is weighted in", unitCost: int64Ptr(41000), wantAvg: 39000, wantCost: 41000},
		{name: "missing unit cost keeps the average", unitCost: nil, wantAvg: 38000, wantCost: 38000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newTestService(t)

			resp, err := svc.AdjustInventory(adminCtx(), testStore, domain.AdjustmentRequest{
				ProductID: memory.SeedTireID,
				QtyDelta:  10,
				UnitCost:  tc.unitCost,
				Note:      "stock opname",
			})
			require.NoError(t, err)
			assert.True(t, resp.LedgerWritten)

			bal := balanceOf(t, repo, memory.SeedTireID)
			assert.Equal(t, int64(30), bal.QtyOnHand)
			assert.Equal(t, tc.wantAvg, bal.AvgUnitCost)

			entry := ledgerFor(t, svc, memory.SeedTireID)[0]
			assert.Equal(t, domain.TxnAdjust, entry.TxnType)
			assert.Equal(t, domain.RefManualAdjust, entry.RefType)
			assert.Equal(t, int64(10), entry.QtyDelta)
			assert.Equal(t, tc.wantCost, entry.UnitCost)
			assert.Equal(t, "stock opname", entry.Note)
			assert.Equal(t, "user-admin", entry.CreatedBy)
		})
	}
}

func TestAdjustInventoryNegativeDelta(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.AdjustInventory(adminCtx(), testStore, domain.AdjustmentRequest{ProductID: memory.SeedDiscPadID, QtyDelta: -16})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(15), balanceOf(t, repo, memory.SeedDiscPadID).QtyOnHand)

	_, err = svc.AdjustInventory(adminCtx(), testStore, domain.AdjustmentRequest{ProductID: memory.SeedDiscPadID, QtyDelta: -15, ResetAvgCost: true})
	require.NoError(t, err)
	bal := balanceOf(t, repo, memory.SeedDiscPadID)
	assert.Equal(t, int64(0), bal.QtyOnHand)
	assert.Equal(t, int64(0), bal.AvgUnitCost)
}

func TestAdjustInventoryUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AdjustInventory(adminCtx(), testStore, domain.AdjustmentRequest{
		ProductID: "6f1c3a52-8d0e-4b7a-9c41-2a5e7d9b0999",
		QtyDelta:  1,
	})
	require.ErrorIs(t, err, domain.ErrInvalidData)
}

func TestAdjustInventoryCreatesBalanceForNewStore(t *testing.T) {
	svc, repo := newTestService(t)

	resp, err := svc.AdjustInventory(adminCtx(), "branch-2", domain.AdjustmentRequest{
		ProductID: memory.SeedTireID,
		QtyDelta:  4,
		UnitCost:  int64Ptr(40000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), resp.Balance.QtyOnHand)
	assert.Equal(t, int64(40000), resp.Balance.AvgUnitCost)
	assert.Equal(t, int64(20), balanceOf(t, repo, memory.SeedTireID).QtyOnHand, "other stores are untouched")
}
